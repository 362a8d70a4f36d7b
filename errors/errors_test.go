package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassString(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(99).String())
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "c", "m", "a"))
	assert.Nil(t, WrapTransient(nil, "c", "m", "a"))
	assert.Nil(t, WrapInvalid(nil, "c", "m", "a"))
	assert.Nil(t, WrapFatal(nil, "c", "m", "a"))
}

func TestWrapFormat(t *testing.T) {
	base := stderrors.New("boom")
	err := Wrap(base, "bus", "Publish", "serialize payload")
	require.Error(t, err)
	assert.Equal(t, "bus.Publish: serialize payload failed: boom", err.Error())
	assert.True(t, stderrors.Is(err, base))
}

func TestClassifiedWrapping(t *testing.T) {
	base := stderrors.New("boom")

	terr := WrapTransient(base, "ingest", "connect", "dial stream")
	assert.True(t, IsTransient(terr))
	assert.False(t, IsFatal(terr))
	assert.True(t, stderrors.Is(terr, base))

	ierr := WrapInvalid(base, "event", "Parse", "decode record")
	assert.True(t, IsInvalid(ierr))
	assert.False(t, IsTransient(ierr))

	ferr := WrapFatal(base, "bus", "Publisher", "bind address")
	assert.True(t, IsFatal(ferr))
	assert.False(t, IsTransient(ferr))
}

func TestStandardVariableClassification(t *testing.T) {
	assert.True(t, IsFatal(ErrInvalidAddress))
	assert.True(t, IsFatal(ErrAttemptsExhausted))
	assert.True(t, IsInvalid(ErrMalformedResult))
	assert.True(t, IsInvalid(ErrUnknownType))
	assert.True(t, IsTransient(ErrConnectFailed))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorFatal, Classify(ErrInvalidConfig))
	assert.Equal(t, ErrorInvalid, Classify(ErrParsingFailed))
	// Unknown errors default to transient so callers may retry
	assert.Equal(t, ErrorTransient, Classify(stderrors.New("mystery")))
}

func TestTransientPatternFallback(t *testing.T) {
	assert.True(t, IsTransient(stderrors.New("read tcp: connection reset by peer")))
	assert.True(t, IsTransient(stderrors.New("i/o timeout")))
	assert.False(t, IsTransient(nil))
}
