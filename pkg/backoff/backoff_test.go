package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelayDoubles(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: time.Minute, MaxAttempts: 10}

	assert.Equal(t, 1*time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
	assert.Equal(t, 8*time.Second, p.Delay(4))
	assert.Equal(t, 16*time.Second, p.Delay(5))
	assert.Equal(t, 32*time.Second, p.Delay(6))
}

func TestDelayCapped(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: 10 * time.Second, MaxAttempts: 10}

	assert.Equal(t, 8*time.Second, p.Delay(4))
	assert.Equal(t, 10*time.Second, p.Delay(5))
	assert.Equal(t, 10*time.Second, p.Delay(6))
	// Deep attempts never overflow past the cap
	assert.Equal(t, 10*time.Second, p.Delay(500))
}

func TestDelayClampsLowAttempts(t *testing.T) {
	p := Default()
	assert.Equal(t, p.Delay(1), p.Delay(0))
	assert.Equal(t, p.Delay(1), p.Delay(-3))
}

func TestExhausted(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: time.Minute, MaxAttempts: 3}

	assert.False(t, p.Exhausted(0))
	assert.False(t, p.Exhausted(2))
	// The third attempt still gets its delay and retry.
	assert.False(t, p.Exhausted(3))
	assert.True(t, p.Exhausted(4))
	assert.True(t, p.Exhausted(5))

	unlimited := Policy{BaseDelay: time.Second, MaxDelay: time.Minute, MaxAttempts: 0}
	assert.False(t, unlimited.Exhausted(1000))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Default().Validate())
	assert.Error(t, Policy{BaseDelay: 0, MaxDelay: time.Second}.Validate())
	assert.Error(t, Policy{BaseDelay: time.Second, MaxDelay: time.Millisecond}.Validate())
	assert.Error(t, Policy{BaseDelay: time.Second, MaxDelay: time.Minute, MaxAttempts: -1}.Validate())
}
