package component

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeComponent struct {
	name    string
	initErr error
	startEr error
	stopErr error
	log     *[]string
}

func (f *fakeComponent) Name() string { return f.name }

func (f *fakeComponent) Initialize() error {
	*f.log = append(*f.log, "init:"+f.name)
	return f.initErr
}

func (f *fakeComponent) Start(_ context.Context) error {
	*f.log = append(*f.log, "start:"+f.name)
	return f.startEr
}

func (f *fakeComponent) Stop(_ time.Duration) error {
	*f.log = append(*f.log, "stop:"+f.name)
	return f.stopErr
}

func TestManagerStartOrderStopReverse(t *testing.T) {
	var log []string
	m := NewManager(nil)
	m.Add(&fakeComponent{name: "bus", log: &log})
	m.Add(&fakeComponent{name: "ingestor", log: &log})
	m.Add(&fakeComponent{name: "analyzer", log: &log})

	require.NoError(t, m.Initialize())
	require.NoError(t, m.Start(context.Background(), time.Second))
	require.NoError(t, m.Stop(time.Second))

	assert.Equal(t, []string{
		"init:bus", "init:ingestor", "init:analyzer",
		"start:bus", "start:ingestor", "start:analyzer",
		"stop:analyzer", "stop:ingestor", "stop:bus",
	}, log)
}

func TestManagerStartFailureUnwindsStarted(t *testing.T) {
	var log []string
	m := NewManager(nil)
	m.Add(&fakeComponent{name: "a", log: &log})
	m.Add(&fakeComponent{name: "b", startEr: errors.New("boom"), log: &log})
	m.Add(&fakeComponent{name: "c", log: &log})

	require.NoError(t, m.Initialize())
	err := m.Start(context.Background(), time.Second)
	require.Error(t, err)

	assert.Equal(t, []string{
		"init:a", "init:b", "init:c",
		"start:a", "start:b",
		"stop:a",
	}, log)
}

func TestManagerInitializeFailureStopsEarly(t *testing.T) {
	var log []string
	m := NewManager(nil)
	m.Add(&fakeComponent{name: "a", initErr: errors.New("bad config"), log: &log})
	m.Add(&fakeComponent{name: "b", log: &log})

	err := m.Initialize()
	require.Error(t, err)
	assert.Equal(t, []string{"init:a"}, log)
}

func TestManagerStopCollectsErrors(t *testing.T) {
	var log []string
	m := NewManager(nil)
	m.Add(&fakeComponent{name: "a", log: &log})
	m.Add(&fakeComponent{name: "b", stopErr: errors.New("stuck"), log: &log})

	require.NoError(t, m.Initialize())
	require.NoError(t, m.Start(context.Background(), time.Second))
	err := m.Stop(time.Second)
	require.Error(t, err)

	// Both components were attempted despite b's failure.
	assert.Contains(t, log, "stop:a")
	assert.Contains(t, log, "stop:b")
}

func TestManagerHealth(t *testing.T) {
	var log []string
	m := NewManager(nil)
	m.Add(&fakeComponent{name: "a", log: &log})

	require.NoError(t, m.Initialize())
	h := m.Health()
	require.Contains(t, h, "a")
	assert.False(t, h["a"].Healthy)
	assert.Equal(t, "initialized", h["a"].State)

	require.NoError(t, m.Start(context.Background(), time.Second))
	h = m.Health()
	assert.True(t, h["a"].Healthy)
	assert.Equal(t, "started", h["a"].State)
}
