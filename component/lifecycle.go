// Package component defines the lifecycle contract shared by the bot's
// long-running parts and a manager that drives them in dependency order.
package component

import (
	"context"
	"time"
)

// State represents the current lifecycle state of a component.
type State int

const (
	// StateCreated indicates the component was created but not initialized.
	StateCreated State = iota
	// StateInitialized indicates the component was initialized but not started.
	StateInitialized
	// StateStarted indicates the component is running.
	StateStarted
	// StateStopped indicates the component was stopped.
	StateStopped
	// StateFailed indicates the component failed during a lifecycle operation.
	StateFailed
)

// String returns a string representation of the component state.
func (cs State) String() string {
	switch cs {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// LifecycleComponent is implemented by every long-running part of the bot:
//   - Initialize() error                  setup only, no context
//   - Start(ctx context.Context) error    begin work, return promptly
//   - Stop(timeout time.Duration) error   graceful shutdown within timeout
type LifecycleComponent interface {
	Name() string
	Initialize() error
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
}

// HealthStatus is a point-in-time component health report.
type HealthStatus struct {
	Healthy bool   `json:"healthy"`
	State   string `json:"state"`
	Detail  string `json:"detail,omitempty"`
}

// HealthReporter is optionally implemented by components that can describe
// their own health beyond lifecycle state.
type HealthReporter interface {
	Health() HealthStatus
}
