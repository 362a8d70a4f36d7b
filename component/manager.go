package component

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ZhuYizhou2333/Market-insight-bot/errors"
)

// managed pairs a component with its lifecycle bookkeeping. The manager owns
// the per-component child context; components receive it as a parameter and
// never store it.
type managed struct {
	component LifecycleComponent
	state     State
	cancel    context.CancelFunc
	lastErr   error
}

// Manager initializes and starts components in registration order and stops
// them in reverse, so producers shut down before the transports they feed.
type Manager struct {
	mu         sync.Mutex
	components []*managed
	logger     *slog.Logger
}

// NewManager creates an empty Manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger.With("component", "manager")}
}

// Add registers a component. Registration order is start order.
func (m *Manager) Add(c LifecycleComponent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, &managed{component: c, state: StateCreated})
}

// Initialize initializes every component in order, stopping at the first
// failure.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, mc := range m.components {
		if err := mc.component.Initialize(); err != nil {
			mc.state = StateFailed
			mc.lastErr = err
			return errors.Wrap(err, "Manager", "Initialize", "initialize "+mc.component.Name())
		}
		mc.state = StateInitialized
		m.logger.Info("component initialized", "name", mc.component.Name())
	}
	return nil
}

// Start starts every component in order under its own child context. On
// failure, already-started components are stopped in reverse before the
// error is returned.
func (m *Manager) Start(ctx context.Context, stopTimeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, mc := range m.components {
		childCtx, cancel := context.WithCancel(ctx)
		mc.cancel = cancel
		if err := mc.component.Start(childCtx); err != nil {
			cancel()
			mc.state = StateFailed
			mc.lastErr = err
			m.stopLocked(i-1, stopTimeout)
			return errors.Wrap(err, "Manager", "Start", "start "+mc.component.Name())
		}
		mc.state = StateStarted
		m.logger.Info("component started", "name", mc.component.Name())
	}
	return nil
}

// Stop stops every started component in reverse registration order. All
// components are attempted; the first error encountered is returned.
func (m *Manager) Stop(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked(len(m.components)-1, timeout)
}

// stopLocked stops components from index downward. Caller must hold m.mu.
func (m *Manager) stopLocked(from int, timeout time.Duration) error {
	var firstErr error
	for i := from; i >= 0; i-- {
		mc := m.components[i]
		if mc.state != StateStarted {
			continue
		}
		if mc.cancel != nil {
			mc.cancel()
		}
		if err := mc.component.Stop(timeout); err != nil {
			mc.state = StateFailed
			mc.lastErr = err
			m.logger.Error("component stop failed", "name", mc.component.Name(), "error", err)
			if firstErr == nil {
				firstErr = errors.Wrap(err, "Manager", "Stop", "stop "+mc.component.Name())
			}
			continue
		}
		mc.state = StateStopped
		m.logger.Info("component stopped", "name", mc.component.Name())
	}
	return firstErr
}

// Health reports the health of every registered component, keyed by name.
// Components implementing HealthReporter answer for themselves; otherwise
// health is derived from lifecycle state.
func (m *Manager) Health() map[string]HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]HealthStatus, len(m.components))
	for _, mc := range m.components {
		if hr, ok := mc.component.(HealthReporter); ok {
			out[mc.component.Name()] = hr.Health()
			continue
		}
		hs := HealthStatus{Healthy: mc.state == StateStarted, State: mc.state.String()}
		if mc.lastErr != nil {
			hs.Detail = mc.lastErr.Error()
		}
		out[mc.component.Name()] = hs
	}
	return out
}
