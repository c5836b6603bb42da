package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	multicam "github.com/stepherg/obs-multicam"
)

// ConnectionManager owns the session state machine. Disconnected and Error
// move to Connecting, which ends in Connected or Error. Connected returns to
// Disconnected on an explicit Disconnect and to Error on a remote closure.
// There is no automatic reconnect.
type ConnectionManager struct {
	transport multicam.Transport
	log       *slog.Logger

	mu        sync.RWMutex
	state     multicam.ConnectionState
	lastErr   error
	since     time.Time
	listeners []func(from, to multicam.ConnectionState)
}

func NewConnectionManager(t multicam.Transport, logger *slog.Logger) *ConnectionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectionManager{transport: t, log: logger}
}

// OnTransition registers fn to run after every state change, outside the
// manager's lock.
func (m *ConnectionManager) OnTransition(fn func(from, to multicam.ConnectionState)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

func (m *ConnectionManager) State() multicam.ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *ConnectionManager) Connected() bool { return m.State() == multicam.StateConnected }

// LastError is the failure that put the manager into Error, if any.
func (m *ConnectionManager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

func (m *ConnectionManager) Connect(ctx context.Context, address string, auth multicam.AuthStrategy) error {
	if err := m.transition(multicam.StateConnecting, nil, multicam.StateDisconnected, multicam.StateError); err != nil {
		return err
	}
	if err := m.transport.Connect(ctx, address, auth); err != nil {
		_ = m.transition(multicam.StateError, err, multicam.StateConnecting)
		return err
	}
	return m.transition(multicam.StateConnected, nil, multicam.StateConnecting)
}

func (m *ConnectionManager) Disconnect() error {
	if err := m.transition(multicam.StateDisconnected, nil, multicam.StateConnected); err != nil {
		return err
	}
	return m.transport.Close()
}

// Stale reports whether something observed at t predates the current
// session. A closure event of an earlier session can arrive after a quick
// reconnect.
func (m *ConnectionManager) Stale(t time.Time) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == multicam.StateConnected && t.Before(m.since)
}

// ConnectionLost records a remote-initiated closure. It is a no-op unless
// the session was Connected, so the closure that follows an explicit
// Disconnect is ignored.
func (m *ConnectionManager) ConnectionLost(cause error) bool {
	if cause == nil {
		cause = multicam.ErrConnectionClosed
	}
	return m.transition(multicam.StateError, cause, multicam.StateConnected) == nil
}

func (m *ConnectionManager) transition(to multicam.ConnectionState, cause error, allowed ...multicam.ConnectionState) error {
	m.mu.Lock()
	from := m.state
	ok := false
	for _, s := range allowed {
		if s == from {
			ok = true
			break
		}
	}
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%s -> %s: %w", from, to, multicam.ErrInvalidTransition)
	}
	m.state = to
	m.lastErr = cause
	if to == multicam.StateConnected {
		m.since = time.Now()
	}
	listeners := slices.Clone(m.listeners)
	m.mu.Unlock()

	m.log.Info("connection state", "from", from.String(), "to", to.String())
	for _, fn := range listeners {
		fn(from, to)
	}
	return nil
}
