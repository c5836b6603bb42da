package runtime

import (
	"context"
	"errors"
	"testing"

	multicam "github.com/stepherg/obs-multicam"
)

func TestConnectionLifecycle(t *testing.T) {
	f := newFakeOBS()
	m := NewConnectionManager(f, quietLogger())
	var seen []string
	m.OnTransition(func(from, to multicam.ConnectionState) {
		seen = append(seen, from.String()+">"+to.String())
	})

	if m.State() != multicam.StateDisconnected {
		t.Fatalf("initial state: %s", m.State())
	}
	if err := m.Connect(context.Background(), "fake", nil); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !m.Connected() {
		t.Fatalf("expected connected")
	}
	if err := m.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	want := []string{"disconnected>connecting", "connecting>connected", "connected>disconnected"}
	if len(seen) != len(want) {
		t.Fatalf("transitions: %v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("transition %d: %s want %s", i, seen[i], want[i])
		}
	}
}

func TestConnectFailureEntersErrorAndAllowsRetry(t *testing.T) {
	f := newFakeOBS()
	f.connErr = multicam.ErrAuthenticationFailed
	m := NewConnectionManager(f, quietLogger())

	if err := m.Connect(context.Background(), "fake", nil); !errors.Is(err, multicam.ErrAuthenticationFailed) {
		t.Fatalf("connect: %v", err)
	}
	if m.State() != multicam.StateError || !errors.Is(m.LastError(), multicam.ErrAuthenticationFailed) {
		t.Fatalf("state %s err %v", m.State(), m.LastError())
	}

	f.connErr = nil
	if err := m.Connect(context.Background(), "fake", nil); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !m.Connected() || m.LastError() != nil {
		t.Fatalf("retry should connect cleanly")
	}
}

func TestConnectionIllegalTransitions(t *testing.T) {
	m := NewConnectionManager(newFakeOBS(), quietLogger())
	if err := m.Disconnect(); !errors.Is(err, multicam.ErrInvalidTransition) {
		t.Fatalf("disconnect while disconnected: %v", err)
	}
	if m.ConnectionLost(nil) {
		t.Fatalf("loss while disconnected must be ignored")
	}
	_ = m.Connect(context.Background(), "fake", nil)
	if err := m.Connect(context.Background(), "fake", nil); !errors.Is(err, multicam.ErrInvalidTransition) {
		t.Fatalf("connect while connected: %v", err)
	}
}

func TestConnectionLostOnlyFromConnected(t *testing.T) {
	m := NewConnectionManager(newFakeOBS(), quietLogger())
	_ = m.Connect(context.Background(), "fake", nil)

	if !m.ConnectionLost(nil) {
		t.Fatalf("loss while connected should transition")
	}
	if m.State() != multicam.StateError || !errors.Is(m.LastError(), multicam.ErrConnectionClosed) {
		t.Fatalf("state %s err %v", m.State(), m.LastError())
	}
	if m.ConnectionLost(nil) {
		t.Fatalf("second loss must be ignored")
	}
}
