package multicam

import (
	"log/slog"
	"time"
)

// AuthStrategy supplies the obs-websocket password (empty when the server
// has authentication disabled).
type AuthStrategy interface {
	Password() (string, error)
}

// StaticAuth implements AuthStrategy using a pre-specified password.
type StaticAuth struct{ Value string }

func (s StaticAuth) Password() (string, error) { return s.Value, nil }

// Options configures the controller.
type Options struct {
	Address string // host:port of the obs-websocket server
	Auth    AuthStrategy

	OverlayScene string

	Sync      SyncConfig
	Transport TransportConfig

	Logger *slog.Logger
}

type SyncConfig struct {
	// SettleWindow is how long the busy token stays held after a swap
	// completes before the post-swap refresh runs. Zero selects the
	// default.
	SettleWindow time.Duration
	EventBuffer  int
}

type TransportConfig struct {
	HandshakeTimeout time.Duration
	RequestTimeout   time.Duration
}

// DefaultOptions gives baseline defaults for a local OBS instance.
func DefaultOptions() Options {
	return Options{
		Address:      "localhost:4455",
		Auth:         StaticAuth{},
		OverlayScene: "OVERLAY",
		Sync: SyncConfig{
			SettleWindow: 500 * time.Millisecond,
			EventBuffer:  64,
		},
		Transport: TransportConfig{
			HandshakeTimeout: 10 * time.Second,
			RequestTimeout:   10 * time.Second,
		},
	}
}

// Log returns the configured logger or the process default.
func (o Options) Log() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}
