package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	api "github.com/stepherg/obs-multicam/internal/http"
)

// ControlConfig configures the HTTP control server.
type ControlConfig struct {
	ListenAddr   string         // address to bind (e.g. :8090)
	Controller   api.Controller // required
	Logger       *slog.Logger   // optional; defaults to slog.Default()
	ReadTimeout  time.Duration  // optional
	WriteTimeout time.Duration  // optional
	IdleTimeout  time.Duration  // optional
}

var ErrNilController = errors.New("control server: controller is nil")

// StartControlServer binds ListenAddr and serves the control API in the
// background. It returns the server, a channel that receives a terminal
// error (if any), and an error for immediate startup problems such as a
// busy port. The server shuts down when ctx is canceled.
func StartControlServer(ctx context.Context, cfg ControlConfig) (*http.Server, <-chan error, error) {
	if cfg.Controller == nil {
		return nil, nil, ErrNilController
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8090"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return nil, nil, err
	}

	srv := &http.Server{
		Addr:         ln.Addr().String(),
		Handler:      api.NewHandler(cfg.Controller, cfg.Logger).Routes(),
		ReadTimeout:  durationOr(cfg.ReadTimeout, 10*time.Second),
		WriteTimeout: durationOr(cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:  durationOr(cfg.IdleTimeout, 60*time.Second),
	}

	errCh := make(chan error, 1)

	go func() {
		cfg.Logger.Info("control API listening", "addr", srv.Addr)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	return srv, errCh, nil
}

func durationOr(v time.Duration, d time.Duration) time.Duration {
	if v <= 0 {
		return d
	}
	return v
}
