package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	multicam "github.com/stepherg/obs-multicam"
	"github.com/stepherg/obs-multicam/internal/config"
	"github.com/stepherg/obs-multicam/internal/output"
	"github.com/stepherg/obs-multicam/runtime"
)

type globalFlags struct {
	configPath   string
	host         string
	port         string
	password     string
	overlayScene string
	json         bool
	quiet        bool
	noColor      bool
	debug        bool
}

func (g *globalFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&g.configPath, "config", "", "config file (default $OBS_MULTICAM_CONFIG or ~/.config/obs-multicam/config.yaml)")
	fs.StringVar(&g.host, "host", "", "obs-websocket host")
	fs.StringVar(&g.port, "port", "", "obs-websocket port")
	fs.StringVar(&g.password, "password", "", "obs-websocket password")
	fs.StringVar(&g.overlayScene, "overlay-scene", "", "scene holding the overlay sources")
	fs.BoolVar(&g.json, "json", false, "emit JSON")
	fs.BoolVarP(&g.quiet, "quiet", "q", false, "suppress informational output")
	fs.BoolVar(&g.noColor, "no-color", false, "disable colored output")
	fs.BoolVar(&g.debug, "debug", false, "debug logging to stderr")
}

// settings resolves config with flags taking precedence over env and file.
func (g *globalFlags) settings() (config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return cfg, err
	}
	cfg.Host = config.FirstNonEmpty(g.host, cfg.Host)
	cfg.Port = config.FirstNonEmpty(g.port, cfg.Port)
	cfg.Password = config.FirstNonEmpty(g.password, cfg.Password)
	cfg.OverlayScene = config.FirstNonEmpty(g.overlayScene, cfg.OverlayScene)
	return cfg, nil
}

func (g *globalFlags) output() *output.Output {
	return output.New(output.Options{
		JSON:    g.json,
		Quiet:   g.quiet,
		NoColor: g.noColor || os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb",
	})
}

func enableDebugLogging(w io.Writer) {
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

// terminalAuth holds a password that may be filled in from a prompt after
// the first attempt is rejected.
type terminalAuth struct{ password string }

func (a *terminalAuth) Password() (string, error) { return a.password, nil }

// session is a connected controller plus the pieces commands print with.
type session struct {
	ctrl *runtime.Controller
	out  *output.Output
	cfg  config.Config
	auth *terminalAuth
}

func (s *session) Close() { _ = s.ctrl.Close() }

// openSession builds the transport and controller, connecting when asked.
func openSession(ctx context.Context, g *globalFlags, connect bool) (*session, error) {
	cfg, err := g.settings()
	if err != nil {
		return nil, err
	}
	auth := &terminalAuth{password: cfg.Password}
	opts := cfg.Options()
	opts.Auth = auth
	opts.Logger = slog.Default()

	transport := runtime.NewOBSAdapter(opts.Transport, opts.Logger.With("component", "obs"))
	s := &session{ctrl: runtime.NewController(transport, opts), out: g.output(), cfg: cfg, auth: auth}
	if !connect {
		return s, nil
	}
	if err := s.connect(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// connect opens the OBS session. If OBS asks for a password that was not
// configured and stdin is a terminal, it prompts once and retries.
func (s *session) connect(ctx context.Context) error {
	err := s.ctrl.Connect(ctx)
	if errors.Is(err, multicam.ErrAuthenticationFailed) && s.auth.password == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintf(os.Stderr, "Password for %s: ", s.cfg.Address())
		b, perr := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if perr != nil {
			return perr
		}
		s.auth.password = strings.TrimSpace(string(b))
		err = s.ctrl.Connect(ctx)
	}
	if err != nil {
		return fmt.Errorf("connect to %s: %w", s.cfg.Address(), err)
	}
	return nil
}

// report prints an outcome and turns a failed one into an exit status.
func (s *session) report(out multicam.Outcome) error {
	if err := s.out.Outcome(out); err != nil {
		return err
	}
	if !out.Success {
		return reportedError{errors.New(out.Message)}
	}
	return nil
}
