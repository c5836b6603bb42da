package main

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	multicam "github.com/stepherg/obs-multicam"
	"github.com/stepherg/obs-multicam/internal/config"
	"github.com/stepherg/obs-multicam/internal/server"
)

// serveCmd runs the HTTP control API and waits for shutdown.
func serveCmd(g *globalFlags) *cobra.Command {
	var (
		listen   string
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP and websocket control API",
		Args:  exactArgs(0, ""),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, g, false)
			if err != nil {
				return err
			}
			defer s.Close()
			log := slog.Default().With("component", "serve")

			// A studio that is not up yet is not fatal; POST /api/connect retries.
			if err := s.ctrl.Connect(ctx); err != nil {
				log.Warn("initial connect failed", "addr", s.cfg.Address(), "error", err)
			}

			if interval > 0 {
				go func() {
					ticker := time.NewTicker(interval)
					defer ticker.Stop()
					for {
						select {
						case <-ticker.C:
							if !s.ctrl.Connection().Connected() {
								continue
							}
							if err := s.ctrl.Resync(ctx); err != nil {
								log.Warn("periodic resync failed", "error", err)
							}
						case <-ctx.Done():
							return
						}
					}
				}()
			}

			_, errCh, err := server.StartControlServer(ctx, server.ControlConfig{
				ListenAddr: config.FirstNonEmpty(listen, s.cfg.Listen),
				Controller: s.ctrl,
				Logger:     slog.Default(),
			})
			if err != nil {
				return fmt.Errorf("start control API: %w", err)
			}
			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("control API: %w", err)
				}
				return nil
			case <-ctx.Done():
				log.Info("shutting down")
				return nil
			}
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "control API address (default $OBS_MULTICAM_LISTEN or :8090)")
	cmd.Flags().DurationVar(&interval, "resync-interval", 0, "periodic full resync while connected (0 disables)")
	return cmd
}

func scenesCmd(g *globalFlags) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "scenes",
		Short: "Show selectors, cameras and fast-switch scenes",
		Args:  exactArgs(0, "[--all]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), g, true)
			if err != nil {
				return err
			}
			defer s.Close()

			// Force the selector state to be current before printing.
			if err := s.ctrl.Resync(cmd.Context()); err != nil {
				return err
			}
			view, err := s.ctrl.View(cmd.Context())
			if err != nil {
				return err
			}
			if !all {
				return s.out.View(view)
			}
			names, err := s.ctrl.Cache().List(cmd.Context())
			if err != nil {
				return err
			}
			if s.out.JSON {
				return s.out.EmitJSON(map[string]any{"view": view, "scenes": names})
			}
			if err := s.out.View(view); err != nil {
				return err
			}
			s.out.Print(s.out.Bold("All scenes:"))
			for _, n := range names {
				s.out.Print("  " + n)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "also list every scene in remote order")
	return cmd
}

func swapCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "swap <selector> <camera>",
		Short: "Show a camera in a selector scene",
		Args:  exactArgs(2, "<selector> <camera>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), g, true)
			if err != nil {
				return err
			}
			defer s.Close()
			return s.report(s.ctrl.SwapCamera(cmd.Context(), args[0], args[1]))
		},
	}
}

func applyCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <selector>=<camera>...",
		Short: "Swap several selectors in one go",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return usageError{msg: "usage: " + cmd.CommandPath() + " <selector>=<camera>..."}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			assignments, err := parseAssignments(args)
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), g, true)
			if err != nil {
				return err
			}
			defer s.Close()
			return s.report(s.ctrl.ApplyAll(cmd.Context(), assignments))
		},
	}
}

// parseAssignments turns "CAMSELECT A=CAM 1" pairs into a map. The split is
// on the first '=' so camera names may contain one.
func parseAssignments(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, a := range args {
		sel, cam, ok := strings.Cut(a, "=")
		sel = strings.TrimSpace(sel)
		if !ok || sel == "" {
			return nil, usageError{msg: fmt.Sprintf("invalid assignment %q: want <selector>=<camera>", a)}
		}
		if _, dup := out[sel]; dup {
			return nil, usageError{msg: fmt.Sprintf("selector %q assigned twice", sel)}
		}
		out[sel] = strings.TrimSpace(cam)
	}
	return out, nil
}

func switchCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "switch <scene>",
		Short: "Make a scene the program scene",
		Args:  exactArgs(1, "<scene>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), g, true)
			if err != nil {
				return err
			}
			defer s.Close()
			return s.report(s.ctrl.SwitchActiveScene(cmd.Context(), args[0]))
		},
	}
}

func overlayCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "overlay [<source> on|off]",
		Short: "List overlay sources or toggle one",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return usageError{msg: "usage: " + cmd.CommandPath() + " [<source> on|off]"}
			}
			if len(args) == 2 {
				if _, err := parseVisibility(args[1]); err != nil {
					return err
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), g, true)
			if err != nil {
				return err
			}
			defer s.Close()
			if len(args) == 0 {
				sources, err := s.ctrl.OverlaySources(cmd.Context())
				if err != nil {
					return err
				}
				return s.out.Overlay(sources)
			}
			visible, _ := parseVisibility(args[1])
			return s.report(s.ctrl.SetSourceVisible(cmd.Context(), args[0], visible))
		},
	}
}

func parseVisibility(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "on", "show", "true", "1":
		return true, nil
	case "off", "hide", "false", "0":
		return false, nil
	}
	return false, usageError{msg: fmt.Sprintf("invalid visibility %q: want on or off", v)}
}

// watchCmd prints pushed events until interrupted or the session ends.
func watchCmd(g *globalFlags) *cobra.Command {
	var kinds []string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print OBS events as they arrive",
		Args:  exactArgs(0, "[--kind <event>]..."),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := kindFilter(kinds)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := openSession(ctx, g, false)
			if err != nil {
				return err
			}
			defer s.Close()
			sub := s.ctrl.Events(64)
			defer sub.Close()
			if err := s.connect(ctx); err != nil {
				return err
			}
			s.out.Print(s.out.Gray("watching " + s.cfg.Address() + ", Ctrl-C to stop"))

			for {
				select {
				case <-ctx.Done():
					return nil
				case evt, ok := <-sub.C():
					if !ok {
						return nil
					}
					if filter(evt.Kind) {
						if err := s.out.Event(evt); err != nil {
							return err
						}
					}
					if evt.Kind == multicam.EventConnectionClosed {
						return errors.New("connection closed by OBS")
					}
				}
			}
		},
	}
	cmd.Flags().StringSliceVar(&kinds, "kind", nil, "only print these event kinds (repeatable)")
	return cmd
}

var knownKinds = []multicam.EventKind{
	multicam.EventConnectionClosed,
	multicam.EventCurrentProgramSceneChanged,
	multicam.EventSceneCreated,
	multicam.EventSceneRemoved,
	multicam.EventSceneNameChanged,
	multicam.EventSceneItemCreated,
	multicam.EventSceneItemRemoved,
	multicam.EventSceneItemEnableStateChanged,
}

func kindFilter(kinds []string) (func(multicam.EventKind) bool, error) {
	if len(kinds) == 0 {
		return func(multicam.EventKind) bool { return true }, nil
	}
	want := make(map[multicam.EventKind]bool, len(kinds))
	for _, k := range kinds {
		found := false
		for _, known := range knownKinds {
			if strings.EqualFold(k, string(known)) {
				want[known] = true
				found = true
			}
		}
		if !found {
			names := make([]string, len(knownKinds))
			for i, known := range knownKinds {
				names[i] = string(known)
			}
			sort.Strings(names)
			return nil, usageError{msg: fmt.Sprintf("unknown event kind %q (known: %s)", k, strings.Join(names, ", "))}
		}
	}
	return func(k multicam.EventKind) bool { return want[k] }, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  exactArgs(0, ""),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "obs-multicam "+version)
		},
	}
}
