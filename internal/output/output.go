package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	multicam "github.com/stepherg/obs-multicam"
)

type Options struct {
	JSON    bool
	Quiet   bool
	NoColor bool
}

type Output struct {
	JSON  bool
	Quiet bool

	stdout io.Writer
	stderr io.Writer

	green  *color.Color
	yellow *color.Color
	red    *color.Color
	gray   *color.Color
	bold   *color.Color
	cyan   *color.Color
}

func New(opts Options) *Output {
	return NewTo(opts, os.Stdout, os.Stderr)
}

// NewTo writes to the given streams instead of the process ones.
func NewTo(opts Options, stdout, stderr io.Writer) *Output {
	if opts.NoColor {
		color.NoColor = true
	}
	return &Output{
		JSON:   opts.JSON,
		Quiet:  opts.Quiet,
		stdout: stdout,
		stderr: stderr,
		green:  color.New(color.FgGreen),
		yellow: color.New(color.FgYellow),
		red:    color.New(color.FgRed),
		gray:   color.New(color.FgHiBlack),
		bold:   color.New(color.Bold),
		cyan:   color.New(color.FgCyan),
	}
}

func (o *Output) Bold(s string) string { return o.bold.Sprint(s) }
func (o *Output) Gray(s string) string { return o.gray.Sprint(s) }

func (o *Output) Print(msg string) {
	if o.JSON || o.Quiet {
		return
	}
	fmt.Fprintln(o.stdout, msg)
}

func (o *Output) Success(msg string) {
	if o.JSON || o.Quiet {
		return
	}
	fmt.Fprintln(o.stdout, o.green.Sprint(msg))
}

func (o *Output) Warn(msg string) {
	if o.JSON || o.Quiet {
		return
	}
	fmt.Fprintln(o.stdout, o.yellow.Sprint(msg))
}

func (o *Output) Error(msg string) {
	fmt.Fprintln(o.stderr, o.red.Sprint(msg))
}

func (o *Output) EmitJSON(v any) error {
	enc := json.NewEncoder(o.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Outcome prints a mutation result, or emits it as JSON.
func (o *Output) Outcome(out multicam.Outcome) error {
	if o.JSON {
		return o.EmitJSON(out)
	}
	if out.Success {
		o.Success(out.Message)
	} else {
		o.Error(out.Message)
	}
	return nil
}

// View renders the selector, camera and fast-switch lists.
func (o *Output) View(v multicam.View) error {
	if o.JSON {
		return o.EmitJSON(v)
	}
	o.Print(o.Bold("Connection: ") + v.Connection.String())
	o.Print(o.Bold("Selectors:"))
	if len(v.Selectors) == 0 {
		o.Print(o.Gray("  (none)"))
	}
	for _, s := range v.Selectors {
		cam := o.Gray("no camera")
		if s.CurrentCamera != nil {
			cam = o.cyan.Sprint(*s.CurrentCamera)
		}
		line := fmt.Sprintf("  %-24s %s", s.Name, cam)
		if s.Busy {
			line += o.yellow.Sprint(" (updating)")
		}
		o.Print(line)
	}
	o.Print(o.Bold("Cameras:"))
	for _, c := range v.Cameras {
		o.Print("  " + c)
	}
	o.Print(o.Bold("Fast switch:"))
	for _, f := range v.FastSwitch {
		if f.Active {
			o.Print("  " + o.green.Sprint(f.Name+" *"))
			continue
		}
		o.Print("  " + f.Name)
	}
	return nil
}

// Overlay renders overlay sources with their visibility.
func (o *Output) Overlay(sources []multicam.OverlaySource) error {
	if o.JSON {
		return o.EmitJSON(map[string]any{"sources": sources})
	}
	for _, s := range sources {
		state := o.green.Sprint("shown")
		if !s.Visible {
			state = o.Gray("hidden")
		}
		o.Print(fmt.Sprintf("  %-24s %s", s.SourceName, state))
	}
	return nil
}

// Event prints one pushed event as a single line.
func (o *Output) Event(evt multicam.Event) error {
	if o.JSON {
		return o.EmitJSON(map[string]any{"event": evt.Kind, "at": evt.OccurredAt, "data": evt.Data})
	}
	name := evt.SceneName()
	line := o.Gray(evt.OccurredAt.Format("15:04:05")) + " " + o.Bold(string(evt.Kind))
	if name != "" {
		line += " " + name
	}
	o.Print(line)
	return nil
}
