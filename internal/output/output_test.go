package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	multicam "github.com/stepherg/obs-multicam"
)

func TestViewPlain(t *testing.T) {
	var stdout, stderr bytes.Buffer
	o := NewTo(Options{NoColor: true}, &stdout, &stderr)
	cam := "CAM 1"
	err := o.View(multicam.View{
		Connection: multicam.StateConnected,
		Selectors:  []multicam.SelectorState{{Name: "CAMSELECT A", CurrentCamera: &cam}, {Name: "CAMSELECT B", Busy: true}},
		Cameras:    []string{"CAM 2", "CAM 1"},
		FastSwitch: []multicam.FastSwitchScene{{Name: "F Wide", Active: true}},
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	got := stdout.String()
	for _, want := range []string{"Connection: connected", "CAMSELECT A", "CAM 1", "no camera", "(updating)", "F Wide *"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}

func TestOutcomeJSONAndErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	o := NewTo(Options{JSON: true, NoColor: true}, &stdout, &stderr)
	if err := o.Outcome(multicam.Outcome{Success: true, Message: "2 selectors updated"}); err != nil {
		t.Fatalf("outcome: %v", err)
	}
	var out multicam.Outcome
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil || !out.Success || out.Message != "2 selectors updated" {
		t.Fatalf("json outcome: %s %v", stdout.String(), err)
	}

	stdout.Reset()
	o = NewTo(Options{NoColor: true}, &stdout, &stderr)
	_ = o.Outcome(multicam.Outcome{Message: "camera swap in progress"})
	if stdout.Len() != 0 || !strings.Contains(stderr.String(), "camera swap in progress") {
		t.Fatalf("failure should go to stderr: out=%q err=%q", stdout.String(), stderr.String())
	}
}

func TestQuietSuppressesInfo(t *testing.T) {
	var stdout, stderr bytes.Buffer
	o := NewTo(Options{Quiet: true, NoColor: true}, &stdout, &stderr)
	_ = o.Overlay([]multicam.OverlaySource{{SourceName: "Clock", Visible: true}})
	_ = o.Event(multicam.Event{Kind: multicam.EventSceneCreated, OccurredAt: time.Now()})
	if stdout.Len() != 0 {
		t.Fatalf("quiet output: %q", stdout.String())
	}
}
