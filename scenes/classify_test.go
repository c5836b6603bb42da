package scenes

import (
	"reflect"
	"testing"
)

func TestProjectionsOfExampleList(t *testing.T) {
	names := []string{"CAMSELECT A", "CAM 1", "CAM 2", "F Wide", "OVERLAY"}

	if got := Selectors(append([]string(nil), names...)); !reflect.DeepEqual(got, []string{"CAMSELECT A"}) {
		t.Fatalf("selectors: %v", got)
	}
	if got := Cameras(append([]string(nil), names...)); !reflect.DeepEqual(got, []string{"CAM 2", "CAM 1"}) {
		t.Fatalf("cameras: %v", got)
	}
	if got := FastSwitch(append([]string(nil), names...)); !reflect.DeepEqual(got, []string{"F Wide"}) {
		t.Fatalf("fast switch: %v", got)
	}
}

func TestSelectorsSortedAscending(t *testing.T) {
	got := Selectors([]string{"CAMSELECT C", "CAMSELECT A", "CAM 1", "CAMSELECT B"})
	want := []string{"CAMSELECT A", "CAMSELECT B", "CAMSELECT C"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("selectors: %v", got)
	}
}

func TestClassifyRules(t *testing.T) {
	cases := map[string]Role{
		"CAMSELECT 1":     RoleSelector,
		"CAMSELECTX":      RoleSelector,
		"CAM1":            RoleCamera,
		"CAM 2":           RoleCamera,
		"CAM Multicam":    RoleNone,
		"CAM MULTICAM 2":  RoleNone,
		"F Wide":          RoleFastSwitch,
		"Fixed":           RoleFastSwitch,
		"f lower":         RoleNone,
		"OVERLAY":         RoleNone,
		"cam 1 lowercase": RoleNone,
		"":                RoleNone,
	}
	for name, want := range cases {
		if got := Classify(name); got != want {
			t.Errorf("Classify(%q)=%s want %s", name, got, want)
		}
	}
}

func TestProjectionsAreDisjoint(t *testing.T) {
	names := []string{
		"CAMSELECT A", "CAMSELECT B", "CAM 1", "CAM2", "CAM multicam",
		"F Wide", "F Close", "FCAM", "OVERLAY", "Fmulticam", "CAMF",
	}
	seen := map[string]string{}
	mark := func(set string, list []string) {
		for _, n := range list {
			if prev, ok := seen[n]; ok {
				t.Fatalf("%q in both %s and %s", n, prev, set)
			}
			seen[n] = set
		}
	}
	mark("selectors", Selectors(append([]string(nil), names...)))
	mark("cameras", Cameras(append([]string(nil), names...)))
	mark("fast-switch", FastSwitch(append([]string(nil), names...)))

	for _, n := range names {
		if IsSelector(n) && seen[n] != "selectors" {
			t.Fatalf("%q should be a selector, got %q", n, seen[n])
		}
	}
}

func TestProjectionsDoNotMutateInput(t *testing.T) {
	names := []string{"CAM 1", "CAM 2", "CAM 3"}
	_ = Cameras(names)
	if !reflect.DeepEqual(names, []string{"CAM 1", "CAM 2", "CAM 3"}) {
		t.Fatalf("input mutated: %v", names)
	}
}
