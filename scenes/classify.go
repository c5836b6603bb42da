// Package scenes holds the cached scene-name list and the naming rules that
// derive selector, camera and fast-switch roles from it.
package scenes

import (
	"sort"
	"strings"
)

const (
	SelectorPrefix   = "CAMSELECT"
	CameraPrefix     = "CAM"
	FastSwitchPrefix = "F"
	cameraExclusion  = "multicam"
)

type Role int

const (
	RoleNone Role = iota
	RoleSelector
	RoleCamera
	RoleFastSwitch
)

func (r Role) String() string {
	switch r {
	case RoleSelector:
		return "selector"
	case RoleCamera:
		return "camera"
	case RoleFastSwitch:
		return "fast-switch"
	default:
		return "none"
	}
}

// Classify applies the naming convention. Selector wins over camera, and
// camera over fast-switch, so every name gets at most one role.
func Classify(name string) Role {
	switch {
	case IsSelector(name):
		return RoleSelector
	case IsCamera(name):
		return RoleCamera
	case strings.HasPrefix(name, FastSwitchPrefix):
		return RoleFastSwitch
	default:
		return RoleNone
	}
}

func IsSelector(name string) bool { return strings.HasPrefix(name, SelectorPrefix) }

// IsCamera matches "CAM1" and "CAM 1" alike.
func IsCamera(name string) bool {
	return strings.HasPrefix(name, CameraPrefix) &&
		!IsSelector(name) &&
		!strings.Contains(strings.ToLower(name), cameraExclusion)
}

// Selectors returns the selector names in ascending order.
func Selectors(names []string) []string {
	out := filter(names, RoleSelector)
	sort.Strings(out)
	return out
}

// Cameras returns camera names, most recently listed first.
func Cameras(names []string) []string {
	return reversed(filter(names, RoleCamera))
}

// FastSwitch returns fast-switch names, most recently listed first.
func FastSwitch(names []string) []string {
	return reversed(filter(names, RoleFastSwitch))
}

func filter(names []string, role Role) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if Classify(n) == role {
			out = append(out, n)
		}
	}
	return out
}

func reversed(in []string) []string {
	for i, j := 0, len(in)-1; i < j; i, j = i+1, j-1 {
		in[i], in[j] = in[j], in[i]
	}
	return in
}
