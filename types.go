package multicam

import (
	"context"
	"encoding/json"
	"time"
)

// ConnectionState is the lifecycle state of the single remote session.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText lets the state appear as a word in JSON payloads.
func (s ConnectionState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Transform mirrors the obs-websocket sceneItemTransform object. Only the
// fields this controller writes are modeled.
type Transform struct {
	PositionX    float64 `json:"positionX"`
	PositionY    float64 `json:"positionY"`
	ScaleX       float64 `json:"scaleX"`
	ScaleY       float64 `json:"scaleY"`
	BoundsType   string  `json:"boundsType,omitempty"`
	BoundsWidth  float64 `json:"boundsWidth,omitempty"`
	BoundsHeight float64 `json:"boundsHeight,omitempty"`
}

const (
	BoundsScaleInner = "OBS_BOUNDS_SCALE_INNER"
	CanvasWidth      = 1920
	CanvasHeight     = 1080
)

// FillTransform is the transform applied to a freshly swapped camera item:
// anchored at the origin, unscaled, scaled to fit inside the full canvas.
func FillTransform() Transform {
	return Transform{
		PositionX:    0,
		PositionY:    0,
		ScaleX:       1,
		ScaleY:       1,
		BoundsType:   BoundsScaleInner,
		BoundsWidth:  CanvasWidth,
		BoundsHeight: CanvasHeight,
	}
}

// SceneItem is one entry of a scene as reported by GetSceneItemList.
type SceneItem struct {
	ID         int        `json:"sceneItemId"`
	SourceName string     `json:"sourceName"`
	Enabled    *bool      `json:"sceneItemEnabled,omitempty"`
	Index      int        `json:"sceneItemIndex"`
	Transform  *Transform `json:"sceneItemTransform,omitempty"`
}

// Visible treats a missing enabled flag as visible.
func (i SceneItem) Visible() bool { return i.Enabled == nil || *i.Enabled }

// SelectorState is the presentation view of one CAMSELECT scene.
type SelectorState struct {
	Name          string  `json:"name"`
	CurrentCamera *string `json:"currentCamera"`
	Busy          bool    `json:"busy"`
}

// FastSwitchScene is an "F" scene with the program output flagged.
type FastSwitchScene struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// OverlaySource is one item of the overlay scene.
type OverlaySource struct {
	SourceName string `json:"sourceName"`
	Visible    bool   `json:"visible"`
}

// Outcome is what every mutation entry point hands back to the presentation
// layer.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// View is a consistent read of everything the presentation layer renders.
type View struct {
	Connection      ConnectionState   `json:"connection"`
	Selectors       []SelectorState   `json:"selectors"`
	Cameras         []string          `json:"cameras"`
	FastSwitch      []FastSwitchScene `json:"fastSwitch"`
	ActiveScene     string            `json:"activeScene,omitempty"`
	OverlayRevision uint64            `json:"overlayRevision"`
}

type EventKind string

const (
	EventConnectionClosed            EventKind = "ConnectionClosed"
	EventCurrentProgramSceneChanged  EventKind = "CurrentProgramSceneChanged"
	EventSceneCreated                EventKind = "SceneCreated"
	EventSceneRemoved                EventKind = "SceneRemoved"
	EventSceneNameChanged            EventKind = "SceneNameChanged"
	EventSceneItemCreated            EventKind = "SceneItemCreated"
	EventSceneItemRemoved            EventKind = "SceneItemRemoved"
	EventSceneItemEnableStateChanged EventKind = "SceneItemEnableStateChanged"
)

// Structural reports whether the event changes the set of scenes itself.
func (k EventKind) Structural() bool {
	switch k {
	case EventSceneCreated, EventSceneRemoved, EventSceneNameChanged:
		return true
	}
	return false
}

// Event is a push notification from the remote side. Data holds the raw
// eventData object; Kind is the obs-websocket eventType.
type Event struct {
	Kind       EventKind
	OccurredAt time.Time
	Source     string
	Data       json.RawMessage
}

// SceneName extracts the sceneName field carried by most scene events.
func (e Event) SceneName() string {
	var probe struct {
		SceneName string `json:"sceneName"`
	}
	_ = json.Unmarshal(e.Data, &probe)
	return probe.SceneName
}

type EventSubscription interface {
	C() <-chan Event
	Close() error
}

// Transport is the RPC-plus-event-stream capability the core consumes.
// Call decodes the response data into out when out is non-nil.
type Transport interface {
	Connect(ctx context.Context, address string, auth AuthStrategy) error
	Close() error
	Call(ctx context.Context, requestType string, params any, out any) error
	Subscribe(buffer int) EventSubscription
}
