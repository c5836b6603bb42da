// Package translate builds obs-websocket request payloads and names the
// request types this controller issues.
package translate

import (
	"errors"
	"strings"

	multicam "github.com/stepherg/obs-multicam"
)

const (
	GetSceneList           = "GetSceneList"
	GetCurrentProgramScene = "GetCurrentProgramScene"
	SetCurrentProgramScene = "SetCurrentProgramScene"
	GetSceneItemList       = "GetSceneItemList"
	RemoveSceneItem        = "RemoveSceneItem"
	CreateSceneItem        = "CreateSceneItem"
	SetSceneItemTransform  = "SetSceneItemTransform"
	SetSceneItemEnabled    = "SetSceneItemEnabled"
)

var (
	errEmptyScene  = errors.New("obs: empty scene name")
	errEmptySource = errors.New("obs: empty source name")
	errBadItemID   = errors.New("obs: invalid scene item id")
)

type SceneRequest struct {
	SceneName string `json:"sceneName"`
}

type SceneItemRequest struct {
	SceneName   string `json:"sceneName"`
	SceneItemID int    `json:"sceneItemId"`
}

type CreateSceneItemRequest struct {
	SceneName        string `json:"sceneName"`
	SourceName       string `json:"sourceName"`
	SceneItemEnabled *bool  `json:"sceneItemEnabled,omitempty"`
}

type SetTransformRequest struct {
	SceneName          string             `json:"sceneName"`
	SceneItemID        int                `json:"sceneItemId"`
	SceneItemTransform multicam.Transform `json:"sceneItemTransform"`
}

type SetEnabledRequest struct {
	SceneName        string `json:"sceneName"`
	SceneItemID      int    `json:"sceneItemId"`
	SceneItemEnabled bool   `json:"sceneItemEnabled"`
}

// SceneListResponse is the payload of GetSceneList. OBS lists scenes in its
// own order; callers must not re-sort it.
type SceneListResponse struct {
	CurrentProgramSceneName string `json:"currentProgramSceneName"`
	Scenes                  []struct {
		SceneName  string `json:"sceneName"`
		SceneIndex int    `json:"sceneIndex"`
	} `json:"scenes"`
}

// Names returns the scene names in remote listing order.
func (r SceneListResponse) Names() []string {
	out := make([]string, 0, len(r.Scenes))
	for _, s := range r.Scenes {
		out = append(out, s.SceneName)
	}
	return out
}

type CurrentSceneResponse struct {
	CurrentProgramSceneName string `json:"currentProgramSceneName"`
}

type SceneItemListResponse struct {
	SceneItems []multicam.SceneItem `json:"sceneItems"`
}

type CreateSceneItemResponse struct {
	SceneItemID int `json:"sceneItemId"`
}

// BuildScene validates a request addressing a whole scene.
func BuildScene(scene string) (SceneRequest, error) {
	if strings.TrimSpace(scene) == "" {
		return SceneRequest{}, errEmptyScene
	}
	return SceneRequest{SceneName: scene}, nil
}

func BuildRemoveItem(scene string, itemID int) (SceneItemRequest, error) {
	if strings.TrimSpace(scene) == "" {
		return SceneItemRequest{}, errEmptyScene
	}
	if itemID < 0 {
		return SceneItemRequest{}, errBadItemID
	}
	return SceneItemRequest{SceneName: scene, SceneItemID: itemID}, nil
}

func BuildCreateItem(scene, source string) (CreateSceneItemRequest, error) {
	if strings.TrimSpace(scene) == "" {
		return CreateSceneItemRequest{}, errEmptyScene
	}
	if strings.TrimSpace(source) == "" {
		return CreateSceneItemRequest{}, errEmptySource
	}
	enabled := true
	return CreateSceneItemRequest{SceneName: scene, SourceName: source, SceneItemEnabled: &enabled}, nil
}

func BuildSetTransform(scene string, itemID int, t multicam.Transform) (SetTransformRequest, error) {
	if strings.TrimSpace(scene) == "" {
		return SetTransformRequest{}, errEmptyScene
	}
	if itemID < 0 {
		return SetTransformRequest{}, errBadItemID
	}
	if t.BoundsType != "" && (t.BoundsWidth <= 0 || t.BoundsHeight <= 0) {
		return SetTransformRequest{}, multicam.ErrInvalidParameter
	}
	return SetTransformRequest{SceneName: scene, SceneItemID: itemID, SceneItemTransform: t}, nil
}

func BuildSetEnabled(scene string, itemID int, enabled bool) (SetEnabledRequest, error) {
	if strings.TrimSpace(scene) == "" {
		return SetEnabledRequest{}, errEmptyScene
	}
	if itemID < 0 {
		return SetEnabledRequest{}, errBadItemID
	}
	return SetEnabledRequest{SceneName: scene, SceneItemID: itemID, SceneItemEnabled: enabled}, nil
}
