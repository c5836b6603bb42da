package translate

import (
	"encoding/json"
	"errors"
	"testing"

	multicam "github.com/stepherg/obs-multicam"
)

func TestBuildersRejectEmptyNames(t *testing.T) {
	if _, err := BuildScene("  "); err != errEmptyScene {
		t.Fatalf("BuildScene: expected errEmptyScene got %v", err)
	}
	if _, err := BuildCreateItem("CAMSELECT A", ""); err != errEmptySource {
		t.Fatalf("BuildCreateItem: expected errEmptySource got %v", err)
	}
	if _, err := BuildRemoveItem("CAMSELECT A", -1); err != errBadItemID {
		t.Fatalf("BuildRemoveItem: expected errBadItemID got %v", err)
	}
	if _, err := BuildSetEnabled("", 1, true); err != errEmptyScene {
		t.Fatalf("BuildSetEnabled: expected errEmptyScene got %v", err)
	}
}

func TestBuildCreateItemEnablesItem(t *testing.T) {
	req, err := BuildCreateItem("CAMSELECT A", "CAM 1")
	if err != nil {
		t.Fatalf("BuildCreateItem: %v", err)
	}
	b, _ := json.Marshal(req)
	want := `{"sceneName":"CAMSELECT A","sourceName":"CAM 1","sceneItemEnabled":true}`
	if string(b) != want {
		t.Fatalf("wire shape: got %s want %s", b, want)
	}
}

func TestBuildSetTransformWireShape(t *testing.T) {
	req, err := BuildSetTransform("CAMSELECT A", 7, multicam.FillTransform())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	b, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["sceneName"] != "CAMSELECT A" || m["sceneItemId"].(float64) != 7 {
		t.Fatalf("unexpected envelope: %v", m)
	}
	tr := m["sceneItemTransform"].(map[string]any)
	if tr["boundsType"] != "OBS_BOUNDS_SCALE_INNER" || tr["boundsWidth"].(float64) != 1920 || tr["boundsHeight"].(float64) != 1080 {
		t.Fatalf("unexpected transform: %v", tr)
	}
	if tr["positionX"].(float64) != 0 || tr["scaleX"].(float64) != 1 || tr["scaleY"].(float64) != 1 {
		t.Fatalf("unexpected transform: %v", tr)
	}

	bad := multicam.FillTransform()
	bad.BoundsWidth = 0
	if _, err := BuildSetTransform("CAMSELECT A", 7, bad); !errors.Is(err, multicam.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter got %v", err)
	}
}

func TestSceneListResponseKeepsRemoteOrder(t *testing.T) {
	raw := `{"currentProgramSceneName":"F Wide","scenes":[{"sceneName":"OVERLAY","sceneIndex":2},{"sceneName":"CAM 1","sceneIndex":1},{"sceneName":"CAMSELECT A","sceneIndex":0}]}`
	var resp SceneListResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	names := resp.Names()
	want := []string{"OVERLAY", "CAM 1", "CAMSELECT A"}
	if len(names) != len(want) {
		t.Fatalf("names: %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names[%d]=%q want %q", i, names[i], want[i])
		}
	}
}
