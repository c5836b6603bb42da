package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	multicam "github.com/stepherg/obs-multicam"
	"github.com/stepherg/obs-multicam/translate"
)

// fakeOBS is an in-memory scene graph behind the Transport interface. It
// records every call so tests can assert on ordering.
type fakeOBS struct {
	mu       sync.Mutex
	order    []string
	items    map[string][]multicam.SceneItem
	program  string
	nextID   int
	calls    []string
	failures map[string]error
	delay    map[string]time.Duration
	subs     []*fakeSub
	connErr  error
	closed   bool
}

type fakeSub struct {
	mu     sync.Mutex
	ch     chan multicam.Event
	closed bool
}

func (s *fakeSub) C() <-chan multicam.Event { return s.ch }

func (s *fakeSub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

func (s *fakeSub) send(evt multicam.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- evt:
	default:
	}
}

func newFakeOBS(scenes ...string) *fakeOBS {
	f := &fakeOBS{
		items:    map[string][]multicam.SceneItem{},
		failures: map[string]error{},
		delay:    map[string]time.Duration{},
		nextID:   100,
	}
	for _, s := range scenes {
		f.order = append(f.order, s)
		f.items[s] = nil
	}
	return f
}

// place puts sources into scene as new items.
func (f *fakeOBS) place(scene string, sources ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, src := range sources {
		f.nextID++
		f.items[scene] = append(f.items[scene], multicam.SceneItem{ID: f.nextID, SourceName: src, Index: len(f.items[scene])})
	}
}

func (f *fakeOBS) fail(requestType string, err error) {
	f.mu.Lock()
	f.failures[requestType] = err
	f.mu.Unlock()
}

func (f *fakeOBS) itemsOf(scene string) []multicam.SceneItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]multicam.SceneItem(nil), f.items[scene]...)
}

func (f *fakeOBS) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeOBS) count(requestType string) int {
	n := 0
	for _, c := range f.recorded() {
		if c == requestType {
			n++
		}
	}
	return n
}

func (f *fakeOBS) resetCalls() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

func (f *fakeOBS) emit(kind multicam.EventKind, data any) {
	raw, _ := json.Marshal(data)
	f.mu.Lock()
	subs := append([]*fakeSub(nil), f.subs...)
	f.mu.Unlock()
	for _, s := range subs {
		s.send(multicam.Event{Kind: kind, OccurredAt: time.Now(), Source: "fake", Data: raw})
	}
}

func (f *fakeOBS) Connect(ctx context.Context, address string, auth multicam.AuthStrategy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = false
	return f.connErr
}

func (f *fakeOBS) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.emit(multicam.EventConnectionClosed, map[string]string{"reason": ""})
	return nil
}

func (f *fakeOBS) Subscribe(buffer int) multicam.EventSubscription {
	s := &fakeSub{ch: make(chan multicam.Event, buffer)}
	f.mu.Lock()
	f.subs = append(f.subs, s)
	f.mu.Unlock()
	return s
}

func (f *fakeOBS) Call(ctx context.Context, requestType string, params any, out any) error {
	f.mu.Lock()
	f.calls = append(f.calls, requestType)
	d := f.delay[requestType]
	failure := f.failures[requestType]
	f.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if failure != nil {
		return failure
	}

	raw, _ := json.Marshal(params)
	f.mu.Lock()
	defer f.mu.Unlock()
	var resp any
	switch requestType {
	case translate.GetSceneList:
		var scenes []map[string]any
		for i, s := range f.order {
			scenes = append(scenes, map[string]any{"sceneName": s, "sceneIndex": i})
		}
		resp = map[string]any{"scenes": scenes, "currentProgramSceneName": f.program}
	case translate.GetCurrentProgramScene:
		resp = translate.CurrentSceneResponse{CurrentProgramSceneName: f.program}
	case translate.SetCurrentProgramScene:
		var req translate.SceneRequest
		_ = json.Unmarshal(raw, &req)
		if _, ok := f.items[req.SceneName]; !ok {
			return notFound(requestType)
		}
		f.program = req.SceneName
	case translate.GetSceneItemList:
		var req translate.SceneRequest
		_ = json.Unmarshal(raw, &req)
		items, ok := f.items[req.SceneName]
		if !ok {
			return notFound(requestType)
		}
		resp = translate.SceneItemListResponse{SceneItems: append([]multicam.SceneItem{}, items...)}
	case translate.RemoveSceneItem:
		var req translate.SceneItemRequest
		_ = json.Unmarshal(raw, &req)
		items := f.items[req.SceneName]
		for i, it := range items {
			if it.ID == req.SceneItemID {
				f.items[req.SceneName] = append(items[:i:i], items[i+1:]...)
				return nil
			}
		}
		return notFound(requestType)
	case translate.CreateSceneItem:
		var req translate.CreateSceneItemRequest
		_ = json.Unmarshal(raw, &req)
		if _, ok := f.items[req.SceneName]; !ok {
			return notFound(requestType)
		}
		f.nextID++
		f.items[req.SceneName] = append(f.items[req.SceneName], multicam.SceneItem{ID: f.nextID, SourceName: req.SourceName})
		resp = translate.CreateSceneItemResponse{SceneItemID: f.nextID}
	case translate.SetSceneItemTransform:
		var req translate.SetTransformRequest
		_ = json.Unmarshal(raw, &req)
		if !f.setItem(req.SceneName, req.SceneItemID, func(it *multicam.SceneItem) {
			tf := req.SceneItemTransform
			it.Transform = &tf
		}) {
			return notFound(requestType)
		}
	case translate.SetSceneItemEnabled:
		var req translate.SetEnabledRequest
		_ = json.Unmarshal(raw, &req)
		if !f.setItem(req.SceneName, req.SceneItemID, func(it *multicam.SceneItem) {
			v := req.SceneItemEnabled
			it.Enabled = &v
		}) {
			return notFound(requestType)
		}
	default:
		return fmt.Errorf("fake: unsupported request %s", requestType)
	}
	if out == nil || resp == nil {
		return nil
	}
	b, _ := json.Marshal(resp)
	return json.Unmarshal(b, out)
}

// setItem must be called with f.mu held.
func (f *fakeOBS) setItem(scene string, id int, fn func(*multicam.SceneItem)) bool {
	for i := range f.items[scene] {
		if f.items[scene][i].ID == id {
			fn(&f.items[scene][i])
			return true
		}
	}
	return false
}

func notFound(requestType string) error {
	return &multicam.RequestError{RequestType: requestType, Code: multicam.StatusResourceNotFound, Comment: "not found"}
}

// alwaysConnected satisfies Connectivity for engine tests.
type alwaysConnected bool

func (a alwaysConnected) Connected() bool { return bool(a) }
