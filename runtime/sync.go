package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	multicam "github.com/stepherg/obs-multicam"
	"github.com/stepherg/obs-multicam/scenes"
	"github.com/stepherg/obs-multicam/translate"
)

// Connectivity reports whether remote calls may be issued.
type Connectivity interface {
	Connected() bool
}

// SyncEngine keeps the current camera of every selector fresh and owns the
// busy token that keeps refreshes away from in-flight swaps.
type SyncEngine struct {
	remote Caller
	conn   Connectivity
	settle time.Duration
	log    *slog.Logger

	mu      sync.Mutex
	states  []multicam.SelectorState
	busy    bool
	holding map[string]bool
	epoch   uint64
	timer   *time.Timer

	refreshes atomic.Uint64
}

func NewSyncEngine(remote Caller, conn Connectivity, cfg multicam.SyncConfig, logger *slog.Logger) *SyncEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SettleWindow < 0 {
		cfg.SettleWindow = 0
	}
	return &SyncEngine{remote: remote, conn: conn, settle: cfg.SettleWindow, log: logger}
}

// SetSelectors rebuilds the state set when the selector names differ from
// the current ones. Rebuilt entries start with no known camera. It reports
// whether a rebuild happened.
func (e *SyncEngine) SetSelectors(names []string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(names) == len(e.states) {
		same := true
		for i, s := range e.states {
			if s.Name != names[i] {
				same = false
				break
			}
		}
		if same {
			return false
		}
	}
	states := make([]multicam.SelectorState, 0, len(names))
	for _, n := range names {
		states = append(states, multicam.SelectorState{Name: n})
	}
	e.states = states
	return true
}

// Selectors returns a copy of the state set with busy flags applied.
func (e *SyncEngine) Selectors() []multicam.SelectorState {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]multicam.SelectorState, len(e.states))
	for i, s := range e.states {
		out[i] = s
		if s.CurrentCamera != nil {
			cam := *s.CurrentCamera
			out[i].CurrentCamera = &cam
		}
		out[i].Busy = e.holding[s.Name]
	}
	return out
}

func (e *SyncEngine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

// Refreshes counts refreshes that were applied.
func (e *SyncEngine) Refreshes() uint64 { return e.refreshes.Load() }

// Acquire takes the busy token for the given selectors and returns its id.
// It fails with ErrBusy while the token is held, including during a settle
// window.
func (e *SyncEngine) Acquire(selectors ...string) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return 0, multicam.ErrBusy
	}
	e.busy = true
	e.epoch++
	e.holding = make(map[string]bool, len(selectors))
	for _, s := range selectors {
		e.holding[s] = true
	}
	return e.epoch, nil
}

// Release starts the settle window for token. When it elapses the token is
// cleared and exactly one background refresh runs. A token that was
// abandoned, or superseded by a later Acquire, releases nothing.
func (e *SyncEngine) Release(token uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.busy || e.timer != nil || token != e.epoch {
		return
	}
	e.timer = time.AfterFunc(e.settle, func() { e.settled(token) })
}

func (e *SyncEngine) settled(epoch uint64) {
	e.mu.Lock()
	if e.epoch != epoch || !e.busy {
		e.mu.Unlock()
		return
	}
	e.busy = false
	e.holding = nil
	e.timer = nil
	e.mu.Unlock()

	if _, err := e.Refresh(context.Background(), nil, false); err != nil {
		e.log.Warn("post-swap refresh failed", "error", err)
	}
}

// Abandon drops the token and any pending settle timer without refreshing.
func (e *SyncEngine) Abandon() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.busy = false
	e.holding = nil
	e.epoch++
}

// Refresh queries the items of the named selectors (all known selectors when
// names is nil) and records the first camera item of each. It returns false
// without touching state while the token is held, or when disconnected and
// not forced. Results that straddle an Acquire are discarded.
func (e *SyncEngine) Refresh(ctx context.Context, names []string, force bool) (bool, error) {
	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return false, nil
	}
	if !force && e.conn != nil && !e.conn.Connected() {
		e.mu.Unlock()
		return false, nil
	}
	epoch := e.epoch
	if names == nil {
		for _, s := range e.states {
			names = append(names, s.Name)
		}
	} else {
		names = slices.DeleteFunc(slices.Clone(names), func(n string) bool { return !e.known(n) })
	}
	e.mu.Unlock()

	type found struct {
		camera *string
		err    error
	}
	results := make([]found, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			cam, err := e.currentCamera(ctx, name)
			results[i] = found{camera: cam, err: err}
		}(i, name)
	}
	wg.Wait()

	var errs []error
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epoch != epoch || e.busy {
		e.log.Debug("discarding refresh that raced a swap")
		return false, nil
	}
	for i, name := range names {
		if results[i].err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, results[i].err))
		}
		for j := range e.states {
			if e.states[j].Name == name {
				e.states[j].CurrentCamera = results[i].camera
			}
		}
	}
	e.refreshes.Add(1)
	return true, errors.Join(errs...)
}

func (e *SyncEngine) known(name string) bool {
	for _, s := range e.states {
		if s.Name == name {
			return true
		}
	}
	return false
}

// currentCamera returns the source of the first item, in remote order, that
// names a camera.
func (e *SyncEngine) currentCamera(ctx context.Context, selector string) (*string, error) {
	req, err := translate.BuildScene(selector)
	if err != nil {
		return nil, err
	}
	var resp translate.SceneItemListResponse
	if err := e.remote.Call(ctx, translate.GetSceneItemList, req, &resp); err != nil {
		return nil, err
	}
	for _, it := range resp.SceneItems {
		if scenes.IsCamera(it.SourceName) {
			src := it.SourceName
			return &src, nil
		}
	}
	return nil, nil
}
