package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	multicam "github.com/stepherg/obs-multicam"
	"github.com/stepherg/obs-multicam/scenes"
	"github.com/stepherg/obs-multicam/translate"
)

// Bridge turns pushed events into cache invalidation and resynchronization.
// It also owns the push-driven presentation state: the active program
// scene and the overlay revision counter.
type Bridge struct {
	remote       Caller
	cache        *scenes.Cache
	sync         *SyncEngine
	conn         *ConnectionManager
	overlayScene string
	log          *slog.Logger

	activeMu sync.RWMutex
	active   string
	overlay  atomic.Uint64

	pendingMu   sync.Mutex
	needResync  bool
	needRefresh bool
	kick        chan struct{}
}

func NewBridge(remote Caller, cache *scenes.Cache, engine *SyncEngine, conn *ConnectionManager, overlayScene string, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		remote:       remote,
		cache:        cache,
		sync:         engine,
		conn:         conn,
		overlayScene: overlayScene,
		log:          logger,
		kick:         make(chan struct{}, 1),
	}
}

func (b *Bridge) ActiveScene() string {
	b.activeMu.RLock()
	defer b.activeMu.RUnlock()
	return b.active
}

func (b *Bridge) SetActiveScene(name string) {
	b.activeMu.Lock()
	b.active = name
	b.activeMu.Unlock()
}

func (b *Bridge) OverlayRevision() uint64 { return b.overlay.Load() }

// Run consumes sub until ctx is done or the subscription is closed. Event
// handling never stops on a handler failure.
func (b *Bridge) Run(ctx context.Context, sub multicam.EventSubscription) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.worker(ctx)
	}()
	defer wg.Wait()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.C():
			if !ok {
				return
			}
			b.Handle(evt)
		}
	}
}

// Handle applies one event. Slow work is queued to the worker.
func (b *Bridge) Handle(evt multicam.Event) {
	switch {
	case evt.Kind == multicam.EventConnectionClosed:
		if b.conn != nil && b.conn.Stale(evt.OccurredAt) {
			b.log.Debug("ignoring closure of an earlier session")
			return
		}
		var data struct {
			Reason string `json:"reason"`
		}
		_ = json.Unmarshal(evt.Data, &data)
		cause := multicam.ErrConnectionClosed
		if data.Reason != "" {
			cause = errors.Join(multicam.ErrConnectionClosed, errors.New(data.Reason))
		}
		if b.conn != nil && b.conn.ConnectionLost(cause) {
			b.log.Warn("obs connection lost", "reason", data.Reason)
		}
		b.sync.Abandon()
		b.cache.Invalidate()
		b.SetActiveScene("")
	case evt.Kind == multicam.EventCurrentProgramSceneChanged:
		b.SetActiveScene(evt.SceneName())
	case evt.Kind.Structural():
		b.cache.Invalidate()
		b.request(true)
	case evt.Kind == multicam.EventSceneItemCreated, evt.Kind == multicam.EventSceneItemRemoved:
		b.request(false)
	case evt.Kind == multicam.EventSceneItemEnableStateChanged:
		if evt.SceneName() == b.overlayScene {
			b.overlay.Add(1)
		}
	default:
		b.log.Debug("ignoring obs event", "event", evt.Kind)
	}
}

// RequestRefresh queues a selector refresh on the worker.
func (b *Bridge) RequestRefresh() { b.request(false) }

// request records pending work and wakes the worker. Requests made before
// the worker picks them up coalesce.
func (b *Bridge) request(resync bool) {
	b.pendingMu.Lock()
	if resync {
		b.needResync = true
	} else {
		b.needRefresh = true
	}
	b.pendingMu.Unlock()
	select {
	case b.kick <- struct{}{}:
	default:
	}
}

func (b *Bridge) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.kick:
		}
		b.pendingMu.Lock()
		resync, refresh := b.needResync, b.needRefresh
		b.needResync, b.needRefresh = false, false
		b.pendingMu.Unlock()

		switch {
		case resync:
			if err := b.Resync(ctx); err != nil {
				b.log.Warn("resync failed", "error", err)
			}
		case refresh:
			if _, err := b.sync.Refresh(ctx, nil, false); err != nil {
				b.log.Warn("selector refresh failed", "error", err)
			}
		}
	}
}

// Resync rebuilds everything derived from the scene list: the selector
// state set, each selector's camera and the active scene pointer.
func (b *Bridge) Resync(ctx context.Context) error {
	if b.conn != nil && !b.conn.Connected() {
		return multicam.ErrNotConnected
	}
	names, err := b.cache.List(ctx)
	if err != nil {
		return err
	}
	if b.sync.SetSelectors(scenes.Selectors(names)) {
		b.log.Debug("selector set rebuilt", "scenes", len(names), "fetches", b.cache.Fetches())
	}

	var errs []error
	if _, err := b.sync.Refresh(ctx, nil, false); err != nil {
		errs = append(errs, err)
	}
	var cur translate.CurrentSceneResponse
	if err := b.remote.Call(ctx, translate.GetCurrentProgramScene, nil, &cur); err != nil {
		errs = append(errs, err)
	} else {
		b.SetActiveScene(cur.CurrentProgramSceneName)
	}
	return errors.Join(errs...)
}
