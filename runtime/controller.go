package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	multicam "github.com/stepherg/obs-multicam"
	"github.com/stepherg/obs-multicam/scenes"
	"github.com/stepherg/obs-multicam/translate"
)

// Controller wires the cache, swapper, sync engine, bridge and connection
// manager around one transport. Mutations return an Outcome and never leak
// raw errors to the caller.
type Controller struct {
	opts      multicam.Options
	transport multicam.Transport
	log       *slog.Logger

	conn    *ConnectionManager
	cache   *scenes.Cache
	swapper *Swapper
	sync    *SyncEngine
	bridge  *Bridge

	sub    multicam.EventSubscription
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController subscribes to the transport and starts the event bridge.
// Call Close to stop it.
func NewController(t multicam.Transport, opts multicam.Options) *Controller {
	def := multicam.DefaultOptions()
	if opts.OverlayScene == "" {
		opts.OverlayScene = def.OverlayScene
	}
	if opts.Sync.EventBuffer <= 0 {
		opts.Sync.EventBuffer = def.Sync.EventBuffer
	}
	if opts.Sync.SettleWindow == 0 {
		opts.Sync.SettleWindow = def.Sync.SettleWindow
	}
	logger := opts.Log()

	c := &Controller{opts: opts, transport: t, log: logger, done: make(chan struct{})}
	c.conn = NewConnectionManager(t, logger.With("component", "connection"))
	c.cache = scenes.NewCache(t)
	c.swapper = NewSwapper(t, logger.With("component", "swap"))
	c.sync = NewSyncEngine(t, c.conn, opts.Sync, logger.With("component", "sync"))
	c.bridge = NewBridge(t, c.cache, c.sync, c.conn, opts.OverlayScene, logger.With("component", "bridge"))

	c.conn.OnTransition(func(_, to multicam.ConnectionState) {
		if to == multicam.StateConnected {
			c.cache.Invalidate()
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.sub = t.Subscribe(opts.Sync.EventBuffer)
	go func() {
		defer close(c.done)
		c.bridge.Run(ctx, c.sub)
	}()
	return c
}

// Close disconnects if needed and stops the bridge.
func (c *Controller) Close() error {
	var err error
	if c.conn.Connected() {
		err = c.Disconnect()
	}
	c.cancel()
	_ = c.sub.Close()
	<-c.done
	return err
}

func (c *Controller) State() multicam.ConnectionState { return c.conn.State() }

func (c *Controller) Connection() *ConnectionManager { return c.conn }

func (c *Controller) Cache() *scenes.Cache { return c.cache }

// Events opens an extra subscription on the transport.
func (c *Controller) Events(buffer int) multicam.EventSubscription {
	return c.transport.Subscribe(buffer)
}

// Connect opens the session and runs an initial resync. A failed resync is
// logged; the session stays connected.
func (c *Controller) Connect(ctx context.Context) error {
	if err := c.conn.Connect(ctx, c.opts.Address, c.opts.Auth); err != nil {
		return err
	}
	if err := c.bridge.Resync(ctx); err != nil {
		c.log.Warn("initial resync failed", "error", err)
	}
	return nil
}

func (c *Controller) Disconnect() error {
	err := c.conn.Disconnect()
	c.sync.Abandon()
	c.cache.Invalidate()
	return err
}

// Resync forces a fresh scene list and selector refresh.
func (c *Controller) Resync(ctx context.Context) error {
	c.cache.Invalidate()
	return c.bridge.Resync(ctx)
}

// View is a consistent read for the presentation layer. When the selector
// subset has changed since the last read the state set is rebuilt and a
// background refresh queued.
func (c *Controller) View(ctx context.Context) (multicam.View, error) {
	v := multicam.View{
		Connection:      c.conn.State(),
		ActiveScene:     c.bridge.ActiveScene(),
		OverlayRevision: c.bridge.OverlayRevision(),
	}
	if !c.conn.Connected() {
		v.Selectors = c.sync.Selectors()
		return v, nil
	}
	names, err := c.cache.List(ctx)
	if err != nil {
		v.Selectors = c.sync.Selectors()
		return v, err
	}
	if c.sync.SetSelectors(scenes.Selectors(names)) {
		c.bridge.RequestRefresh()
	}
	v.Selectors = c.sync.Selectors()
	v.Cameras = scenes.Cameras(names)
	for _, n := range scenes.FastSwitch(names) {
		v.FastSwitch = append(v.FastSwitch, multicam.FastSwitchScene{Name: n, Active: n == v.ActiveScene})
	}
	return v, nil
}

// OverlaySources lists the items of the overlay scene in remote order.
func (c *Controller) OverlaySources(ctx context.Context) ([]multicam.OverlaySource, error) {
	items, err := c.overlayItems(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]multicam.OverlaySource, 0, len(items))
	for _, it := range items {
		out = append(out, multicam.OverlaySource{SourceName: it.SourceName, Visible: it.Visible()})
	}
	return out, nil
}

func (c *Controller) overlayItems(ctx context.Context) ([]multicam.SceneItem, error) {
	if !c.conn.Connected() {
		return nil, multicam.ErrNotConnected
	}
	req, err := translate.BuildScene(c.opts.OverlayScene)
	if err != nil {
		return nil, err
	}
	var resp translate.SceneItemListResponse
	if err := c.transport.Call(ctx, translate.GetSceneItemList, req, &resp); err != nil {
		if errors.Is(err, multicam.ErrNotFound) {
			return nil, &multicam.NotFoundError{Kind: "scene", Name: c.opts.OverlayScene}
		}
		return nil, err
	}
	return resp.SceneItems, nil
}

// SwapCamera points one selector at camera.
func (c *Controller) SwapCamera(ctx context.Context, selector, camera string) multicam.Outcome {
	if err := c.checkSwap(ctx, selector, camera); err != nil {
		return c.fail(err)
	}
	token, err := c.sync.Acquire(selector)
	if err != nil {
		return c.fail(err)
	}
	defer c.sync.Release(token)

	if _, err := c.swapper.Swap(ctx, selector, camera); err != nil {
		return c.fail(err)
	}
	return succeed(fmt.Sprintf("%s updated with %s", selector, camera))
}

// ApplyAll swaps every selector in assignments, one after another, in
// selector name order. It stops at the first failure.
func (c *Controller) ApplyAll(ctx context.Context, assignments map[string]string) multicam.Outcome {
	selectors := make([]string, 0, len(assignments))
	for sel, cam := range assignments {
		if cam != "" {
			selectors = append(selectors, sel)
		}
	}
	if len(selectors) == 0 {
		return multicam.Outcome{Success: false, Message: "no camera selected", Err: multicam.ErrInvalidParameter}
	}
	sort.Strings(selectors)

	for _, sel := range selectors {
		if err := c.checkSwap(ctx, sel, assignments[sel]); err != nil {
			return c.fail(err)
		}
	}
	token, err := c.sync.Acquire(selectors...)
	if err != nil {
		return c.fail(err)
	}
	defer c.sync.Release(token)

	for i, sel := range selectors {
		if _, err := c.swapper.Swap(ctx, sel, assignments[sel]); err != nil {
			out := c.fail(err)
			if i > 0 {
				out.Message = fmt.Sprintf("%s (%d of %d selectors updated)", out.Message, i, len(selectors))
			}
			return out
		}
	}
	return succeed(fmt.Sprintf("%d selectors updated", len(selectors)))
}

// checkSwap rejects a swap before any remote mutation when the session is
// down or either name is not a known scene of the right role.
func (c *Controller) checkSwap(ctx context.Context, selector, camera string) error {
	if !c.conn.Connected() {
		return multicam.ErrNotConnected
	}
	if camera == "" {
		return fmt.Errorf("%s: no camera selected: %w", selector, multicam.ErrInvalidParameter)
	}
	for _, want := range []struct {
		name string
		role scenes.Role
	}{{selector, scenes.RoleSelector}, {camera, scenes.RoleCamera}} {
		ok, err := c.cache.Contains(ctx, want.name)
		if err != nil {
			return err
		}
		if !ok || scenes.Classify(want.name) != want.role {
			return &multicam.NotFoundError{Kind: want.role.String(), Name: want.name}
		}
	}
	return nil
}

// SwitchActiveScene makes name the program scene.
func (c *Controller) SwitchActiveScene(ctx context.Context, name string) multicam.Outcome {
	if !c.conn.Connected() {
		return c.fail(multicam.ErrNotConnected)
	}
	req, err := translate.BuildScene(name)
	if err != nil {
		return c.fail(fmt.Errorf("%w: %v", multicam.ErrInvalidParameter, err))
	}
	if err := c.transport.Call(ctx, translate.SetCurrentProgramScene, req, nil); err != nil {
		if errors.Is(err, multicam.ErrNotFound) {
			err = &multicam.NotFoundError{Kind: "scene", Name: name}
		}
		return c.fail(err)
	}
	c.bridge.SetActiveScene(name)
	return succeed(fmt.Sprintf("scene %q selected", name))
}

// SetSourceVisible shows or hides an item of the overlay scene.
func (c *Controller) SetSourceVisible(ctx context.Context, source string, visible bool) multicam.Outcome {
	items, err := c.overlayItems(ctx)
	if err != nil {
		return c.fail(err)
	}
	id := -1
	for _, it := range items {
		if it.SourceName == source {
			id = it.ID
			break
		}
	}
	if id < 0 {
		return c.fail(&multicam.NotFoundError{Kind: "source", Name: source})
	}
	req, err := translate.BuildSetEnabled(c.opts.OverlayScene, id, visible)
	if err != nil {
		return c.fail(fmt.Errorf("%w: %v", multicam.ErrInvalidParameter, err))
	}
	if err := c.transport.Call(ctx, translate.SetSceneItemEnabled, req, nil); err != nil {
		if errors.Is(err, multicam.ErrNotFound) {
			err = &multicam.NotFoundError{Kind: "source", Name: source}
		}
		return c.fail(err)
	}
	verb := "hidden"
	if visible {
		verb = "shown"
	}
	return succeed(fmt.Sprintf("source %q %s", source, verb))
}

// fail converts err into a failed Outcome. Missing scenes or sources also
// invalidate the cache so the next read reflects the remote graph.
func (c *Controller) fail(err error) multicam.Outcome {
	if errors.Is(err, multicam.ErrNotFound) {
		c.cache.Invalidate()
	}
	c.log.Debug("operation failed", "error", err)
	return multicam.Outcome{Success: false, Message: err.Error(), Err: err}
}

func succeed(msg string) multicam.Outcome {
	return multicam.Outcome{Success: true, Message: msg}
}
