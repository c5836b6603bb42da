package runtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	multicam "github.com/stepherg/obs-multicam"
	"github.com/stepherg/obs-multicam/translate"
)

// Caller is the request half of the transport.
type Caller interface {
	Call(ctx context.Context, requestType string, params any, out any) error
}

// SwapResult describes how far a swap got.
type SwapResult struct {
	Selector     string
	Camera       string
	Completed    multicam.SwapStep
	RemovedItems []int
	ItemID       int
}

// Swapper replaces the content of a selector scene with a single camera
// item: list, remove all, create, fit to canvas. The steps are not atomic
// and nothing is rolled back.
type Swapper struct {
	remote Caller
	log    *slog.Logger
}

func NewSwapper(remote Caller, logger *slog.Logger) *Swapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Swapper{remote: remote, log: logger}
}

// Swap runs the pipeline for one selector. Cancelling ctx after the call
// starts does not abort the remote steps.
func (s *Swapper) Swap(ctx context.Context, selector, camera string) (SwapResult, error) {
	ctx = context.WithoutCancel(ctx)
	res := SwapResult{Selector: selector, Camera: camera, Completed: multicam.StepListItems}
	fail := func(step multicam.SwapStep, err error) (SwapResult, error) {
		s.log.Warn("camera swap failed", "selector", selector, "camera", camera, "step", step.String(), "error", err)
		return res, &multicam.SwapError{Selector: selector, Camera: camera, Step: step, Err: err}
	}

	listReq, err := translate.BuildScene(selector)
	if err != nil {
		return fail(multicam.StepListItems, err)
	}
	createReq, err := translate.BuildCreateItem(selector, camera)
	if err != nil {
		return fail(multicam.StepListItems, err)
	}

	var items translate.SceneItemListResponse
	if err := s.remote.Call(ctx, translate.GetSceneItemList, listReq, &items); err != nil {
		return fail(multicam.StepListItems, err)
	}

	removed, err := s.removeAll(ctx, selector, items.SceneItems)
	res.RemovedItems = removed
	if err != nil {
		return fail(multicam.StepRemoveItems, err)
	}
	res.Completed = multicam.StepRemoveItems

	var created translate.CreateSceneItemResponse
	if err := s.remote.Call(ctx, translate.CreateSceneItem, createReq, &created); err != nil {
		return fail(multicam.StepCreateItem, err)
	}
	res.ItemID = created.SceneItemID
	res.Completed = multicam.StepCreateItem

	tfReq, err := translate.BuildSetTransform(selector, created.SceneItemID, multicam.FillTransform())
	if err != nil {
		return fail(multicam.StepSetTransform, err)
	}
	if err := s.remote.Call(ctx, translate.SetSceneItemTransform, tfReq, nil); err != nil {
		return fail(multicam.StepSetTransform, err)
	}
	res.Completed = multicam.StepDone
	s.log.Debug("camera swapped", "selector", selector, "camera", camera, "item", created.SceneItemID, "removed", len(removed))
	return res, nil
}

// removeAll issues every RemoveSceneItem concurrently and waits for all of
// them. It returns the ids that were removed.
func (s *Swapper) removeAll(ctx context.Context, selector string, items []multicam.SceneItem) ([]int, error) {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		removed []int
		errs    []error
	)
	for _, it := range items {
		req, err := translate.BuildRemoveItem(selector, it.ID)
		if err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func(id int, req translate.SceneItemRequest) {
			defer wg.Done()
			err := s.remote.Call(ctx, translate.RemoveSceneItem, req, nil)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			removed = append(removed, id)
		}(it.ID, req)
	}
	wg.Wait()
	return removed, errors.Join(errs...)
}
