package multicam

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected         = errors.New("not connected")
	ErrConnectionClosed     = errors.New("connection closed")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrBusy                 = errors.New("camera swap in progress")
	ErrNotFound             = errors.New("not found")
	ErrPartialSwap          = errors.New("partial swap")
	ErrInvalidParameter     = errors.New("invalid parameter")
	ErrInvalidTransition    = errors.New("invalid connection state transition")
)

// StatusResourceNotFound is the obs-websocket request status code for a
// missing scene, source or scene item.
const StatusResourceNotFound = 600

// TransportError is a network or protocol level failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return "transport: " + e.Op + ": " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// RequestError is a request the remote side received and rejected.
type RequestError struct {
	RequestType string
	Code        int
	Comment     string
}

func (e *RequestError) Error() string {
	if e.Comment == "" {
		return fmt.Sprintf("%s failed with code %d", e.RequestType, e.Code)
	}
	return fmt.Sprintf("%s failed with code %d: %s", e.RequestType, e.Code, e.Comment)
}

func (e *RequestError) Is(target error) bool {
	return target == ErrNotFound && e.Code == StatusResourceNotFound
}

// NotFoundError names the scene or source that vanished.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %q not found", e.Kind, e.Name) }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// SwapStep names the stages of a camera swap in execution order.
type SwapStep int

const (
	StepListItems SwapStep = iota
	StepRemoveItems
	StepCreateItem
	StepSetTransform
	StepDone
)

func (s SwapStep) String() string {
	switch s {
	case StepListItems:
		return "list items"
	case StepRemoveItems:
		return "remove items"
	case StepCreateItem:
		return "create item"
	case StepSetTransform:
		return "set transform"
	case StepDone:
		return "done"
	default:
		return "unknown"
	}
}

// SwapError reports which swap step failed. Failures after the list step
// have already mutated the selector and match ErrPartialSwap.
type SwapError struct {
	Selector string
	Camera   string
	Step     SwapStep
	Err      error
}

func (e *SwapError) Partial() bool { return e.Step > StepListItems }

func (e *SwapError) Error() string {
	msg := fmt.Sprintf("swap %s to %s: %s: %v", e.Selector, e.Camera, e.Step, e.Err)
	if e.Partial() {
		msg += " (scene may be left empty or with a wrong camera)"
	}
	return msg
}

func (e *SwapError) Unwrap() error { return e.Err }

func (e *SwapError) Is(target error) bool { return target == ErrPartialSwap && e.Partial() }
