package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	multicam "github.com/stepherg/obs-multicam"
)

// Controller is the part of runtime.Controller the HTTP surface drives.
type Controller interface {
	View(ctx context.Context) (multicam.View, error)
	OverlaySources(ctx context.Context) ([]multicam.OverlaySource, error)
	Connect(ctx context.Context) error
	Disconnect() error
	SwapCamera(ctx context.Context, selector, camera string) multicam.Outcome
	ApplyAll(ctx context.Context, assignments map[string]string) multicam.Outcome
	SwitchActiveScene(ctx context.Context, name string) multicam.Outcome
	SetSourceVisible(ctx context.Context, source string, visible bool) multicam.Outcome
	Events(buffer int) multicam.EventSubscription
}

type Handler struct {
	ctrl     Controller
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewHandler(ctrl Controller, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		ctrl: ctrl,
		log:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Routes builds the router. Every route also accepts OPTIONS so the CORS
// middleware can answer preflight requests.
func (h *Handler) Routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(cors)
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", h.state).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/overlay", h.overlay).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/connect", h.connect).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/disconnect", h.disconnect).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/selectors/{name}/camera", h.swap).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/apply", h.apply).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/scene", h.switchScene).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/overlay/{source}", h.setVisible).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/ws/events", h.events).Methods(http.MethodGet)
	return r
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) state(w http.ResponseWriter, r *http.Request) {
	v, err := h.ctrl.View(r.Context())
	if err != nil {
		h.log.Warn("state read failed", "error", err)
		writeJSON(w, statusFor(err), struct {
			multicam.View
			Error string `json:"error"`
		}{v, err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) overlay(w http.ResponseWriter, r *http.Request) {
	sources, err := h.ctrl.OverlaySources(r.Context())
	if err != nil {
		writeOutcome(w, multicam.Outcome{Message: err.Error(), Err: err})
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Sources []multicam.OverlaySource `json:"sources"`
	}{sources})
}

func (h *Handler) connect(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Connect(r.Context()); err != nil {
		h.log.Warn("connect failed", "error", err)
		writeOutcome(w, multicam.Outcome{Message: err.Error(), Err: err})
		return
	}
	writeOutcome(w, multicam.Outcome{Success: true, Message: "connected"})
}

func (h *Handler) disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Disconnect(); err != nil {
		writeOutcome(w, multicam.Outcome{Message: err.Error(), Err: err})
		return
	}
	writeOutcome(w, multicam.Outcome{Success: true, Message: "disconnected"})
}

func (h *Handler) swap(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Camera string `json:"camera"`
	}
	if !decode(w, r, &body) {
		return
	}
	writeOutcome(w, h.ctrl.SwapCamera(r.Context(), mux.Vars(r)["name"], body.Camera))
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Assignments map[string]string `json:"assignments"`
	}
	if !decode(w, r, &body) {
		return
	}
	writeOutcome(w, h.ctrl.ApplyAll(r.Context(), body.Assignments))
}

func (h *Handler) switchScene(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Scene string `json:"scene"`
	}
	if !decode(w, r, &body) {
		return
	}
	writeOutcome(w, h.ctrl.SwitchActiveScene(r.Context(), body.Scene))
}

func (h *Handler) setVisible(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Visible *bool `json:"visible"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Visible == nil {
		writeOutcome(w, multicam.Outcome{Message: "visible is required", Err: multicam.ErrInvalidParameter})
		return
	}
	writeOutcome(w, h.ctrl.SetSourceVisible(r.Context(), mux.Vars(r)["source"], *body.Visible))
}

// events streams pushed OBS events to a browser until either side closes.
func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("event stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	sub := h.ctrl.Events(32)
	defer sub.Close()

	// reader goroutine only notices the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case evt, ok := <-sub.C():
			if !ok {
				return
			}
			msg := struct {
				Event multicam.EventKind `json:"event"`
				At    time.Time          `json:"at"`
				Data  json.RawMessage    `json:"data,omitempty"`
			}{evt.Kind, evt.OccurredAt, evt.Data}
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeOutcome(w, multicam.Outcome{Message: "invalid body: " + err.Error(), Err: multicam.ErrInvalidParameter})
		return false
	}
	return true
}

func writeOutcome(w http.ResponseWriter, out multicam.Outcome) {
	status := http.StatusOK
	if !out.Success {
		status = statusFor(out.Err)
	}
	writeJSON(w, status, out)
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusInternalServerError
	case errors.Is(err, multicam.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, multicam.ErrBusy), errors.Is(err, multicam.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, multicam.ErrPartialSwap):
		return http.StatusBadGateway
	case errors.Is(err, multicam.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, multicam.ErrAuthenticationFailed):
		return http.StatusUnauthorized
	case errors.Is(err, multicam.ErrNotConnected):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
