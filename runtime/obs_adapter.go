package runtime

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	multicam "github.com/stepherg/obs-multicam"
)

// OBSAdapter speaks obs-websocket v5 over a single websocket session.
// Responses are matched to requests by requestId; events are fanned out to
// subscribers. When the session ends every subscriber receives one
// ConnectionClosed event. It never reconnects on its own.
type OBSAdapter struct {
	dialer         *websocket.Dialer
	requestTimeout time.Duration
	log            *slog.Logger

	connMu sync.RWMutex
	conn   *websocket.Conn
	done   chan struct{}

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan requestResponse

	listenersMu sync.RWMutex
	listeners   []*obsEventSub
}

const (
	opHello           = 0
	opIdentify        = 1
	opIdentified      = 2
	opEvent           = 5
	opRequest         = 6
	opRequestResponse = 7

	rpcVersion  = 1
	subprotocol = "obswebsocket.json"

	// General | Scenes | SceneItems
	eventSubscriptions = 1 | 4 | 128

	closeAuthenticationFailed = 4009
)

type envelope struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type helloData struct {
	OBSWebSocketVersion string `json:"obsWebSocketVersion"`
	RPCVersion          int    `json:"rpcVersion"`
	Authentication      *struct {
		Challenge string `json:"challenge"`
		Salt      string `json:"salt"`
	} `json:"authentication,omitempty"`
}

type identifyData struct {
	RPCVersion         int    `json:"rpcVersion"`
	Authentication     string `json:"authentication,omitempty"`
	EventSubscriptions int    `json:"eventSubscriptions"`
}

type requestData struct {
	RequestType string `json:"requestType"`
	RequestID   string `json:"requestId"`
	RequestData any    `json:"requestData,omitempty"`
}

type requestResponse struct {
	RequestType   string `json:"requestType"`
	RequestID     string `json:"requestId"`
	RequestStatus struct {
		Result  bool   `json:"result"`
		Code    int    `json:"code"`
		Comment string `json:"comment,omitempty"`
	} `json:"requestStatus"`
	ResponseData json.RawMessage `json:"responseData,omitempty"`
}

type eventData struct {
	EventType   string          `json:"eventType"`
	EventIntent int             `json:"eventIntent"`
	EventData   json.RawMessage `json:"eventData,omitempty"`
}

type obsEventSub struct {
	owner     *OBSAdapter
	ch        chan multicam.Event
	closeOnce sync.Once
}

func (e *obsEventSub) C() <-chan multicam.Event { return e.ch }

func (e *obsEventSub) Close() error {
	e.closeOnce.Do(func() {
		e.owner.removeListener(e)
		close(e.ch)
	})
	return nil
}

// NewOBSAdapter creates an adapter; nothing is dialed until Connect.
func NewOBSAdapter(cfg multicam.TransportConfig, logger *slog.Logger) *OBSAdapter {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OBSAdapter{
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
			Subprotocols:     []string{subprotocol},
		},
		requestTimeout: cfg.RequestTimeout,
		log:            logger,
		pending:        make(map[string]chan requestResponse),
	}
}

// Connect dials address (host:port or a ws:// URL) and completes the
// Hello/Identify/Identified handshake.
func (a *OBSAdapter) Connect(ctx context.Context, address string, auth multicam.AuthStrategy) error {
	u, err := websocketURL(address)
	if err != nil {
		return err
	}
	password := ""
	if auth != nil {
		if password, err = auth.Password(); err != nil {
			return fmt.Errorf("password: %w", err)
		}
	}

	a.connMu.RLock()
	busy := a.conn != nil
	a.connMu.RUnlock()
	if busy {
		return &multicam.TransportError{Op: "connect", Err: errors.New("already connected")}
	}

	conn, _, err := a.dialer.DialContext(ctx, u, nil)
	if err != nil {
		return &multicam.TransportError{Op: "dial", Err: err}
	}
	if err := a.identify(conn, password); err != nil {
		_ = conn.Close()
		return err
	}

	done := make(chan struct{})
	a.connMu.Lock()
	a.conn = conn
	a.done = done
	a.connMu.Unlock()
	go a.readLoop(conn, done)
	a.log.Debug("obs session identified", "address", u)
	return nil
}

func (a *OBSAdapter) identify(conn *websocket.Conn, password string) error {
	_ = conn.SetReadDeadline(time.Now().Add(a.dialer.HandshakeTimeout))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	var hello helloData
	if err := readOp(conn, opHello, &hello); err != nil {
		return handshakeError("hello", err)
	}
	ident := identifyData{RPCVersion: rpcVersion, EventSubscriptions: eventSubscriptions}
	if hello.Authentication != nil {
		ident.Authentication = authResponse(password, hello.Authentication.Salt, hello.Authentication.Challenge)
	}
	if err := writeOp(conn, opIdentify, ident); err != nil {
		return &multicam.TransportError{Op: "identify", Err: err}
	}
	if err := readOp(conn, opIdentified, nil); err != nil {
		return handshakeError("identified", err)
	}
	return nil
}

func handshakeError(op string, err error) error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) && ce.Code == closeAuthenticationFailed {
		return multicam.ErrAuthenticationFailed
	}
	return &multicam.TransportError{Op: op, Err: err}
}

// authResponse implements the obs-websocket challenge:
// base64(sha256(base64(sha256(password+salt)) + challenge)).
func authResponse(password, salt, challenge string) string {
	secret := sha256.Sum256([]byte(password + salt))
	secretB64 := base64.StdEncoding.EncodeToString(secret[:])
	sum := sha256.Sum256([]byte(secretB64 + challenge))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func websocketURL(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", fmt.Errorf("address: %w", multicam.ErrInvalidParameter)
	}
	if !strings.Contains(address, "://") {
		address = "ws://" + address
	}
	u, err := url.Parse(address)
	if err != nil {
		return "", err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("scheme %q: %w", u.Scheme, multicam.ErrInvalidParameter)
	}
	return u.String(), nil
}

func readOp(conn *websocket.Conn, want int, out any) error {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	if env.Op != want {
		return fmt.Errorf("expected op %d, got %d", want, env.Op)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(env.D, out)
}

func writeOp(conn *websocket.Conn, op int, d any) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(envelope{Op: op, D: raw})
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// Close ends the session. Pending calls fail and subscribers get a
// ConnectionClosed event from the read loop.
func (a *OBSAdapter) Close() error {
	a.connMu.RLock()
	c, done := a.conn, a.done
	a.connMu.RUnlock()
	if c == nil {
		return nil
	}
	a.writeMu.Lock()
	_ = c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	a.writeMu.Unlock()
	err := c.Close()
	<-done
	return err
}

// Call issues one request and waits for its response.
func (a *OBSAdapter) Call(ctx context.Context, requestType string, params any, out any) error {
	if requestType == "" {
		return errors.New("request type required")
	}
	a.connMu.RLock()
	c := a.conn
	a.connMu.RUnlock()
	if c == nil {
		return multicam.ErrNotConnected
	}

	id := uuid.NewString()
	ch := make(chan requestResponse, 1)
	a.pendingMu.Lock()
	a.pending[id] = ch
	a.pendingMu.Unlock()

	a.writeMu.Lock()
	err := writeOp(c, opRequest, requestData{RequestType: requestType, RequestID: id, RequestData: params})
	a.writeMu.Unlock()
	if err != nil {
		a.dropPending(id)
		return &multicam.TransportError{Op: requestType, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, a.requestTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		a.dropPending(id)
		return &multicam.TransportError{Op: requestType, Err: ctx.Err()}
	case resp, ok := <-ch:
		if !ok {
			return &multicam.TransportError{Op: requestType, Err: multicam.ErrConnectionClosed}
		}
		if !resp.RequestStatus.Result {
			return &multicam.RequestError{RequestType: requestType, Code: resp.RequestStatus.Code, Comment: resp.RequestStatus.Comment}
		}
		if out != nil && len(resp.ResponseData) > 0 {
			if err := json.Unmarshal(resp.ResponseData, out); err != nil {
				return &multicam.TransportError{Op: requestType, Err: fmt.Errorf("decode: %w", err)}
			}
		}
		return nil
	}
}

func (a *OBSAdapter) dropPending(id string) {
	a.pendingMu.Lock()
	delete(a.pending, id)
	a.pendingMu.Unlock()
}

// Subscribe returns pushed events. Slow subscribers lose events rather than
// stall the read loop.
func (a *OBSAdapter) Subscribe(buffer int) multicam.EventSubscription {
	es := &obsEventSub{owner: a, ch: make(chan multicam.Event, buffer)}
	a.listenersMu.Lock()
	a.listeners = append(a.listeners, es)
	a.listenersMu.Unlock()
	return es
}

func (a *OBSAdapter) removeListener(es *obsEventSub) {
	a.listenersMu.Lock()
	defer a.listenersMu.Unlock()
	for i, l := range a.listeners {
		if l == es {
			a.listeners = append(a.listeners[:i], a.listeners[i+1:]...)
			return
		}
	}
}

func (a *OBSAdapter) broadcast(evt multicam.Event) {
	a.listenersMu.RLock()
	defer a.listenersMu.RUnlock()
	for _, es := range a.listeners {
		select {
		case es.ch <- evt:
		default:
			a.log.Warn("dropping obs event for slow subscriber", "event", evt.Kind)
		}
	}
}

func (a *OBSAdapter) readLoop(c *websocket.Conn, done chan struct{}) {
	var readErr error
	defer func() { a.endSession(c, done, readErr) }()
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			readErr = err
			return
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			a.log.Debug("ignoring undecodable frame", "error", err)
			continue
		}
		switch env.Op {
		case opRequestResponse:
			var resp requestResponse
			if err := json.Unmarshal(env.D, &resp); err != nil || resp.RequestID == "" {
				continue
			}
			a.pendingMu.Lock()
			ch, found := a.pending[resp.RequestID]
			if found {
				delete(a.pending, resp.RequestID)
			}
			a.pendingMu.Unlock()
			if found {
				ch <- resp
			}
		case opEvent:
			var ev eventData
			if err := json.Unmarshal(env.D, &ev); err != nil || ev.EventType == "" {
				continue
			}
			a.broadcast(multicam.Event{
				Kind:       multicam.EventKind(ev.EventType),
				OccurredAt: time.Now(),
				Source:     "obs-websocket",
				Data:       ev.EventData,
			})
		}
	}
}

func (a *OBSAdapter) endSession(c *websocket.Conn, done chan struct{}, cause error) {
	a.connMu.Lock()
	if a.conn == c {
		a.conn = nil
		a.done = nil
	}
	a.connMu.Unlock()
	_ = c.Close()

	a.pendingMu.Lock()
	for id, ch := range a.pending {
		close(ch)
		delete(a.pending, id)
	}
	a.pendingMu.Unlock()

	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	payload, _ := json.Marshal(map[string]string{"reason": reason})
	a.broadcast(multicam.Event{Kind: multicam.EventConnectionClosed, OccurredAt: time.Now(), Source: "obs-websocket", Data: payload})
	close(done)
}
