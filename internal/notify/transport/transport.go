// Package transport streams change events to HTTP clients over Server-Sent
// Events and WebSocket.
//
// Both transports send a "connected" frame first, a "heartbeat" frame every
// heartbeat interval and one JSON object per change event. The subscription
// ends when the client goes away.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"showcase/internal/platform/logger"
	"showcase/internal/profile/models"
)

const (
	FrameConnected = "connected"
	FrameHeartbeat = "heartbeat"

	defaultHeartbeat = 30 * time.Second
	writeTimeout     = 10 * time.Second
)

// Subscriber hands out event subscriptions bound to a context.
type Subscriber interface {
	SubscribeFunc(ctx context.Context) (<-chan models.ChangeEvent, func())
}

// controlFrame is a non-event message.
type controlFrame struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// Handler serves the event streams.
type Handler struct {
	hub            Subscriber
	heartbeat      time.Duration
	originPatterns []string
	logger         *slog.Logger
	now            func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

func WithHeartbeat(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.heartbeat = d
		}
	}
}

// WithOriginPatterns authorizes cross-origin WebSocket clients.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Handler) {
		h.originPatterns = patterns
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

func New(hub Subscriber, opts ...Option) *Handler {
	h := &Handler{
		hub:       hub,
		heartbeat: defaultHeartbeat,
		logger:    logger.Discard(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the stream endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Get("/events", h.ServeSSE)
	r.Get("/events/ws", h.ServeWebSocket)
}

// ServeSSE streams events as text/event-stream.
func (h *Handler) ServeSSE(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	write := func(_ context.Context, v any) error {
		payload, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		return rc.Flush()
	}

	err := h.stream(r.Context(), write)
	h.logEnd(r.Context(), "sse", err)
}

// ServeWebSocket streams events as WebSocket text messages.
func (h *Handler) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	// Clients never send; CloseRead turns their close frame into ctx.Done.
	ctx := conn.CloseRead(r.Context())

	write := func(ctx context.Context, v any) error {
		ctx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()
		return wsjson.Write(ctx, conn, v)
	}

	err = h.stream(ctx, write)
	h.logEnd(ctx, "websocket", err)
	if errors.Is(err, errHubClosed) {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

var errHubClosed = errors.New("event hub closed")

// stream subscribes, then writes frames until ctx ends, a write fails or
// the hub closes the subscription.
func (h *Handler) stream(ctx context.Context, write func(context.Context, any) error) error {
	events, unsubscribe := h.hub.SubscribeFunc(ctx)
	defer unsubscribe()

	if err := write(ctx, controlFrame{Type: FrameConnected, Timestamp: h.now().UTC()}); err != nil {
		return err
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errHubClosed
			}
			if err := write(ctx, event); err != nil {
				return err
			}
		case <-ticker.C:
			if err := write(ctx, controlFrame{Type: FrameHeartbeat, Timestamp: h.now().UTC()}); err != nil {
				return err
			}
		}
	}
}

func (h *Handler) logEnd(ctx context.Context, kind string, err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		h.logger.DebugContext(ctx, "event stream ended", "transport", kind, "error", err)
	}
}
