// Package liveclient follows a server-sent change-event stream and reconnects
// with exponential backoff when the connection drops.
//
// After a failed connection the client waits 1s, 2s, 4s, 8s and 16s between
// attempts. When the fifth reconnect fails the subscription becomes
// StatusDisabled until Reconnect is called. A connection that was established
// resets the attempt counter.
package liveclient

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Message types.
const (
	TypeConnected = "connected"
	TypeHeartbeat = "heartbeat"
	TypeUpdate    = "update"
)

const (
	defaultInitialDelay = time.Second
	defaultMaxAttempts  = 5
	maxFrameBytes       = 1 << 20
)

// Status is the connection state of a subscription.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
	StatusDisabled     Status = "disabled"
	StatusClosed       Status = "closed"
)

// Message is one frame of the stream. Update frames carry OpenalexID and
// UpdateType; control frames carry only Type and Timestamp.
type Message struct {
	Type       string    `json:"type"`
	OpenalexID string    `json:"openalexId,omitempty"`
	UpdateType string    `json:"updateType,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Handler receives every message in arrival order.
type Handler func(Message)

// Client connects to one event stream URL.
type Client struct {
	url          string
	http         *http.Client
	initialDelay time.Duration
	maxAttempts  int
	onStatus     func(Status)
	logger       *slog.Logger
	sleep        func(ctx context.Context, d time.Duration, wake <-chan struct{}) error
}

type Option func(*Client)

// WithHTTPClient replaces the client used to connect. It must not set a
// response timeout, the stream stays open indefinitely.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithInitialDelay sets the first reconnect delay. Each later delay doubles.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.initialDelay = d
		}
	}
}

// WithMaxAttempts sets how many reconnects are tried before giving up.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithStatusFunc registers fn to observe status changes. fn runs on the
// subscription goroutine and must not block.
func WithStatusFunc(fn func(Status)) Option {
	return func(c *Client) {
		c.onStatus = fn
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a client for the SSE endpoint at url.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:          url,
		http:         &http.Client{},
		initialDelay: defaultInitialDelay,
		maxAttempts:  defaultMaxAttempts,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		sleep:        sleepOrWake,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscription is a running stream. It ends when the parent context is done
// or Close is called.
type Subscription struct {
	client    *Client
	handler   Handler
	cancel    context.CancelFunc
	done      chan struct{}
	reconnect chan struct{}
	status    atomic.Value
	closeOnce sync.Once
}

// Subscribe starts following the stream on a new goroutine.
func (c *Client) Subscribe(ctx context.Context, handler Handler) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		client:    c,
		handler:   handler,
		cancel:    cancel,
		done:      make(chan struct{}),
		reconnect: make(chan struct{}, 1),
	}
	s.status.Store(StatusConnecting)
	go s.run(ctx)
	return s
}

// Status returns the current connection state.
func (s *Subscription) Status() Status {
	return s.status.Load().(Status)
}

// Reconnect resets the attempt counter and connects again at once. It revives
// a disabled subscription; on a connected one it only resets the counter.
func (s *Subscription) Reconnect() {
	select {
	case s.reconnect <- struct{}{}:
	default:
	}
}

// Close stops the subscription and waits for its goroutine to exit.
func (s *Subscription) Close() {
	s.closeOnce.Do(s.cancel)
	<-s.done
}

// Done is closed once the subscription has stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) setStatus(st Status) {
	if s.status.Swap(st) == st {
		return
	}
	if s.client.onStatus != nil {
		s.client.onStatus(st)
	}
}

func (s *Subscription) newPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.client.initialDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = s.client.initialDelay << s.client.maxAttempts
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(s.client.maxAttempts))
}

func (s *Subscription) run(ctx context.Context) {
	defer close(s.done)
	defer s.setStatus(StatusClosed)
	log := s.client.logger

	policy := s.newPolicy()
	for {
		connected, err := s.stream(ctx)
		if ctx.Err() != nil {
			return
		}
		if connected {
			policy.Reset()
		}

		delay := policy.NextBackOff()
		if delay == backoff.Stop {
			log.Warn("event stream disabled after repeated failures", "url", s.client.url, "error", err)
			s.setStatus(StatusDisabled)
			select {
			case <-ctx.Done():
				return
			case <-s.reconnect:
				policy.Reset()
				continue
			}
		}

		log.Info("event stream disconnected, reconnecting", "url", s.client.url, "delay", delay, "error", err)
		s.setStatus(StatusReconnecting)
		if err := s.client.sleep(ctx, delay, s.reconnect); err != nil {
			if errors.Is(err, errWoken) {
				policy.Reset()
				continue
			}
			return
		}
	}
}

// stream holds one connection open and dispatches its frames. connected is
// true when the server accepted the stream.
func (s *Subscription) stream(ctx context.Context) (connected bool, err error) {
	s.setStatus(StatusConnecting)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.client.url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return false, fmt.Errorf("event stream: unexpected status %d", resp.StatusCode)
	}

	s.setStatus(StatusConnected)
	return true, readFrames(resp.Body, func(data string) {
		msg, err := decodeMessage(data)
		if err != nil {
			s.client.logger.Debug("skipping malformed event frame", "error", err)
			return
		}
		if s.handler != nil {
			s.handler(msg)
		}
	})
}

// readFrames splits an SSE body into data payloads. Multi-line data fields
// are joined with newlines; comments and other fields are ignored.
func readFrames(r io.Reader, emit func(data string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxFrameBytes)

	var data []string
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			if len(data) > 0 {
				emit(strings.Join(data, "\n"))
				data = data[:0]
			}
			continue
		}
		if v, ok := strings.CutPrefix(line, "data:"); ok {
			data = append(data, strings.TrimPrefix(v, " "))
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}

func decodeMessage(data string) (Message, error) {
	var msg Message
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		return Message{}, err
	}
	if msg.Type == "" {
		if msg.OpenalexID == "" {
			return Message{}, errors.New("frame has neither type nor openalexId")
		}
		msg.Type = TypeUpdate
	}
	return msg, nil
}

var errWoken = errors.New("woken")

// sleepOrWake waits d. It returns errWoken when wake fires first and the
// context error when ctx ends first.
func sleepOrWake(ctx context.Context, d time.Duration, wake <-chan struct{}) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-wake:
		return errWoken
	case <-ctx.Done():
		return ctx.Err()
	}
}
