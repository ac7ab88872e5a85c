// Package source fetches author and works records from the OpenAlex API.
//
// The client holds no state beyond its circuit breaker and never touches the
// cache. Subject ids must already be normalized by the caller.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"showcase/internal/platform/logger"
	id "showcase/pkg/domain"
	"showcase/pkg/platform/circuit"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "showcase/1.0"
	maxBodyBytes     = 32 << 20
)

// Client calls the upstream catalogue.
type Client struct {
	baseURL    string
	mailto     string
	userAgent  string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *circuit.Breaker
	logger     *slog.Logger
	tracer     trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithBreaker short-circuits calls while b is open.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// WithTimeout bounds every single upstream call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMailto joins the upstream "polite pool".
func WithMailto(addr string) Option {
	return func(c *Client) {
		c.mailto = addr
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// New creates a client for baseURL, e.g. "https://api.openalex.org".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  defaultUserAgent,
		timeout:    defaultTimeout,
		httpClient: &http.Client{},
		logger:     logger.Discard(),
		tracer:     otel.Tracer("showcase/internal/profile/source"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchProfile returns the author record for subjectID.
func (c *Client) FetchProfile(ctx context.Context, subjectID id.SubjectID) (*AuthorRecord, error) {
	const op = "fetch_profile"
	body, err := c.get(ctx, op, "/authors/"+url.PathEscape(subjectID.String()), url.Values{})
	if err != nil {
		return nil, err
	}
	return decodeAuthor(op, body)
}

// FetchWorks returns one page of works for subjectID, newest first. page is
// 1-based.
func (c *Client) FetchWorks(ctx context.Context, subjectID id.SubjectID, page, pageSize int) (*WorksPage, error) {
	const op = "fetch_works"
	q := url.Values{}
	q.Set("filter", "author.id:"+subjectID.String())
	q.Set("page", strconv.Itoa(page))
	q.Set("per-page", strconv.Itoa(pageSize))
	q.Set("sort", "publication_year:desc")

	body, err := c.get(ctx, op, "/works", q)
	if err != nil {
		return nil, err
	}
	return decodeWorksPage(op, body)
}

// Works iterates over all works pages for subjectID.
func (c *Client) Works(subjectID id.SubjectID, pageSize, maxPages int) *WorksIterator {
	return NewWorksIterator(c, subjectID, pageSize, maxPages)
}

func (c *Client) get(ctx context.Context, op, path string, q url.Values) ([]byte, error) {
	if c.breaker != nil && !c.breaker.Allow() {
		return nil, NewError(CategoryOutage, op, "circuit open", nil)
	}

	ctx, span := c.tracer.Start(ctx, "source."+op, trace.WithAttributes(attribute.String("http.path", path)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.mailto != "" {
		q.Set("mailto", c.mailto)
	}
	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	body, err := c.do(ctx, op, endpoint)
	c.recordOutcome(ctx, op, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(CategoryOf(err)))
		return nil, err
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, op, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, NewError(CategoryBadRequest, op, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return nil, NewError(CategoryTimeout, op, "request timed out", err)
		case errors.Is(err, context.Canceled):
			return nil, fmt.Errorf("source %s: %w", op, err)
		default:
			return nil, NewError(CategoryNetwork, op, "request failed", err)
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, statusError(op, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, NewError(CategoryTimeout, op, "read timed out", err)
		}
		return nil, NewError(CategoryNetwork, op, "read body", err)
	}
	return body, nil
}

func statusError(op string, status int) *Error {
	var e *Error
	switch {
	case status == http.StatusNotFound:
		e = NewError(CategoryNotFound, op, "subject not found upstream", nil)
	case status == http.StatusTooManyRequests:
		e = NewError(CategoryRateLimited, op, "rate limited by upstream", nil)
	case status >= 500:
		e = NewError(CategoryOutage, op, "upstream error", nil)
	default:
		e = NewError(CategoryBadRequest, op, "upstream rejected request", nil)
	}
	e.Status = status
	return e
}

// recordOutcome feeds the breaker: only failures that say something about
// upstream health count against it.
func (c *Client) recordOutcome(ctx context.Context, op string, err error) {
	if c.breaker == nil {
		return
	}
	if err != nil && IsRetryable(err) {
		if _, change := c.breaker.RecordFailure(); change.Opened {
			c.logger.WarnContext(ctx, "source circuit opened", "breaker", c.breaker.Name(), "op", op, "error", err)
		}
		return
	}
	if err != nil && CategoryOf(err) == "" {
		return
	}
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "source circuit closed", "breaker", c.breaker.Name())
	}
}
