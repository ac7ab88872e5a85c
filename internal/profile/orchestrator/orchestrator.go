// Package orchestrator runs profile synchronization: fetch from the source,
// normalize, replace the cached collections, record sync state and announce
// the change.
//
// At most one run per subject is in flight. Callers that arrive while a run
// is executing join it and receive its result. Runs for different subjects
// proceed in parallel.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"showcase/internal/platform/logger"
	"showcase/internal/profile/metrics"
	"showcase/internal/profile/models"
	"showcase/internal/profile/normalize"
	"showcase/internal/profile/source"
	"showcase/internal/profile/store"
	id "showcase/pkg/domain"
	dErrors "showcase/pkg/domain-errors"
)

// Source is the upstream the orchestrator reads from.
type Source interface {
	FetchProfile(ctx context.Context, subjectID id.SubjectID) (*source.AuthorRecord, error)
	FetchWorks(ctx context.Context, subjectID id.SubjectID, page, pageSize int) (*source.WorksPage, error)
}

// Publisher receives change events once a run has committed.
type Publisher interface {
	Publish(event models.ChangeEvent)
}

// PersistMode selects how the four collection replaces are applied.
type PersistMode string

const (
	// PersistTransaction applies all replaces in one transaction.
	PersistTransaction PersistMode = "transaction"
	// PersistSequential applies them one after another. A reader may briefly
	// see new stats next to old publications.
	PersistSequential PersistMode = "sequential"
)

const (
	defaultRetryAttempts = 3
	defaultRetryInterval = 500 * time.Millisecond
	defaultRunTimeout    = 2 * time.Minute
	defaultPageSize      = 200
	stateWriteTimeout    = 5 * time.Second
)

// Run outcomes used for metrics and logs.
const (
	outcomeSuccess  = "success"
	outcomeFailed   = "failed"
	outcomeNotFound = "not_found"
)

// Result describes a finished run.
type Result struct {
	SubjectID    id.SubjectID `json:"subjectId"`
	RunID        string       `json:"runId"`
	Success      bool         `json:"success"`
	Message      string       `json:"message"`
	Joined       bool         `json:"joined"`
	Publications int          `json:"publications"`
	Topics       int          `json:"topics"`
	Affiliations int          `json:"affiliations"`
	Skipped      int          `json:"skipped"`
	SyncedAt     *time.Time   `json:"syncedAt,omitempty"`
}

// Orchestrator coordinates sync runs.
type Orchestrator struct {
	source    Source
	cache     store.Store
	states    store.SyncStateStore
	publisher Publisher

	group singleflight.Group
	tasks sync.WaitGroup

	retryAttempts int
	retryInterval time.Duration
	runTimeout    time.Duration
	persistMode   PersistMode
	pageSize      int
	maxPages      int

	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
	newRunID func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithPublisher sets where change events go. Without one, runs still persist
// but nobody is told.
func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) {
		o.publisher = p
	}
}

// WithRetry sets how many times a transient upstream failure is retried and
// the first backoff interval. attempts 0 disables retries.
func WithRetry(attempts int, interval time.Duration) Option {
	return func(o *Orchestrator) {
		if attempts >= 0 {
			o.retryAttempts = attempts
		}
		if interval > 0 {
			o.retryInterval = interval
		}
	}
}

// WithRunTimeout bounds a whole run, fetch through publish.
func WithRunTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.runTimeout = d
		}
	}
}

func WithPersistMode(mode PersistMode) Option {
	return func(o *Orchestrator) {
		if mode != "" {
			o.persistMode = mode
		}
	}
}

// WithPaging sets the works page size and page cap. maxPages <= 0 means no cap.
func WithPaging(pageSize, maxPages int) Option {
	return func(o *Orchestrator) {
		if pageSize > 0 {
			o.pageSize = pageSize
		}
		o.maxPages = maxPages
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New creates an orchestrator.
func New(src Source, cache store.Store, states store.SyncStateStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		source:        src,
		cache:         cache,
		states:        states,
		retryAttempts: defaultRetryAttempts,
		retryInterval: defaultRetryInterval,
		runTimeout:    defaultRunTimeout,
		persistMode:   PersistTransaction,
		pageSize:      defaultPageSize,
		logger:        logger.Discard(),
		tracer:        otel.Tracer("showcase/internal/profile/orchestrator"),
		now:           time.Now,
		newRunID:      func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Synchronize runs a sync for subjectID, or joins the one already running.
//
// The run is detached from ctx: if the caller gives up, the run still
// finishes and the caller gets a CodeTimeout error. The run itself is bounded
// by the run timeout.
func (o *Orchestrator) Synchronize(ctx context.Context, subjectID id.SubjectID) (Result, error) {
	if subjectID.IsNil() {
		return Result{}, dErrors.New(dErrors.CodeInvalidInput, "subject id is required")
	}

	// leader is only written by the goroutine singleflight starts for this
	// caller; the channel receive orders the read after it.
	leader := false
	detached := context.WithoutCancel(ctx)
	ch := o.group.DoChan(subjectID.String(), func() (any, error) {
		leader = true
		return o.run(detached, subjectID)
	})

	select {
	case <-ctx.Done():
		return Result{SubjectID: subjectID, Message: "sync continues in the background"},
			dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "stopped waiting for sync")
	case r := <-ch:
		res, _ := r.Val.(Result)
		if !leader {
			res.Joined = true
			o.metrics.IncrementJoined()
		}
		return res, r.Err
	}
}

// SynchronizeAsync starts Synchronize in the background and returns a handle
// to its outcome. Cancelling ctx does not stop the run.
func (o *Orchestrator) SynchronizeAsync(ctx context.Context, subjectID id.SubjectID) *Task {
	t := newTask(subjectID)
	detached := context.WithoutCancel(ctx)
	o.tasks.Add(1)
	go func() {
		defer o.tasks.Done()
		res, err := o.Synchronize(detached, subjectID)
		if err != nil {
			o.logger.WarnContext(detached, "background sync failed", "subject_id", subjectID, "error", err)
		}
		t.finish(res, err)
	}()
	return t
}

// Drain blocks until background runs started by SynchronizeAsync finish or
// ctx ends.
func (o *Orchestrator) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run executes one sync. It never panics: a panic anywhere in the pipeline
// becomes a failed run so the subject's slot is released.
func (o *Orchestrator) run(parent context.Context, subjectID id.SubjectID) (Result, error) {
	runID := o.newRunID()
	started := o.now()
	res := Result{SubjectID: subjectID, RunID: runID}

	ctx, cancel := context.WithTimeout(parent, o.runTimeout)
	defer cancel()
	ctx, span := o.tracer.Start(ctx, "sync.run", trace.WithAttributes(
		attribute.String("subject_id", subjectID.String()),
		attribute.String("run_id", runID),
	))
	defer span.End()

	o.metrics.RunStarted()
	defer o.metrics.RunFinished()
	defer func() { o.metrics.ObserveDuration(o.now().Sub(started)) }()

	prev, err := o.markRunning(ctx, subjectID, runID, started)
	if err != nil {
		o.metrics.IncrementRun(outcomeFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "mark running")
		res.Message = "failed to record sync start"
		return res, dErrors.Wrap(err, dErrors.CodeInternal, res.Message)
	}

	b, err := o.safePipeline(ctx, subjectID)
	if err != nil {
		outcome := outcomeFailed
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			outcome = outcomeNotFound
		}
		o.metrics.IncrementRun(outcome)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		o.markFailed(ctx, prev, runID, started, err)
		o.logger.WarnContext(ctx, "sync failed",
			"subject_id", subjectID, "run_id", runID, "error", err)
		res.Message = err.Error()
		return res, err
	}

	finished := o.now()
	o.markSucceeded(ctx, subjectID, runID, started, finished)

	res.Success = true
	res.Message = "sync completed"
	res.Publications = len(b.publications)
	res.Topics = len(b.topics)
	res.Affiliations = len(b.affiliations)
	res.Skipped = b.skipped
	res.SyncedAt = &finished

	if o.publisher != nil {
		o.publisher.Publish(models.ChangeEvent{
			SubjectID:  subjectID,
			UpdateType: models.UpdateSync,
			Timestamp:  finished,
		})
	}
	o.metrics.IncrementRun(outcomeSuccess)
	o.logger.InfoContext(ctx, "sync completed",
		"subject_id", subjectID,
		"run_id", runID,
		"publications", res.Publications,
		"topics", res.Topics,
		"affiliations", res.Affiliations,
		"skipped", res.Skipped,
		"duration", finished.Sub(started),
	)
	return res, nil
}

func (o *Orchestrator) safePipeline(ctx context.Context, subjectID id.SubjectID) (b batch, err error) {
	defer func() {
		if p := recover(); p != nil {
			o.logger.ErrorContext(ctx, "sync pipeline panicked",
				"subject_id", subjectID, "panic", p, "stack", string(debug.Stack()))
			err = dErrors.New(dErrors.CodeInternal, fmt.Sprintf("sync pipeline panicked: %v", p))
		}
	}()
	return o.pipeline(ctx, subjectID)
}

func (o *Orchestrator) pipeline(ctx context.Context, subjectID id.SubjectID) (batch, error) {
	author, works, err := o.fetch(ctx, subjectID)
	if err != nil {
		return batch{}, classifyFetchError(err)
	}

	b, err := o.normalize(subjectID, author, works)
	if err != nil {
		return batch{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to normalize source records")
	}

	if err := o.persist(ctx, subjectID, b); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return batch{}, dErrors.Wrap(err, dErrors.CodeTimeout, "sync timed out while persisting")
		}
		return batch{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist sync results")
	}
	return b, nil
}

// batch is the normalized output of one run.
type batch struct {
	stats        models.CachedStats
	topics       []models.Topic
	publications []models.Publication
	affiliations []models.Affiliation
	skipped      int
}

func (o *Orchestrator) normalize(subjectID id.SubjectID, author *source.AuthorRecord, works []source.WorkRecord) (batch, error) {
	pubs, skippedPubs := normalize.Publications(subjectID, works)
	topics, skippedTopics := normalize.Topics(subjectID, author.Topics)
	affs, skippedAffs := normalize.Affiliations(subjectID, author.Affiliations)

	o.metrics.AddSkipped("publications", skippedPubs)
	o.metrics.AddSkipped("topics", skippedTopics)
	o.metrics.AddSkipped("affiliations", skippedAffs)

	stats, err := normalize.RecordToStats(subjectID, author, pubs, o.now())
	if err != nil {
		return batch{}, err
	}
	return batch{
		stats:        stats,
		topics:       topics,
		publications: pubs,
		affiliations: affs,
		skipped:      skippedPubs + skippedTopics + skippedAffs,
	}, nil
}

// persist replaces stats, topics, publications and affiliations in that
// order.
func (o *Orchestrator) persist(ctx context.Context, subjectID id.SubjectID, b batch) error {
	ctx, span := o.tracer.Start(ctx, "sync.persist", trace.WithAttributes(
		attribute.String("persist_mode", string(o.persistMode)),
	))
	defer span.End()

	write := func(ctx context.Context) error {
		if err := o.cache.ReplaceStats(ctx, subjectID, b.stats); err != nil {
			return fmt.Errorf("replace stats: %w", err)
		}
		if err := o.cache.ReplaceAllTopics(ctx, subjectID, b.topics); err != nil {
			return fmt.Errorf("replace topics: %w", err)
		}
		if err := o.cache.ReplaceAllPublications(ctx, subjectID, b.publications); err != nil {
			return fmt.Errorf("replace publications: %w", err)
		}
		if err := o.cache.ReplaceAllAffiliations(ctx, subjectID, b.affiliations); err != nil {
			return fmt.Errorf("replace affiliations: %w", err)
		}
		return nil
	}

	var err error
	if o.persistMode == PersistSequential {
		err = write(ctx)
	} else {
		err = o.cache.RunInTx(ctx, write)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist")
	}
	return err
}

func classifyFetchError(err error) error {
	switch {
	case source.IsNotFound(err):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "subject not found upstream")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "sync timed out")
	case source.IsRetryable(err):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "upstream unavailable")
	case source.CategoryOf(err) != "":
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "upstream returned an unusable response")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "fetch failed")
	}
}
