package orchestrator

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"showcase/internal/profile/source"
	id "showcase/pkg/domain"
)

// fetch reads the author record and every works page. Each upstream call is
// retried on its own; a failed page is retried without refetching earlier
// pages.
func (o *Orchestrator) fetch(ctx context.Context, subjectID id.SubjectID) (*source.AuthorRecord, []source.WorkRecord, error) {
	ctx, span := o.tracer.Start(ctx, "sync.fetch")
	defer span.End()

	author, err := retry(ctx, o, "fetch_profile", func(ctx context.Context) (*source.AuthorRecord, error) {
		return o.source.FetchProfile(ctx, subjectID)
	})
	if err != nil {
		return nil, nil, err
	}
	if author == nil {
		return nil, nil, source.NewError(source.CategoryBadData, "fetch_profile", "empty author record", nil)
	}

	var works []source.WorkRecord
	salvaged := author.Salvaged
	it := source.NewWorksIterator(o.source, subjectID, o.pageSize, o.maxPages)
	for {
		page, err := retry(ctx, o, "fetch_works", func(ctx context.Context) (*source.WorksPage, error) {
			page, ok, err := it.Next(ctx)
			if err != nil || !ok {
				return nil, err
			}
			return page, nil
		})
		if err != nil {
			return nil, nil, err
		}
		if page == nil {
			break
		}
		works = append(works, page.Results...)
		salvaged += page.Salvaged
	}

	span.SetAttributes(
		attribute.Int("works.pages", it.Page()),
		attribute.Int("works.records", len(works)),
		attribute.Int("records.salvaged", salvaged),
	)
	if salvaged > 0 {
		o.logger.InfoContext(ctx, "salvaged malformed upstream records",
			"subject_id", subjectID, "count", salvaged)
	}
	return author, works, nil
}

// retry runs fn with exponential backoff while it fails with a retryable
// source error.
func retry[T any](ctx context.Context, o *Orchestrator, op string, fn func(context.Context) (T, error)) (T, error) {
	policy := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(o.retryInterval),
		backoff.WithMaxElapsedTime(0),
	)
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(o.retryAttempts)), ctx)

	operation := func() (T, error) {
		v, err := fn(ctx)
		if err != nil && !source.IsRetryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}
	notify := func(err error, wait time.Duration) {
		o.metrics.IncrementRetry(op)
		trace.SpanFromContext(ctx).AddEvent("retry", trace.WithAttributes(
			attribute.String("op", op),
			attribute.String("error", err.Error()),
		))
		o.logger.DebugContext(ctx, "retrying upstream call", "op", op, "wait", wait, "error", err)
	}
	return backoff.RetryNotifyWithData(operation, b, notify)
}
