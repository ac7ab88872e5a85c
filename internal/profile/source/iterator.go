package source

import (
	"context"

	id "showcase/pkg/domain"
)

// WorksFetcher fetches one works page.
type WorksFetcher interface {
	FetchWorks(ctx context.Context, subjectID id.SubjectID, page, pageSize int) (*WorksPage, error)
}

// WorksIterator walks works pages forward. It stops on an empty page, once
// the upstream count is covered, or at the page cap. A failed Next can be
// called again and retries the same page.
type WorksIterator struct {
	fetcher   WorksFetcher
	subjectID id.SubjectID
	pageSize  int
	maxPages  int
	page      int
	done      bool
}

// NewWorksIterator creates an iterator. maxPages <= 0 means no cap.
func NewWorksIterator(f WorksFetcher, subjectID id.SubjectID, pageSize, maxPages int) *WorksIterator {
	if pageSize <= 0 {
		pageSize = 200
	}
	return &WorksIterator{fetcher: f, subjectID: subjectID, pageSize: pageSize, maxPages: maxPages}
}

// Next returns the next non-empty page, or ok=false when the sequence is
// exhausted.
func (it *WorksIterator) Next(ctx context.Context) (page *WorksPage, ok bool, err error) {
	if it.done {
		return nil, false, nil
	}
	if it.maxPages > 0 && it.page >= it.maxPages {
		it.done = true
		return nil, false, nil
	}

	next := it.page + 1
	page, err = it.fetcher.FetchWorks(ctx, it.subjectID, next, it.pageSize)
	if err != nil {
		return nil, false, err
	}
	it.page = next

	if len(page.Results) == 0 {
		it.done = true
		return nil, false, nil
	}
	if page.Meta.Count > 0 && it.page*it.pageSize >= page.Meta.Count {
		it.done = true
	}
	return page, true, nil
}

// Page returns the number of pages fetched so far.
func (it *WorksIterator) Page() int {
	return it.page
}
