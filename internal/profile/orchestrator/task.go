package orchestrator

import (
	"context"

	id "showcase/pkg/domain"
)

// Task is the handle of a background sync.
type Task struct {
	subjectID id.SubjectID
	done      chan struct{}
	result    Result
	err       error
}

func newTask(subjectID id.SubjectID) *Task {
	return &Task{subjectID: subjectID, done: make(chan struct{})}
}

func (t *Task) finish(res Result, err error) {
	t.result, t.err = res, err
	close(t.done)
}

// SubjectID returns the subject being synchronized.
func (t *Task) SubjectID() id.SubjectID {
	return t.subjectID
}

// Done is closed once the run has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the run finishes or ctx ends. Giving up on the wait does
// not stop the run.
func (t *Task) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return Result{SubjectID: t.subjectID}, ctx.Err()
	}
}
