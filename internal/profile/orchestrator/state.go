package orchestrator

import (
	"context"
	"time"

	"showcase/internal/profile/models"
	id "showcase/pkg/domain"
)

// markRunning moves the subject to Running and returns the state it left.
func (o *Orchestrator) markRunning(ctx context.Context, subjectID id.SubjectID, runID string, started time.Time) (models.SyncState, error) {
	prev, err := o.states.GetSyncState(ctx, subjectID)
	if err != nil {
		return models.SyncState{}, err
	}
	running := prev
	running.SubjectID = subjectID
	running.Status = models.SyncStatusRunning
	running.LastAttemptAt = &started
	running.RunID = runID
	if err := o.states.SaveSyncState(ctx, running); err != nil {
		return models.SyncState{}, err
	}
	return prev, nil
}

// markSucceeded moves the subject to Idle with a fresh LastSyncedAt.
func (o *Orchestrator) markSucceeded(ctx context.Context, subjectID id.SubjectID, runID string, started, finished time.Time) {
	o.saveState(ctx, models.SyncState{
		SubjectID:     subjectID,
		Status:        models.SyncStatusIdle,
		LastSyncedAt:  &finished,
		LastAttemptAt: &started,
		RunID:         runID,
	})
}

// markFailed moves the subject to Failed. LastSyncedAt keeps its previous
// value: the cache still holds the last good sync.
func (o *Orchestrator) markFailed(ctx context.Context, prev models.SyncState, runID string, started time.Time, cause error) {
	o.saveState(ctx, models.SyncState{
		SubjectID:     prev.SubjectID,
		Status:        models.SyncStatusFailed,
		LastSyncedAt:  prev.LastSyncedAt,
		LastAttemptAt: &started,
		LastError:     cause.Error(),
		RunID:         runID,
	})
}

// saveState writes on a context of its own so an expired run still records
// how it ended.
func (o *Orchestrator) saveState(ctx context.Context, st models.SyncState) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stateWriteTimeout)
	defer cancel()
	if err := o.states.SaveSyncState(ctx, st); err != nil {
		o.logger.ErrorContext(ctx, "failed to save sync state",
			"subject_id", st.SubjectID, "status", st.Status, "error", err)
	}
}
