package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"showcase/internal/profile/models"
	id "showcase/pkg/domain"
	"showcase/pkg/platform/sentinel"
)

// SQLSyncStateStore persists sync state in the sync_state table.
type SQLSyncStateStore struct {
	conn
}

func NewSQLSyncStateStore(db *sql.DB, dialect Dialect) *SQLSyncStateStore {
	return &SQLSyncStateStore{conn: conn{db: db, dialect: dialect}}
}

func (s *SQLSyncStateStore) GetSyncState(ctx context.Context, subjectID id.SubjectID) (models.SyncState, error) {
	st := models.SyncState{SubjectID: subjectID}
	var (
		status                string
		lastSynced, attempted dbTime
	)
	err := s.execer(ctx).QueryRowContext(ctx, s.rebind(
		`SELECT status, last_synced_at, last_attempt_at, last_error, run_id
		 FROM sync_state WHERE subject_id = ?`), subjectID.String()).
		Scan(&status, &lastSynced, &attempted, &st.LastError, &st.RunID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.NewSyncState(subjectID), nil
		}
		return models.SyncState{}, fmt.Errorf("get sync state: %w", err)
	}
	st.Status = models.SyncStatus(status)
	st.LastSyncedAt = lastSynced.ptr()
	st.LastAttemptAt = attempted.ptr()
	return st, nil
}

func (s *SQLSyncStateStore) SaveSyncState(ctx context.Context, st models.SyncState) error {
	_, err := s.execer(ctx).ExecContext(ctx, s.rebind(
		`INSERT INTO sync_state (subject_id, status, last_synced_at, last_attempt_at, last_error, run_id)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (subject_id) DO UPDATE SET
		   status = excluded.status,
		   last_synced_at = excluded.last_synced_at,
		   last_attempt_at = excluded.last_attempt_at,
		   last_error = excluded.last_error,
		   run_id = excluded.run_id`),
		st.SubjectID.String(), string(st.Status), s.nullTimeArg(st.LastSyncedAt), s.nullTimeArg(st.LastAttemptAt),
		st.LastError, st.RunID)
	if err != nil {
		return fmt.Errorf("save sync state: %w", err)
	}
	return nil
}

// SQLProfileStore persists edited profiles in the profiles table.
type SQLProfileStore struct {
	conn
}

func NewSQLProfileStore(db *sql.DB, dialect Dialect) *SQLProfileStore {
	return &SQLProfileStore{conn: conn{db: db, dialect: dialect}}
}

func (s *SQLProfileStore) CreateProfile(ctx context.Context, p models.Profile) error {
	_, err := s.execer(ctx).ExecContext(ctx, s.rebind(
		`INSERT INTO profiles (subject_id, display_name, bio, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`),
		p.SubjectID.String(), p.DisplayName, p.Bio, s.timeArg(p.CreatedAt), s.timeArg(p.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func (s *SQLProfileStore) UpdateProfile(ctx context.Context, p models.Profile) error {
	res, err := s.execer(ctx).ExecContext(ctx, s.rebind(
		`UPDATE profiles SET display_name = ?, bio = ?, updated_at = ? WHERE subject_id = ?`),
		p.DisplayName, p.Bio, s.timeArg(p.UpdatedAt), p.SubjectID.String())
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *SQLProfileStore) GetProfile(ctx context.Context, subjectID id.SubjectID) (*models.Profile, error) {
	row := s.execer(ctx).QueryRowContext(ctx, s.rebind(
		`SELECT subject_id, display_name, bio, created_at, updated_at FROM profiles WHERE subject_id = ?`),
		subjectID.String())
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (s *SQLProfileStore) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT subject_id, display_name, bio, created_at, updated_at FROM profiles ORDER BY subject_id`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	out := []models.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	var (
		p                models.Profile
		subject          string
		created, updated dbTime
	)
	if err := row.Scan(&subject, &p.DisplayName, &p.Bio, &created, &updated); err != nil {
		return nil, err
	}
	p.SubjectID = id.SubjectID(subject)
	p.CreatedAt, p.UpdatedAt = created.Time, updated.Time
	return &p, nil
}
