package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"showcase/internal/profile/models"
	id "showcase/pkg/domain"
	"showcase/pkg/platform/sentinel"
)

// SQLStore persists the cache in Postgres or SQLite. Each ReplaceAll* runs a
// delete-then-insert scoped to one subject inside a transaction, so other
// subjects are never blocked and readers see only committed sets.
type SQLStore struct {
	conn
}

// NewSQLStore constructs a SQL-backed cache.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{conn: conn{db: db, dialect: dialect}}
}

// RunInTx runs fn in one transaction; replaces inside it commit together.
func (s *SQLStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.inTx(ctx, fn)
}

func (s *SQLStore) ReplaceStats(ctx context.Context, subjectID id.SubjectID, stats models.CachedStats) error {
	err := s.inTx(ctx, func(ctx context.Context) error {
		q := s.execer(ctx)
		if _, err := q.ExecContext(ctx, s.rebind(
			`DELETE FROM profile_stats WHERE subject_id = ? AND kind = ?`),
			subjectID.String(), string(stats.Kind)); err != nil {
			return err
		}
		_, err := q.ExecContext(ctx, s.rebind(
			`INSERT INTO profile_stats (subject_id, kind, data, last_updated) VALUES (?, ?, ?, ?)`),
			subjectID.String(), string(stats.Kind), string(stats.Data), s.timeArg(stats.LastUpdated))
		return err
	})
	if err != nil {
		return fmt.Errorf("replace stats: %w", err)
	}
	return nil
}

func (s *SQLStore) ReplaceAllTopics(ctx context.Context, subjectID id.SubjectID, topics []models.Topic) error {
	err := s.replaceAll(ctx, "topics", subjectID,
		`INSERT INTO topics (subject_id, topic_id, display_name, count, subfield, field, domain)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		len(topics), func(i int) []any {
			t := topics[i]
			return []any{subjectID.String(), t.TopicID, t.DisplayName, t.Count, t.Subfield, t.Field, t.Domain}
		})
	if err != nil {
		return fmt.Errorf("replace topics: %w", err)
	}
	return nil
}

func (s *SQLStore) ReplaceAllPublications(ctx context.Context, subjectID id.SubjectID, pubs []models.Publication) error {
	err := s.replaceAll(ctx, "publications", subjectID,
		`INSERT INTO publications (subject_id, work_id, title, doi, publication_year, publication_date,
		 cited_by_count, type, venue, is_open_access, oa_url, author_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		len(pubs), func(i int) []any {
			p := pubs[i]
			return []any{subjectID.String(), p.WorkID, p.Title, p.DOI, nullIntArg(p.Year), p.PublicationDate,
				p.CitedByCount, p.Type, p.Venue, p.IsOpenAccess, p.OAURL, p.AuthorCount}
		})
	if err != nil {
		return fmt.Errorf("replace publications: %w", err)
	}
	return nil
}

func (s *SQLStore) ReplaceAllAffiliations(ctx context.Context, subjectID id.SubjectID, affs []models.Affiliation) error {
	years := make([]string, len(affs))
	for i, a := range affs {
		raw, err := json.Marshal(nonNilInts(a.Years))
		if err != nil {
			return fmt.Errorf("encode affiliation years: %w", err)
		}
		years[i] = string(raw)
	}
	err := s.replaceAll(ctx, "affiliations", subjectID,
		`INSERT INTO affiliations (subject_id, institution_id, display_name, country_code, type, ror,
		 start_year, end_year, years)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		len(affs), func(i int) []any {
			a := affs[i]
			return []any{subjectID.String(), a.InstitutionID, a.DisplayName, a.CountryCode, a.Type, a.ROR,
				nullIntArg(a.StartYear), nullIntArg(a.EndYear), years[i]}
		})
	if err != nil {
		return fmt.Errorf("replace affiliations: %w", err)
	}
	return nil
}

// replaceAll deletes the subject's rows in table and inserts n new rows.
func (s *SQLStore) replaceAll(ctx context.Context, table string, subjectID id.SubjectID, insert string, n int, row func(i int) []any) error {
	return s.inTx(ctx, func(ctx context.Context) error {
		q := s.execer(ctx)
		if _, err := q.ExecContext(ctx, s.rebind(`DELETE FROM `+table+` WHERE subject_id = ?`), subjectID.String()); err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		stmt, err := q.PrepareContext(ctx, s.rebind(insert))
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i := 0; i < n; i++ {
			if _, err := stmt.ExecContext(ctx, row(i)...); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLStore) GetStats(ctx context.Context, subjectID id.SubjectID, kind models.StatsKind) (*models.CachedStats, error) {
	var (
		data    string
		updated dbTime
	)
	err := s.execer(ctx).QueryRowContext(ctx, s.rebind(
		`SELECT data, last_updated FROM profile_stats WHERE subject_id = ? AND kind = ?`),
		subjectID.String(), string(kind)).Scan(&data, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return &models.CachedStats{
		SubjectID:   subjectID,
		Kind:        kind,
		Data:        json.RawMessage(data),
		LastUpdated: updated.Time,
	}, nil
}

func (s *SQLStore) ListTopics(ctx context.Context, subjectID id.SubjectID) ([]models.Topic, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, s.rebind(
		`SELECT topic_id, display_name, count, subfield, field, domain
		 FROM topics WHERE subject_id = ?
		 ORDER BY count DESC, topic_id`), subjectID.String())
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close()

	out := []models.Topic{}
	for rows.Next() {
		t := models.Topic{SubjectID: subjectID}
		if err := rows.Scan(&t.TopicID, &t.DisplayName, &t.Count, &t.Subfield, &t.Field, &t.Domain); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return out, nil
}

func (s *SQLStore) ListPublications(ctx context.Context, subjectID id.SubjectID, limit int) ([]models.Publication, error) {
	query := `SELECT work_id, title, doi, publication_year, publication_date, cited_by_count,
		 type, venue, is_open_access, oa_url, author_count
		 FROM publications WHERE subject_id = ?
		 ORDER BY publication_year IS NULL, publication_year DESC, cited_by_count DESC, work_id`
	args := []any{subjectID.String()}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.execer(ctx).QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list publications: %w", err)
	}
	defer rows.Close()

	out := []models.Publication{}
	for rows.Next() {
		p := models.Publication{SubjectID: subjectID}
		var year sql.NullInt64
		if err := rows.Scan(&p.WorkID, &p.Title, &p.DOI, &year, &p.PublicationDate, &p.CitedByCount,
			&p.Type, &p.Venue, &p.IsOpenAccess, &p.OAURL, &p.AuthorCount); err != nil {
			return nil, fmt.Errorf("scan publication: %w", err)
		}
		p.Year = intPtr(year)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list publications: %w", err)
	}
	return out, nil
}

func (s *SQLStore) ListAffiliations(ctx context.Context, subjectID id.SubjectID) ([]models.Affiliation, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, s.rebind(
		`SELECT institution_id, display_name, country_code, type, ror, start_year, end_year, years
		 FROM affiliations WHERE subject_id = ?
		 ORDER BY start_year IS NULL, start_year DESC, institution_id`), subjectID.String())
	if err != nil {
		return nil, fmt.Errorf("list affiliations: %w", err)
	}
	defer rows.Close()

	out := []models.Affiliation{}
	for rows.Next() {
		a := models.Affiliation{SubjectID: subjectID}
		var (
			start, end sql.NullInt64
			years      string
		)
		if err := rows.Scan(&a.InstitutionID, &a.DisplayName, &a.CountryCode, &a.Type, &a.ROR,
			&start, &end, &years); err != nil {
			return nil, fmt.Errorf("scan affiliation: %w", err)
		}
		if err := json.Unmarshal([]byte(years), &a.Years); err != nil {
			return nil, fmt.Errorf("decode affiliation years: %w", err)
		}
		a.StartYear, a.EndYear = intPtr(start), intPtr(end)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list affiliations: %w", err)
	}
	return out, nil
}

func nonNilInts(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}
