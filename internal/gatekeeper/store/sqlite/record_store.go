package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/communitygate/gatekeeper/internal/db"
	"github.com/communitygate/gatekeeper/internal/gatekeeper/store"
)

type RecordStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewRecordStore(db *sql.DB, writer *dbpkg.Worker) *RecordStore {
	return &RecordStore{db: db, writer: writer}
}

func (s *RecordStore) GetActiveRecords(ctx context.Context, identifier, applicantID string) ([]store.AdmissionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, identifier, applicant_id, created_at_ms, expires_at_ms,
       ticket, decision, invalidated
FROM admission_records
WHERE identifier = ? AND applicant_id = ? AND invalidated = 0;
`, identifier, applicantID)
	if err != nil {
		return nil, fmt.Errorf("GetActiveRecords query: %w", err)
	}
	defer rows.Close()

	var out []store.AdmissionRecord
	for rows.Next() {
		var (
			rec         store.AdmissionRecord
			createdMs   int64
			expiresMs   int64
			ticket      sql.NullString
			decision    string
			invalidated int
		)
		if err := rows.Scan(
			&rec.ID, &rec.Identifier, &rec.ApplicantID, &createdMs, &expiresMs,
			&ticket, &decision, &invalidated,
		); err != nil {
			return nil, fmt.Errorf("GetActiveRecords scan: %w", err)
		}

		rec.CreatedAt = time.UnixMilli(createdMs).UTC()
		rec.ExpiresAt = time.UnixMilli(expiresMs).UTC()
		if ticket.Valid {
			rec.Ticket = ticket.String
		}
		rec.Decision = store.Decision(decision)
		rec.Invalidated = invalidated == 1
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetActiveRecords rows: %w", err)
	}

	return out, nil
}

func (s *RecordStore) Insert(ctx context.Context, rec store.AdmissionRecord) (int64, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	// Denied records carry no ticket; store NULL rather than "".
	var ticket any
	if rec.Ticket != "" {
		ticket = rec.Ticket
	}

	var invalidated int
	if rec.Invalidated {
		invalidated = 1
	}

	var id int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO admission_records(
  identifier, applicant_id, created_at_ms, expires_at_ms,
  ticket, decision, invalidated
) VALUES (?, ?, ?, ?, ?, ?, ?);
`,
			rec.Identifier, rec.ApplicantID,
			rec.CreatedAt.UTC().UnixMilli(), rec.ExpiresAt.UTC().UnixMilli(),
			ticket, string(rec.Decision), invalidated,
		)
		if err != nil {
			return fmt.Errorf("Insert: %w", err)
		}

		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("Insert id: %w", err)
		}
		return nil
	})
	return id, err
}

// PruneInvalidatedBefore deletes invalidated rows created before the
// cutoff.  Uses the active-set index only indirectly; this runs on a
// slow periodic schedule so a table scan is acceptable.
func (s *RecordStore) PruneInvalidatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffMs := cutoff.UTC().UnixMilli()

	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM admission_records
WHERE invalidated = 1 AND created_at_ms < ?;
`, cutoffMs)
		if err != nil {
			return fmt.Errorf("PruneInvalidatedBefore: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}

func (s *RecordStore) InvalidateAll(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE admission_records SET invalidated = 1 WHERE id IN (`+placeholders+`);`,
			args...,
		); err != nil {
			return fmt.Errorf("InvalidateAll: %w", err)
		}
		return nil
	})
}
