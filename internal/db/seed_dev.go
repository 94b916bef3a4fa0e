package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type SeedDevOptions struct {
	// Identifier scopes the seeded record to a gatekeeper instance.
	// Empty matches single-tenant deployments.
	Identifier string
}

// SeedDev inserts one active accepted record with a fixed ticket so a local
// run can exercise the join flow without issuing a command first.
func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	now := time.Now().UTC()
	expires := now.Add(48 * time.Hour)

	var count int
	err := db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM admission_records
WHERE identifier = ? AND applicant_id = 'onebot:dev-applicant' AND invalidated = 0;
`, opt.Identifier).Scan(&count)
	if err != nil {
		return fmt.Errorf("seed check: %w", err)
	}
	if count > 0 {
		return nil
	}

	if _, err := db.ExecContext(ctx, `
INSERT INTO admission_records(
  identifier, applicant_id, created_at_ms, expires_at_ms,
  ticket, decision, invalidated
) VALUES (?, 'onebot:dev-applicant', ?, ?, 'devtick1', 'accepted', 0);
`, opt.Identifier, now.UnixMilli(), expires.UnixMilli()); err != nil {
		return fmt.Errorf("seed admission record: %w", err)
	}

	return nil
}
