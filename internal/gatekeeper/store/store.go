package store

import (
	"context"
	"time"
)

// Decision is the moderator verdict carried by an admission record.
type Decision string

const (
	DecisionAccepted Decision = "accepted"
	DecisionDenied   Decision = "denied"
)

// AdmissionRecord is one moderator decision about one applicant.
//
// Records are append-only: superseded or consumed records are flagged
// Invalidated rather than deleted, so the full decision history stays
// available for audit.
type AdmissionRecord struct {
	// ID is assigned by the store on insert and is strictly increasing.
	// The evaluator resolves ties between active records by highest ID,
	// never by timestamp.
	ID          int64
	Identifier  string // gatekeeper instance scope; empty in single-tenant deployments
	ApplicantID string // platform-qualified, e.g. "onebot:12345"
	CreatedAt   time.Time
	ExpiresAt   time.Time // ticket validity deadline (accept) or cooldown end (deny)
	Ticket      string    // empty when the decision is a deny
	Decision    Decision
	Invalidated bool
}

// RecordStore persists admission records.  No ordering guarantee is made
// for GetActiveRecords; callers order by ID themselves.
type RecordStore interface {
	// GetActiveRecords returns the applicant's records with
	// invalidated=false, scoped to the given identifier.
	GetActiveRecords(ctx context.Context, identifier, applicantID string) ([]AdmissionRecord, error)

	// Insert stores a new record and returns its assigned ID.
	Insert(ctx context.Context, rec AdmissionRecord) (int64, error)

	// InvalidateAll flags the given records invalidated.  Idempotent;
	// already-invalidated IDs are fine, unknown IDs are ignored.
	InvalidateAll(ctx context.Context, ids []int64) error

	// PruneInvalidatedBefore deletes invalidated records created before
	// the cutoff.  Active records are never touched.  Returns the number
	// of rows deleted.
	PruneInvalidatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
