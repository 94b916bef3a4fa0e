package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/communitygate/gatekeeper/internal/config"
	"github.com/communitygate/gatekeeper/internal/gatekeeper/store"
)

// Reason classifies why a join request was rejected.
type Reason string

const (
	ReasonNoRecord      Reason = "no_record"
	ReasonInCooldown    Reason = "in_cooldown"
	ReasonExpiredTicket Reason = "expired_ticket"
	ReasonInvalidTicket Reason = "invalid_ticket"
)

// Verdict is the outcome of evaluating a join request.  Reason is empty
// when Admit is true.
type Verdict struct {
	Admit  bool
	Reason Reason
}

// Evaluator decides whether a join request is admitted based on the
// applicant's active admission records.  It mutates only the record
// store (invalidation) and never talks to the platform; answering the
// applicant is the caller's job.
type Evaluator struct {
	store  store.RecordStore
	cfg    config.Config
	logger *slog.Logger

	now func() time.Time
}

func NewEvaluator(st store.RecordStore, cfg config.Config, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		store:  st,
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate runs the admission state machine for one join request.
// submittedText is the literal request message; the ticket only has to
// appear somewhere inside it.  Substring matching is deliberate — some
// chat clients wrap the ticket in extra text — and stays even though a
// ticket could in theory false-positive inside a longer token.
func (e *Evaluator) Evaluate(ctx context.Context, platform, userID, submittedText string) (Verdict, error) {
	applicantID := QualifiedID(platform, userID)

	records, err := e.store.GetActiveRecords(ctx, e.cfg.Identifier, applicantID)
	if err != nil {
		return Verdict{}, fmt.Errorf("fetch active records: %w", err)
	}

	if len(records) == 0 {
		e.logRejection(applicantID, "no records on file")
		return Verdict{Reason: ReasonNoRecord}, nil
	}

	// Latest decision wins: single reduction by highest ID.  IDs are
	// strictly increasing, so this is a total order; timestamps are
	// never consulted for tie-breaking.
	latest := records[0]
	for _, rec := range records[1:] {
		if rec.ID > latest.ID {
			latest = rec
		}
	}

	now := e.now()

	if latest.Decision == store.DecisionDenied {
		if now.Before(latest.ExpiresAt) {
			e.logRejection(applicantID, "in deny cooldown")
			return Verdict{Reason: ReasonInCooldown}, nil
		}

		// Cooldown lapsed: the applicant must re-apply, and the stale
		// deny records are garbage-collected.  Only the latest record's
		// expiry gates this branch, but the whole fetched set is
		// invalidated with it.
		if err := e.invalidate(ctx, records); err != nil {
			return Verdict{}, err
		}
		e.logRejection(applicantID, "deny cooldown lapsed, records invalidated")
		return Verdict{Reason: ReasonNoRecord}, nil
	}

	// Accepted: the ticket must still be within its validity window.
	// The expired record stays active so moderators can still see it.
	if now.After(latest.ExpiresAt) {
		e.logRejection(applicantID, "expired ticket")
		return Verdict{Reason: ReasonExpiredTicket}, nil
	}

	if !strings.Contains(submittedText, latest.Ticket) {
		e.logRejection(applicantID, "invalid ticket")
		return Verdict{Reason: ReasonInvalidTicket}, nil
	}

	// Ticket consumed: single use, so the whole fetched set goes.
	if err := e.invalidate(ctx, records); err != nil {
		return Verdict{}, err
	}

	e.logger.Info("admitting applicant",
		slog.String("applicant", applicantID),
		slog.String("space", e.cfg.DestinationSpaceID),
	)

	return Verdict{Admit: true}, nil
}

func (e *Evaluator) invalidate(ctx context.Context, records []store.AdmissionRecord) error {
	ids := make([]int64, len(records))
	for n, rec := range records {
		ids[n] = rec.ID
	}
	if err := e.store.InvalidateAll(ctx, ids); err != nil {
		return fmt.Errorf("invalidate records: %w", err)
	}
	return nil
}

func (e *Evaluator) logRejection(applicantID, detail string) {
	e.logger.Info("rejecting applicant",
		slog.String("applicant", applicantID),
		slog.String("space", e.cfg.DestinationSpaceID),
		slog.String("detail", detail),
	)
}
