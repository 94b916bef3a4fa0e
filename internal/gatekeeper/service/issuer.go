package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/communitygate/gatekeeper/internal/config"
	"github.com/communitygate/gatekeeper/internal/gatekeeper/store"
)

// QualifiedID builds the platform-qualified applicant identity used as
// the record key, e.g. "onebot:12345".
func QualifiedID(platform, userID string) string {
	return platform + ":" + userID
}

// Issuer writes admission records in response to moderator decisions.
// Both Accept and Deny unconditionally supersede any prior active
// records for the applicant before inserting the new one, so repeating
// a decision simply overrides the previous outcome.
type Issuer struct {
	store  store.RecordStore
	cfg    config.Config
	logger *slog.Logger

	now       func() time.Time
	newTicket func() (string, error)
}

func NewIssuer(st store.RecordStore, cfg config.Config, logger *slog.Logger) *Issuer {
	return &Issuer{
		store:     st,
		cfg:       cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		newTicket: NewTicket,
	}
}

// Accept supersedes the applicant's prior records and issues a fresh
// ticket valid for the configured window.  The returned record carries
// the ticket for delivery to the moderator.
func (i *Issuer) Accept(ctx context.Context, platform, userID string) (store.AdmissionRecord, error) {
	applicantID := QualifiedID(platform, userID)

	if err := i.invalidatePrior(ctx, applicantID); err != nil {
		return store.AdmissionRecord{}, err
	}

	ticket, err := i.newTicket()
	if err != nil {
		return store.AdmissionRecord{}, err
	}

	now := i.now()
	rec := store.AdmissionRecord{
		Identifier:  i.cfg.Identifier,
		ApplicantID: applicantID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(i.cfg.ValidFor),
		Ticket:      ticket,
		Decision:    store.DecisionAccepted,
	}

	id, err := i.store.Insert(ctx, rec)
	if err != nil {
		return store.AdmissionRecord{}, fmt.Errorf("insert accept record: %w", err)
	}
	rec.ID = id

	i.logger.Info("ticket issued",
		slog.String("applicant", applicantID),
		slog.Time("expires_at", rec.ExpiresAt),
	)

	return rec, nil
}

// Deny supersedes the applicant's prior records and starts the
// configured cooldown before they may be reconsidered.
func (i *Issuer) Deny(ctx context.Context, platform, userID string) (store.AdmissionRecord, error) {
	applicantID := QualifiedID(platform, userID)

	if err := i.invalidatePrior(ctx, applicantID); err != nil {
		return store.AdmissionRecord{}, err
	}

	now := i.now()
	rec := store.AdmissionRecord{
		Identifier:  i.cfg.Identifier,
		ApplicantID: applicantID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(i.cfg.DenyCooldown),
		Decision:    store.DecisionDenied,
	}

	id, err := i.store.Insert(ctx, rec)
	if err != nil {
		return store.AdmissionRecord{}, fmt.Errorf("insert deny record: %w", err)
	}
	rec.ID = id

	i.logger.Info("applicant denied",
		slog.String("applicant", applicantID),
		slog.Time("cooldown_until", rec.ExpiresAt),
	)

	return rec, nil
}

func (i *Issuer) invalidatePrior(ctx context.Context, applicantID string) error {
	records, err := i.store.GetActiveRecords(ctx, i.cfg.Identifier, applicantID)
	if err != nil {
		return fmt.Errorf("fetch prior records: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	ids := make([]int64, len(records))
	for n, rec := range records {
		ids[n] = rec.ID
	}
	if err := i.store.InvalidateAll(ctx, ids); err != nil {
		return fmt.Errorf("invalidate prior records: %w", err)
	}
	return nil
}
