package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/communitygate/gatekeeper/internal/config"
	"github.com/communitygate/gatekeeper/internal/gatekeeper/store"
	"github.com/communitygate/gatekeeper/internal/platform"
)

// ReconcileReport records the outcome of each post-admission step so
// every intermediate failure mode is inspectable.  Reconciliation never
// rolls back the admit decision: the consumed records stay consumed and
// a human follow-up is the mitigation for anything that went sideways.
type ReconcileReport struct {
	// AdmitFailed is set when the platform's admission action itself
	// errored; the error text is forwarded to moderators.
	AdmitFailed bool

	// InvalidatedIDs are records flagged in the belt-and-suspenders
	// sweep (normally empty — the evaluator already consumed them).
	InvalidatedIDs []int64

	// Joined reports whether the applicant is a confirmed member of the
	// destination space.
	Joined bool

	// MembershipCheckErr is a lookup failure, distinct from "not a
	// member".
	MembershipCheckErr error

	// RemovedFromStaging is set when the applicant was kicked from the
	// staging space after a confirmed join.
	RemovedFromStaging bool
	RemoveErr          error

	// NotifiedModerators is set when a moderator-facing message was
	// sent (join failure, admit failure, or lookup failure).
	NotifiedModerators bool
	NotifyErr          error
}

// Reconciler converts the uncertain outcome of an external admission
// action into a deterministic follow-up: confirm the applicant actually
// landed in the destination space, then either clean up the staging
// space or tell a moderator to intervene.
type Reconciler struct {
	store    store.RecordStore
	platform platform.Client
	cfg      config.Config
	logger   *slog.Logger
}

func NewReconciler(st store.RecordStore, pc platform.Client, cfg config.Config, logger *slog.Logger) *Reconciler {
	return &Reconciler{store: st, platform: pc, cfg: cfg, logger: logger}
}

// Reconcile runs after the evaluator admitted the applicant and the
// platform was asked to let them in.  admitErr is the settled outcome
// of that action: nil on success, the failure otherwise.
func (r *Reconciler) Reconcile(ctx context.Context, pform, userID string, admitErr error) ReconcileReport {
	var report ReconcileReport
	applicantID := QualifiedID(pform, userID)

	if admitErr != nil {
		// The admission action failed outright.  Forward the error text
		// rather than suppressing it; there is nothing to verify.
		report.AdmitFailed = true
		r.notify(ctx, &report,
			fmt.Sprintf("Admission of %s failed: %v", applicantID, admitErr))
		return report
	}

	// Belt and suspenders: the evaluator invalidated the consumed
	// records already, but a racing decision may have left stragglers.
	records, err := r.store.GetActiveRecords(ctx, r.cfg.Identifier, applicantID)
	if err != nil {
		r.logger.Error("reconcile: fetch records", slog.String("applicant", applicantID), slog.Any("error", err))
	} else if len(records) > 0 {
		ids := make([]int64, len(records))
		for n, rec := range records {
			ids[n] = rec.ID
		}
		if err := r.store.InvalidateAll(ctx, ids); err != nil {
			r.logger.Error("reconcile: invalidate records", slog.String("applicant", applicantID), slog.Any("error", err))
		} else {
			report.InvalidatedIDs = ids
		}
	}

	_, err = r.platform.GetMember(ctx, r.cfg.DestinationSpaceID, userID)
	switch {
	case err == nil:
		report.Joined = true
	case errors.Is(err, platform.ErrNotMember):
		// Race or platform failure: the admit settled but the applicant
		// never landed.  Leave them in staging and flag a human.
		r.notify(ctx, &report, r.cfg.Messages.WithUser(r.cfg.Messages.JoinFailed, userID))
		r.logger.Warn("admitted applicant not found in destination space",
			slog.String("applicant", applicantID),
			slog.String("space", r.cfg.DestinationSpaceID),
		)
		return report
	default:
		report.MembershipCheckErr = err
		r.notify(ctx, &report,
			fmt.Sprintf("Could not verify membership of %s: %v", applicantID, err))
		return report
	}

	if !r.cfg.RemoveAfterAccepted {
		return report
	}

	if err := r.platform.RemoveMember(ctx, r.cfg.StagingSpaceID, userID); err != nil {
		report.RemoveErr = err
		r.notify(ctx, &report,
			fmt.Sprintf("Could not remove %s from the staging space: %v", applicantID, err))
		return report
	}

	report.RemovedFromStaging = true
	r.logger.Info("removed applicant from staging space",
		slog.String("applicant", applicantID),
		slog.String("space", r.cfg.StagingSpaceID),
	)
	return report
}

func (r *Reconciler) notify(ctx context.Context, report *ReconcileReport, text string) {
	if err := r.platform.SendMessage(ctx, r.cfg.StagingSpaceID, text); err != nil {
		report.NotifyErr = err
		r.logger.Error("moderator notification failed", slog.Any("error", err))
		return
	}
	report.NotifiedModerators = true
}
