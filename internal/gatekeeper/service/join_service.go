package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/communitygate/gatekeeper/internal/config"
	"github.com/communitygate/gatekeeper/internal/gatekeeper/types"
	"github.com/communitygate/gatekeeper/internal/platform"
)

// JoinService ties the evaluator, the platform callback, and the
// reconciler together for one inbound join request.
type JoinService struct {
	evaluator  *Evaluator
	reconciler *Reconciler
	platform   platform.Client
	cfg        config.Config
	logger     *slog.Logger
}

func NewJoinService(ev *Evaluator, rec *Reconciler, pc platform.Client, cfg config.Config, logger *slog.Logger) *JoinService {
	return &JoinService{
		evaluator:  ev,
		reconciler: rec,
		platform:   pc,
		cfg:        cfg,
		logger:     logger,
	}
}

// ReasonText maps a rejection reason to its configured user-facing
// message.  Every rejection carries one; none is ever dropped.
func (s *JoinService) ReasonText(reason Reason) string {
	switch reason {
	case ReasonInCooldown:
		return s.cfg.Messages.InCooldown
	case ReasonExpiredTicket:
		return s.cfg.Messages.ExpiredTicket
	case ReasonInvalidTicket:
		return s.cfg.Messages.InvalidTicket
	default:
		return s.cfg.Messages.NoRecord
	}
}

// HandleJoinRequest evaluates the request, answers the platform, and on
// admit runs post-admission reconciliation.  The returned report is
// zero-valued for rejections.
func (s *JoinService) HandleJoinRequest(ctx context.Context, ev types.JoinRequestEvent) (types.JoinResponse, ReconcileReport, error) {
	verdict, err := s.evaluator.Evaluate(ctx, ev.Platform, ev.ApplicantID, ev.Text)
	if err != nil {
		return types.JoinResponse{}, ReconcileReport{}, err
	}

	resp := types.JoinResponse{
		OK:         true,
		Admitted:   verdict.Admit,
		ServerTime: time.Now().UTC().Format(time.RFC3339Nano),
	}

	if !verdict.Admit {
		resp.Reason = string(verdict.Reason)
		resp.ReasonText = s.ReasonText(verdict.Reason)

		if err := s.platform.RespondJoinRequest(ctx, ev.RequestID, false, resp.ReasonText); err != nil {
			return types.JoinResponse{}, ReconcileReport{}, fmt.Errorf("reject join request: %w", err)
		}
		return resp, ReconcileReport{}, nil
	}

	// The records are already consumed; whatever happens to the admit
	// action from here on is the reconciler's problem, not a rollback.
	admitErr := s.platform.RespondJoinRequest(ctx, ev.RequestID, true, "")
	report := s.reconciler.Reconcile(ctx, ev.Platform, ev.ApplicantID, admitErr)

	if admitErr != nil {
		s.logger.Error("admission action failed",
			slog.String("applicant", QualifiedID(ev.Platform, ev.ApplicantID)),
			slog.Any("error", admitErr),
		)
	}

	return resp, report, nil
}
