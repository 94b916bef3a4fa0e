package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/communitygate/gatekeeper/internal/config"
	"github.com/communitygate/gatekeeper/internal/gatekeeper/service"
	"github.com/communitygate/gatekeeper/internal/gatekeeper/types"
	"github.com/communitygate/gatekeeper/internal/platform"
)

type Dependencies struct {
	Logger      *slog.Logger
	Addr        string
	Config      config.Config
	Issuer      *service.Issuer
	JoinService *service.JoinService
	Platform    platform.Client
}

type Server struct {
	httpServer  *http.Server
	logger      *slog.Logger
	cfg         config.Config
	issuer      *service.Issuer
	joinService *service.JoinService
	platform    platform.Client
}

func NewServer(d Dependencies) *Server {
	s := &Server{
		logger:      d.Logger,
		cfg:         d.Config,
		issuer:      d.Issuer,
		joinService: d.JoinService,
		platform:    d.Platform,
	}

	r := chi.NewRouter()
	r.Use(RequestLogger(d.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	secret := []byte(d.Config.CommandAuthSecret)
	r.Route("/v1", func(r chi.Router) {
		r.With(RequireScope(secret, CommandScope(d.Config.Identifier, "accept"))).
			Post("/commands/accept", s.handleAccept)
		r.With(RequireScope(secret, CommandScope(d.Config.Identifier, "deny"))).
			Post("/commands/deny", s.handleDeny)
		r.Post("/events/join-request", s.handleJoinRequest)
	})

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCommand(w, r)
	if !ok {
		return
	}

	rec, err := s.issuer.Accept(r.Context(), req.Platform, req.ApplicantID)
	if err != nil {
		s.logger.Error("accept command failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	ticketsIssued.WithLabelValues("accepted").Inc()

	msg := s.cfg.Messages.WithTicket(s.cfg.Messages.UserAccepted, rec.Ticket)
	if err := s.platform.SendMessage(r.Context(), s.cfg.StagingSpaceID, msg); err != nil {
		// The ticket is in the HTTP response either way; the staging
		// message is best effort.
		s.logger.Warn("staging message failed", slog.Any("error", err))
	}

	writeJSON(w, http.StatusOK, types.CommandResponse{
		OK:         true,
		Ticket:     rec.Ticket,
		Message:    msg,
		ServerTime: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleDeny(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCommand(w, r)
	if !ok {
		return
	}

	if _, err := s.issuer.Deny(r.Context(), req.Platform, req.ApplicantID); err != nil {
		s.logger.Error("deny command failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	ticketsIssued.WithLabelValues("denied").Inc()

	msg := s.cfg.Messages.UserDenied
	if err := s.platform.SendMessage(r.Context(), s.cfg.StagingSpaceID, msg); err != nil {
		s.logger.Warn("staging message failed", slog.Any("error", err))
	}

	writeJSON(w, http.StatusOK, types.CommandResponse{
		OK:         true,
		Message:    msg,
		ServerTime: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// decodeCommand parses a command body and enforces the locality check:
// commands are only honored from the configured platform and staging
// space.
func (s *Server) decodeCommand(w http.ResponseWriter, r *http.Request) (types.CommandRequest, bool) {
	var req types.CommandRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return req, false
	}
	if req.ApplicantID == "" {
		writeError(w, http.StatusBadRequest, "invalid_applicant", "applicant_id is required")
		return req, false
	}
	if req.Platform != s.cfg.Platform || req.SpaceID != s.cfg.StagingSpaceID {
		writeError(w, http.StatusForbidden, "wrong_space", "command not issued from the staging space")
		return req, false
	}

	return req, true
}

func (s *Server) handleJoinRequest(w http.ResponseWriter, r *http.Request) {
	var ev types.JoinRequestEvent
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	if ev.ApplicantID == "" || ev.RequestID == "" {
		writeError(w, http.StatusBadRequest, "invalid_event", "applicant_id and request_id are required")
		return
	}
	if ev.Platform != s.cfg.Platform || ev.SpaceID != s.cfg.DestinationSpaceID {
		writeError(w, http.StatusForbidden, "wrong_space", "event is not for the gated space")
		return
	}

	resp, report, err := s.joinService.HandleJoinRequest(r.Context(), ev)
	if err != nil {
		s.logger.Error("join request failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	if resp.Admitted {
		joinEvaluations.WithLabelValues("admitted").Inc()
		reconciliations.WithLabelValues(reconcileOutcome(report)).Inc()
	} else {
		joinEvaluations.WithLabelValues(resp.Reason).Inc()
	}

	writeJSON(w, http.StatusOK, resp)
}

func reconcileOutcome(report service.ReconcileReport) string {
	switch {
	case report.AdmitFailed:
		return "admit_failed"
	case report.MembershipCheckErr != nil:
		return "check_failed"
	case !report.Joined:
		return "join_failed"
	case report.RemovedFromStaging:
		return "removed_from_staging"
	default:
		return "joined"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	OK      bool   `json:"ok"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{OK: false, Code: code, Message: message})
}
