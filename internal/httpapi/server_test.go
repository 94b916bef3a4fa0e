package httpapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/communitygate/gatekeeper/internal/config"
	"github.com/communitygate/gatekeeper/internal/gatekeeper/service"
	"github.com/communitygate/gatekeeper/internal/gatekeeper/store/memory"
	"github.com/communitygate/gatekeeper/internal/gatekeeper/types"
	"github.com/communitygate/gatekeeper/internal/httpapi"
	"github.com/communitygate/gatekeeper/internal/platform"
)

const testSecret = "test-secret"

func testServerConfig() config.Config {
	return config.Config{
		Platform:           "onebot",
		StagingSpaceID:     "staging-1",
		DestinationSpaceID: "dest-1",
		ValidFor:           48 * time.Hour,
		DenyCooldown:       365 * 24 * time.Hour,
		CommandAuthSecret:  testSecret,
		Messages: config.Messages{
			UserAccepted:  "Approved. Ticket: {ticket}",
			UserDenied:    "Not approved.",
			InCooldown:    "Cooldown in effect.",
			NoRecord:      "No record on file.",
			InvalidTicket: "Invalid ticket.",
			ExpiredTicket: "Expired ticket.",
			JoinFailed:    "Member {user} failed to join.",
		},
	}
}

// newTestServer wires a server against in-memory collaborators and
// returns it with the record store and platform fake for inspection.
func newTestServer(t *testing.T, cfg config.Config) (*httpapi.Server, *memory.RecordStore, *platform.Fake) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := memory.NewRecordStore()
	fake := platform.NewFake()

	issuer := service.NewIssuer(st, cfg, logger)
	evaluator := service.NewEvaluator(st, cfg, logger)
	reconciler := service.NewReconciler(st, fake, cfg, logger)
	joinService := service.NewJoinService(evaluator, reconciler, fake, cfg, logger)

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:      logger,
		Addr:        ":0",
		Config:      cfg,
		Issuer:      issuer,
		JoinService: joinService,
		Platform:    fake,
	})
	return srv, st, fake
}

func signToken(t *testing.T, scope string) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "mod-1",
		"scope": scope,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func doJSON(t *testing.T, srv *httpapi.Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func stagingCommand(applicant string) types.CommandRequest {
	return types.CommandRequest{Platform: "onebot", SpaceID: "staging-1", ApplicantID: applicant}
}

func TestAcceptCommand_IssuesTicket(t *testing.T) {
	srv, st, fake := newTestServer(t, testServerConfig())
	token := signToken(t, "gatekeeper.accept")

	rec := doJSON(t, srv, http.MethodPost, "/v1/commands/accept", token, stagingCommand("alice"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp types.CommandResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Ticket) != service.TicketLength {
		t.Errorf("expected %d-char ticket, got %q", service.TicketLength, resp.Ticket)
	}
	if !strings.Contains(resp.Message, resp.Ticket) {
		t.Errorf("expected ticket substituted into message, got %q", resp.Message)
	}

	// The templated message goes to the staging space.
	if len(fake.Messages) != 1 || fake.Messages[0].SpaceID != "staging-1" {
		t.Fatalf("expected one staging message, got %+v", fake.Messages)
	}
	if !strings.Contains(fake.Messages[0].Text, resp.Ticket) {
		t.Errorf("staging message must carry the ticket, got %q", fake.Messages[0].Text)
	}

	records := st.All()
	if len(records) != 1 || records[0].Ticket != resp.Ticket {
		t.Errorf("expected one record with the issued ticket, got %+v", records)
	}
}

func TestAcceptCommand_MissingToken(t *testing.T) {
	srv, _, _ := newTestServer(t, testServerConfig())

	rec := doJSON(t, srv, http.MethodPost, "/v1/commands/accept", "", stagingCommand("alice"))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestAcceptCommand_WrongScope(t *testing.T) {
	srv, _, _ := newTestServer(t, testServerConfig())
	token := signToken(t, "gatekeeper.deny")

	rec := doJSON(t, srv, http.MethodPost, "/v1/commands/accept", token, stagingCommand("alice"))
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestAcceptCommand_BadSignature(t *testing.T) {
	srv, _, _ := newTestServer(t, testServerConfig())

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"scope": "gatekeeper.accept",
	})
	forged, err := token.SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	rec := doJSON(t, srv, http.MethodPost, "/v1/commands/accept", forged, stagingCommand("alice"))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestAcceptCommand_WrongSpace(t *testing.T) {
	srv, st, _ := newTestServer(t, testServerConfig())
	token := signToken(t, "gatekeeper.accept")

	body := types.CommandRequest{Platform: "onebot", SpaceID: "somewhere-else", ApplicantID: "alice"}
	rec := doJSON(t, srv, http.MethodPost, "/v1/commands/accept", token, body)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-staging space, got %d", rec.Code)
	}
	if len(st.All()) != 0 {
		t.Error("expected no record written")
	}
}

func TestAcceptCommand_IdentifierQualifiedScope(t *testing.T) {
	cfg := testServerConfig()
	cfg.Identifier = "main"
	srv, _, _ := newTestServer(t, cfg)

	// The unqualified scope is no longer enough.
	rec := doJSON(t, srv, http.MethodPost, "/v1/commands/accept",
		signToken(t, "gatekeeper.accept"), stagingCommand("alice"))
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for unqualified scope, got %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/v1/commands/accept",
		signToken(t, "gatekeeper.main.accept"), stagingCommand("alice"))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for qualified scope, got %d", rec.Code)
	}
}

func TestDenyCommand_RecordsDeny(t *testing.T) {
	srv, st, _ := newTestServer(t, testServerConfig())
	token := signToken(t, "gatekeeper.deny")

	rec := doJSON(t, srv, http.MethodPost, "/v1/commands/deny", token, stagingCommand("alice"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	records := st.All()
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	if records[0].Ticket != "" {
		t.Errorf("deny record must carry no ticket, got %q", records[0].Ticket)
	}
}

func TestJoinRequest_FullFlow(t *testing.T) {
	srv, _, fake := newTestServer(t, testServerConfig())
	fake.AddMember("dest-1", "alice")

	accept := doJSON(t, srv, http.MethodPost, "/v1/commands/accept",
		signToken(t, "gatekeeper.accept"), stagingCommand("alice"))
	if accept.Code != http.StatusOK {
		t.Fatalf("accept: expected 200, got %d", accept.Code)
	}
	var cmdResp types.CommandResponse
	if err := json.Unmarshal(accept.Body.Bytes(), &cmdResp); err != nil {
		t.Fatalf("decode accept: %v", err)
	}

	join := doJSON(t, srv, http.MethodPost, "/v1/events/join-request", "", types.JoinRequestEvent{
		Platform:    "onebot",
		SpaceID:     "dest-1",
		ApplicantID: "alice",
		RequestID:   "req-1",
		Text:        "hi, ticket: " + cmdResp.Ticket,
	})
	if join.Code != http.StatusOK {
		t.Fatalf("join: expected 200, got %d: %s", join.Code, join.Body.String())
	}

	var joinResp types.JoinResponse
	if err := json.Unmarshal(join.Body.Bytes(), &joinResp); err != nil {
		t.Fatalf("decode join: %v", err)
	}
	if !joinResp.Admitted {
		t.Fatalf("expected admit, got reason %q", joinResp.Reason)
	}

	if len(fake.Responses) != 1 {
		t.Fatalf("expected one platform response, got %d", len(fake.Responses))
	}
	if got := fake.Responses[0]; got.RequestID != "req-1" || !got.Admit {
		t.Errorf("expected admit for req-1, got %+v", got)
	}
}

func TestJoinRequest_NoRecord(t *testing.T) {
	srv, _, fake := newTestServer(t, testServerConfig())

	rec := doJSON(t, srv, http.MethodPost, "/v1/events/join-request", "", types.JoinRequestEvent{
		Platform:    "onebot",
		SpaceID:     "dest-1",
		ApplicantID: "stranger",
		RequestID:   "req-2",
		Text:        "let me in",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp types.JoinResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Admitted {
		t.Fatal("expected reject")
	}
	if resp.Reason != "no_record" {
		t.Errorf("expected reason=no_record, got %q", resp.Reason)
	}
	if resp.ReasonText != "No record on file." {
		t.Errorf("expected configured reason text, got %q", resp.ReasonText)
	}

	if len(fake.Responses) != 1 || fake.Responses[0].Admit {
		t.Errorf("expected one reject response, got %+v", fake.Responses)
	}
}

func TestJoinRequest_WrongSpaceIgnored(t *testing.T) {
	srv, _, fake := newTestServer(t, testServerConfig())

	rec := doJSON(t, srv, http.MethodPost, "/v1/events/join-request", "", types.JoinRequestEvent{
		Platform:    "onebot",
		SpaceID:     "unrelated-space",
		ApplicantID: "alice",
		RequestID:   "req-3",
		Text:        "anything",
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for events outside the gated space, got %d", rec.Code)
	}
	if len(fake.Responses) != 0 {
		t.Error("expected no platform response")
	}
}

func TestJoinRequest_MissingFields(t *testing.T) {
	srv, _, _ := newTestServer(t, testServerConfig())

	rec := doJSON(t, srv, http.MethodPost, "/v1/events/join-request", "", types.JoinRequestEvent{
		Platform: "onebot",
		SpaceID:  "dest-1",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t, testServerConfig())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
