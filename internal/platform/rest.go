package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RESTClient talks to a bot gateway that bridges the actual chat
// platform.  Every call is a JSON POST; the gateway settles moderation
// actions synchronously and reports failure via a non-2xx status or an
// ok=false body.
type RESTClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewRESTClient(baseURL, token string) *RESTClient {
	return &RESTClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type gatewayResponse struct {
	OK      bool            `json:"ok"`
	Error   string          `json:"error,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (c *RESTClient) RespondJoinRequest(ctx context.Context, requestID string, admit bool, reasonText string) error {
	_, err := c.post(ctx, "/v1/join_requests/respond", map[string]any{
		"request_id": requestID,
		"admit":      admit,
		"reason":     reasonText,
	})
	return err
}

func (c *RESTClient) SendMessage(ctx context.Context, spaceID, text string) error {
	_, err := c.post(ctx, "/v1/messages/send", map[string]any{
		"space_id": spaceID,
		"text":     text,
	})
	return err
}

func (c *RESTClient) RemoveMember(ctx context.Context, spaceID, userID string) error {
	_, err := c.post(ctx, "/v1/members/remove", map[string]any{
		"space_id": spaceID,
		"user_id":  userID,
	})
	return err
}

func (c *RESTClient) GetMember(ctx context.Context, spaceID, userID string) (Member, error) {
	payload, err := c.post(ctx, "/v1/members/get", map[string]any{
		"space_id": spaceID,
		"user_id":  userID,
	})
	if err != nil {
		return Member{}, err
	}

	var body struct {
		Present bool   `json:"present"`
		UserID  string `json:"user_id"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return Member{}, fmt.Errorf("get member decode: %w", err)
	}
	if !body.Present {
		return Member{}, ErrNotMember
	}

	return Member{SpaceID: spaceID, UserID: body.UserID}, nil
}

func (c *RESTClient) post(ctx context.Context, path string, body map[string]any) (json.RawMessage, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: gateway status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var gw gatewayResponse
	if err := json.Unmarshal(raw, &gw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if !gw.OK {
		return nil, fmt.Errorf("%s: gateway error: %s", path, gw.Error)
	}

	return gw.Payload, nil
}
