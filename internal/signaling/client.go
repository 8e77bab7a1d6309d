// Package signaling wraps the external realtime-signaling API that brokers
// peer connections for netplay sessions. It is a control-plane façade only:
// create a remote session, register a participant, tear the session down.
package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ExternalError is returned for any failure talking to the signaling API:
// incomplete configuration, transport errors (including timeouts), non-2xx
// responses, and unparseable bodies.
type ExternalError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *ExternalError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("signaling %s: %v", e.Op, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("signaling %s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("signaling %s failed", e.Op)
	}
}

func (e *ExternalError) Unwrap() error {
	return e.Err
}

// Participant is the slice of a local participant shared with the signaling
// API. Local row ids never leave the process.
type Participant struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

type CreateSessionRequest struct {
	SessionID    string        `json:"sessionId"`
	Code         string        `json:"code"`
	TTLMs        int64         `json:"ttlMs"`
	ExpiresAt    time.Time     `json:"expiresAt"`
	Participants []Participant `json:"participants"`
}

// SessionCreated carries whatever the signaling API echoed back for a
// create call. ExternalSessionID may be empty; callers decide how to react.
type SessionCreated struct {
	ExternalSessionID string
	Raw               json.RawMessage
}

type ParticipantAdded struct {
	ExternalParticipantID string
	Raw                   json.RawMessage
}

// Client wraps outbound signaling API calls
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Configured reports whether both base URL and API key are set.
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (*SessionCreated, error) {
	body, raw, err := c.doRequest(ctx, "create session", http.MethodPost, "/sessions", req)
	if err != nil {
		return nil, err
	}
	return &SessionCreated{
		ExternalSessionID: firstNonEmptyString(body, "externalSessionId", "sessionId", "id"),
		Raw:               raw,
	}, nil
}

func (c *Client) AddParticipant(ctx context.Context, externalSessionID string, p Participant) (*ParticipantAdded, error) {
	path := fmt.Sprintf("/sessions/%s/participants", externalSessionID)
	body, raw, err := c.doRequest(ctx, "add participant", http.MethodPost, path, p)
	if err != nil {
		return nil, err
	}
	return &ParticipantAdded{
		ExternalParticipantID: firstNonEmptyString(body, "externalParticipantId", "participantId", "id"),
		Raw:                   raw,
	}, nil
}

func (c *Client) DeleteSession(ctx context.Context, externalSessionID string) error {
	path := fmt.Sprintf("/sessions/%s", externalSessionID)
	_, _, err := c.doRequest(ctx, "delete session", http.MethodDelete, path, nil)
	return err
}

// doRequest issues one API call and returns the parsed JSON body (nil when
// the response body is empty) along with the raw bytes.
func (c *Client) doRequest(ctx context.Context, op, method, path string, payload interface{}) (map[string]interface{}, json.RawMessage, error) {
	if !c.Configured() {
		return nil, nil, &ExternalError{Op: op, Err: fmt.Errorf("signaling API configuration is incomplete")}
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, &ExternalError{Op: op, Err: fmt.Errorf("failed to encode request: %w", err)}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, nil, &ExternalError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, &ExternalError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &ExternalError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, &ExternalError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	// An empty 2xx body is valid and carries no payload.
	if len(bytes.TrimSpace(respBody)) == 0 {
		return nil, nil, nil
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, nil, &ExternalError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody), Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	return parsed, json.RawMessage(respBody), nil
}

func firstNonEmptyString(body map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := body[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
