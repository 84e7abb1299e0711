package calls

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonathan/talent-match/internal/logger"
	"github.com/tidwall/gjson"
)

// DialRequest is one outbound call handed to the voice platform.
type DialRequest struct {
	PhoneNumber string
	AssistantID string
	Metadata    map[string]string
}

// Dialer places outbound calls and returns the platform's call id.
type Dialer interface {
	Dial(ctx context.Context, req DialRequest) (string, error)
}

// DialError reports a rejected or failed dial.
type DialError struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *DialError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("voice platform returned status %d: %s", e.StatusCode, e.Message)
	case e.Cause != nil:
		return fmt.Sprintf("voice platform request failed: %s: %v", e.Message, e.Cause)
	default:
		return fmt.Sprintf("voice platform request failed: %s", e.Message)
	}
}

func (e *DialError) Unwrap() error {
	return e.Cause
}

// VoiceClient dials through the voice platform's REST API.
type VoiceClient struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
}

// NewVoiceClient creates a client for the platform at baseURL.
func NewVoiceClient(baseURL, apiKey string, timeout time.Duration) (*VoiceClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid voice platform URL %q", baseURL)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("voice platform API key is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &VoiceClient{baseURL: u, apiKey: apiKey, client: &http.Client{Timeout: timeout}}, nil
}

type dialBody struct {
	AssistantID string            `json:"assistantId"`
	Customer    dialCustomer      `json:"customer"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type dialCustomer struct {
	Number string `json:"number"`
}

// Dial starts a call and returns its id.
func (c *VoiceClient) Dial(ctx context.Context, req DialRequest) (string, error) {
	body, err := json.Marshal(dialBody{
		AssistantID: req.AssistantID,
		Customer:    dialCustomer{Number: req.PhoneNumber},
		Metadata:    req.Metadata,
	})
	if err != nil {
		return "", &DialError{Message: "encode request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.JoinPath("call").String(), bytes.NewReader(body))
	if err != nil {
		return "", &DialError{Message: "build request", Cause: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", &DialError{Message: "send request", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &DialError{Message: "read response", Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Provider bodies stay out of error messages; only a short reason is kept.
		reason := gjson.GetBytes(payload, "message").String()
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		return "", &DialError{StatusCode: resp.StatusCode, Message: logger.TruncateForLog(reason, 120)}
	}

	id := strings.TrimSpace(gjson.GetBytes(payload, "id").String())
	if id == "" {
		return "", &DialError{Message: "response missing call id"}
	}
	return id, nil
}

