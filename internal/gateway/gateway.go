// Package gateway is the HTTP boundary of the sync pipeline. It maps the
// pull/push/direct-log wire contract onto typed calls, injects the bearer
// credential per request, and classifies failures as transient or fatal.
// It never retries; retry policy belongs to the sync scheduler.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"resty.dev/v3"

	"github.com/rahulv/skilltrack/internal/auth"
	"github.com/rahulv/skilltrack/internal/store"
)

// Client talks to the remote sync API.
type Client struct {
	httpClient *resty.Client
	tokens     auth.TokenSource
}

// New creates a gateway client for the API at baseURL. Every request
// carries a bounded timeout; a timeout is classified as transient.
func New(baseURL string, tokens auth.TokenSource, timeout time.Duration) *Client {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(timeout)

	return &Client{
		httpClient: client,
		tokens:     tokens,
	}
}

// Close releases the underlying HTTP client.
func (c *Client) Close() error {
	return c.httpClient.Close()
}

type pullRequest struct {
	LastPulledAt  *string `json:"lastPulledAt"`
	SchemaVersion int     `json:"schemaVersion"`
}

type pullResponse struct {
	Changes   []store.Interaction `json:"changes"`
	Timestamp string              `json:"timestamp"`
}

type pushRequest struct {
	Changes      []store.Interaction `json:"changes"`
	LastPulledAt string              `json:"lastPulledAt"`
}

type pushResponse struct {
	AckedIDs []string `json:"ackedIds"`
}

// LogEvent is the body of the direct interaction-log call.
type LogEvent struct {
	Subject          string `json:"subject"`
	Topic            string `json:"topic"`
	SkillID          string `json:"skillId"`
	QuestionID       string `json:"questionId"`
	Correct          bool   `json:"correct"`
	Confidence       string `json:"confidence,omitempty"`
	TimeSpentSeconds int    `json:"timeSpentSeconds,omitempty"`
	HintsUsed        int    `json:"hintsUsed,omitempty"`
	SessionID        string `json:"sessionId"`
}

type logResponse struct {
	SkillMastery *float64 `json:"skillMastery"`
}

// Pull downloads server-side changes since the given checkpoint token.
// An empty token requests a full initial sync (sent as JSON null).
// Returns the changes and the server's new checkpoint token.
func (c *Client) Pull(ctx context.Context, since string, schemaVersion int) ([]store.Interaction, string, error) {
	body := pullRequest{SchemaVersion: schemaVersion}
	if since != "" {
		body.LastPulledAt = &since
	}

	resp, err := c.request(ctx, "pull")
	if err != nil {
		return nil, "", err
	}
	response, err := resp.
		SetBody(body).
		SetResult(&pullResponse{}).
		Post("/sync/pull")
	if err != nil {
		return nil, "", transientErr("pull", 0, err)
	}
	if response.IsError() {
		return nil, "", classify("pull", response)
	}

	result := response.Result().(*pullResponse)
	if result.Timestamp == "" {
		return nil, "", fatalErr("pull", response.StatusCode(), errors.New("server returned no checkpoint token"))
	}
	return result.Changes, result.Timestamp, nil
}

// Push uploads locally pending records against the given checkpoint token.
// Returns the ids the server acknowledged. An empty ack list on success
// means the whole batch was accepted. HTTP 409 maps to ErrStaleCheckpoint.
func (c *Client) Push(ctx context.Context, records []store.Interaction, since string) ([]string, error) {
	resp, err := c.request(ctx, "push")
	if err != nil {
		return nil, err
	}
	response, err := resp.
		SetBody(pushRequest{Changes: records, LastPulledAt: since}).
		SetResult(&pushResponse{}).
		Post("/sync/push")
	if err != nil {
		return nil, transientErr("push", 0, err)
	}
	if response.IsError() {
		return nil, classify("push", response)
	}

	result := response.Result().(*pushResponse)
	if len(result.AckedIDs) == 0 {
		// Whole-batch ack implied by omission of the partial-ack field.
		acked := make([]string, 0, len(records))
		for i := range records {
			acked = append(acked, records[i].ID)
		}
		return acked, nil
	}
	return result.AckedIDs, nil
}

// LogInteraction is the opportunistic direct write used by the recorder.
// It returns the server's skill-mastery feedback when present. Failures are
// classified like any other call, but callers are expected to swallow them:
// the durable log is the path of record.
func (c *Client) LogInteraction(ctx context.Context, ev LogEvent) (*float64, error) {
	resp, err := c.request(ctx, "log")
	if err != nil {
		return nil, err
	}
	response, err := resp.
		SetBody(ev).
		SetResult(&logResponse{}).
		Post("/interactions")
	if err != nil {
		return nil, transientErr("log", 0, err)
	}
	if response.IsError() {
		return nil, classify("log", response)
	}

	return response.Result().(*logResponse).SkillMastery, nil
}

// request builds a request with the current credential attached. A missing
// token is fatal: sync cannot proceed until the user logs in.
func (c *Client) request(ctx context.Context, op string) (*resty.Request, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fatalErr(op, 0, err)
	}
	return c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(token), nil
}

// classify maps an error response to the gateway taxonomy. 5xx and 429 are
// transient; 409 is the stale-checkpoint conflict; 401/403 are auth
// failures; 422 is the schema-mismatch signal; remaining 4xx are fatal.
func classify(op string, response *resty.Response) error {
	status := response.StatusCode()
	switch {
	case status >= http.StatusInternalServerError || status == http.StatusTooManyRequests:
		return transientErr(op, status, fmt.Errorf("server error: %s", response.String()))
	case status == http.StatusConflict:
		return transientErr(op, status, ErrStaleCheckpoint)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fatalErr(op, status, ErrUnauthorized)
	case status == http.StatusUnprocessableEntity:
		return fatalErr(op, status, ErrSchemaUnsupported)
	default:
		return fatalErr(op, status, fmt.Errorf("rejected: %s", response.String()))
	}
}
