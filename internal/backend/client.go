// Package backend is the HTTP client for the cover letter generation service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/coverletter/internal/auth"
	"github.com/jonathan/coverletter/internal/schemas"
	"github.com/jonathan/coverletter/internal/types"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// Backend is the set of operations the generation service exposes.
type Backend interface {
	CreateSession(ctx context.Context, req types.CreateSessionRequest) (string, error)
	PollSession(ctx context.Context, sessionID string) (*types.SessionPayload, error)
	AddQuestion(ctx context.Context, sessionID, question string) (*types.AddQuestionResponse, error)
	// ReviseAnswer addresses the question by its 1-based position in the session.
	ReviseAnswer(ctx context.Context, sessionID string, position int, revision string) (*types.ReviseResponse, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// Options configures the client.
type Options struct {
	Timeout    time.Duration
	HTTPClient *http.Client
	Tokens     auth.TokenSource
	UserAgent  string
}

// Client implements Backend over HTTP+JSON.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	tokens    auth.TokenSource
	userAgent string
}

var _ Backend = (*Client)(nil)

// NewClient creates a client for the service rooted at baseURL.
func NewClient(baseURL string, opts *Options) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q", baseURL)
	}
	if opts == nil {
		opts = &Options{}
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	tokens := opts.Tokens
	if tokens == nil {
		tokens = auth.Static("")
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "coverletter-cli/1.0"
	}

	return &Client{
		baseURL:   parsed,
		http:      httpClient,
		tokens:    tokens,
		userAgent: userAgent,
	}, nil
}

// CreateSession submits job info, resume and the first question.
func (c *Client) CreateSession(ctx context.Context, req types.CreateSessionRequest) (string, error) {
	var out types.CreateSessionResponse
	if err := c.do(ctx, "create session", http.MethodPost, "/sessions", req, &out, schemas.CreateSession); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

// PollSession fetches the current state of a session.
func (c *Client) PollSession(ctx context.Context, sessionID string) (*types.SessionPayload, error) {
	var out types.SessionPayload
	if err := c.do(ctx, "poll session", http.MethodGet, sessionPath(sessionID), nil, &out, schemas.SessionPoll); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddQuestion adds a question and returns the backend's echo of it.
func (c *Client) AddQuestion(ctx context.Context, sessionID, question string) (*types.AddQuestionResponse, error) {
	var out types.AddQuestionResponse
	body := types.AddQuestionRequest{Question: question}
	if err := c.do(ctx, "add question", http.MethodPost, sessionPath(sessionID)+"/questions", body, &out, ""); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReviseAnswer requests a rewrite of the question at position (1-based).
func (c *Client) ReviseAnswer(ctx context.Context, sessionID string, position int, revision string) (*types.ReviseResponse, error) {
	var out types.ReviseResponse
	path := sessionPath(sessionID) + "/questions/" + strconv.Itoa(position) + "/revise"
	body := types.ReviseRequest{RevisionRequest: revision}
	if err := c.do(ctx, "revise answer", http.MethodPost, path, body, &out, ""); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteSession irreversibly deletes a session.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, "delete session", http.MethodDelete, sessionPath(sessionID), nil, nil, "")
}

func sessionPath(sessionID string) string {
	return "/sessions/" + sessionID
}

// do performs one request. When schema is set the response body is checked
// against it before decoding.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any, schema string) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return &TransportError{Op: op, Message: "failed to encode request", Cause: err}
		}
		body = bytes.NewReader(payload)
	}

	endpoint := *c.baseURL
	endpoint.Path += path

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return &TransportError{Op: op, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Message: "failed to read response body", Cause: err}
	}

	switch {
	case resp.StatusCode == http.StatusGone,
		resp.StatusCode == http.StatusNotFound && sessionMissing(data):
		return fmt.Errorf("%s: %w", op, ErrSessionGone)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if schema != "" {
		if err := schemas.Validate(schema, data); err != nil {
			return &TransportError{Op: op, StatusCode: resp.StatusCode, Message: "unexpected response shape", Cause: err}
		}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Message: "failed to decode response", Cause: err}
	}
	return nil
}

// errorMessage pulls {"error": "..."} out of an error body when present.
// sessionMissing reports whether a 404 body names the session. A bare 404
// usually means a wrong base URL rather than a deleted session.
func sessionMissing(data []byte) bool {
	msg := strings.ToLower(errorMessage(data))
	return strings.Contains(msg, "session") &&
		(strings.Contains(msg, "not found") || strings.Contains(msg, "deleted"))
}

func errorMessage(data []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	text := strings.TrimSpace(string(data))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	return text
}
