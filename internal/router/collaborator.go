package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gwhttp "mcp-gateway/internal/common/http"
	"mcp-gateway/internal/trace"
)

var (
	ErrDownstreamTimeout = errors.New("DOWNSTREAM_TIMEOUT")
	ErrDownstreamPayload = errors.New("DOWNSTREAM_INVALID_PAYLOAD")
)

// statusError carries a non-2xx downstream status without the response body,
// which must never leak to the client.
type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("downstream status %d", e.status)
}

// DownstreamRequest is the wire shape POSTed to flow/domain collaborators.
type DownstreamRequest struct {
	UserID    string                 `json:"user_id"`
	SessionID string                 `json:"session_id"`
	Channel   string                 `json:"channel"`
	TraceID   string                 `json:"trace_id,omitempty"`
	Text      string                 `json:"text"`
	Intent    string                 `json:"intent,omitempty"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
}

// DownstreamResponse is the minimum surface a collaborator must produce.
type DownstreamResponse struct {
	ReplyText string
	Raw       map[string]interface{}
}

// Collaborator is the capability interface for one downstream microservice.
type Collaborator interface {
	Name() string
	Call(ctx context.Context, req *DownstreamRequest) (*DownstreamResponse, error)
}

// HTTPCollaborator POSTs the downstream request to a configured endpoint and
// extracts the reply text from the route-specific response shape.
type HTTPCollaborator struct {
	name   string
	url    string
	client *gwhttp.Client
}

func NewHTTPCollaborator(name, url string, timeout time.Duration) *HTTPCollaborator {
	return &HTTPCollaborator{
		name:   name,
		url:    url,
		client: gwhttp.NewClient(timeout),
	}
}

func (c *HTTPCollaborator) Name() string { return c.name }

func (c *HTTPCollaborator) Call(ctx context.Context, dreq *DownstreamRequest) (*DownstreamResponse, error) {
	body, _ := json.Marshal(dreq)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(trace.Header, dreq.TraceID)

	resp, err := c.client.Do(req)
	if ctx.Err() != nil ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return nil, ErrDownstreamTimeout
	}
	if err != nil {
		// Client-side timeouts surface as url.Error with Timeout set.
		var uerr interface{ Timeout() bool }
		if errors.As(err, &uerr) && uerr.Timeout() {
			return nil, ErrDownstreamTimeout
		}
		return nil, fmt.Errorf("downstream call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &statusError{status: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read: %v", ErrDownstreamPayload, err)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		// Some services respond with a single-element array.
		var list []map[string]interface{}
		if err2 := json.Unmarshal(raw, &list); err2 != nil || len(list) == 0 {
			return nil, fmt.Errorf("%w: %v", ErrDownstreamPayload, err)
		}
		payload = list[0]
	}

	reply := extractReply(payload)
	if reply == "" {
		return nil, fmt.Errorf("%w: no reply text in response", ErrDownstreamPayload)
	}

	return &DownstreamResponse{ReplyText: reply, Raw: payload}, nil
}

// extractReply accepts the reply under reply_text, text, output or
// output.text, in that order.
func extractReply(payload map[string]interface{}) string {
	for _, field := range []string{"reply_text", "text"} {
		if s, ok := payload[field].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	switch out := payload["output"].(type) {
	case string:
		return strings.TrimSpace(out)
	case map[string]interface{}:
		if s, ok := out["text"].(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// StaticCollaborator serves routes that never leave the gateway, such as
// greetings and the catch-all help reply.
type StaticCollaborator struct {
	name  string
	reply string
}

func NewStaticCollaborator(name, reply string) *StaticCollaborator {
	return &StaticCollaborator{name: name, reply: reply}
}

func (c *StaticCollaborator) Name() string { return c.name }

func (c *StaticCollaborator) Call(_ context.Context, dreq *DownstreamRequest) (*DownstreamResponse, error) {
	reply := c.reply
	if reply == "" {
		reply = fallbackReply(dreq.Text)
	}
	return &DownstreamResponse{ReplyText: reply}, nil
}

func fallbackReply(text string) string {
	return "I can help you by reading the menu, placing orders, recommending dishes, " +
		"tracking your order, or showing your profile.\n\n" +
		"Try things like:\n" +
		"- 'Read me the menu'\n" +
		"- 'I want to order Garlic Chicken'\n" +
		"- 'What do you recommend?'\n" +
		"- 'Where is my order ORD-12345?'\n" +
		"- 'Remember that I do not eat pork'\n\n" +
		fmt.Sprintf("(You said: %s)", text)
}

// Registry holds the configured collaborators by name. It is read-only after
// initialization and safe for concurrent use.
type Registry struct {
	collaborators map[string]Collaborator
}

func NewRegistry() *Registry {
	return &Registry{collaborators: make(map[string]Collaborator)}
}

func (r *Registry) Register(c Collaborator) {
	r.collaborators[c.Name()] = c
}

func (r *Registry) Get(name string) (Collaborator, bool) {
	c, ok := r.collaborators[name]
	return c, ok
}
