// Package envelope defines the canonical JSON contract exchanged between
// channel adapters and the orchestration core (v1.x), plus the thin internal
// request/response shapes used between the core and downstream routing.
package envelope

import "time"

// Request payload types of the canonical envelope tagged union.
const (
	TypeText  = "text"
	TypeAudio = "audio"
	TypeImage = "image"
	TypeEvent = "event"
)

// SupportedMajor is the envelope major version this gateway accepts.
const SupportedMajor = "1"

// DefaultVersion is stamped on outbound envelopes and assumed for inbound
// envelopes that omit the field.
const DefaultVersion = "1.1"

// LLMContext carries optional LLM-related hints that the gateway passes
// through untouched.
type LLMContext struct {
	ModelHint   *string                `json:"model_hint,omitempty"`
	Temperature *float64               `json:"temperature,omitempty"`
	TopP        *float64               `json:"top_p,omitempty"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
}

type Context struct {
	Channel   string      `json:"channel,omitempty"`
	Device    string      `json:"device,omitempty"`
	Locale    string      `json:"locale,omitempty"`
	Tenant    string      `json:"tenant,omitempty"`
	ClientApp string      `json:"client_app,omitempty"`
	LLM       *LLMContext `json:"llm,omitempty"`
}

type Session struct {
	SessionID      string  `json:"session_id"`
	ConversationID string  `json:"conversation_id,omitempty"`
	UserID         string  `json:"user_id"`
	Turn           int64   `json:"turn"`
	// Route is only populated on responses, with the resolved route name.
	Route *string `json:"route,omitempty"`
}

type Observability struct {
	TraceID   string `json:"trace_id,omitempty"`
	SpanID    string `json:"span_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

// Request is the multi-modal tagged union. Which payload fields are meaningful
// depends on Type; unknown extra client fields ride along in Metadata.
type Request struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// audio
	AudioURL   string `json:"audio_url,omitempty"`
	Transcript string `json:"transcript,omitempty"`

	// image
	ImageURL string `json:"image_url,omitempty"`
	AltText  string `json:"alt_text,omitempty"`

	// Optional override that skips intent classification.
	IntentOverride string `json:"intent_override,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// RequestEnvelope is the canonical inbound envelope.
type RequestEnvelope struct {
	Version       string         `json:"version"`
	Timestamp     *time.Time     `json:"timestamp,omitempty"`
	Context       Context        `json:"context"`
	Session       Session        `json:"session"`
	Request       Request        `json:"request"`
	Observability *Observability `json:"observability,omitempty"`
}

type ResponseBody struct {
	Status   string                 `json:"status"`
	Code     int                    `json:"code"`
	Type     string                 `json:"type"`
	Text     *string                `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type ResponseError struct {
	Type      string                 `json:"type"`
	Code      int                    `json:"code"`
	Message   string                 `json:"message"`
	Retryable bool                   `json:"retryable"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// ResponseEnvelope mirrors the request envelope's context and session and adds
// the response body, plus an error block when status is "error".
type ResponseEnvelope struct {
	Version       string         `json:"version"`
	Timestamp     time.Time      `json:"timestamp"`
	Context       Context        `json:"context"`
	Session       Session        `json:"session"`
	Response      ResponseBody   `json:"response"`
	Error         *ResponseError `json:"error,omitempty"`
	Observability Observability  `json:"observability"`
}

// ThinRequest is the normalized internal form stripped of channel-specific
// envelope overhead. TraceID and SessionID are always non-empty.
type ThinRequest struct {
	Text           string `json:"text"`
	UserID         string `json:"user_id"`
	Channel        string `json:"channel"`
	SessionID      string `json:"session_id"`
	TraceID        string `json:"trace_id,omitempty"`
	Tenant         string `json:"tenant,omitempty"`
	Locale         string `json:"locale,omitempty"`
	IntentOverride string `json:"intent_override,omitempty"`
}

// ThinResponse is the /orchestrate reply contract.
type ThinResponse struct {
	Decision         string  `json:"decision"`
	ReplyText        string  `json:"reply_text"`
	SessionID        string  `json:"session_id"`
	Route            string  `json:"route"`
	Intent           string  `json:"intent"`
	IntentConfidence float64 `json:"intent_confidence"`
	TraceID          string  `json:"trace_id,omitempty"`
}
