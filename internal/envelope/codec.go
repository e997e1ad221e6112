package envelope

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	gwerrors "mcp-gateway/internal/common/errors"
	"mcp-gateway/internal/trace"
)

// requestSchema is the structural contract for inbound envelopes. Unknown
// fields are allowed everywhere so newer minor versions keep decoding.
const requestSchema = `{
  "type": "object",
  "required": ["context", "session", "request"],
  "properties": {
    "version": {"type": "string"},
    "timestamp": {"type": "string"},
    "context": {
      "type": "object",
      "properties": {
        "channel": {"type": "string"},
        "device": {"type": "string"},
        "locale": {"type": "string"},
        "tenant": {"type": "string"},
        "client_app": {"type": "string"}
      }
    },
    "session": {
      "type": "object",
      "required": ["session_id", "user_id"],
      "properties": {
        "session_id": {"type": "string", "minLength": 1},
        "conversation_id": {"type": "string"},
        "user_id": {"type": "string", "minLength": 1},
        "turn": {"type": "integer"}
      }
    },
    "request": {
      "type": "object",
      "properties": {
        "type": {"type": "string"},
        "text": {"type": "string"},
        "audio_url": {"type": "string"},
        "transcript": {"type": "string"},
        "image_url": {"type": "string"},
        "alt_text": {"type": "string"},
        "intent_override": {"type": "string"}
      }
    },
    "observability": {
      "type": "object",
      "properties": {
        "trace_id": {"type": "string"},
        "span_id": {"type": "string"},
        "message_id": {"type": "string"}
      }
    }
  }
}`

var compiledRequestSchema = gojsonschema.NewStringLoader(requestSchema)

// Decode parses and validates a canonical request envelope. It fails with a
// decode-kind GatewayError on malformed JSON, unsupported versions and missing
// required fields, and never fails on unknown optional fields.
func Decode(raw []byte) (*RequestEnvelope, error) {
	var env RequestEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, gwerrors.NewMalformedJSONError(err)
	}

	result, err := gojsonschema.Validate(compiledRequestSchema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, gwerrors.NewMalformedJSONError(err)
	}
	if !result.Valid() {
		var missing []string
		for _, verr := range result.Errors() {
			switch verr.Type() {
			case "required":
				missing = append(missing, fmt.Sprintf("%v", verr.Details()["property"]))
			case "string_gte":
				missing = append(missing, verr.Field())
			default:
				return nil, gwerrors.NewMalformedJSONError(fmt.Errorf("%s: %s", verr.Field(), verr.Description()))
			}
		}
		return nil, gwerrors.NewMissingRequiredFieldError(missing)
	}

	if env.Version == "" {
		env.Version = DefaultVersion
	}
	if major, _, _ := strings.Cut(env.Version, "."); major != SupportedMajor {
		return nil, gwerrors.NewUnsupportedVersionError(env.Version)
	}

	return &env, nil
}

// Encode serializes an envelope back to canonical JSON.
func Encode(env interface{}) ([]byte, error) {
	return json.Marshal(env)
}

// Normalize collapses the multi-modal request union into the thin internal
// form. Text requests use their text verbatim; audio requests use the
// transcript (upstream STT output), falling back to text. Image and event
// payloads have no defined contract yet and fail closed, as do unknown tags.
func Normalize(env *RequestEnvelope) (*ThinRequest, error) {
	requestType := env.Request.Type
	if requestType == "" {
		requestType = TypeText
	}

	var text string
	switch requestType {
	case TypeText:
		text = strings.TrimSpace(env.Request.Text)
		if text == "" {
			return nil, gwerrors.NewEmptyTextError()
		}
	case TypeAudio:
		text = strings.TrimSpace(env.Request.Transcript)
		if text == "" {
			text = strings.TrimSpace(env.Request.Text)
		}
		if text == "" {
			return nil, gwerrors.NewMissingTranscriptError()
		}
	default:
		return nil, gwerrors.NewUnsupportedTypeError(requestType)
	}

	channel := env.Context.Channel
	if channel == "" {
		channel = "web"
	}

	sessionID := env.Session.SessionID
	if sessionID == "" {
		sessionID = env.Session.UserID + ":" + channel
	}

	traceID := ""
	if env.Observability != nil {
		traceID = env.Observability.TraceID
	}
	if traceID == "" {
		traceID = trace.Ensure("", "", "").TraceID
	}

	return &ThinRequest{
		Text:           text,
		UserID:         env.Session.UserID,
		Channel:        channel,
		SessionID:      sessionID,
		TraceID:        traceID,
		Tenant:         env.Context.Tenant,
		Locale:         env.Context.Locale,
		IntentOverride: env.Request.IntentOverride,
	}, nil
}

// BuildSuccess wraps a routed reply into a canonical response envelope,
// mirroring the inbound context and session.
func BuildSuccess(env *RequestEnvelope, turn int64, res *ThinResponse, durationMS float64, tc trace.Context) *ResponseEnvelope {
	session := env.Session
	session.Turn = turn
	session.Route = &res.Route

	text := res.ReplyText
	return &ResponseEnvelope{
		Version:   env.Version,
		Timestamp: time.Now().UTC(),
		Context:   env.Context,
		Session:   session,
		Response: ResponseBody{
			Status: "success",
			Code:   200,
			Type:   TypeText,
			Text:   &text,
			Metadata: map[string]interface{}{
				"source":            "orchestrator",
				"duration_ms":       durationMS,
				"intent":            res.Intent,
				"intent_confidence": res.IntentConfidence,
			},
		},
		Observability: Observability{
			TraceID:   tc.TraceID,
			SpanID:    tc.SpanID,
			MessageID: tc.MessageID,
		},
	}
}

// BuildError wraps a taxonomy error into a canonical error envelope. env may
// be nil when decoding itself failed; the mirror is then empty. The route is
// always null and the response text is always null on errors.
func BuildError(env *RequestEnvelope, turn int64, ge *gwerrors.GatewayError, durationMS float64, tc trace.Context) *ResponseEnvelope {
	version := DefaultVersion
	var ctx Context
	var session Session
	if env != nil {
		version = env.Version
		ctx = env.Context
		session = env.Session
		session.Turn = turn
	}
	session.Route = nil

	return &ResponseEnvelope{
		Version:   version,
		Timestamp: time.Now().UTC(),
		Context:   ctx,
		Session:   session,
		Response: ResponseBody{
			Status: "error",
			Code:   ge.HTTPStatus,
			Type:   TypeText,
			Text:   nil,
			Metadata: map[string]interface{}{
				"source":      "gateway",
				"duration_ms": durationMS,
			},
		},
		Error: &ResponseError{
			Type:      string(ge.Code),
			Code:      ge.HTTPStatus,
			Message:   ge.Message,
			Retryable: ge.Retryable,
			Details:   ge.Details,
		},
		Observability: Observability{
			TraceID:   tc.TraceID,
			SpanID:    tc.SpanID,
			MessageID: tc.MessageID,
		},
	}
}
