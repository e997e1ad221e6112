// internal/envelope/codec_test.go
package envelope

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gwerrors "mcp-gateway/internal/common/errors"
	"mcp-gateway/internal/trace"
)

func validEnvelopeJSON(mutate func(m map[string]interface{})) []byte {
	m := map[string]interface{}{
		"version":   "1.1",
		"timestamp": "2026-08-23T10:00:00Z",
		"context": map[string]interface{}{
			"channel": "web",
			"locale":  "en-IN",
		},
		"session": map[string]interface{}{
			"session_id": "sess-123",
			"user_id":    "user-9",
		},
		"request": map[string]interface{}{
			"type": "text",
			"text": "Can you read me the menu?",
		},
		"observability": map[string]interface{}{
			"trace_id": "trace-abc",
		},
	}
	if mutate != nil {
		mutate(m)
	}
	raw, _ := json.Marshal(m)
	return raw
}

func TestDecode_ValidEnvelope(t *testing.T) {
	env, err := Decode(validEnvelopeJSON(nil))
	require.NoError(t, err)

	assert.Equal(t, "1.1", env.Version)
	assert.Equal(t, "sess-123", env.Session.SessionID)
	assert.Equal(t, "user-9", env.Session.UserID)
	assert.Equal(t, "Can you read me the menu?", env.Request.Text)
	require.NotNil(t, env.Observability)
	assert.Equal(t, "trace-abc", env.Observability.TraceID)
}

func TestDecode_MalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`{"version": "1.1",`))
	require.Error(t, err)

	ge := gwerrors.AsGatewayError(err)
	assert.Equal(t, gwerrors.ErrCodeMalformedJSON, ge.Code)
	assert.Equal(t, 400, ge.HTTPStatus)
	assert.False(t, ge.Retryable)
}

func TestDecode_VersionHandling(t *testing.T) {
	tests := []struct {
		name        string
		version     string
		wantVersion string
		wantErr     bool
	}{
		{"same major same minor", "1.1", "1.1", false},
		{"newer minor accepted", "1.7", "1.7", false},
		{"missing version defaults", "", DefaultVersion, false},
		{"different major rejected", "2.0", "", true},
		{"zero major rejected", "0.9", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validEnvelopeJSON(func(m map[string]interface{}) {
				if tt.version == "" {
					delete(m, "version")
				} else {
					m["version"] = tt.version
				}
			})

			env, err := Decode(raw)
			if tt.wantErr {
				require.Error(t, err)
				ge := gwerrors.AsGatewayError(err)
				assert.Equal(t, gwerrors.ErrCodeUnsupportedVersion, ge.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, env.Version)
		})
	}
}

func TestDecode_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m map[string]interface{})
	}{
		{"missing session", func(m map[string]interface{}) { delete(m, "session") }},
		{"missing context", func(m map[string]interface{}) { delete(m, "context") }},
		{"missing request", func(m map[string]interface{}) { delete(m, "request") }},
		{"missing user_id", func(m map[string]interface{}) {
			m["session"] = map[string]interface{}{"session_id": "sess-123"}
		}},
		{"empty user_id", func(m map[string]interface{}) {
			m["session"] = map[string]interface{}{"session_id": "sess-123", "user_id": ""}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(validEnvelopeJSON(tt.mutate))
			require.Error(t, err)
			ge := gwerrors.AsGatewayError(err)
			assert.Equal(t, gwerrors.ErrCodeMissingRequiredField, ge.Code)
			assert.NotEmpty(t, ge.Details["fields"])
		})
	}
}

func TestDecode_UnknownFieldsTolerated(t *testing.T) {
	raw := validEnvelopeJSON(func(m map[string]interface{}) {
		m["extensions"] = map[string]interface{}{"future": true}
		m["request"].(map[string]interface{})["sentiment"] = "positive"
	})

	_, err := Decode(raw)
	assert.NoError(t, err)
}

func TestNormalize_TextRequest(t *testing.T) {
	env, err := Decode(validEnvelopeJSON(nil))
	require.NoError(t, err)

	thin, err := Normalize(env)
	require.NoError(t, err)

	assert.Equal(t, "Can you read me the menu?", thin.Text)
	assert.Equal(t, "user-9", thin.UserID)
	assert.Equal(t, "web", thin.Channel)
	assert.Equal(t, "sess-123", thin.SessionID)
	assert.Equal(t, "trace-abc", thin.TraceID)
}

func TestNormalize_EmptyText(t *testing.T) {
	env, err := Decode(validEnvelopeJSON(func(m map[string]interface{}) {
		m["request"] = map[string]interface{}{"type": "text", "text": "   "}
	}))
	require.NoError(t, err)

	_, err = Normalize(env)
	require.Error(t, err)
	assert.Equal(t, gwerrors.ErrCodeEmptyText, gwerrors.AsGatewayError(err).Code)
}

func TestNormalize_AudioRequest(t *testing.T) {
	tests := []struct {
		name     string
		request  map[string]interface{}
		wantText string
		wantCode gwerrors.ErrorCode
	}{
		{
			name: "transcript used",
			request: map[string]interface{}{
				"type":       "audio",
				"audio_url":  "https://cdn.example.com/a.wav",
				"transcript": "order one garlic chicken",
			},
			wantText: "order one garlic chicken",
		},
		{
			name: "text fallback when transcript empty",
			request: map[string]interface{}{
				"type": "audio",
				"text": "typed while speaking",
			},
			wantText: "typed while speaking",
		},
		{
			name: "no transcript fails closed",
			request: map[string]interface{}{
				"type":      "audio",
				"audio_url": "https://cdn.example.com/a.wav",
			},
			wantCode: gwerrors.ErrCodeMissingTranscript,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Decode(validEnvelopeJSON(func(m map[string]interface{}) {
				m["request"] = tt.request
			}))
			require.NoError(t, err)

			thin, err := Normalize(env)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, gwerrors.AsGatewayError(err).Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, thin.Text)
		})
	}
}

func TestNormalize_UnsupportedTypesFailClosed(t *testing.T) {
	for _, requestType := range []string{TypeImage, TypeEvent, "video"} {
		t.Run(requestType, func(t *testing.T) {
			env, err := Decode(validEnvelopeJSON(func(m map[string]interface{}) {
				m["request"] = map[string]interface{}{"type": requestType, "text": "ignored"}
			}))
			require.NoError(t, err)

			_, err = Normalize(env)
			require.Error(t, err)
			assert.Equal(t, gwerrors.ErrCodeUnsupportedType, gwerrors.AsGatewayError(err).Code)
		})
	}
}

func TestNormalize_Defaults(t *testing.T) {
	env, err := Decode(validEnvelopeJSON(func(m map[string]interface{}) {
		delete(m, "observability")
		m["context"] = map[string]interface{}{}
		m["session"] = map[string]interface{}{"session_id": "s-1", "user_id": "u-1"}
	}))
	require.NoError(t, err)

	thin, err := Normalize(env)
	require.NoError(t, err)

	assert.Equal(t, "web", thin.Channel)
	assert.NotEmpty(t, thin.TraceID, "trace id must be generated when absent")
}

func TestNormalize_SessionIDFallback(t *testing.T) {
	env := &RequestEnvelope{
		Version: "1.1",
		Context: Context{Channel: "whatsapp"},
		Session: Session{UserID: "u-42"},
		Request: Request{Type: TypeText, Text: "hello"},
	}

	thin, err := Normalize(env)
	require.NoError(t, err)
	assert.Equal(t, "u-42:whatsapp", thin.SessionID)
}

func TestBuildSuccess(t *testing.T) {
	env, err := Decode(validEnvelopeJSON(nil))
	require.NoError(t, err)

	tc := trace.Ensure("trace-abc", "", "")
	res := &ThinResponse{
		Decision:         "reply",
		ReplyText:        "Here is the menu...",
		SessionID:        "sess-123",
		Route:            "menu",
		Intent:           "menu",
		IntentConfidence: 0.92,
		TraceID:          "trace-abc",
	}

	out := BuildSuccess(env, 3, res, 12.5, tc)

	assert.Equal(t, "success", out.Response.Status)
	assert.Equal(t, 200, out.Response.Code)
	require.NotNil(t, out.Response.Text)
	assert.Equal(t, "Here is the menu...", *out.Response.Text)
	assert.Equal(t, int64(3), out.Session.Turn)
	require.NotNil(t, out.Session.Route)
	assert.Equal(t, "menu", *out.Session.Route)
	assert.Equal(t, "trace-abc", out.Observability.TraceID)
	assert.Nil(t, out.Error)

	// The envelope must survive serialization with nulls intact.
	raw, err := Encode(out)
	require.NoError(t, err)
	var echo map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &echo))
	assert.Equal(t, "1.1", echo["version"])
}

func TestBuildError(t *testing.T) {
	env, err := Decode(validEnvelopeJSON(nil))
	require.NoError(t, err)

	tc := trace.Ensure("trace-abc", "", "")
	ge := gwerrors.NewDownstreamTimeoutError("menu-service")

	out := BuildError(env, 4, ge, 42.0, tc)

	assert.Equal(t, "error", out.Response.Status)
	assert.Equal(t, 502, out.Response.Code)
	assert.Nil(t, out.Response.Text, "error envelopes carry no reply text")
	assert.Nil(t, out.Session.Route, "error envelopes carry no route")
	assert.Equal(t, int64(4), out.Session.Turn)
	require.NotNil(t, out.Error)
	assert.Equal(t, "DOWNSTREAM_TIMEOUT", out.Error.Type)
	assert.True(t, out.Error.Retryable)
}

func TestBuildError_NilEnvelope(t *testing.T) {
	tc := trace.Ensure("", "", "")
	ge := gwerrors.NewMalformedJSONError(assert.AnError)

	out := BuildError(nil, 0, ge, 1.0, tc)

	assert.Equal(t, DefaultVersion, out.Version)
	assert.Equal(t, "error", out.Response.Status)
	assert.Equal(t, 400, out.Response.Code)
	assert.Nil(t, out.Session.Route)
	assert.NotEmpty(t, out.Observability.TraceID)
}
