// Package trace generates and propagates the correlation identifiers attached
// to every hop of one logical request.
package trace

import (
	"strings"

	"github.com/google/uuid"
)

// Header is the HTTP header carrying the trace identifier on outbound calls.
const Header = "X-Trace-Id"

// Context holds the three correlation identifiers for one inbound request.
// TraceID is carried unchanged across the entire call chain; SpanID and
// MessageID identify this hop and this message.
type Context struct {
	TraceID   string `json:"trace_id"`
	SpanID    string `json:"span_id"`
	MessageID string `json:"message_id"`
}

// Ensure returns a Context with every identifier populated. Identifiers
// already present are preserved verbatim; missing ones are generated.
func Ensure(traceID, spanID, messageID string) Context {
	if strings.TrimSpace(traceID) == "" {
		traceID = "trace-" + uuid.New().String()
	}
	if strings.TrimSpace(spanID) == "" {
		spanID = "span-" + uuid.New().String()
	}
	if strings.TrimSpace(messageID) == "" {
		messageID = "msg-" + uuid.New().String()
	}
	return Context{TraceID: traceID, SpanID: spanID, MessageID: messageID}
}

// ChildSpan returns a copy of c with a fresh SpanID for a downstream hop.
func (c Context) ChildSpan() Context {
	return Context{
		TraceID:   c.TraceID,
		SpanID:    "span-" + uuid.New().String(),
		MessageID: c.MessageID,
	}
}
