// Package orchestrator composes the request pipeline: decode, trace, session
// touch, intent resolution, routing and response construction. It is the only
// package that sees a request end to end.
package orchestrator

import (
	"context"
	"time"

	gwerrors "mcp-gateway/internal/common/errors"
	"mcp-gateway/internal/common/logger"
	"mcp-gateway/internal/common/observability"
	"mcp-gateway/internal/envelope"
	"mcp-gateway/internal/intent"
	"mcp-gateway/internal/router"
	"mcp-gateway/internal/session"
	"mcp-gateway/internal/trace"
)

type Coordinator struct {
	store    session.Store
	resolver *intent.Resolver
	router   *router.Router
	obs      *observability.Observability
	shipper  *observability.LokiShipper
	logger   logger.Logger
}

func New(
	store session.Store,
	resolver *intent.Resolver,
	rt *router.Router,
	obs *observability.Observability,
	shipper *observability.LokiShipper,
	log logger.Logger,
) *Coordinator {
	return &Coordinator{
		store:    store,
		resolver: resolver,
		router:   rt,
		obs:      obs,
		shipper:  shipper,
		logger:   log.With(map[string]interface{}{"component": "coordinator"}),
	}
}

// HandleEnvelope runs the full pipeline on a raw canonical envelope and always
// produces a response envelope, success or error. The session turn counter is
// incremented exactly once per request, before routing, so it reflects the
// attempt even when the downstream call fails.
func (c *Coordinator) HandleEnvelope(ctx context.Context, raw []byte) *envelope.ResponseEnvelope {
	start := time.Now()

	env, err := envelope.Decode(raw)
	if err != nil {
		ge := gwerrors.AsGatewayError(err)
		tc := trace.Ensure("", "", "")
		c.finish(ctx, tc, nil, nil, ge, start)
		return envelope.BuildError(nil, 0, ge, durationMS(start), tc)
	}

	var obsTraceID, obsSpanID, obsMessageID string
	if env.Observability != nil {
		obsTraceID = env.Observability.TraceID
		obsSpanID = env.Observability.SpanID
		obsMessageID = env.Observability.MessageID
	}
	tc := trace.Ensure(obsTraceID, obsSpanID, obsMessageID)
	env.Observability = &envelope.Observability{
		TraceID:   tc.TraceID,
		SpanID:    tc.SpanID,
		MessageID: tc.MessageID,
	}

	thin, err := envelope.Normalize(env)
	if err != nil {
		ge := gwerrors.AsGatewayError(err)
		c.finish(ctx, tc, nil, nil, ge, start)
		return envelope.BuildError(env, env.Session.Turn, ge, durationMS(start), tc)
	}
	thin.TraceID = tc.TraceID

	res, turn, ge := c.process(ctx, thin)
	if ge != nil {
		c.finish(ctx, tc, thin, nil, ge, start)
		return envelope.BuildError(env, turn, ge, durationMS(start), tc)
	}

	c.finish(ctx, tc, thin, res, nil, start)
	return envelope.BuildSuccess(env, turn, res, durationMS(start), tc)
}

// HandleThin serves the flat orchestration contract used by channel adapters.
func (c *Coordinator) HandleThin(ctx context.Context, thin *envelope.ThinRequest) (*envelope.ThinResponse, *gwerrors.GatewayError) {
	start := time.Now()

	tc := trace.Ensure(thin.TraceID, "", "")
	thin.TraceID = tc.TraceID
	if thin.Channel == "" {
		thin.Channel = "web"
	}
	if thin.SessionID == "" {
		thin.SessionID = thin.UserID + ":" + thin.Channel
	}

	res, _, ge := c.process(ctx, thin)
	if ge != nil {
		c.finish(ctx, tc, thin, nil, ge, start)
		return nil, ge
	}

	c.finish(ctx, tc, thin, res, nil, start)
	return res, nil
}

// process is the shared core: touch the session, resolve the intent, route,
// and record the served route back into the session on success.
func (c *Coordinator) process(ctx context.Context, thin *envelope.ThinRequest) (*envelope.ThinResponse, int64, *gwerrors.GatewayError) {
	state, err := c.store.Touch(ctx, thin.SessionID)
	if err != nil {
		c.logger.WithError(err).Error("session touch failed", map[string]interface{}{
			"session_id": thin.SessionID,
			"trace_id":   thin.TraceID,
		})
		return nil, 0, gwerrors.NewInternalError(err)
	}

	res := c.resolver.Resolve(ctx, thin)
	decision := c.router.Route(ctx, res, thin)
	if decision.Err != nil {
		return nil, state.TurnCount, decision.Err
	}

	if err := c.store.SetRoute(ctx, thin.SessionID, decision.Route); err != nil {
		c.logger.WithError(err).Warn("recording served route failed", map[string]interface{}{
			"session_id": thin.SessionID,
			"route":      decision.Route,
		})
	}

	return &envelope.ThinResponse{
		Decision:         decision.Decision,
		ReplyText:        decision.ReplyText,
		SessionID:        thin.SessionID,
		Route:            decision.Route,
		Intent:           res.Label,
		IntentConfidence: res.Confidence,
		TraceID:          thin.TraceID,
	}, state.TurnCount, nil
}

// finish emits the per-request observability record and counters.
func (c *Coordinator) finish(ctx context.Context, tc trace.Context, thin *envelope.ThinRequest, res *envelope.ThinResponse, ge *gwerrors.GatewayError, start time.Time) {
	latency := durationMS(start)

	status := "success"
	route := ""
	rec := observability.Record{
		Level:       "info",
		EventType:   "request_completed",
		ServiceType: "orchestrator",
		IO:          "output",
		TraceID:     tc.TraceID,
		LatencyMS:   latency,
	}
	if thin != nil {
		rec.SessionID = thin.SessionID
		rec.UserID = thin.UserID
		rec.Channel = thin.Channel
	}
	if res != nil {
		route = res.Route
		rec.Route = res.Route
		rec.Intent = res.Intent
		rec.Confidence = res.IntentConfidence
	}
	if ge != nil {
		status = "error"
		rec.Level = "error"
		rec.EventType = "request_failed"
		rec.Error = string(ge.Code)
	}

	c.obs.RecordRequest(ctx, route, status)
	c.obs.RecordRequestDuration(ctx, time.Since(start), status)
	c.shipper.Ship(rec)
}

func durationMS(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
