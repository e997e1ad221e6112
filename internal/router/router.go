// Package router maps resolved intents to downstream collaborators and
// interprets their results. A single request moves through
// Received -> IntentResolved -> Routed -> {Replied | Errored}; retries, if
// any, belong to the collaborator boundary, not here.
package router

import (
	"context"
	"errors"
	"time"

	gwerrors "mcp-gateway/internal/common/errors"
	"mcp-gateway/internal/common/logger"
	"mcp-gateway/internal/common/metrics"
	"mcp-gateway/internal/envelope"
	"mcp-gateway/internal/intent"
)

// Decision states of a route resolution.
const (
	DecisionReply = "reply"
	DecisionDefer = "defer"
	DecisionError = "error"
)

// RouteDecision is the terminal result of routing one request.
type RouteDecision struct {
	Route     string
	Target    string
	Decision  string
	ReplyText string
	Err       *gwerrors.GatewayError
}

type Router struct {
	table    *Table
	registry *Registry
	timeout  time.Duration
	logger   logger.Logger
}

func New(table *Table, registry *Registry, timeout time.Duration, log logger.Logger) *Router {
	return &Router{
		table:    table,
		registry: registry,
		timeout:  timeout,
		logger:   log.With(map[string]interface{}{"component": "flow_router"}),
	}
}

// Route resolves the intent to a route, calls the target collaborator with
// the trace identifier propagated, and classifies the outcome. decision is
// error only on lookup failure or an irrecoverable downstream failure.
func (r *Router) Route(ctx context.Context, res intent.Result, thin *envelope.ThinRequest) RouteDecision {
	route, ok := r.table.Lookup(res.Label, thin.Tenant)
	if !ok {
		metrics.RequestsRouted.WithLabelValues("unmapped", DecisionError).Inc()
		return RouteDecision{
			Decision: DecisionError,
			Err:      gwerrors.NewRouteNotFoundError(res.Label),
		}
	}

	collaborator, ok := r.registry.Get(route.Target)
	if !ok {
		metrics.RequestsRouted.WithLabelValues(route.Name, DecisionError).Inc()
		return RouteDecision{
			Route:    route.Name,
			Target:   route.Target,
			Decision: DecisionError,
			Err:      gwerrors.NewRouteNotFoundError(res.Label),
		}
	}

	r.logger.Info("routing request", map[string]interface{}{
		"intent":     res.Label,
		"route":      route.Name,
		"target":     route.Target,
		"session_id": thin.SessionID,
		"trace_id":   thin.TraceID,
	})

	dctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	reply, err := collaborator.Call(dctx, &DownstreamRequest{
		UserID:    thin.UserID,
		SessionID: thin.SessionID,
		Channel:   thin.Channel,
		TraceID:   thin.TraceID,
		Text:      thin.Text,
		Intent:    res.Label,
	})
	metrics.DownstreamDuration.WithLabelValues(route.Target).Observe(time.Since(start).Seconds())

	if err != nil {
		ge := r.classify(route.Target, err)
		metrics.DownstreamCalls.WithLabelValues(route.Target, "error").Inc()
		metrics.RequestsRouted.WithLabelValues(route.Name, DecisionError).Inc()
		r.logger.Error("downstream call failed", map[string]interface{}{
			"route":     route.Name,
			"target":    route.Target,
			"error":     err.Error(),
			"retryable": ge.Retryable,
			"trace_id":  thin.TraceID,
		})
		return RouteDecision{
			Route:    route.Name,
			Target:   route.Target,
			Decision: DecisionError,
			Err:      ge,
		}
	}

	metrics.DownstreamCalls.WithLabelValues(route.Target, "success").Inc()
	metrics.RequestsRouted.WithLabelValues(route.Name, DecisionReply).Inc()

	return RouteDecision{
		Route:     route.Name,
		Target:    route.Target,
		Decision:  DecisionReply,
		ReplyText: reply.ReplyText,
	}
}

// classify translates collaborator errors into the taxonomy: timeouts and
// transient statuses are retryable, rejected requests and malformed payloads
// are not.
func (r *Router) classify(target string, err error) *gwerrors.GatewayError {
	if errors.Is(err, ErrDownstreamTimeout) {
		return gwerrors.NewDownstreamTimeoutError(target)
	}
	var serr *statusError
	if errors.As(err, &serr) {
		return gwerrors.NewDownstreamStatusError(target, serr.status)
	}
	if errors.Is(err, ErrDownstreamPayload) {
		return gwerrors.NewDownstreamPayloadError(target, err)
	}
	return gwerrors.NewDownstreamUnavailableError(target, err)
}
