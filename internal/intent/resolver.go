// Package intent resolves the user's intent through the external classifier
// collaborator, degrading to a fallback label instead of failing the request.
package intent

import (
	"context"
	"errors"

	"mcp-gateway/internal/common/logger"
	"mcp-gateway/internal/common/metrics"
	"mcp-gateway/internal/envelope"
)

// Source tells whether a result came from the classifier or the fallback policy.
type Source string

const (
	SourceClassifier Source = "classifier"
	SourceFallback   Source = "fallback"
)

// Result is a typed intent resolution. Source is fallback whenever the
// classifier call failed, timed out, or reported confidence below the
// configured minimum.
type Result struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Source     Source  `json:"source"`
}

type Resolver struct {
	classifier Classifier
	config     *Config
	logger     logger.Logger
}

func NewResolver(classifier Classifier, config *Config, log logger.Logger) *Resolver {
	return &Resolver{
		classifier: classifier,
		config:     config,
		logger:     log.With(map[string]interface{}{"component": "intent_resolver"}),
	}
}

// Resolve classifies the request text. It never returns an error: classifier
// failures degrade to the fallback label with zero confidence, and
// low-confidence results are substituted with the fallback label while the
// classifier's raw confidence is kept for observability.
func (r *Resolver) Resolve(ctx context.Context, thin *envelope.ThinRequest) Result {
	if thin.IntentOverride != "" {
		return Result{Label: thin.IntentOverride, Confidence: 1.0, Source: SourceClassifier}
	}

	cctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	classification, err := r.classifier.Classify(cctx, thin.Text, thin)
	if err != nil {
		reason := "error"
		if errors.Is(err, ErrClassifierTimeout) {
			reason = "timeout"
		}
		metrics.ClassifierFallbacks.WithLabelValues(reason).Inc()
		r.logger.Warn("classifier degraded to fallback", map[string]interface{}{
			"reason":     reason,
			"error":      err.Error(),
			"session_id": thin.SessionID,
			"trace_id":   thin.TraceID,
		})
		return Result{Label: r.config.FallbackLabel, Confidence: 0.0, Source: SourceFallback}
	}

	if classification.Confidence < r.config.MinConfidence {
		metrics.ClassifierFallbacks.WithLabelValues("low_confidence").Inc()
		r.logger.Info("classifier confidence below minimum", map[string]interface{}{
			"label":      classification.Label,
			"confidence": classification.Confidence,
			"minimum":    r.config.MinConfidence,
			"trace_id":   thin.TraceID,
		})
		return Result{
			Label:      r.config.FallbackLabel,
			Confidence: classification.Confidence,
			Source:     SourceFallback,
		}
	}

	return Result{
		Label:      classification.Label,
		Confidence: classification.Confidence,
		Source:     SourceClassifier,
	}
}
