package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gwhttp "mcp-gateway/internal/common/http"
	"mcp-gateway/internal/envelope"
	"mcp-gateway/internal/trace"
)

var (
	ErrClassifierFailed  = errors.New("CLASSIFIER_FAILED")
	ErrClassifierTimeout = errors.New("CLASSIFIER_TIMEOUT")
)

// Classification is the raw result of one classifier call.
type Classification struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Classifier is the capability interface for the external intent classifier
// collaborator. Implementations must honor the context deadline.
type Classifier interface {
	Classify(ctx context.Context, text string, thin *envelope.ThinRequest) (Classification, error)
}

// HTTPClassifier calls the external classifier service over HTTP.
type HTTPClassifier struct {
	baseURL string
	apiKey  string
	client  *gwhttp.Client
}

func NewHTTPClassifier(baseURL, apiKey string, timeout time.Duration) *HTTPClassifier {
	return &HTTPClassifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  gwhttp.NewClient(timeout),
	}
}

func (c *HTTPClassifier) Classify(ctx context.Context, text string, thin *envelope.ThinRequest) (Classification, error) {
	requestBody := map[string]interface{}{
		"text": text,
		"context": map[string]interface{}{
			"user_id":    thin.UserID,
			"channel":    thin.Channel,
			"session_id": thin.SessionID,
		},
	}

	body, _ := json.Marshal(requestBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewBuffer(body))
	if err != nil {
		return Classification{}, fmt.Errorf("%w: %v", ErrClassifierFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(trace.Header, thin.TraceID)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if ctx.Err() != nil ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return Classification{}, ErrClassifierTimeout
	}
	if err != nil {
		return Classification{}, fmt.Errorf("%w: %v", ErrClassifierFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Classification{}, fmt.Errorf("%w: status %d", ErrClassifierFailed, resp.StatusCode)
	}

	// Tolerate both {label, confidence} and the older {intent, confidence}.
	var apiResponse struct {
		Label      string  `json:"label"`
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return Classification{}, fmt.Errorf("%w: decode error: %v", ErrClassifierFailed, err)
	}

	label := apiResponse.Label
	if label == "" {
		label = apiResponse.Intent
	}
	if label == "" {
		return Classification{}, fmt.Errorf("%w: response carries no label", ErrClassifierFailed)
	}

	return Classification{Label: label, Confidence: apiResponse.Confidence}, nil
}

// KeywordClassifier is the offline classifier used when no classifier
// endpoint is configured. Keyword rules mirror the hosted classifier's label
// set for the food-ordering assistant.
type KeywordClassifier struct{}

func NewKeywordClassifier() KeywordClassifier { return KeywordClassifier{} }

type keywordRule struct {
	label      string
	confidence float64
	keywords   []string
}

var keywordRules = []keywordRule{
	{"menu", 0.8, []string{"menu", "get the menu", "read the menu"}},
	{"order", 0.7, []string{"order", "buy", "checkout"}},
	{"track_order", 0.7, []string{"track", "where is my order", "status of my order"}},
	{"recommend", 0.7, []string{"recommend", "suggest", "what should i eat"}},
	{"profile", 0.6, []string{"profile", "my preferences", "remember that i"}},
	{"greeting", 0.6, []string{"hi", "hello", "good morning", "good evening"}},
}

func (KeywordClassifier) Classify(_ context.Context, text string, _ *envelope.ThinRequest) (Classification, error) {
	t := strings.ToLower(text)
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(t, kw) {
				return Classification{Label: rule.label, Confidence: rule.confidence}, nil
			}
		}
	}
	return Classification{Label: "smalltalk", Confidence: 0.5}, nil
}
