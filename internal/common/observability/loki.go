package observability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	gwhttp "mcp-gateway/internal/common/http"
	"mcp-gateway/internal/common/logger"
)

// Record is the structured per-request record shipped to the log collector.
type Record struct {
	Level       string  `json:"-"`
	EventType   string  `json:"event_type"`
	ServiceType string  `json:"service_type"`
	IO          string  `json:"io"`
	TraceID     string  `json:"trace_id,omitempty"`
	SessionID   string  `json:"session_id,omitempty"`
	UserID      string  `json:"user,omitempty"`
	Channel     string  `json:"channel,omitempty"`
	Turn        int64   `json:"turn,omitempty"`
	Intent      string  `json:"intent,omitempty"`
	Confidence  float64 `json:"intent_confidence,omitempty"`
	Route       string  `json:"route,omitempty"`
	LatencyMS   float64 `json:"latency_ms,omitempty"`
	Message     string  `json:"message,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// LokiShipper pushes records to a Grafana Loki endpoint. Shipping is
// fire-and-forget: Ship never blocks the request path, and records are
// dropped when the queue is full or the collector is down.
type LokiShipper struct {
	url      string
	username string
	token    string
	appLabel string

	client *gwhttp.Client
	queue  chan Record
	logger logger.Logger

	wg     sync.WaitGroup
	closed sync.Once
}

type LokiOptions struct {
	URL      string
	Username string
	Token    string
	AppLabel string
	Timeout  time.Duration
	QueueLen int
}

// NewLokiShipper starts the shipping worker. With an empty URL the shipper is
// disabled and every Ship call is a no-op.
func NewLokiShipper(opts LokiOptions, log logger.Logger) *LokiShipper {
	s := &LokiShipper{
		url:      opts.URL,
		username: opts.Username,
		token:    opts.Token,
		appLabel: opts.AppLabel,
		logger:   log.With(map[string]interface{}{"component": "loki_shipper"}),
	}
	if s.url == "" {
		return s
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 4 * time.Second
	}
	if opts.QueueLen <= 0 {
		opts.QueueLen = 256
	}
	s.client = gwhttp.NewClient(opts.Timeout)
	s.queue = make(chan Record, opts.QueueLen)

	s.wg.Add(1)
	go s.worker()
	return s
}

func (s *LokiShipper) Enabled() bool { return s.queue != nil }

// Ship enqueues one record, dropping it when the queue is full.
func (s *LokiShipper) Ship(rec Record) {
	if s.queue == nil {
		return
	}
	select {
	case s.queue <- rec:
	default:
		s.logger.Warn("log queue full, dropping record", map[string]interface{}{
			"event_type": rec.EventType,
			"trace_id":   rec.TraceID,
		})
	}
}

// Close drains the queue and stops the worker.
func (s *LokiShipper) Close() {
	if s.queue == nil {
		return
	}
	s.closed.Do(func() { close(s.queue) })
	s.wg.Wait()
}

func (s *LokiShipper) worker() {
	defer s.wg.Done()
	for rec := range s.queue {
		s.push(rec)
	}
}

func (s *LokiShipper) push(rec Record) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return
	}

	labels := map[string]string{
		"app":   s.appLabel,
		"level": rec.Level,
	}
	if rec.EventType != "" {
		labels["event"] = rec.EventType
	}
	if rec.ServiceType != "" {
		labels["service"] = rec.ServiceType
	}
	if rec.IO != "" {
		labels["io"] = rec.IO
	}
	if rec.Intent != "" {
		labels["intent"] = rec.Intent
	}
	if rec.TraceID != "" {
		labels["trace_id"] = rec.TraceID
	}

	body, err := json.Marshal(map[string]interface{}{
		"streams": []map[string]interface{}{
			{
				"stream": labels,
				"values": [][]string{
					{strconv.FormatInt(time.Now().UnixNano(), 10), string(payload)},
				},
			},
		},
	})
	if err != nil {
		return
	}

	req, err := http.NewRequest(http.MethodPost, s.url, bytes.NewBuffer(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if s.username != "" || s.token != "" {
		req.SetBasicAuth(s.username, s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("loki push failed", map[string]interface{}{"error": err.Error()})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		s.logger.Warn("loki push rejected", map[string]interface{}{
			"status": fmt.Sprintf("%d", resp.StatusCode),
		})
	}
}
