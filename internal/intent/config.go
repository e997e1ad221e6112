package intent

import "time"

type Config struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	MinConfidence float64
	FallbackLabel string
}
