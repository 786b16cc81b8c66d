package websearch

import "time"

type Config struct {
	BaseURL      string
	APIKey       string
	EngineID     string
	Timeout      time.Duration
	MaxResults   int
	MinRelevance float64
}
