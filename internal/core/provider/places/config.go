package places

import "time"

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxResults int
	// AmenityTypes, when set, enriches each lookup with surrounding
	// amenity counts (hospitals, schools...).
	AmenityTypes []string
}
