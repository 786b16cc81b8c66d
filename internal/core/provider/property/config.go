package property

import "time"

type Config struct {
	Table      string
	Timeout    time.Duration
	MaxResults int
}
