package simulate

import (
	"fmt"
	"runtime"
	"time"
)

// Default simulation settings.
const (
	DefaultBaseURL     = "http://localhost:9080"
	DefaultRounds      = 6
	DefaultCompetitors = 40
	DefaultRate        = 200
	DefaultTimeout     = 10 * time.Second
	DefaultSettle      = 30 * time.Second
	DefaultTopN        = 20
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
)

// Config holds the settings of a simulation run.
type Config struct {
	BaseURL     string        // Base URL of the service
	Rounds      int           // Rounds to generate
	Competitors int           // Competitors per round
	Workers     int           // Concurrent requests in flight
	Rate        float64       // Requests per second, 0 for unlimited
	Timeout     time.Duration // HTTP request timeout
	Settle      time.Duration // How long to wait for the store to catch up
	TopN        int           // Rows fetched when checking round ordering
	Replays     int           // Accepted submissions resent to check idempotency
	Seed        int64         // Generator seed
	OutputFile  string        // Optional JSON dump of the generated rounds
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		BaseURL:     DefaultBaseURL,
		Rounds:      DefaultRounds,
		Competitors: DefaultCompetitors,
		Workers:     runtime.NumCPU() * defaultWorkers,
		Rate:        DefaultRate,
		Timeout:     DefaultTimeout,
		Settle:      DefaultSettle,
		TopN:        DefaultTopN,
		Seed:        time.Now().UnixNano(),
	}
}

// Validate checks the settings.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	case c.Rounds < 1:
		return fmt.Errorf("%w: rounds must be positive", ErrInvalidConfig)
	case c.Competitors < 1:
		return fmt.Errorf("%w: competitors must be positive", ErrInvalidConfig)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	case c.Rate < 0:
		return fmt.Errorf("%w: rate must not be negative", ErrInvalidConfig)
	case c.Timeout <= 0 || c.Settle <= 0:
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	case c.TopN < 1:
		return fmt.Errorf("%w: top must be positive", ErrInvalidConfig)
	case c.Replays < 0:
		return fmt.Errorf("%w: replays must not be negative", ErrInvalidConfig)
	}
	return nil
}
