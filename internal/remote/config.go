package remote

import "time"

// Config holds the remote backend's policy knobs. Zero values take defaults.
type Config struct {
	Model  string
	APIKey string

	// MaxRetries is the number of retries after the first attempt. Zero takes
	// the default; a negative value disables retries.
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	AttemptTimeout time.Duration
	OverallTimeout time.Duration
	ProbeTimeout   time.Duration

	MaxTokens   int
	Temperature float32
	Stop        []string
	// Stream asks the server for SSE output. Both forms are accepted either way.
	Stream bool
}

const (
	defaultMaxRetries     = 2
	defaultBaseBackoff    = 200 * time.Millisecond
	defaultMaxBackoff     = 2 * time.Second
	defaultAttemptTimeout = 3 * time.Second
	defaultOverallTimeout = 6 * time.Second
	defaultProbeTimeout   = 1500 * time.Millisecond
	defaultMaxTokens      = 100
	jitterPercent         = 10
)

// DefaultConfig returns the defaults used for zero fields.
func DefaultConfig() Config { return Config{}.withDefaults() }

func (c Config) withDefaults() Config {
	switch {
	case c.MaxRetries == 0:
		c.MaxRetries = defaultMaxRetries
	case c.MaxRetries < 0:
		c.MaxRetries = -1
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = defaultBaseBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaultMaxBackoff
	}
	if c.MaxBackoff < c.BaseBackoff {
		c.MaxBackoff = c.BaseBackoff
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = defaultAttemptTimeout
	}
	if c.OverallTimeout <= 0 {
		c.OverallTimeout = defaultOverallTimeout
	}
	if c.AttemptTimeout > c.OverallTimeout {
		c.AttemptTimeout = c.OverallTimeout
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = defaultProbeTimeout
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.Temperature < 0 {
		c.Temperature = 0
	}
	if c.Stop == nil {
		c.Stop = []string{"\n\n"}
	}
	return c
}

func (c Config) retries() uint64 {
	if c.MaxRetries < 0 {
		return 0
	}
	return uint64(c.MaxRetries)
}
