package capture

import "time"

// DefaultMaxRetries is the number of retries after a failed first attempt.
const DefaultMaxRetries = 5

// Tiers holds the timeouts for one execution environment.
type Tiers struct {
	// First attempt.
	Navigate    time.Duration
	Settle      time.Duration
	RootElement time.Duration
	Screenshot  time.Duration

	// Retries.
	MaxRetries      int
	RetryNavigate   time.Duration
	RetryScreenshot time.Duration
	RetryDelay      time.Duration
}

// LocalTiers suits an interactive developer machine.
func LocalTiers() Tiers {
	return Tiers{
		Navigate:        60 * time.Second,
		Settle:          3 * time.Second,
		RootElement:     10 * time.Second,
		Screenshot:      30 * time.Second,
		MaxRetries:      DefaultMaxRetries,
		RetryNavigate:   30 * time.Second,
		RetryScreenshot: 30 * time.Second,
		RetryDelay:      time.Second,
	}
}

// CITiers suits slower, resource-constrained CI runners.
func CITiers() Tiers {
	return Tiers{
		Navigate:        90 * time.Second,
		Settle:          5 * time.Second,
		RootElement:     20 * time.Second,
		Screenshot:      60 * time.Second,
		MaxRetries:      DefaultMaxRetries,
		RetryNavigate:   60 * time.Second,
		RetryScreenshot: 60 * time.Second,
		RetryDelay:      5 * time.Second,
	}
}

// TiersFor picks the tier for the environment and applies the retry limit.
func TiersFor(ciMode bool, maxRetries int) Tiers {
	tiers := LocalTiers()
	if ciMode {
		tiers = CITiers()
	}
	if maxRetries >= 0 {
		tiers.MaxRetries = maxRetries
	}
	return tiers
}
