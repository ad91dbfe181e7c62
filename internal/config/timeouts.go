package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds the time and retry knobs of a run.
// A zero Command timeout leaves commands unbounded.
type Timeouts struct {
	Command           time.Duration // Per host command; 0 means no limit
	SSHDial           time.Duration // Single SSH dial attempt
	RetryMaxAttempts  int           // Attempts for SSH dial and database connect
	RetryInitialDelay time.Duration // First backoff delay
}

// LoadTimeouts loads timeout configuration from environment variables.
// Unset or unparsable variables fall back to defaults.
//
// Environment Variables:
//   - PETPROV_TIMEOUT_COMMAND (default: 0, unlimited)
//   - PETPROV_TIMEOUT_SSH_DIAL (default: 10s)
//   - PETPROV_RETRY_MAX_ATTEMPTS (default: 5)
//   - PETPROV_RETRY_INITIAL_DELAY (default: 1s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		Command:           parseDuration("PETPROV_TIMEOUT_COMMAND", 0),
		SSHDial:           parseDuration("PETPROV_TIMEOUT_SSH_DIAL", 10*time.Second),
		RetryMaxAttempts:  parseInt("PETPROV_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay: parseDuration("PETPROV_RETRY_INITIAL_DELAY", time.Second),
	}
}

func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d < 0 {
		return defaultVal
	}
	return d
}

func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
