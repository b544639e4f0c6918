// Package cmdutil holds the small env-var config helpers cmd/api and
// cmd/worker both use, lifted from the teacher's registry/cmd/registry/
// main.go (envOr/envIntOr/envDurationOr) rather than reaching for a config
// library the pack never imports.
package cmdutil

import (
	"os"
	"strconv"
	"time"
)

// EnvOr returns the named environment variable, or defaultVal if unset.
func EnvOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// EnvIntOr returns the named environment variable parsed as int, or
// defaultVal if unset or unparseable.
func EnvIntOr(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

// EnvInt64Or returns the named environment variable parsed as int64, or
// defaultVal if unset or unparseable.
func EnvInt64Or(key string, defaultVal int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

// EnvDurationOr returns the named environment variable parsed as a
// time.Duration, or defaultVal if unset or unparseable.
func EnvDurationOr(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
