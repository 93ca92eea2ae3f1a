// Package env reads process settings that must be known before config.Load
// runs, such as log format and instance identity.
package env

import (
	"os"
	"strings"
)

// First returns the first of keys with a non-blank value, trimmed.
func First(keys ...string) string {
	for _, key := range keys {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			return val
		}
	}
	return ""
}

// Get is First for a single key with a default.
func Get(key, fallback string) string {
	if val := First(key); val != "" {
		return val
	}
	return fallback
}
