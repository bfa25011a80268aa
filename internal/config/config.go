// Package config reads process configuration from the environment.
package config

import (
	"errors"
	"strings"
)

// ErrDatabaseURLRequired is returned when DATABASE_URL is unset.
var ErrDatabaseURLRequired = errors.New("DATABASE_URL is required")

// Config holds the indexer's startup configuration.
type Config struct {
	// DatabaseURL is the SQLite DSN used by internal/store.
	DatabaseURL string
	// ListenAddr is the address the HTTP API binds to.
	ListenAddr string
	// LogLevel is the minimum level the default logger emits.
	LogLevel string
}

// EnvLookup matches os.LookupEnv; accepted as a parameter so tests don't
// need to mutate process environment.
type EnvLookup func(key string) (string, bool)

// Load builds a Config from the given environment lookup.
func Load(lookup EnvLookup) (*Config, error) {
	dbURL, ok := lookup("DATABASE_URL")
	if !ok || dbURL == "" {
		return nil, ErrDatabaseURLRequired
	}

	listenAddr, ok := lookup("LISTEN_ADDR")
	if !ok || listenAddr == "" {
		listenAddr = "0.0.0.0:3000"
	}

	logLevel, ok := lookup("LOG_LEVEL")
	if !ok || logLevel == "" {
		logLevel = "info"
	}

	return &Config{
		DatabaseURL: normalizeDSN(dbURL),
		ListenAddr:  listenAddr,
		LogLevel:    logLevel,
	}, nil
}

// normalizeDSN appends the pragmas the store relies on (WAL journaling, a
// busy timeout so the single writer connection doesn't fail under brief
// read/write overlap) when the caller supplied a bare file path.
func normalizeDSN(raw string) string {
	if strings.Contains(raw, "?") {
		return raw
	}
	return raw + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
}
