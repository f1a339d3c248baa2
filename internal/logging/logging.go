// Package logging constructs the zap loggers used by the cachenode and proxy
// binaries, matching the production/development split the vaultaire example
// uses in cmd/vaultaire/main.go.
package logging

import "go.uber.org/zap"

// New builds a production logger in normal operation, or a development logger
// (human-readable console output) when debug is true.
func New(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// NewNop returns a logger that discards everything, for tests that do not
// want to assert on log output.
func NewNop() *zap.Logger {
	return zap.NewNop()
}
