// Package logging configures the client's zerolog output. The terminal
// belongs to the TUI, so logs always go to a file.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// New opens an append-only log file at path and returns a logger writing
// structured JSON to it. The returned closer releases the file; call it on
// shutdown.
func New(path, level string) (zerolog.Logger, func(), error) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return zerolog.Nop(), nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, err
	}

	zerolog.TimeFieldFormat = time.RFC3339
	logger := zerolog.New(file).Level(parsed).With().Timestamp().Logger()
	return logger, func() { _ = file.Close() }, nil
}
