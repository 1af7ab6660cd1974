package logger

import (
	"fmt"
	"strings"

	"positionEngine/internal/ports"
)

// New returns the logger for format ("std" or "zap") at level. The returned
// func flushes buffered output and is safe to defer.
func New(format string, level LogLevel) (ports.Logger, func(), error) {
	switch strings.ToLower(format) {
	case "", "std":
		return NewStdLogger(level), func() {}, nil
	case "zap":
		z, err := NewZapLogger(strings.ToLower(level.String()))
		if err != nil {
			return nil, nil, fmt.Errorf("build zap logger: %w", err)
		}
		return z, func() { _ = z.Sync() }, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown log format %q", ports.ErrConfigurationError, format)
}
