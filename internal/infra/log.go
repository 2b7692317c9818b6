package infra

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// NewLogger builds a logger from the logging section. Format "json" writes
// JSON lines; "text" (or empty) writes human-readable console output.
func NewLogger(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if level != "" {
		var err error
		if lvl, err = zerolog.ParseLevel(strings.ToLower(level)); err != nil {
			return zerolog.Nop(), fmt.Errorf("logging level %q: %w", level, err)
		}
	}

	switch strings.ToLower(format) {
	case "", "text", "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	case "json":
	default:
		return zerolog.Nop(), fmt.Errorf("logging format %q: want text or json", format)
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// WithLogger attaches lg to ctx.
func WithLogger(ctx context.Context, lg zerolog.Logger) context.Context {
	return lg.WithContext(ctx)
}

// Logger returns the logger carried by ctx, or a disabled logger.
func Logger(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}
