// Package obslog builds the structured logger every zerobuffer component
// logs lifecycle transitions through: reader/writer attach and detach,
// stale-resource reclamation, peer-death detection, wrap-marker
// placement. Grounded on sakateka-yanet2's common/go/logging package,
// adapted from its terminal-aware SugaredLogger setup to a plain
// zap.Logger since this module has no interactive CLI surface to color
// for.
package obslog

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a console-encoded zap.Logger at the given level ("debug",
// "info", "warn", "error"; defaults to "info" on a bad value).
func New(level string) (*zap.Logger, error) {
	lvl := zap.NewAtomicLevel()
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl.SetLevel(zap.InfoLevel)
	}

	cfg := zap.Config{
		Level:            lvl,
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// Nop returns a logger that discards everything, for callers that don't
// want zerobuffer's lifecycle logging (e.g. most unit tests).
func Nop() *zap.Logger { return zap.NewNop() }
