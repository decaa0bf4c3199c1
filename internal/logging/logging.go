// Package logging builds the zap logger shared by the scheduler binaries.
package logging

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects level, encoding and destinations.
type Config struct {
	Level  string
	Format string // console or json
	// Outputs are "stdout", "stderr" or file paths.
	Outputs     []string
	Development bool
	Rotation    Rotation

	// outputsDefault is set while Outputs still holds the default, so the
	// first -log-output replaces it instead of appending.
	outputsDefault bool
}

// Rotation applies to file outputs.
type Rotation struct {
	Enable     bool
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

func DefaultConfig() Config {
	return Config{
		Level:   "info",
		Format:  "console",
		Outputs: []string{"stderr"},
	}
}

// RegisterFlags binds c to fs under the log- prefix.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Level, "log-level", c.Level, "Log level: debug, info, warn, error")
	fs.StringVar(&c.Format, "log-format", c.Format, "Log format: console or json")
	fs.Func("log-output", "Log destination: stdout, stderr or a file path (repeatable)", func(v string) error {
		if v == "" {
			return fmt.Errorf("empty log output")
		}
		if c.outputsDefault {
			c.Outputs = nil
			c.outputsDefault = false
		}
		c.Outputs = append(c.Outputs, v)
		return nil
	})
	fs.BoolVar(&c.Development, "log-dev", c.Development, "Development logging (colored levels, DPanic panics)")
	fs.BoolVar(&c.Rotation.Enable, "log-rotate", c.Rotation.Enable, "Rotate file outputs")
	fs.IntVar(&c.Rotation.MaxSizeMB, "log-rotate-size-mb", 100, "Rotate a log file after this many megabytes")
	fs.IntVar(&c.Rotation.MaxBackups, "log-rotate-backups", 3, "Rotated files to keep")
	fs.IntVar(&c.Rotation.MaxAgeDays, "log-rotate-age-days", 28, "Days to keep rotated files")
	fs.BoolVar(&c.Rotation.Compress, "log-rotate-compress", false, "Gzip rotated files")
	c.outputsDefault = true
}

func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zap.DebugLevel, nil
	case "", "info":
		return zap.InfoLevel, nil
	case "warn", "warning":
		return zap.WarnLevel, nil
	case "error":
		return zap.ErrorLevel, nil
	default:
		return zap.InfoLevel, fmt.Errorf("logging: unknown level %q", s)
	}
}

// New builds a logger from c. The caller should defer logger.Sync().
func New(c Config) (*zap.Logger, error) {
	lvl, err := ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	level := zap.NewAtomicLevelAt(lvl)

	var encoder zapcore.Encoder
	switch strings.ToLower(c.Format) {
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig(c.Development))
	case "", "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig(c.Development))
	default:
		return nil, fmt.Errorf("logging: unknown format %q", c.Format)
	}

	outputs := c.Outputs
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}
	cores := make([]zapcore.Core, 0, len(outputs))
	for _, out := range outputs {
		ws, err := writer(out, c.Rotation)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(encoder, ws, level))
	}

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)}
	if c.Development {
		opts = append(opts, zap.Development())
	}
	return zap.New(zapcore.NewTee(cores...), opts...), nil
}

func writer(out string, r Rotation) (zapcore.WriteSyncer, error) {
	switch strings.ToLower(out) {
	case "stdout":
		return zapcore.Lock(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil
	}
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("logging: %w", err)
		}
	}
	if r.Enable {
		return zapcore.AddSync(&lumberjack.Logger{
			Filename:   out,
			MaxSize:    max(r.MaxSizeMB, 1),
			MaxBackups: max(r.MaxBackups, 0),
			MaxAge:     max(r.MaxAgeDays, 0),
			Compress:   r.Compress,
		}), nil
	}
	f, err := os.OpenFile(out, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	return zapcore.AddSync(f), nil
}

func encoderConfig(dev bool) zapcore.EncoderConfig {
	if dev {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg
	}
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}
