// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/meikuraledutech/flow/engine"
	"github.com/meikuraledutech/flow/layout"
)

// Config holds everything the server needs to start.
type Config struct {
	Addr        string // API and push channel
	DatabaseURL string // empty selects the in-memory store

	LogLevel  string
	LogFormat string

	Engine engine.Options
	Layout layout.Config
}

// Load reads the configuration through getenv (os.Getenv in production) and
// validates it. Unset variables take their defaults.
func Load(getenv func(string) string) (*Config, error) {
	l := loader{getenv: getenv}

	cfg := &Config{
		Addr:        l.str("ADDR", ":3001"),
		DatabaseURL: l.str("DATABASE_URL", ""),
		LogLevel:    l.str("LOG_LEVEL", "info"),
		LogFormat:   l.str("LOG_FORMAT", "json"),
		Engine: engine.Options{
			StepDelay:         l.duration("STEP_DELAY", 4500*time.Millisecond),
			MaxConcurrentRuns: l.positive("MAX_CONCURRENT_RUNS", 8),
			MaxQueuedRuns:     l.nonNegative("MAX_QUEUED_RUNS", 32),
			RunTimeout:        l.duration("RUN_TIMEOUT", 10*time.Minute),
		},
		Layout: layout.Config{
			XSpacing: l.float("LAYOUT_X_SPACING", 240),
			YSpacing: l.float("LAYOUT_Y_SPACING", 160),
			Y0:       l.float("LAYOUT_Y0", 50),
			XCenter:  l.float("LAYOUT_X_CENTER", 400),
		},
	}

	order, err := engine.ParseOrder(l.str("EXECUTION_ORDER", string(engine.OrderSubmission)))
	if err != nil && l.err == nil {
		l.err = fmt.Errorf("config: EXECUTION_ORDER: %w", err)
	}
	cfg.Engine.Order = order

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		l.fail("LOG_LEVEL", "must be 'debug', 'info', 'warn', or 'error'")
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		l.fail("LOG_FORMAT", "must be 'text' or 'json'")
	}

	if l.err != nil {
		return nil, l.err
	}
	return cfg, nil
}

// loader keeps the first parse error so Load can read every variable in one pass.
type loader struct {
	getenv func(string) string
	err    error
}

func (l *loader) fail(name, msg string) {
	if l.err == nil {
		l.err = fmt.Errorf("config: %s: %s", name, msg)
	}
}

func (l *loader) str(name, def string) string {
	if v := l.getenv(name); v != "" {
		return v
	}
	return def
}

func (l *loader) duration(name string, def time.Duration) time.Duration {
	v := l.getenv(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		l.fail(name, fmt.Sprintf("invalid duration %q", v))
		return def
	}
	return d
}

func (l *loader) integer(name string, def int) int {
	v := l.getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		l.fail(name, fmt.Sprintf("invalid integer %q", v))
		return def
	}
	return n
}

func (l *loader) positive(name string, def int) int {
	n := l.integer(name, def)
	if n < 1 {
		l.fail(name, "must be at least 1")
	}
	return n
}

func (l *loader) nonNegative(name string, def int) int {
	n := l.integer(name, def)
	if n < 0 {
		l.fail(name, "must not be negative")
	}
	return n
}

func (l *loader) float(name string, def float64) float64 {
	v := l.getenv(name)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		l.fail(name, fmt.Sprintf("invalid number %q", v))
		return def
	}
	return f
}
