// Package logging builds the slog backend shared by every subsystem
// logger, optionally mirrored to a rotating log file.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// LogConfig configures the process-wide log backend.
type LogConfig struct {
	// LogFile mirrors log output to a rotating file when set.
	LogFile string

	// DebugLevel is either one level applied to every subsystem or a
	// comma-separated list of subsystem=level overrides, e.g. "debug"
	// or "SRVR=debug,BJCK=trace".
	DebugLevel string

	// MaxLogFiles caps how many rotated files are kept on disk.
	MaxLogFiles int
}

// logWriter tees log output to stdout and, when configured, the rotator.
type logWriter struct {
	r *rotator.Rotator
}

func (w logWriter) Write(p []byte) (int, error) {
	os.Stdout.Write(p)
	if w.r != nil {
		return w.r.Write(p)
	}
	return len(p), nil
}

// LogBackend owns the slog backend, the file rotator and the subsystem
// loggers handed out to the rest of the process.
type LogBackend struct {
	mu sync.Mutex

	backend      *slog.Backend
	rotator      *rotator.Rotator
	defaultLevel slog.Level
	levels       map[string]slog.Level
	loggers      map[string]slog.Logger
}

// NewLogBackend creates the backend described by cfg. An empty LogFile
// logs to stdout only.
func NewLogBackend(cfg LogConfig) (*LogBackend, error) {
	b := &LogBackend{
		defaultLevel: slog.LevelInfo,
		levels:       make(map[string]slog.Level),
		loggers:      make(map[string]slog.Logger),
	}

	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o700); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		maxFiles := cfg.MaxLogFiles
		if maxFiles <= 0 {
			maxFiles = 5
		}
		r, err := rotator.New(cfg.LogFile, 10*1024, false, maxFiles)
		if err != nil {
			return nil, fmt.Errorf("create log rotator: %w", err)
		}
		b.rotator = r
	}

	b.backend = slog.NewBackend(logWriter{r: b.rotator})
	if err := b.setDebugLevels(cfg.DebugLevel); err != nil {
		return nil, err
	}
	return b, nil
}

// setDebugLevels parses the DebugLevel spec: a bare level sets the
// default, subsystem=level pairs set per-subsystem overrides.
func (b *LogBackend) setDebugLevels(spec string) error {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil
	}
	if !strings.Contains(spec, "=") {
		lvl, ok := slog.LevelFromString(spec)
		if !ok {
			return fmt.Errorf("invalid debug level %q", spec)
		}
		b.defaultLevel = lvl
		return nil
	}
	for _, pair := range strings.Split(spec, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			return fmt.Errorf("invalid debug level pair %q", pair)
		}
		lvl, ok := slog.LevelFromString(strings.TrimSpace(kv[1]))
		if !ok {
			return fmt.Errorf("invalid debug level %q in pair %q", kv[1], pair)
		}
		b.levels[strings.ToUpper(strings.TrimSpace(kv[0]))] = lvl
	}
	return nil
}

// Logger returns the logger for a subsystem tag, creating it on first use.
func (b *LogBackend) Logger(subsys string) slog.Logger {
	b.mu.Lock()
	defer b.mu.Unlock()

	if l, ok := b.loggers[subsys]; ok {
		return l
	}
	l := b.backend.Logger(subsys)
	lvl := b.defaultLevel
	if override, ok := b.levels[strings.ToUpper(subsys)]; ok {
		lvl = override
	}
	l.SetLevel(lvl)
	b.loggers[subsys] = l
	return l
}

// Close flushes and closes the log file rotator.
func (b *LogBackend) Close() error {
	if b.rotator != nil {
		return b.rotator.Close()
	}
	return nil
}
