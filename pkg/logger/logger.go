package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is attached to every entry written by a logger built with Init.
const ServiceName = "accountd"

var (
	mu     sync.RWMutex
	global = zap.NewNop()
)

// Init builds the process logger. Development switches to the console encoder at debug
// level regardless of level; otherwise level is parsed and falls back to info.
func Init(level string, development bool) error {
	cfg := zap.NewProductionConfig()
	lvl := zapcore.InfoLevel
	if development {
		cfg = zap.NewDevelopmentConfig()
		lvl = zapcore.DebugLevel
	} else if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.InitialFields = map[string]any{"service": ServiceName}

	l, err := cfg.Build()
	if err != nil {
		return err
	}
	Replace(l)
	return nil
}

// Replace installs l as the process logger and returns the one it replaced. nil installs a no-op.
func Replace(l *zap.Logger) *zap.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	defer mu.Unlock()
	prev := global
	global = l
	return prev
}

// Logger returns the process logger.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// Sync flushes buffered entries.
func Sync() error {
	return Logger().Sync()
}

// WithModule returns the process logger tagged with module.
func WithModule(module string) *zap.Logger {
	return Logger().With(zap.String("module", module))
}

// MaskedEmail logs an address with its local part reduced to the first character,
// so delivery problems can be traced without writing full addresses to the log.
func MaskedEmail(key, addr string) zap.Field {
	local, domain, ok := strings.Cut(strings.TrimSpace(addr), "@")
	if !ok || local == "" {
		return zap.String(key, "***")
	}
	return zap.String(key, local[:1]+"***@"+domain)
}
