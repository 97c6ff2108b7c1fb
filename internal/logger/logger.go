package logger

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
)

// Log levels accepted in config files and flags.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// Logger wraps zap's SugaredLogger so call sites use the key/value style
// (Infow, Warnw, Errorw).
type Logger struct {
	*zap.SugaredLogger
}

var (
	global *Logger
	once   sync.Once
)

// Get returns the process-wide logger writing to stdout. The first call
// picks the level; later calls return the same instance.
func Get(level string) *Logger {
	once.Do(func() {
		global = New(level, os.Stdout)
	})
	return global
}

// New builds a standalone logger writing console lines to w.
func New(level string, w io.Writer) *Logger {
	return &Logger{SugaredLogger: zap.New(consoleCore(parseLevel(level), w)).Sugar()}
}

// Nop discards everything. Used by tests and library callers that pass no logger.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(args...)}
}
