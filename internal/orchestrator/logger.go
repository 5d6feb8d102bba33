package orchestrator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// maxDebugLogSize is the size at which the debug log is rotated to
// <path>.1, replacing any previous rotation.
const maxDebugLogSize = 8 << 20

var (
	pkgLogger   *DebugLogger
	pkgLoggerMu sync.RWMutex
)

func setPackageLogger(l *DebugLogger) {
	pkgLoggerMu.Lock()
	defer pkgLoggerMu.Unlock()
	pkgLogger = l
}

// debugLog writes through the logger of the most recently created
// orchestrator. The queue and the analyzer log through it.
func debugLog(format string, args ...any) {
	pkgLoggerMu.RLock()
	l := pkgLogger
	pkgLoggerMu.RUnlock()
	l.Log(format, args...)
}

// DebugLogger writes timestamped scheduler traces to a file. The zero
// value and a nil pointer discard everything.
type DebugLogger struct {
	mu   sync.Mutex
	path string
	file *os.File
	size int64
}

// NewDebugLogger appends to the log at path, creating parent directories.
// An empty path gives a no-op logger.
func NewDebugLogger(path string) (*DebugLogger, error) {
	if path == "" {
		return &DebugLogger{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	l := &DebugLogger{path: path}
	if err := l.open(); err != nil {
		return nil, err
	}
	l.Log("=== autopilot debug log started at %s (pid %d) ===", time.Now().Format(time.RFC3339), os.Getpid())
	return l, nil
}

// NopLogger returns a logger that discards everything.
func NopLogger() *DebugLogger {
	return &DebugLogger{}
}

func (l *DebugLogger) open() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	l.file, l.size = f, info.Size()
	return nil
}

// rotate must be called with mu held.
func (l *DebugLogger) rotate() error {
	if err := l.file.Close(); err != nil {
		return err
	}
	l.file = nil
	if err := os.Rename(l.path, l.path+".1"); err != nil {
		return err
	}
	return l.open()
}

// Log writes one timestamped line.
func (l *DebugLogger) Log(format string, args ...any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}

	line := fmt.Sprintf("[%s] %s\n", time.Now().Format("15:04:05.000"), fmt.Sprintf(format, args...))
	if l.size+int64(len(line)) > maxDebugLogSize {
		if err := l.rotate(); err != nil {
			fmt.Fprintf(os.Stderr, "[orchestrator] debug log rotation failed: %v\n", err)
			if l.file == nil {
				return
			}
		}
	}
	n, _ := l.file.WriteString(line)
	l.size += int64(n)
}

// Path returns the file being written, or "" for a no-op logger.
func (l *DebugLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Close flushes and closes the log file. Later Log calls are dropped.
func (l *DebugLogger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := errors.Join(l.file.Sync(), l.file.Close())
	l.file = nil
	return err
}
