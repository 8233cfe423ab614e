// Package applog writes the diagnostic log: one line per event with
// key=value fields, size-rotated. The TUI owns the terminal, so nothing
// here ever touches stdout or stderr.
package applog

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	fileName    = "listenordnung.log"
	rotateAt    = 5 << 20
	maxValueLen = 200
)

type sink struct {
	mu  sync.Mutex
	out *os.File
}

var std sink

// Init opens the log file in dir, rotating an oversized one aside first.
// Calling any log function before Init, or after a failed Init, is a no-op.
func Init(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("log dir: %w", err)
	}
	path := filepath.Join(dir, fileName)
	if info, err := os.Stat(path); err == nil && info.Size() > rotateAt {
		os.Rename(path, path+".old")
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}

	std.mu.Lock()
	if std.out != nil {
		std.out.Close()
	}
	std.out = f
	std.mu.Unlock()
	return nil
}

// Close closes the log file; later log calls become no-ops again.
func Close() {
	std.mu.Lock()
	defer std.mu.Unlock()
	if std.out != nil {
		std.out.Close()
		std.out = nil
	}
}

// Info logs a structured event line.
//
//	applog.Info("ws.connected", "remote", addr)
//	applog.Info("snapshot.created", "rev", 5, "items", 42)
func Info(event string, kv ...any) {
	std.emit("info", event, nil, kv)
}

// Warn logs a recoverable problem, such as a selector that failed to
// compile and was skipped.
func Warn(event string, kv ...any) {
	std.emit("warn", event, nil, kv)
}

// Error logs an event with an error.
//
//	applog.Error("ws.send", err, "action", "close")
func Error(event string, err error, kv ...any) {
	std.emit("error", event, err, kv)
}

func (s *sink) emit(level, event string, err error, kv []any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.out == nil {
		return
	}

	var b strings.Builder
	b.WriteString(time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
	fmt.Fprintf(&b, " %s %s", level, event)
	if err != nil {
		b.WriteString(" err=")
		b.WriteString(field(err.Error()))
	}
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%s", kv[i], field(fmt.Sprint(kv[i+1])))
	}
	b.WriteByte('\n')

	s.out.WriteString(b.String())
}

// field truncates long values and quotes anything that would break the
// one-line key=value shape.
func field(v string) string {
	if len(v) > maxValueLen {
		v = v[:maxValueLen] + "…"
	}
	if strings.ContainsAny(v, " \t\n\"=") {
		return strconv.Quote(v)
	}
	return v
}
