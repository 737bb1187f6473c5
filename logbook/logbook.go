//
// Copyright (c) 2026, Přemysl Eric Janouch <p@janouch.name>
//
// Permission to use, copy, modify, and/or distribute this software for any
// purpose with or without fee is hereby granted.
//
// THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES
// WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR ANY
// SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES
// WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN ACTION
// OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF OR IN
// CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.
//

// Package logbook provides mcpd's line-oriented leveled logging.
package logbook

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level classifies log entries by severity.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
	Fatal

	silent
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	case Fatal:
		return "FATAL"
	}
	return "?"
}

// ParseLevel converts a configuration string to a Level.
func ParseLevel(s string) (Level, error) {
	for l := Debug; l <= Fatal; l++ {
		if s == l.String() {
			return l, nil
		}
	}
	return Info, fmt.Errorf("unknown log level: %s", s)
}

// Options configures a Logger.
type Options struct {
	Level   Level
	Console io.Writer // nil for none
	Path    string    // log file path, empty for none
	MaxSize int64     // rotate the file beyond this many bytes, 0 = never
}

// Logger writes timestamped log lines to a console writer and/or a log file
// with simple size-based rotation. It is safe for concurrent use.
type Logger struct {
	mu      sync.Mutex
	level   Level
	console io.Writer
	path    string
	file    *os.File
	size    int64
	maxSize int64
}

// Discard is a Logger that ignores all entries.
var Discard = &Logger{level: silent}

// New creates a Logger from the given options.
func New(o Options) (*Logger, error) {
	l := &Logger{
		level:   o.Level,
		console: o.Console,
		path:    o.Path,
		maxSize: o.MaxSize,
	}
	if l.path != "" {
		if err := l.open(); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *Logger) open() error {
	f, err := os.OpenFile(l.path,
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("cannot open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	l.file, l.size = f, info.Size()
	return nil
}

// SetLevel changes the minimum level of recorded entries.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetOutput redirects the file sink to another path.
func (l *Logger) SetOutput(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	l.path = path
	if path == "" {
		return nil
	}
	return l.open()
}

// Close flushes and closes the file sink, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Log records a single message at the given level.
func (l *Logger) Log(level Level, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}

	line := fmt.Sprintf("%s [%s] %s\n",
		time.Now().Format("2006-01-02 15:04:05.000"), level, message)
	if l.console != nil {
		_, _ = io.WriteString(l.console, line)
	}
	if l.file == nil {
		return
	}

	if l.maxSize > 0 && l.size+int64(len(line)) > l.maxSize {
		l.rotate()
	}
	if l.file == nil {
		return
	}
	if n, err := l.file.WriteString(line); err == nil {
		l.size += int64(n)
	}
}

// rotate moves the current file aside and starts a new one.
func (l *Logger) rotate() {
	l.file.Close()
	l.file, l.size = nil, 0
	_ = os.Rename(l.path, l.path+".1")
	_ = l.open()
}

// Logf records a formatted message at the given level.
func (l *Logger) Logf(level Level, format string, args ...interface{}) {
	l.Log(level, fmt.Sprintf(format, args...))
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.Logf(Debug, format, args...)
}
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Logf(Info, format, args...)
}
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.Logf(Warn, format, args...)
}
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Logf(Error, format, args...)
}
