// Package runlog writes the per-run download log artifact: one append-only
// text file per invocation, timestamped by creation time. Subject sections
// are buffered and flushed in a single write, so parallel subjects never
// interleave inside a section.
package runlog

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileName returns the log file name for a run created at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("shanoir_downloader_%04d%02d%02d_%02d%02d%02d.log",
		t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
}

// Log is the append-only run log. A single writer at a time is enforced
// with a mutex; sections buffer their lines until Flush.
type Log struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// Create opens a new run log in dir, named after the current time.
func Create(dir string) (*Log, error) {
	return CreateAt(dir, time.Now())
}

// CreateAt opens a new run log in dir, named after t.
func CreateAt(dir string, t time.Time) (*Log, error) {
	path := filepath.Join(dir, FileName(t))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating run log failed: %w", err)
	}
	return &Log{file: file, path: path}, nil
}

func (l *Log) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Banner appends msg framed by "*" lines directly to the log.
func (l *Log) Banner(msg string) {
	if l == nil {
		return
	}
	frame := strings.Repeat("*", len(msg)+6)
	l.append([]byte(frame + "\n*  " + msg + "  *\n" + frame + "\n"))
}

// Linef appends one formatted line directly to the log.
func (l *Log) Linef(format string, v ...any) {
	if l == nil {
		return
	}
	l.append([]byte(fmt.Sprintf(format, v...) + "\n"))
}

func (l *Log) append(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}
	_, _ = l.file.Write(b)
}

// Flush appends a buffered section in one write.
func (l *Log) Flush(s *Section) {
	if l == nil || s == nil || s.buf.Len() == 0 {
		return
	}
	l.append(s.buf.Bytes())
	s.buf.Reset()
}

func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Section buffers log lines for one subject. It is not safe for concurrent
// use; each subject owns exactly one.
type Section struct {
	buf bytes.Buffer
}

func NewSection() *Section {
	return &Section{}
}

func (s *Section) Linef(format string, v ...any) {
	fmt.Fprintf(&s.buf, format+"\n", v...)
}

func (s *Section) Banner(msg string) {
	frame := strings.Repeat("*", len(msg)+6)
	s.buf.WriteString(frame + "\n*  " + msg + "  *\n" + frame + "\n")
}

// String exposes the buffered content, mainly for tests.
func (s *Section) String() string {
	return s.buf.String()
}
