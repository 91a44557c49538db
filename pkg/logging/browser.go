package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// BrowserLogger captures browser process output into daily log files named
// browser-YYYY-MM-DD.log. It implements io.Writer so it can be attached
// directly to the process's stdout and stderr.
type BrowserLogger struct {
	dir     string
	file    *os.File
	path    string
	mu      sync.Mutex
	lastDay string
}

// NewBrowserLogger creates a browser output logger that writes to dir.
func NewBrowserLogger(dir string) (*BrowserLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create browser log dir: %w", err)
	}

	l := &BrowserLogger{dir: dir}
	if err := l.rotate(); err != nil {
		return nil, err
	}
	return l, nil
}

// Write appends process output to the current day's log file.
func (l *BrowserLogger) Write(p []byte) (int, error) {
	if l == nil {
		return len(p), nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	today := time.Now().Format("2006-01-02")
	if today != l.lastDay {
		if err := l.rotateLocked(); err != nil {
			return 0, err
		}
	}

	if l.file == nil {
		return len(p), nil
	}
	return l.file.Write(p)
}

// Path returns the current log file path.
func (l *BrowserLogger) Path() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.path
}

// Close closes the log file.
func (l *BrowserLogger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

func (l *BrowserLogger) rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rotateLocked()
}

func (l *BrowserLogger) rotateLocked() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	today := time.Now().Format("2006-01-02")
	l.lastDay = today
	l.path = filepath.Join(l.dir, "browser-"+today+".log")

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open browser log: %w", err)
	}
	l.file = file
	return nil
}
