package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
)

// CaptureBuffer collects JSON log lines written by a test logger.
// It is safe for concurrent writers such as task runner goroutines.
type CaptureBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (c *CaptureBuffer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

func (c *CaptureBuffer) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Entries decodes every non-blank line as one JSON record.
func (c *CaptureBuffer) Entries() ([]map[string]any, error) {
	var entries []map[string]any

	sc := bufio.NewScanner(bytes.NewBufferString(c.String()))
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, sc.Err()
}

// Find returns the first record logged with msg.
func (c *CaptureBuffer) Find(msg string) (map[string]any, bool) {
	entries, err := c.Entries()
	if err != nil {
		return nil, false
	}
	for _, e := range entries {
		if e[slog.MessageKey] == msg {
			return e, true
		}
	}
	return nil, false
}

// NewTestLogger returns a debug-level JSON logger and the buffer it writes to.
// The default logger is left untouched.
func NewTestLogger(t *testing.T) (*slog.Logger, *CaptureBuffer) {
	t.Helper()

	buf := &CaptureBuffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}
