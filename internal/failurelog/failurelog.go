// Package failurelog appends unexpected conversion failures to a JSON-lines
// file so they can be inspected after the fact.
package failurelog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// EnableEnvVar turns failure logging on when set to "true"
	EnableEnvVar = "LOG_CONVERSION_FAILURES"

	// DefaultRetentionDays is how long entries are kept
	DefaultRetentionDays = 60

	fileName = "conversion-failures.log"
)

// Entry is one recorded failure
type Entry struct {
	Timestamp string   `json:"timestamp"`
	RequestID string   `json:"request_id"`
	Operation string   `json:"operation"`
	Inputs    []string `json:"inputs,omitempty"`
	Output    string   `json:"output_format,omitempty"`
	Tier      string   `json:"tier,omitempty"`
	Error     string   `json:"error"`
}

// Logger writes entries to a single append-only file. A disabled Logger
// accepts calls and does nothing.
type Logger struct {
	enabled  bool
	file     *os.File
	logger   *logrus.Logger
	mu       sync.Mutex
	filePath string
}

// Disabled returns a Logger that records nothing
func Disabled() *Logger {
	return &Logger{}
}

// FromEnv opens the log under dir (normally ~/.mcp-fileconv/logs) when
// LOG_CONVERSION_FAILURES=true, otherwise returns a disabled Logger
func FromEnv(dir string, logger *logrus.Logger) (*Logger, error) {
	if os.Getenv(EnableEnvVar) != "true" {
		return Disabled(), nil
	}
	return Open(filepath.Join(dir, fileName), logger)
}

// Open opens path for appending and prunes entries past retention in the
// background
func Open(path string, logger *logrus.Logger) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open conversion failure log: %w", err)
	}

	l := &Logger{enabled: true, file: f, logger: logger, filePath: path}
	go func() {
		if err := l.Prune(time.Now().AddDate(0, 0, -DefaultRetentionDays)); err != nil && logger != nil {
			logger.WithError(err).Warn("Failed to prune conversion failure log")
		}
	}()

	if logger != nil {
		logger.WithField("path", path).Info("Conversion failure logging enabled")
	}
	return l, nil
}

// Record appends e, stamping it with the current time when unset
func (l *Logger) Record(e Entry) {
	if l == nil || !l.enabled {
		return
	}
	if e.Timestamp == "" {
		e.Timestamp = time.Now().Format(time.RFC3339)
	}

	data, err := json.Marshal(e)
	if err != nil {
		l.warn(err, "Failed to marshal conversion failure entry")
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}
	if _, err := l.file.Write(append(data, '\n')); err != nil {
		l.warn(err, "Failed to write conversion failure entry")
		return
	}
	if err := l.file.Sync(); err != nil {
		l.warn(err, "Failed to sync conversion failure log")
	}
}

// Path returns the log file path, empty when disabled
func (l *Logger) Path() string {
	return l.filePath
}

// Enabled reports whether entries are being written
func (l *Logger) Enabled() bool {
	return l != nil && l.enabled
}

// Close closes the log file
func (l *Logger) Close() error {
	if l == nil || !l.enabled {
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

// Prune rewrites the file keeping entries newer than cutoff. Lines that do
// not parse are kept.
func (l *Logger) Prune(cutoff time.Time) error {
	if l == nil || !l.enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		if err := l.file.Close(); err != nil {
			return fmt.Errorf("failed to close log for pruning: %w", err)
		}
		l.file = nil
	}

	kept, readErr := keepSince(l.filePath, cutoff)
	if readErr == nil {
		tmp := l.filePath + ".tmp"
		content := ""
		if len(kept) > 0 {
			content = strings.Join(kept, "\n") + "\n"
		}
		if err := os.WriteFile(tmp, []byte(content), 0600); err != nil {
			readErr = fmt.Errorf("failed to write pruned log: %w", err)
		} else if err := os.Rename(tmp, l.filePath); err != nil {
			_ = os.Remove(tmp)
			readErr = fmt.Errorf("failed to replace pruned log: %w", err)
		}
	}

	f, err := os.OpenFile(l.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to reopen log: %w", err)
	}
	l.file = f
	return readErr
}

func keepSince(path string, cutoff time.Time) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var kept []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e Entry
		if json.Unmarshal([]byte(line), &e) != nil {
			kept = append(kept, line)
			continue
		}
		ts, err := time.Parse(time.RFC3339, e.Timestamp)
		if err != nil || ts.After(cutoff) {
			kept = append(kept, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log for pruning: %w", err)
	}
	return kept, nil
}

func (l *Logger) warn(err error, msg string) {
	if l.logger != nil {
		l.logger.WithError(err).Error(msg)
	}
}
