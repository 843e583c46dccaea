package logger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	dateLayout = "2006-01-02"

	// DefaultRetention is the number of daily files a RotatingFile keeps.
	DefaultRetention = 14
)

// ErrWriterClosed is returned by writes to a closed RotatingFile.
var ErrWriterClosed = errors.New("logger: writer is closed")

// RotatingFile is an io.Writer over one log file per day, named
// {service}_{date}.log. The file is switched by the first write of a new day,
// and each switch deletes the oldest files beyond the retention count.
type RotatingFile struct {
	dir       string
	service   string
	retention int
	now       func() time.Time

	mu     sync.Mutex
	file   *os.File
	day    string
	closed bool
}

// RotatingFileOption configures a RotatingFile.
type RotatingFileOption func(*RotatingFile)

// WithRetention keeps the newest days files. Zero or less keeps every file.
func WithRetention(days int) RotatingFileOption {
	return func(r *RotatingFile) {
		r.retention = days
	}
}

// WithFileClock replaces time.Now when picking the file of the day.
func WithFileClock(now func() time.Time) RotatingFileOption {
	return func(r *RotatingFile) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRotatingFile opens today's file in dir, which must already exist.
func NewRotatingFile(dir string, service string, opts ...RotatingFileOption) (*RotatingFile, error) {
	r := &RotatingFile{
		dir:       dir,
		service:   service,
		retention: DefaultRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.switchTo(r.now().Format(dateLayout)); err != nil {
		return nil, err
	}

	return r, nil
}

// Write implements io.Writer.
func (r *RotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrWriterClosed
	}

	if day := r.now().Format(dateLayout); day != r.day {
		if err := r.switchTo(day); err != nil {
			return 0, err
		}
	}

	return r.file.Write(p)
}

// Reopen closes and reopens the current file, for use after an external
// tool moved it away.
func (r *RotatingFile) Reopen() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrWriterClosed
	}

	return r.switchTo(r.now().Format(dateLayout))
}

// Path returns the file currently written to, or "" once closed.
func (r *RotatingFile) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return ""
	}
	return r.path(r.day)
}

// Close closes the current file. Later calls do nothing.
func (r *RotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	err := r.file.Close()
	r.file = nil
	return err
}

// switchTo opens the file for day and prunes old files. Caller holds r.mu.
func (r *RotatingFile) switchTo(day string) error {
	name := r.path(day)
	file, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", name, err)
	}

	if r.file != nil {
		_ = r.file.Close()
	}
	r.file, r.day = file, day

	// Failing to prune never stops logging.
	_ = r.prune()
	return nil
}

func (r *RotatingFile) path(day string) string {
	return filepath.Join(r.dir, r.service+"_"+day+".log")
}

// prune deletes the oldest daily files beyond the retention count. Files are
// ordered by the date in their name, which sorts lexically.
func (r *RotatingFile) prune() error {
	if r.retention <= 0 {
		return nil
	}

	matches, err := filepath.Glob(filepath.Join(r.dir, r.service+"_*.log"))
	if err != nil {
		return err
	}

	prefix := r.service + "_"
	days := make([]string, 0, len(matches))
	for _, match := range matches {
		day := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(match), prefix), ".log")
		if _, err := time.Parse(dateLayout, day); err == nil {
			days = append(days, day)
		}
	}
	if len(days) <= r.retention {
		return nil
	}

	sort.Strings(days)

	var errs []error
	for _, day := range days[:len(days)-r.retention] {
		if day == r.day {
			continue
		}
		if err := os.Remove(r.path(day)); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
