package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// Sweep removes download directories under root older than maxAge and returns how many it removed.
// Directories left behind by a crash or a kill are the only ones old enough to match.
func Sweep(root string, maxAge time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}

	removed := 0
	var errs []error
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), tempDirPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < maxAge {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, entry.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// Sweep runs [Sweep] over the extractor's temp root.
func (e *Extractor) Sweep(maxAge time.Duration) int {
	n, err := Sweep(e.tempDir, maxAge, time.Now())
	if err != nil {
		e.logger.Warn("temp sweep incomplete", "dir", e.tempDir, "err", err)
	}
	if n > 0 {
		e.logger.Info("removed stale download dirs", "count", n, "dir", e.tempDir)
	}
	return n
}

const lockFileName = ".sweep.lock"

// Janitor periodically sweeps the extractor's temp root. It holds an exclusive file lock on the root while
// running, so when several gateway instances share one directory only the first one removes anything.
type Janitor struct {
	ex       *Extractor
	lock     *flock.Flock
	maxAge   time.Duration
	interval time.Duration
}

// NewJanitor returns a Janitor removing download dirs older than maxAge, checking every interval.
func (e *Extractor) NewJanitor(maxAge, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Janitor{
		ex:       e,
		lock:     flock.New(filepath.Join(e.tempDir, lockFileName)),
		maxAge:   maxAge,
		interval: interval,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done. It returns false without sweeping
// when another process holds the lock.
func (j *Janitor) Run(ctx context.Context) (bool, error) {
	if err := os.MkdirAll(j.ex.tempDir, 0755); err != nil {
		return false, fmt.Errorf("create temp root: %w", err)
	}

	locked, err := j.lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("lock temp root: %w", err)
	}
	if !locked {
		j.ex.logger.Warn("temp root is owned by another instance, not sweeping", "dir", j.ex.tempDir)
		return false, nil
	}
	defer j.lock.Unlock()

	j.ex.Sweep(j.maxAge)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return true, nil
		case <-ticker.C:
			j.ex.Sweep(j.maxAge)
		}
	}
}
