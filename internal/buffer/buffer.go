// Package buffer spools undelivered notifications to disk so they can be
// redelivered after the webhook recovers or the process restarts.
// Each notification is one timestamped JSON file. The oldest files are
// dropped when the spool exceeds its size limit.
package buffer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vitalis-app/sentinel/internal/models"
)

// Buffer is a directory of spooled notifications.
type Buffer struct {
	dir       string
	maxSizeMB int
	logger    *zap.Logger
	mu        sync.Mutex
}

// New creates the spool at dir, creating the directory if needed.
func New(dir string, maxSizeMB int, logger *zap.Logger) (*Buffer, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, err
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &Buffer{
		dir:       dir,
		maxSizeMB: maxSizeMB,
		logger:    logger.Named("spool"),
	}, nil
}

// Store spools n. If the spool is over its size limit the oldest entry is
// dropped first.
func (b *Buffer) Store(n models.Notification) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.currentSizeMB() >= b.maxSizeMB {
		b.logger.Warn("Spool full, dropping oldest notification")
		b.dropOldest()
	}

	ts := n.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	name := ts.UTC().Format("20060102T150405.000")
	if len(n.ID) >= 8 {
		name += "-" + n.ID[:8]
	}

	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(b.dir, name+".json"), data, 0640)
}

// RetrieveAll reads and removes every spooled notification, oldest first.
// Unreadable files are logged; corrupted files are removed.
func (b *Buffer) RetrieveAll() ([]models.Notification, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	names, err := b.entries()
	if err != nil {
		return nil, err
	}

	var out []models.Notification
	for _, name := range names {
		path := filepath.Join(b.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			b.logger.Warn("Failed to read spool file",
				zap.String("file", path),
				zap.Error(err))
			continue
		}

		var n models.Notification
		if err := json.Unmarshal(data, &n); err != nil {
			b.logger.Warn("Removing corrupted spool file",
				zap.String("file", path),
				zap.Error(err))
			os.Remove(path)
			continue
		}

		out = append(out, n)
		os.Remove(path)
	}
	return out, nil
}

// Count returns the number of spooled notifications.
func (b *Buffer) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	names, err := b.entries()
	if err != nil {
		return 0
	}
	return len(names)
}

// entries lists spool file names in chronological order.
// Must be called with b.mu held.
func (b *Buffer) entries() ([]string, error) {
	dirEntries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range dirEntries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// currentSizeMB returns the spool size in whole megabytes.
// Must be called with b.mu held.
func (b *Buffer) currentSizeMB() int {
	var total int64
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return 0
	}
	for _, e := range entries {
		if info, err := e.Info(); err == nil {
			total += info.Size()
		}
	}
	return int(total / (1024 * 1024))
}

// dropOldest removes the oldest spool file.
// Must be called with b.mu held.
func (b *Buffer) dropOldest() {
	names, err := b.entries()
	if err != nil || len(names) == 0 {
		return
	}
	path := filepath.Join(b.dir, names[0])
	if err := os.Remove(path); err != nil {
		b.logger.Warn("Failed to remove oldest spool file",
			zap.String("file", path),
			zap.Error(err))
	}
}
