package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/coffersTech/nanotel/internal/engine"
	"github.com/coffersTech/nanotel/internal/model"
)

// Catalog is a directory of capture files named capture_{minTs}_{maxTs}.nano.
type Catalog struct {
	dir    string
	reader *ColumnReader
	logger *slog.Logger
}

// OpenCatalog opens dir. The directory need not exist yet.
func OpenCatalog(dir string, logger *slog.Logger) (*Catalog, error) {
	cr, err := NewColumnReader()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Catalog{dir: dir, reader: cr, logger: logger}, nil
}

// Close releases the catalog's decoder.
func (c *Catalog) Close() {
	c.reader.Close()
}

// Files returns all .nano files in the directory, sorted by name.
func (c *Catalog) Files() ([]string, error) {
	var files []string

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return files, nil
		}
		return nil, err
	}

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".nano") {
			files = append(files, filepath.Join(c.dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Read returns the records of every capture overlapping the filter window, sorted
// by timestamp. Files are pruned by name before they are opened.
func (c *Catalog) Read(filter engine.Filter) ([]model.LogRecord, error) {
	files, err := c.Files()
	if err != nil {
		return nil, err
	}

	var recs []model.LogRecord
	for _, file := range files {
		if minTs, maxTs, err := parseTsFromFilename(file); err == nil && !filter.Overlaps(minTs, maxTs) {
			continue
		}
		rows, err := c.reader.ReadSnapshot(file, filter)
		if err != nil {
			c.logger.Warn("skipping unreadable capture", slog.String("file", file), slog.Any("error", err))
			continue
		}
		recs = append(recs, rows...)
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Timestamp.Before(recs[j].Timestamp)
	})
	return recs, nil
}

// Purge removes captures whose newest record is older than retention.
func (c *Catalog) Purge(now time.Time, retention time.Duration) (int, error) {
	if retention <= 0 {
		return 0, nil
	}
	files, err := c.Files()
	if err != nil {
		return 0, err
	}

	threshold := now.Add(-retention).UnixMilli()
	removed := 0
	for _, file := range files {
		_, maxTs, err := parseTsFromFilename(file)
		if err != nil {
			continue
		}
		if maxTs >= threshold {
			continue
		}
		if err := os.Remove(file); err != nil {
			c.logger.Error("failed to delete expired capture", slog.String("file", file), slog.Any("error", err))
			continue
		}
		c.logger.Info("expired capture deleted", slog.String("file", filepath.Base(file)))
		removed++
	}
	return removed, nil
}

// parseTsFromFilename extracts min and max timestamps from a capture filename.
func parseTsFromFilename(filename string) (int64, int64, error) {
	base := filepath.Base(filename)
	if !strings.HasPrefix(base, "capture_") || !strings.HasSuffix(base, ".nano") {
		return 0, 0, fmt.Errorf("invalid format")
	}
	content := strings.TrimSuffix(strings.TrimPrefix(base, "capture_"), ".nano")
	parts := strings.Split(content, "_")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid parts")
	}
	minTs, err1 := strconv.ParseInt(parts[0], 10, 64)
	maxTs, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, fmt.Errorf("invalid timestamps")
	}
	return minTs, maxTs, nil
}
