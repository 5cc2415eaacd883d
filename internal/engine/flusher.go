package engine

import (
	"fmt"
	"path/filepath"
)

// FlushFunc is a function type that writes a MemTable to a file.
// This allows the engine package to not depend on storage package directly.
type FlushFunc func(filename string, mt *MemTable) error

// CaptureName returns the file name for a capture spanning [minTs, maxTs].
func CaptureName(minTs, maxTs int64) string {
	return fmt.Sprintf("capture_%d_%d.nano", minTs, maxTs)
}

// FlushMemTable flushes the MemTable to dataDir using the provided writer function
// and returns the written path.
// Filename format: capture_{MinTimestamp}_{MaxTimestamp}.nano
func FlushMemTable(mt *MemTable, dataDir string, writerFn FlushFunc) (string, error) {
	if mt.Len() == 0 {
		return "", nil
	}

	path := filepath.Join(dataDir, CaptureName(mt.MinTimestamp(), mt.MaxTimestamp()))
	if err := writerFn(path, mt); err != nil {
		return "", err
	}

	mt.Reset()
	return path, nil
}
