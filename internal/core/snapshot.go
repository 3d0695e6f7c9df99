package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/mastersync/internal/master"
)

// snapshotHeader is the first line of every snapshot file.
var snapshotHeader = []string{"name", "code", "market"}

// Snapshots manages the per-tool working directories: raw downloads
// ({master}.tmp) and normalized debug snapshots ({master}.csv). They are
// never read back by the synchronizer.
type Snapshots struct {
	root string
}

// NewSnapshots roots tool directories at dir.
func NewSnapshots(dir string) *Snapshots {
	return &Snapshots{root: dir}
}

// Dir returns the working directory of tool.
func (s *Snapshots) Dir(toolID string) string {
	return filepath.Join(s.root, toolID)
}

// RawPath is where the download of masterID is stored.
func (s *Snapshots) RawPath(toolID, masterID string) string {
	return filepath.Join(s.Dir(toolID), masterID+".tmp")
}

// SnapshotPath is where the normalized snapshot of masterID is written.
func (s *Snapshots) SnapshotPath(toolID, masterID string) string {
	return filepath.Join(s.Dir(toolID), masterID+".csv")
}

// Write stores records as a CSV snapshot.
func (s *Snapshots) Write(toolID, masterID string, records []master.Record) error {
	if err := os.MkdirAll(s.Dir(toolID), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", s.Dir(toolID), err)
	}

	path := s.SnapshotPath(toolID, masterID)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}

	if err := writeSnapshot(f, records); err != nil {
		f.Close()
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	return f.Close()
}

func writeSnapshot(out io.Writer, records []master.Record) error {
	w := csv.NewWriter(out)
	if err := w.Write(snapshotHeader); err != nil {
		return err
	}
	for _, r := range records {
		if err := w.Write([]string{r.Name, r.Code, r.Market}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// Clear deletes every download, partial download and snapshot in the tool
// directory. A missing directory is not an error.
func (s *Snapshots) Clear(toolID string) (int, error) {
	entries, err := os.ReadDir(s.Dir(toolID))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var (
		removed int
		errs    []error
	)
	for _, e := range entries {
		if e.IsDir() || !isArtifact(e.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(s.Dir(toolID), e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func isArtifact(name string) bool {
	for _, pattern := range []string{"*.tmp", "*.csv", "*.part-*"} {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
