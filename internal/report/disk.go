package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DiskStore keeps reports as <runID>.json files in a directory.
type DiskStore struct {
	mu  sync.Mutex
	dir string
}

// NewDiskStore creates a DiskStore rooted at dir. An empty dir selects a
// temp directory created lazily on the first Save.
func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{dir: dir}
}

// Save writes a report to disk.
func (s *DiskStore) Save(r *Report) error {
	if r.RunID == "" {
		return fmt.Errorf("saving report: empty run id")
	}
	dir, err := s.ensureDir()
	if err != nil {
		return err
	}
	data, err := Marshal(r)
	if err != nil {
		return err
	}
	if err := WriteFile(filepath.Join(dir, r.RunID+".json"), data); err != nil {
		return fmt.Errorf("writing report %s: %w", r.RunID, err)
	}
	return nil
}

// Load reads a report from disk.
func (s *DiskStore) Load(runID string) (*Report, error) {
	if runID == "" || filepath.Base(runID) != runID {
		return nil, fmt.Errorf("invalid run id %q", runID)
	}
	dir, err := s.ensureDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, runID+".json"))
	if err != nil {
		return nil, fmt.Errorf("reading report %s: %w", runID, err)
	}
	r, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("report %s: %w", runID, err)
	}
	return r, nil
}

// Dir returns the directory in use, creating it if needed.
func (s *DiskStore) Dir() (string, error) {
	return s.ensureDir()
}

func (s *DiskStore) ensureDir() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir != "" {
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			return "", fmt.Errorf("creating report directory: %w", err)
		}
		return s.dir, nil
	}
	dir, err := os.MkdirTemp("", "emuharness-runs-*")
	if err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}
	s.dir = dir
	return dir, nil
}

// WriteFile writes data to path through a temp file and rename, so readers
// never observe a partially written report.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
