package station

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"fmradio/internal/tuner"

	"gopkg.in/yaml.v3"
)

type document struct {
	Current  tuner.Frequency `yaml:"current"`
	Location *Coordinates    `yaml:"last_scan_location,omitempty"`
	Stations []Station       `yaml:"stations"`
}

// FileStore is a MemoryStore written through to a YAML file after every
// mutation. The file is replaced by rename so a crash never leaves it
// half-written.
type FileStore struct {
	*MemoryStore
	path string
	wmu  sync.Mutex
}

var _ Store = (*FileStore)(nil)

// OpenFileStore loads path if it exists; a missing file is an empty list.
func OpenFileStore(path string) (*FileStore, error) {
	fsStore := &FileStore{MemoryStore: NewMemoryStore(), path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fsStore, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read station file: %w", err)
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse station file: %w", err)
	}
	for _, s := range doc.Stations {
		fsStore.stations[s.Frequency] = s
	}
	if doc.Current > 0 {
		fsStore.current = doc.Current
	}
	fsStore.location = doc.Location
	return fsStore, nil
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) flush() error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	list, _ := s.MemoryStore.List()
	cur, _ := s.MemoryStore.Current()
	doc := document{Current: cur, Stations: list}
	if loc, ok := s.MemoryStore.LastScanLocation(); ok {
		doc.Location = &loc
	}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to encode station file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create station dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write station file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace station file: %w", err)
	}
	return nil
}

func (s *FileStore) Upsert(st Station) error {
	s.MemoryStore.Upsert(st)
	return s.flush()
}

func (s *FileStore) Delete(f tuner.Frequency) error {
	s.MemoryStore.Delete(f)
	return s.flush()
}

func (s *FileStore) SetProgramService(f tuner.Frequency, ps string) error {
	s.MemoryStore.SetProgramService(f, ps)
	return s.flush()
}

func (s *FileStore) SetRadioText(f tuner.Frequency, rt string) error {
	s.MemoryStore.SetRadioText(f, rt)
	return s.flush()
}

func (s *FileStore) SetCurrent(f tuner.Frequency) error {
	s.MemoryStore.SetCurrent(f)
	return s.flush()
}

func (s *FileStore) SetLastScanLocation(c Coordinates) error {
	s.MemoryStore.SetLastScanLocation(c)
	return s.flush()
}
