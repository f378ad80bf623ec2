// Package station is the persisted station list: one record per frequency,
// with a favourite flag that scans never override.
package station

import (
	"errors"
	"sort"
	"sync"

	"fmradio/internal/tuner"
)

// ErrNotFound is returned by Get for unknown frequencies.
var ErrNotFound = errors.New("station not found")

// Station is one row of the station list.
type Station struct {
	Frequency      tuner.Frequency `yaml:"frequency" json:"frequency"`
	Favorite       bool            `yaml:"favorite,omitempty" json:"favorite"`
	Name           string          `yaml:"name,omitempty" json:"name,omitempty"`
	ProgramService string          `yaml:"program_service,omitempty" json:"program_service,omitempty"`
	RadioText      string          `yaml:"radio_text,omitempty" json:"radio_text,omitempty"`
}

// Store is keyed by frequency. Implementations must be safe for concurrent
// use; the engine is the only writer in practice.
type Store interface {
	Get(f tuner.Frequency) (Station, error)
	Upsert(s Station) error
	Delete(f tuner.Frequency) error
	List() ([]Station, error)

	SetProgramService(f tuner.Frequency, ps string) error
	SetRadioText(f tuner.Frequency, rt string) error

	Current() (tuner.Frequency, bool)
	SetCurrent(f tuner.Frequency) error

	LastScanLocation() (Coordinates, bool)
	SetLastScanLocation(c Coordinates) error
}

// MemoryStore keeps the list in a map. FileStore embeds it.
type MemoryStore struct {
	mu       sync.RWMutex
	stations map[tuner.Frequency]Station
	current  tuner.Frequency
	location *Coordinates
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stations: make(map[tuner.Frequency]Station),
		current:  tuner.Invalid,
	}
}

func (m *MemoryStore) Get(f tuner.Frequency) (Station, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stations[f]
	if !ok {
		return Station{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) Upsert(s Station) error {
	m.mu.Lock()
	m.stations[s.Frequency] = s
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(f tuner.Frequency) error {
	m.mu.Lock()
	delete(m.stations, f)
	m.mu.Unlock()
	return nil
}

// List returns every station in ascending frequency order.
func (m *MemoryStore) List() ([]Station, error) {
	m.mu.RLock()
	out := make([]Station, 0, len(m.stations))
	for _, s := range m.stations {
		out = append(out, s)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Frequency < out[j].Frequency })
	return out, nil
}

func (m *MemoryStore) update(f tuner.Frequency, fn func(*Station)) {
	m.mu.Lock()
	s, ok := m.stations[f]
	if !ok {
		s = Station{Frequency: f}
	}
	fn(&s)
	m.stations[f] = s
	m.mu.Unlock()
}

func (m *MemoryStore) SetProgramService(f tuner.Frequency, ps string) error {
	m.update(f, func(s *Station) { s.ProgramService = ps })
	return nil
}

func (m *MemoryStore) SetRadioText(f tuner.Frequency, rt string) error {
	m.update(f, func(s *Station) { s.RadioText = rt })
	return nil
}

func (m *MemoryStore) Current() (tuner.Frequency, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current, m.current != tuner.Invalid
}

func (m *MemoryStore) SetCurrent(f tuner.Frequency) error {
	m.mu.Lock()
	m.current = f
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) LastScanLocation() (Coordinates, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.location == nil {
		return Coordinates{}, false
	}
	return *m.location, true
}

func (m *MemoryStore) SetLastScanLocation(c Coordinates) error {
	m.mu.Lock()
	m.location = &c
	m.mu.Unlock()
	return nil
}

// Favorites filters a list to favourite stations.
func Favorites(list []Station) []Station {
	var out []Station
	for _, s := range list {
		if s.Favorite {
			out = append(out, s)
		}
	}
	return out
}
