package audio

import (
	"errors"
	"fmt"
	"sync"
)

// PortKind classifies the ends of an audio patch.
type PortKind int

const (
	PortMixer PortKind = iota
	PortTuner
	PortSpeaker
	PortWiredHeadset
	PortWiredHeadphone
	PortBluetooth
)

func (k PortKind) String() string {
	switch k {
	case PortMixer:
		return "mixer"
	case PortTuner:
		return "tuner"
	case PortSpeaker:
		return "speaker"
	case PortWiredHeadset:
		return "wired_headset"
	case PortWiredHeadphone:
		return "wired_headphone"
	case PortBluetooth:
		return "bluetooth"
	default:
		return "unknown"
	}
}

// Port is one endpoint known to the system routing service.
type Port struct {
	ID   int
	Kind PortKind
	Name string
}

func (p Port) IsMixer() bool  { return p.Kind == PortMixer }
func (p Port) IsDevice() bool { return p.Kind != PortMixer }

func (p Port) IsEarphone() bool {
	return p.Kind == PortWiredHeadset || p.Kind == PortWiredHeadphone
}

// Patch connects sources to sinks inside the routing service.
type Patch struct {
	ID      int
	Sources []Port
	Sinks   []Port
}

func (p Patch) mixerToDevice() bool {
	return len(p.Sources) > 0 && len(p.Sinks) > 0 && p.Sources[0].IsMixer() && p.Sinks[0].IsDevice()
}

// PatchService is the system audio routing service. Only the engine worker
// calls it.
type PatchService interface {
	Patches() ([]Patch, error)
	Ports() ([]Port, error)
	CreatePatch(source, sink Port) (Patch, error)
	ReleasePatch(p Patch) error
	// SetForceSpeaker overrides the output device with the speaker.
	SetForceSpeaker(on bool) error
}

// PreferPatch decides between a hardware patch and the render loop. The
// patch wins only when nothing is recording and the mixer feeds exactly one
// device which is a wired earphone.
func PreferPatch(patches []Patch, recording bool) bool {
	if recording {
		return false
	}
	devices, earphones := 0, 0
	for _, p := range patches {
		if !p.mixerToDevice() {
			continue
		}
		devices++
		if p.Sinks[0].IsEarphone() {
			earphones++
		}
	}
	return earphones == 1 && devices == earphones
}

// MixerToDeviceRemoved reports that the mixer no longer feeds any device,
// which means the output we patched to has gone away.
func MixerToDeviceRemoved(patches []Patch) bool {
	for _, p := range patches {
		if p.mixerToDevice() {
			return false
		}
	}
	return true
}

// earphoneSink returns the earphone the mixer currently feeds.
func earphoneSink(patches []Patch) (Port, bool) {
	for _, p := range patches {
		if p.mixerToDevice() && p.Sinks[0].IsEarphone() {
			return p.Sinks[0], true
		}
	}
	return Port{}, false
}

var ErrNoTunerPort = errors.New("routing service has no tuner port")

// MemoryPatchService is an in-process routing service. It keeps one system
// patch from the mixer to the current output (headset when plugged, speaker
// otherwise or when forced) plus any patches created by callers.
type MemoryPatchService struct {
	mu           sync.Mutex
	mixer        Port
	tuner        Port
	speaker      Port
	headset      Port
	plugged      bool
	forceSpeaker bool
	nextID       int
	created      map[int]Patch
	onChange     func()

	// FailCreate makes CreatePatch fail.
	FailCreate bool
}

var _ PatchService = (*MemoryPatchService)(nil)

func NewMemoryPatchService() *MemoryPatchService {
	return &MemoryPatchService{
		mixer:   Port{ID: 1, Kind: PortMixer, Name: "mixer"},
		tuner:   Port{ID: 2, Kind: PortTuner, Name: "fm tuner"},
		speaker: Port{ID: 3, Kind: PortSpeaker, Name: "speaker"},
		headset: Port{ID: 4, Kind: PortWiredHeadset, Name: "wired headset"},
		nextID:  100,
		created: make(map[int]Patch),
	}
}

// OnChange registers a callback fired after every topology change, the way
// an OS notifies patch list updates.
func (m *MemoryPatchService) OnChange(fn func()) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

func (m *MemoryPatchService) changed() {
	m.mu.Lock()
	fn := m.onChange
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// SetHeadsetPlugged simulates plugging or unplugging the wired headset.
func (m *MemoryPatchService) SetHeadsetPlugged(plugged bool) {
	m.mu.Lock()
	m.plugged = plugged
	m.mu.Unlock()
	m.changed()
}

func (m *MemoryPatchService) SetForceSpeaker(on bool) error {
	m.mu.Lock()
	m.forceSpeaker = on
	m.mu.Unlock()
	m.changed()
	return nil
}

func (m *MemoryPatchService) Patches() ([]Patch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sink := m.speaker
	if m.plugged && !m.forceSpeaker {
		sink = m.headset
	}
	out := []Patch{{ID: 1, Sources: []Port{m.mixer}, Sinks: []Port{sink}}}
	for _, p := range m.created {
		out = append(out, p)
	}
	return out, nil
}

func (m *MemoryPatchService) Ports() ([]Port, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return []Port{m.mixer, m.tuner, m.speaker, m.headset}, nil
}

func (m *MemoryPatchService) CreatePatch(source, sink Port) (Patch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCreate {
		return Patch{}, fmt.Errorf("create patch %s -> %s refused", source.Name, sink.Name)
	}
	m.nextID++
	p := Patch{ID: m.nextID, Sources: []Port{source}, Sinks: []Port{sink}}
	m.created[p.ID] = p
	return p, nil
}

func (m *MemoryPatchService) ReleasePatch(p Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.created[p.ID]; !ok {
		return fmt.Errorf("patch %d not found", p.ID)
	}
	delete(m.created, p.ID)
	return nil
}

// Created returns the number of live caller-created patches.
func (m *MemoryPatchService) Created() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.created)
}
