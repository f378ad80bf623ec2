package audio

import (
	"fmt"

	applog "fmradio/internal/log"
)

var routeLog = applog.For("router")

// Mode is the active audio path.
type Mode int

const (
	ModeNone Mode = iota
	ModePatch
	ModeRender
)

func (m Mode) String() string {
	switch m {
	case ModePatch:
		return "patch"
	case ModeRender:
		return "render"
	default:
		return "none"
	}
}

// Router picks between a hardware patch and the software render loop and
// never lets both be active. It is not safe for concurrent use; the engine
// worker is its only caller.
type Router struct {
	patches   PatchService
	render    *RenderLoop
	recording func() bool
	onChange  func(Mode, Patch)

	mode  Mode
	patch *Patch
}

// NewRouter builds a router. A nil PatchService means the render loop is
// always used. recording reports whether a recording session is live.
func NewRouter(patches PatchService, render *RenderLoop, recording func() bool) *Router {
	if recording == nil {
		recording = func() bool { return false }
	}
	return &Router{patches: patches, render: render, recording: recording}
}

// OnChange registers a callback for every mode switch.
func (r *Router) OnChange(fn func(Mode, Patch)) { r.onChange = fn }

func (r *Router) Mode() Mode { return r.mode }

// Patch returns the live hardware patch, if any.
func (r *Router) Patch() (Patch, bool) {
	if r.patch == nil {
		return Patch{}, false
	}
	return *r.patch, true
}

func (r *Router) setMode(m Mode) {
	if r.mode == m {
		return
	}
	routeLog.Debugf("mode %s -> %s", r.mode, m)
	r.mode = m
	if r.onChange != nil {
		var p Patch
		if r.patch != nil {
			p = *r.patch
		}
		r.onChange(m, p)
	}
}

func (r *Router) currentPatches() []Patch {
	if r.patches == nil {
		return nil
	}
	patches, err := r.patches.Patches()
	if err != nil {
		routeLog.Warnf("list patches: %v", err)
		return nil
	}
	return patches
}

func (r *Router) preferPatch(patches []Patch) bool {
	return r.patches != nil && PreferPatch(patches, r.recording())
}

// Activate starts audio through whichever path currently fits.
func (r *Router) Activate() error {
	patches := r.currentPatches()
	if r.preferPatch(patches) {
		if r.patch != nil {
			return nil
		}
		if err := r.render.Close(); err != nil {
			routeLog.Warnf("close render loop: %v", err)
		}
		err := r.createPatch(patches)
		if err == nil {
			return nil
		}
		routeLog.Warnf("%v, falling back to render loop", err)
	}
	return r.startRender()
}

// Deactivate silences both paths.
func (r *Router) Deactivate() {
	r.render.Disable()
	r.releasePatch()
	r.setMode(ModeNone)
}

// OnPatchListChanged re-evaluates the path after the routing service
// reports a topology change. It is also used after a recording starts or
// stops because recording forces the render loop.
func (r *Router) OnPatchListChanged() error {
	if r.mode == ModeNone {
		return nil
	}
	patches := r.currentPatches()
	switch {
	case r.patch != nil:
		if MixerToDeviceRemoved(patches) || !r.preferPatch(patches) {
			r.releasePatch()
			return r.startRender()
		}
		if r.render.Enabled() {
			r.render.Disable()
		}
		return nil
	case r.preferPatch(patches):
		if err := r.render.Close(); err != nil {
			routeLog.Warnf("close render loop: %v", err)
		}
		if err := r.createPatch(patches); err != nil {
			routeLog.Warnf("%v, staying on render loop", err)
			return r.startRender()
		}
		return nil
	default:
		return r.startRender()
	}
}

// Reroute recreates render endpoints after the output device changed. The
// patch path follows the routing service on its own.
func (r *Router) Reroute() error {
	if r.mode != ModeRender {
		return nil
	}
	if err := r.render.Close(); err != nil {
		routeLog.Warnf("close render loop: %v", err)
	}
	r.mode = ModeNone
	return r.startRender()
}

// SetForceSpeaker asks the routing service to override the output device.
func (r *Router) SetForceSpeaker(on bool) error {
	if r.patches == nil {
		return nil
	}
	return r.patches.SetForceSpeaker(on)
}

func (r *Router) startRender() error {
	if !r.render.Running() {
		if err := r.render.Start(); err != nil {
			r.setMode(ModeNone)
			return err
		}
	}
	r.render.Enable()
	r.setMode(ModeRender)
	return nil
}

func (r *Router) createPatch(patches []Patch) error {
	ports, err := r.patches.Ports()
	if err != nil {
		return fmt.Errorf("list ports: %w", err)
	}
	var tuner *Port
	for i := range ports {
		if ports[i].Kind == PortTuner {
			tuner = &ports[i]
			break
		}
	}
	if tuner == nil {
		return ErrNoTunerPort
	}
	sink, ok := earphoneSink(patches)
	if !ok {
		return fmt.Errorf("no earphone output to patch to")
	}
	p, err := r.patches.CreatePatch(*tuner, sink)
	if err != nil {
		return fmt.Errorf("create patch: %w", err)
	}
	r.patch = &p
	r.setMode(ModePatch)
	return nil
}

func (r *Router) releasePatch() {
	if r.patch == nil {
		return
	}
	if err := r.patches.ReleasePatch(*r.patch); err != nil {
		routeLog.Warnf("release patch %d: %v", r.patch.ID, err)
	}
	r.patch = nil
}
