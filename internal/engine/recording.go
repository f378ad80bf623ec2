package engine

import (
	"errors"
	"path/filepath"
	"strings"

	"fmradio/internal/event"
	"fmradio/internal/recorder"
)

// kindFor maps a recorder error to the reason shown to the user.
func kindFor(err error) (event.ErrorKind, bool) {
	switch {
	case errors.Is(err, recorder.ErrStorageUnavailable):
		return event.StorageUnavailable, true
	case errors.Is(err, recorder.ErrStorageInsufficient), errors.Is(err, recorder.ErrDiskLow):
		return event.StorageInsufficient, true
	case errors.Is(err, recorder.ErrStorageWriteFailed):
		return event.StorageWriteFailed, true
	case errors.Is(err, recorder.ErrEncoderInternal):
		return event.EncoderInternalError, true
	case errors.Is(err, recorder.ErrInvalidName):
		return event.InvalidRecordingName, true
	}
	return 0, false
}

func (e *Engine) reportRecorderError(err error) {
	kind, ok := kindFor(err)
	if !ok {
		log.Warnf("recorder: %v", err)
		return
	}
	log.Errorf("recorder %s: %v", kind, err)
	e.metrics.RecorderError(kind.String())
	e.publish(event.RecorderError{Kind: kind, Message: err.Error()})
}

func (e *Engine) startRecording() {
	if e.power != event.PoweredUp {
		log.Warnf("start recording ignored while %s", e.power)
		return
	}
	if e.recRoot == "" {
		e.reportRecorderError(recorder.ErrStorageUnavailable)
		return
	}
	// a second start closes the live file and opens a fresh session
	restarting := e.recorder.State() == event.RecorderRecording
	err := e.recorder.Start(e.recRoot)
	if restarting {
		e.publish(event.RecorderStateChanged{State: event.RecorderIdle})
	}
	if err != nil {
		e.reportRecorderError(err)
		if restarting {
			e.reroute()
		}
		return
	}
	e.publish(event.RecorderStateChanged{State: event.RecorderRecording})
	// only the render loop sees PCM
	if err := e.router.OnPatchListChanged(); err != nil {
		log.Errorf("switch to render loop for recording: %v", err)
	}
}

// stopRecording ends the live session and leaves its file for a later save
// or discard.
func (e *Engine) stopRecording() {
	if e.recorder.State() != event.RecorderRecording {
		return
	}
	err := e.recorder.Stop()
	e.publish(event.RecorderStateChanged{State: event.RecorderIdle})
	if err != nil {
		e.reportRecorderError(err)
	}
	e.reroute()
}

func (e *Engine) reroute() {
	if e.power != event.PoweredUp {
		return
	}
	if err := e.router.OnPatchListChanged(); err != nil {
		log.Errorf("re-evaluate routing after recording: %v", err)
	}
}

// discardRecording stops any live session and deletes its unsaved file.
func (e *Engine) discardRecording() {
	e.stopRecording()
	if err := e.recorder.Discard(); err != nil {
		log.Warnf("discard recording: %v", err)
	}
}

func (e *Engine) saveRecording(name string) {
	if strings.TrimSpace(name) == "" {
		e.discardRecording()
		return
	}
	path, err := e.recorder.Save(name)
	if err != nil {
		e.reportRecorderError(err)
		return
	}
	e.publish(event.RecordingSaved{Path: path})
}

// setRecordingMode leaving record mode drops whatever was not saved.
func (e *Engine) setRecordingMode(on bool) {
	if e.recordingMode == on {
		return
	}
	e.recordingMode = on
	if !on {
		e.discardRecording()
	}
}

// handleRecorderFailure runs for errors raised on the encoder goroutine.
// Every kind ends the session and discards its file.
func (e *Engine) handleRecorderFailure(err error) {
	e.reportRecorderError(err)
	e.discardRecording()
}

// handleStorageChanged discards a live recording whose storage went away.
func (e *Engine) handleStorageChanged(path string, mounted bool) {
	if mounted {
		log.Infof("storage mounted at %s", path)
		return
	}
	log.Infof("storage removed from %s", path)
	root := e.recorder.Root()
	if root == "" || !within(root, path) {
		return
	}
	e.reportRecorderError(recorder.ErrStorageUnavailable)
	e.discardRecording()
}

func within(path, mount string) bool {
	path, mount = filepath.Clean(path), filepath.Clean(mount)
	if path == mount {
		return true
	}
	rel, err := filepath.Rel(mount, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
