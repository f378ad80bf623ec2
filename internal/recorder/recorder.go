package recorder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fmradio/internal/audio"
	"fmradio/internal/event"
	applog "fmradio/internal/log"
)

var log = applog.For("recorder")

// RecordingDir is created under the storage root to hold recordings.
const RecordingDir = "FM Recording"

// tempLayout names the unsaved file: .FM<MMddyyyy_HHmmss>.<ext>
const tempLayout = "01022006_150405"

var (
	ErrNotStopped    = errors.New("recording still in progress")
	ErrNothingToSave = errors.New("no recording to save")
	ErrInvalidName   = errors.New("invalid recording name")
)

// Options configures a Recorder.
type Options struct {
	Format     audio.Format
	Container  string
	QueueDepth int
	Probe      DiskProbe
	// OnError receives asynchronous session failures from the encoder
	// goroutine. It must not block.
	OnError func(error)
	Now     func() time.Time
}

type session struct {
	id      uuid.UUID
	dir     string
	path    string
	ext     string
	started time.Time
	stopped time.Time
	enc     *SampleEncoder
	saved   bool
}

// Recorder is the Idle/Recording state machine. The mutex guards the live
// session; the render loop holds it only for one Encode hand-off.
type Recorder struct {
	opts Options

	mu      sync.Mutex
	state   event.RecorderState
	live    *session
	stopped *session
}

func New(opts Options) *Recorder {
	if opts.Probe == nil {
		opts.Probe = SystemProbe{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.OnError == nil {
		opts.OnError = func(error) {}
	}
	if opts.Format == (audio.Format{}) {
		opts.Format = audio.DefaultFormat
	}
	return &Recorder{opts: opts}
}

// Start opens a new session under root. Storage is checked before anything
// is created; on failure the recorder stays Idle. Starting while already
// recording closes the live session first and keeps its file as the
// unsaved last recording.
func (r *Recorder) Start(root string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == event.RecorderRecording {
		// the encoder goroutine never takes r.mu
		if err := r.stopLiveLocked(); err != nil {
			log.Warnf("restart: %v", err)
		}
	} else {
		r.discardStoppedLocked()
	}
	if err := checkStorage(r.opts.Probe, root); err != nil {
		return err
	}

	dir := filepath.Join(root, RecordingDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	now := r.opts.Now()
	ext := Extension(r.opts.Container)
	f, path, err := createTemp(dir, ".FM"+now.Format(tempLayout), ext)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWriteFailed, err)
	}
	codec, muxer, err := NewContainer(r.opts.Container, f, r.opts.Format)
	if err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	s := &session{id: uuid.New(), dir: dir, path: path, ext: ext, started: now}
	s.enc = NewSampleEncoder(codec, muxer, EncoderOptions{
		Format:     r.opts.Format,
		QueueDepth: r.opts.QueueDepth,
		Probe:      r.opts.Probe,
		Dir:        dir,
		OnError:    r.opts.OnError,
	})
	r.live = s
	r.state = event.RecorderRecording
	log.Infof("recording %s to %s", s.id, path)
	return nil
}

// createTemp opens base.ext exclusively, adding _1, _2... when a session
// started in the same second already owns the name.
func createTemp(dir, base, ext string) (*os.File, string, error) {
	for i := 0; ; i++ {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s_%d", base, i)
		}
		path := filepath.Join(dir, name+"."+ext)
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !os.IsExist(err) || i >= 100 {
			return nil, "", err
		}
	}
}

// Encode hands PCM to the live session. Outside Recording it does nothing.
func (r *Recorder) Encode(pcm []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != event.RecorderRecording {
		return
	}
	r.live.enc.Encode(pcm)
}

// Stop ends the live session and blocks until its file is complete. The
// file stays on disk as unsaved until Save or Discard.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if r.state != event.RecorderRecording {
		r.mu.Unlock()
		return nil
	}
	s := r.detachLiveLocked()
	r.mu.Unlock()

	err := s.enc.Stop()
	log.Infof("recording %s stopped (%d bytes)", s.id, s.enc.BytesOut())
	return err
}

// detachLiveLocked moves the live session to stopped, replacing an older
// unsaved file left behind by a restart.
func (r *Recorder) detachLiveLocked() *session {
	if err := r.discardStoppedLocked(); err != nil {
		log.Warnf("%v", err)
	}
	s := r.live
	r.live = nil
	r.state = event.RecorderIdle
	s.stopped = r.opts.Now()
	r.stopped = s
	return s
}

// stopLiveLocked finishes the live session while holding r.mu.
func (r *Recorder) stopLiveLocked() error {
	s := r.detachLiveLocked()
	err := s.enc.Stop()
	log.Infof("recording %s stopped for restart (%d bytes)", s.id, s.enc.BytesOut())
	return err
}

// Discard stops any live session and deletes the last file unless it was
// saved.
func (r *Recorder) Discard() error {
	err := r.Stop()
	r.mu.Lock()
	defer r.mu.Unlock()
	return errors.Join(err, r.discardStoppedLocked())
}

func (r *Recorder) discardStoppedLocked() error {
	s := r.stopped
	r.stopped = nil
	if s == nil || s.saved {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", s.path, err)
	}
	log.Debugf("discarded %s", s.path)
	return nil
}

// Save renames the stopped recording to <name>.<ext> and returns the new
// path. A saved file survives later discards.
func (r *Recorder) Save(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == event.RecorderRecording {
		return "", ErrNotStopped
	}
	s := r.stopped
	if s == nil {
		return "", ErrNothingToSave
	}
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("%w %q", ErrInvalidName, name)
	}
	target := filepath.Join(s.dir, name+"."+s.ext)
	if err := os.Rename(s.path, target); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageWriteFailed, err)
	}
	s.path = target
	s.saved = true
	log.Infof("saved recording %s", target)
	return target, nil
}

func (r *Recorder) State() event.RecorderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Elapsed is the live session's duration, or the last session's once
// stopped.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.live != nil:
		return r.opts.Now().Sub(r.live.started)
	case r.stopped != nil:
		return r.stopped.stopped.Sub(r.stopped.started)
	default:
		return 0
	}
}

// Bytes is the container payload written by the current or last session.
func (r *Recorder) Bytes() int64 {
	if s := r.current(); s != nil {
		return s.enc.BytesOut()
	}
	return 0
}

func (r *Recorder) Path() string {
	if s := r.current(); s != nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		return s.path
	}
	return ""
}

func (r *Recorder) SessionID() string {
	if s := r.current(); s != nil {
		return s.id.String()
	}
	return ""
}

// Root reports the storage root of the live session.
func (r *Recorder) Root() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.live == nil {
		return ""
	}
	return filepath.Dir(r.live.dir)
}

func (r *Recorder) current() *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.live != nil {
		return r.live
	}
	return r.stopped
}
