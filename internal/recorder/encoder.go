package recorder

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"fmradio/internal/audio"
)

// DefaultQueueDepth bounds the PCM buffers waiting for the encoder.
const DefaultQueueDepth = 64

// EncoderOptions configures a SampleEncoder.
type EncoderOptions struct {
	Format     audio.Format
	QueueDepth int
	// Probe and Dir enable the free-space check after every output packet.
	Probe DiskProbe
	Dir   string
	// OnError receives asynchronous failures. It runs on the encoder
	// goroutine and must not block or call back into the encoder.
	OnError func(error)
}

// SampleEncoder bridges the render loop and a Codec/Muxer pair through a
// bounded queue. One goroutine owns the codec and the muxer; it feeds the
// codec with presentation timestamps derived from the byte position and
// writes every output packet to the muxer.
type SampleEncoder struct {
	codec Codec
	muxer Muxer
	opts  EncoderOptions

	queue chan []byte
	stop  chan struct{}
	quit  chan struct{}
	done  chan struct{}

	stopOnce sync.Once
	quitOnce sync.Once
	finished atomic.Bool
	bytesIn  atomic.Int64
	bytesOut atomic.Int64

	// consumer goroutine only
	position  int64
	lowSignal bool
	err       error
}

func NewSampleEncoder(codec Codec, muxer Muxer, opts EncoderOptions) *SampleEncoder {
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = DefaultQueueDepth
	}
	if opts.OnError == nil {
		opts.OnError = func(error) {}
	}
	e := &SampleEncoder{
		codec: codec,
		muxer: muxer,
		opts:  opts,
		queue: make(chan []byte, opts.QueueDepth),
		stop:  make(chan struct{}),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go e.run()
	return e
}

// Encode queues a copy of pcm. It blocks while the queue is full and is a
// no-op once the encoder has stopped or failed.
func (e *SampleEncoder) Encode(pcm []byte) {
	if e.finished.Load() || len(pcm) == 0 {
		return
	}
	buf := append([]byte(nil), pcm...)
	select {
	case e.queue <- buf:
		e.bytesIn.Add(int64(len(buf)))
	case <-e.quit:
	case <-e.done:
	}
}

// Stop drains the queue, flushes the codec and closes the container. It
// returns once the file is complete.
func (e *SampleEncoder) Stop() error {
	e.stopOnce.Do(func() {
		e.finished.Store(true)
		close(e.stop)
	})
	<-e.done
	return e.err
}

// Finished reports that no more input is accepted.
func (e *SampleEncoder) Finished() bool { return e.finished.Load() }

// BytesIn is the PCM accepted so far.
func (e *SampleEncoder) BytesIn() int64 { return e.bytesIn.Load() }

// BytesOut is the container payload written so far.
func (e *SampleEncoder) BytesOut() int64 { return e.bytesOut.Load() }

func (e *SampleEncoder) pts() int64 {
	bpus := e.opts.Format.BytesPerMicrosecond()
	if bpus <= 0 {
		return 0
	}
	return int64(float64(e.position) / bpus)
}

func (e *SampleEncoder) run() {
	defer close(e.done)
	for {
		select {
		case pcm := <-e.queue:
			if err := e.feed(pcm); err != nil {
				e.fail(err)
				return
			}
		case <-e.stop:
			e.err = e.drain()
			e.quitOnce.Do(func() { close(e.quit) })
			return
		}
	}
}

func (e *SampleEncoder) drain() error {
	for {
		select {
		case pcm := <-e.queue:
			if err := e.feed(pcm); err != nil {
				e.muxer.Close()
				return err
			}
		default:
			packets, err := e.codec.Flush(e.pts())
			if err == nil {
				err = e.write(packets)
			}
			if cerr := e.muxer.Close(); err == nil && cerr != nil {
				err = fmt.Errorf("%w: %v", ErrStorageWriteFailed, cerr)
			}
			return err
		}
	}
}

func (e *SampleEncoder) feed(pcm []byte) error {
	size := e.codec.InputSize()
	for len(pcm) > 0 {
		n := len(pcm)
		if size > 0 && n > size {
			n = size
		}
		packets, err := e.codec.Encode(pcm[:n], e.pts())
		if err != nil {
			return fmt.Errorf("%w: %v", ErrEncoderInternal, err)
		}
		e.position += int64(n)
		if err := e.write(packets); err != nil {
			return err
		}
		pcm = pcm[n:]
	}
	return nil
}

func (e *SampleEncoder) write(packets []Packet) error {
	for _, p := range packets {
		if len(p.Data) > 0 {
			if err := e.muxer.WriteSample(p); err != nil {
				return fmt.Errorf("%w: %v", ErrStorageWriteFailed, err)
			}
			e.bytesOut.Add(int64(len(p.Data)))
		}
		e.checkSpace()
	}
	return nil
}

// checkSpace reports ErrDiskLow once per crossing of the threshold. The
// session keeps running; the owner decides what to do.
func (e *SampleEncoder) checkSpace() {
	if e.opts.Probe == nil {
		return
	}
	free, err := e.opts.Probe.Free(e.opts.Dir)
	if err != nil {
		return
	}
	low := free < DiskLowThreshold
	if low && !e.lowSignal {
		e.opts.OnError(fmt.Errorf("%w: %d bytes free", ErrDiskLow, free))
	}
	e.lowSignal = low
}

// fail tears the session down after an unrecoverable error. quit is closed
// before the callback so a producer blocked in Encode is released first.
func (e *SampleEncoder) fail(err error) {
	e.finished.Store(true)
	e.quitOnce.Do(func() { close(e.quit) })
	e.err = err
	e.opts.OnError(err)
	if cerr := e.muxer.Close(); cerr != nil {
		e.err = errors.Join(err, cerr)
	}
}
