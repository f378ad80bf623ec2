package recorder

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	mp3encoder "github.com/braheezy/shine-mp3/pkg/mp3"

	"fmradio/internal/audio"
	"fmradio/pkg/bitint"
)

// samplesPerFrame is the MPEG-1 Layer III frame length per channel.
const samplesPerFrame = 1152

// frameWriter is the part of the shine encoder the codec uses.
type frameWriter interface {
	Write(w io.Writer, samples []int16) error
}

// mp3Codec feeds shine whole frames only, so consecutive Write calls
// produce a continuous stream. Mono input is widened to stereo.
type mp3Codec struct {
	enc      frameWriter
	channels int
	pending  []int16
	scratch  []int16
	out      bytes.Buffer
}

func newMP3Codec(f audio.Format) *mp3Codec {
	return &mp3Codec{
		enc:      mp3encoder.NewEncoder(f.SampleRate, 2),
		channels: f.Channels,
	}
}

func (c *mp3Codec) InputSize() int {
	return samplesPerFrame * c.channels * 2
}

func (c *mp3Codec) append(pcm []byte) {
	n := len(pcm) / 2
	if cap(c.scratch) < n {
		c.scratch = make([]int16, n)
	}
	s := c.scratch[:n]
	audio.PCM16(s, pcm)
	if c.channels == 1 {
		for _, v := range s {
			c.pending = append(c.pending, v, v)
		}
		return
	}
	c.pending = append(c.pending, s...)
}

func (c *mp3Codec) encode(samples []int16, pts int64, eos bool) ([]Packet, error) {
	c.out.Reset()
	if len(samples) > 0 {
		if err := c.enc.Write(&c.out, samples); err != nil {
			return nil, fmt.Errorf("mp3 encode: %w", err)
		}
	}
	if c.out.Len() == 0 && !eos {
		return nil, nil
	}
	data := append([]byte(nil), c.out.Bytes()...)
	return []Packet{{Data: data, PTS: pts, EOS: eos}}, nil
}

func (c *mp3Codec) Encode(pcm []byte, pts int64) ([]Packet, error) {
	c.append(pcm)
	n := bitint.AlignDown(len(c.pending), samplesPerFrame*2)
	if n == 0 {
		return nil, nil
	}
	packets, err := c.encode(c.pending[:n], pts, false)
	c.pending = append(c.pending[:0], c.pending[n:]...)
	return packets, err
}

// Flush pads the tail with silence up to a frame boundary.
func (c *mp3Codec) Flush(pts int64) ([]Packet, error) {
	tail := c.pending
	if len(tail) > 0 {
		padded := make([]int16, bitint.AlignUp(len(tail), samplesPerFrame*2))
		copy(padded, tail)
		tail = padded
	}
	c.pending = nil
	return c.encode(tail, pts, true)
}

// streamMuxer appends packet payloads; an MP3 file is a plain frame stream.
type streamMuxer struct {
	f *os.File
	w *bufio.Writer
}

func newStreamMuxer(f *os.File) *streamMuxer {
	return &streamMuxer{f: f, w: bufio.NewWriterSize(f, 64*1024)}
}

func (m *streamMuxer) WriteSample(p Packet) error {
	_, err := m.w.Write(p.Data)
	return err
}

func (m *streamMuxer) Close() error {
	err := m.w.Flush()
	if cerr := m.f.Close(); err == nil {
		err = cerr
	}
	return err
}
