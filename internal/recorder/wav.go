package recorder

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"fmradio/internal/audio"
)

// pcmCodec passes PCM through unchanged for uncompressed containers.
type pcmCodec struct {
	format audio.Format
}

func newPCMCodec(f audio.Format) *pcmCodec { return &pcmCodec{format: f} }

func (c *pcmCodec) InputSize() int { return 4096 * c.format.FrameBytes() }

func (c *pcmCodec) Encode(pcm []byte, pts int64) ([]Packet, error) {
	if len(pcm) == 0 {
		return nil, nil
	}
	return []Packet{{Data: pcm, PTS: pts}}, nil
}

func (c *pcmCodec) Flush(pts int64) ([]Packet, error) {
	return []Packet{{PTS: pts, EOS: true}}, nil
}

// wavMuxer writes through go-audio's encoder, which patches the RIFF sizes
// on Close.
type wavMuxer struct {
	f   *os.File
	enc *wav.Encoder
	buf *goaudio.IntBuffer
}

func newWAVMuxer(f *os.File, pcm audio.Format) *wavMuxer {
	return &wavMuxer{
		f:   f,
		enc: wav.NewEncoder(f, pcm.SampleRate, pcm.BitsPerSample, pcm.Channels, 1),
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: pcm.Channels, SampleRate: pcm.SampleRate},
			SourceBitDepth: pcm.BitsPerSample,
		},
	}
}

func (m *wavMuxer) WriteSample(p Packet) error {
	n := len(p.Data) / 2
	if n == 0 {
		return nil
	}
	if cap(m.buf.Data) < n {
		m.buf.Data = make([]int, n)
	}
	m.buf.Data = m.buf.Data[:n]
	for i := 0; i < n; i++ {
		m.buf.Data[i] = int(int16(uint16(p.Data[2*i]) | uint16(p.Data[2*i+1])<<8))
	}
	if err := m.enc.Write(m.buf); err != nil {
		return fmt.Errorf("wav write: %w", err)
	}
	return nil
}

func (m *wavMuxer) Close() error {
	err := m.enc.Close()
	if cerr := m.f.Close(); err == nil {
		err = cerr
	}
	return err
}
