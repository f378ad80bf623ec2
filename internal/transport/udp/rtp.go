package udp

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/pion/rtp"
)

// Static payload types for linear 16-bit PCM at 44.1 kHz.
const (
	PayloadTypeL16Stereo uint8 = 10
	PayloadTypeL16Mono   uint8 = 11
)

// DefaultMaxPayload keeps packets below a typical Ethernet MTU.
const DefaultMaxPayload = 1200

// RTPPacketizer splits little-endian PCM into L16 RTP packets. Payloads are
// converted to network byte order and always hold whole frames.
type RTPPacketizer struct {
	sender     PacketSender
	channels   int
	maxPayload int

	mu        sync.Mutex
	ssrc      uint32
	seq       rtp.Sequencer
	timestamp uint32
	marker    bool
	scratch   []byte
	packets   uint64
}

func NewRTPPacketizer(sender PacketSender, ssrc uint32, channels, maxPayload int) (*RTPPacketizer, error) {
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("L16 RTP supports 1 or 2 channels, got %d", channels)
	}
	frame := 2 * channels
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}
	maxPayload -= maxPayload % frame
	if maxPayload == 0 {
		return nil, fmt.Errorf("max payload smaller than one frame")
	}
	return &RTPPacketizer{
		sender:     sender,
		channels:   channels,
		maxPayload: maxPayload,
		ssrc:       ssrc,
		seq:        rtp.NewRandomSequencer(),
		marker:     true,
		scratch:    make([]byte, maxPayload),
	}, nil
}

func (p *RTPPacketizer) payloadType() uint8 {
	if p.channels == 1 {
		return PayloadTypeL16Mono
	}
	return PayloadTypeL16Stereo
}

// Discontinuity marks the next packet as the start of a talkspurt, used
// after the stream was paused.
func (p *RTPPacketizer) Discontinuity() {
	p.mu.Lock()
	p.marker = true
	p.mu.Unlock()
}

// WritePCM packetizes pcm and sends each packet. A trailing partial frame
// is dropped.
func (p *RTPPacketizer) WritePCM(pcm []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame := 2 * p.channels
	pcm = pcm[:len(pcm)-len(pcm)%frame]
	for len(pcm) > 0 {
		n := min(len(pcm), p.maxPayload)
		payload := p.scratch[:n]
		for i := 0; i+1 < n; i += 2 {
			binary.BigEndian.PutUint16(payload[i:], binary.LittleEndian.Uint16(pcm[i:]))
		}
		pkt := rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				Marker:         p.marker,
				PayloadType:    p.payloadType(),
				SequenceNumber: p.seq.NextSequenceNumber(),
				Timestamp:      p.timestamp,
				SSRC:           p.ssrc,
			},
			Payload: payload,
		}
		raw, err := pkt.Marshal()
		if err != nil {
			return fmt.Errorf("marshal rtp packet: %w", err)
		}
		if err := p.sender.Send(raw); err != nil {
			return err
		}
		p.marker = false
		p.timestamp += uint32(n / frame)
		p.packets++
		pcm = pcm[n:]
	}
	return nil
}

// Packets returns how many packets were sent.
func (p *RTPPacketizer) Packets() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.packets
}
