package udp

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/pion/rtp"
)

type captureSender struct {
	packets [][]byte
	err     error
}

func (c *captureSender) Send(data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.packets = append(c.packets, append([]byte(nil), data...))
	return nil
}

func TestRTPPacketizer_SplitsAndConverts(t *testing.T) {
	cs := &captureSender{}
	p, err := NewRTPPacketizer(cs, 0xfeed, 2, 10) // rounded down to 8 bytes = 2 frames
	if err != nil {
		t.Fatalf("NewRTPPacketizer: %v", err)
	}

	pcm := []byte{
		0x01, 0x02, 0x03, 0x04,
		0x05, 0x06, 0x07, 0x08,
		0x09, 0x0a, 0x0b, 0x0c,
		0xff, // partial frame, dropped
	}
	if err := p.WritePCM(pcm); err != nil {
		t.Fatalf("WritePCM: %v", err)
	}
	if len(cs.packets) != 2 {
		t.Fatalf("packets = %d, want 2", len(cs.packets))
	}

	var first, second rtp.Packet
	if err := first.Unmarshal(cs.packets[0]); err != nil {
		t.Fatal(err)
	}
	if err := second.Unmarshal(cs.packets[1]); err != nil {
		t.Fatal(err)
	}

	if first.PayloadType != PayloadTypeL16Stereo || first.SSRC != 0xfeed {
		t.Errorf("header = %+v", first.Header)
	}
	if !first.Marker || second.Marker {
		t.Errorf("marker = %v/%v, want true/false", first.Marker, second.Marker)
	}
	if second.SequenceNumber != first.SequenceNumber+1 {
		t.Errorf("sequence %d -> %d", first.SequenceNumber, second.SequenceNumber)
	}
	if second.Timestamp-first.Timestamp != 2 {
		t.Errorf("timestamp advanced %d, want 2 frames", second.Timestamp-first.Timestamp)
	}
	want := []byte{0x02, 0x01, 0x04, 0x03, 0x06, 0x05, 0x08, 0x07}
	if string(first.Payload) != string(want) {
		t.Errorf("payload = % x, want % x", first.Payload, want)
	}
	if len(second.Payload) != 4 {
		t.Errorf("second payload = %d bytes, want 4", len(second.Payload))
	}
	if p.Packets() != 2 {
		t.Errorf("Packets = %d", p.Packets())
	}

	p.Discontinuity()
	if err := p.WritePCM(pcm[:4]); err != nil {
		t.Fatal(err)
	}
	var third rtp.Packet
	if err := third.Unmarshal(cs.packets[2]); err != nil {
		t.Fatal(err)
	}
	if !third.Marker {
		t.Error("marker not set after discontinuity")
	}
}

func TestRTPPacketizer_Errors(t *testing.T) {
	if _, err := NewRTPPacketizer(&captureSender{}, 1, 3, 0); err == nil {
		t.Error("3 channels accepted")
	}
	if _, err := NewRTPPacketizer(&captureSender{}, 1, 2, 3); err == nil {
		t.Error("payload below one frame accepted")
	}

	boom := errors.New("boom")
	p, _ := NewRTPPacketizer(&captureSender{err: boom}, 1, 1, 0)
	if err := p.WritePCM([]byte{1, 2}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestUDPSender(t *testing.T) {
	ln, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Skipf("no loopback UDP: %v", err)
	}
	defer ln.Close()

	s, err := NewUDPSender(ln.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewUDPSender: %v", err)
	}
	if err := s.Send([]byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	buf := make([]byte, 16)
	ln.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := ln.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Errorf("got %q", buf[:n])
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Send([]byte("late")); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestNewUDPSender_BadAddress(t *testing.T) {
	if _, err := NewUDPSender("not an address"); err == nil {
		t.Error("expected resolve error")
	}
}
