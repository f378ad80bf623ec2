// SPDX-License-Identifier: MIT

// Package udp streams tuner audio to a network peer as RTP over UDP.
package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"

	applog "fmradio/internal/log"
)

var log = applog.For("udp")

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("udp sender is closed")

// PacketSender delivers one datagram.
type PacketSender interface {
	Send(data []byte) error
}

// UDPSender writes datagrams to one remote address.
type UDPSender struct {
	conn   *net.UDPConn
	mu     sync.Mutex
	closed bool
}

var _ PacketSender = (*UDPSender)(nil)

// NewUDPSender dials targetAddress ("host:port"). No local port is bound.
func NewUDPSender(targetAddress string) (*UDPSender, error) {
	addr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP target address '%s': %w", targetAddress, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial UDP for target '%s': %w", targetAddress, err)
	}
	log.Infof("streaming to %s", conn.RemoteAddr())
	return &UDPSender{conn: conn}, nil
}

// Send is safe for concurrent use with Close.
func (s *UDPSender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, err := s.conn.Write(data); err != nil {
		return fmt.Errorf("failed to send UDP packet: %w", err)
	}
	return nil
}

func (s *UDPSender) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close UDP connection: %w", err)
	}
	return nil
}
