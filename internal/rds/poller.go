// SPDX-License-Identifier: MIT

// Package rds polls the tuner for Radio Data System events at a fixed rate
// and forwards them to the engine.
package rds

import (
	"sync"
	"time"

	applog "fmradio/internal/log"
	"fmradio/internal/tuner"
)

var log = applog.For("rds")

// DefaultInterval is the fixed poll cadence.
const DefaultInterval = 500 * time.Millisecond

// Kind names the RDS field an update carries.
type Kind int

const (
	ProgramService Kind = iota
	RadioText
)

func (k Kind) String() string {
	if k == RadioText {
		return "rt"
	}
	return "ps"
}

// Sink receives what the poller reads. Every method is called from the
// poller goroutine and must not block on the engine worker; state changes
// go through the engine's queue.
type Sink interface {
	RDSUpdate(kind Kind, value string)
	// CanFollowAF reports powered up with no seek or scan running.
	CanFollowAF() bool
	Frequency() tuner.Frequency
	// AlternateFrequency asks the engine to retune.
	AlternateFrequency(f tuner.Frequency)
}

// Poller reads the driver's RDS event mask every interval, whether or not
// anything arrived last time.
type Poller struct {
	driver   tuner.Driver
	sink     Sink
	band     tuner.Band
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex
}

func NewPoller(driver tuner.Driver, sink Sink, band tuner.Band, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{driver: driver, sink: sink, band: band, interval: interval}
}

// Start launches the poll goroutine. It is a no-op while running.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		return
	}
	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}
	ticker, done := p.ticker, p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		log.Debugf("poller started (interval %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.poll()
			case <-done:
				return
			}
		}
	}()
}

// Stop signals the goroutine and waits for it. Safe to call repeatedly.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()
	p.wg.Wait()
	log.Debugf("poller stopped")
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ticker != nil
}

func (p *Poller) poll() {
	events := p.driver.ReadRDSEvents()
	if events == 0 {
		return
	}
	if events.Has(tuner.RDSEventProgramService) {
		p.sink.RDSUpdate(ProgramService, tuner.TrimRDS(p.driver.ProgramService()))
	}
	if events.Has(tuner.RDSEventRadioText) {
		p.sink.RDSUpdate(RadioText, tuner.TrimRDS(p.driver.RadioText()))
	}
	if events.Has(tuner.RDSEventAF) && p.sink.CanFollowAF() {
		af := p.driver.ActiveAF()
		if p.band.Contains(af) && af != p.sink.Frequency() {
			log.Infof("following alternate frequency %s", af)
			p.sink.AlternateFrequency(af)
		}
	}
}
