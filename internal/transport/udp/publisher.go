// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/imSoTn/audioreact/internal/analysis"
	applog "github.com/imSoTn/audioreact/internal/log"
)

// DefaultPublishInterval is used when the configured interval is invalid.
const DefaultPublishInterval = 33 * time.Millisecond // ~30 Hz

// frameSize is the fixed packet length:
// seq(4) + timestamp(8) + volume(4) + direction(4) + spike(1) +
// bandCount(2) + NumBands*float32.
const frameSize = 4 + 8 + 4 + 4 + 1 + 2 + analysis.NumBands*4

/*
Frame layout (BigEndian):

|<-- 4 -->|<---- 8 ---->|<-- 4 -->|<--- 4 --->|<1>|<- 2 ->|<-- 7 x 4 -->|
+---------+-------------+---------+-----------+---+-------+-------------+
|   seq   |  timestamp  | volume  | direction |spk| bands |  band power |
| uint32  | int64 nanos | float32 |  float32  |u8 | uint16|  []float32  |
+---------+-------------+---------+-----------+---+-------+-------------+
*/

// Publisher rate-limits analysis results onto a UDP socket. It implements
// the transport interface: the capture callback hands every result to
// Send, which only records it; a ticker goroutine packs the most recent
// result into a binary frame and transmits it. Ticks with no new result
// send nothing.
type Publisher struct {
	sender   *Sender
	interval time.Duration

	mu     sync.Mutex // Guards latest/fresh against the publish goroutine.
	latest analysis.Result
	fresh  bool

	runMu    sync.Mutex // Guards ticker and doneChan across Start/Stop.
	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	seq    uint32
	packet [frameSize]byte // Reused for every frame, no per-tick allocation.
}

// NewPublisher wires a publisher to a sender. A non-positive interval
// falls back to DefaultPublishInterval.
func NewPublisher(interval time.Duration, sender *Sender) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("udp publisher: sender cannot be nil")
	}
	if interval <= 0 {
		applog.Warnf("UDPPublisher: invalid interval, defaulting to %s", DefaultPublishInterval)
		interval = DefaultPublishInterval
	}

	return &Publisher{sender: sender, interval: interval}, nil
}

// Send records the latest result for the next tick. It never blocks on the
// network, so the capture callback is never delayed by a slow link.
func (p *Publisher) Send(data any) error {
	res, ok := data.(analysis.Result)
	if !ok {
		return fmt.Errorf("udp publisher: unsupported payload %T", data)
	}

	p.mu.Lock()
	p.latest = res
	p.fresh = true
	p.mu.Unlock()
	return nil
}

// Start launches the publish goroutine. Calling Start on a running
// publisher is a no-op.
func (p *Publisher) Start() {
	p.runMu.Lock()
	if p.ticker != nil {
		p.runMu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	done := p.doneChan
	p.runMu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Infof("UDPPublisher: started (interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-done:
				return
			}
		}
	}()
}

// Stop signals the publish goroutine and waits for it to exit. Safe to
// call repeatedly and when never started.
func (p *Publisher) Stop() error {
	p.runMu.Lock()
	if p.ticker == nil {
		p.runMu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.runMu.Unlock()

	p.wg.Wait()
	applog.Debugf("UDPPublisher: stopped")
	return nil
}

// publish packs the most recent result and sends one frame. Skips the
// tick entirely when no result arrived since the last one.
func (p *Publisher) publish() {
	p.mu.Lock()
	if !p.fresh {
		p.mu.Unlock()
		return
	}
	res := p.latest
	p.fresh = false
	p.mu.Unlock()

	p.seq++
	frame := p.packFrame(res, p.seq, time.Now().UnixNano())

	if err := p.sender.Send(frame); err != nil {
		applog.Errorf("UDPPublisher: send failed: %v", err)
		return
	}
	applog.Debugf("UDPPublisher: sent frame %d (%d bytes)", p.seq, len(frame))
}

// packFrame serializes one result into the reused packet buffer.
func (p *Publisher) packFrame(res analysis.Result, seq uint32, nanos int64) []byte {
	buf := p.packet[:]

	binary.BigEndian.PutUint32(buf[0:4], seq)
	binary.BigEndian.PutUint64(buf[4:12], uint64(nanos))
	binary.BigEndian.PutUint32(buf[12:16], math.Float32bits(float32(res.Volume)))
	binary.BigEndian.PutUint32(buf[16:20], math.Float32bits(float32(res.Direction)))

	buf[20] = 0
	if res.Spike {
		buf[20] = 1
	}
	binary.BigEndian.PutUint16(buf[21:23], uint16(analysis.NumBands))

	for i, band := range res.Bands {
		off := 23 + i*4
		binary.BigEndian.PutUint32(buf[off:off+4], math.Float32bits(float32(band)))
	}

	return buf
}

// Close stops the publisher. The sender is owned by the caller and closed
// separately.
func (p *Publisher) Close() error {
	return p.Stop()
}
