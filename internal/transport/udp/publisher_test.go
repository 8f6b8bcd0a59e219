// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"math"
	"net"
	"testing"
	"time"

	"github.com/imSoTn/audioreact/internal/analysis"
)

// newLoopback returns a listening UDP socket and a sender dialed at it.
func newLoopback(t *testing.T) (*net.UDPConn, *Sender) {
	t.Helper()

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("failed to open loopback listener: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	sender, err := NewSender(conn.LocalAddr().String())
	if err != nil {
		t.Fatalf("failed to create sender: %v", err)
	}
	t.Cleanup(func() { sender.Close() })

	return conn, sender
}

func readFrame(t *testing.T, conn *net.UDPConn) []byte {
	t.Helper()
	buf := make([]byte, 256)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("failed to read frame: %v", err)
	}
	return buf[:n]
}

func TestSenderRejectsBadTarget(t *testing.T) {
	if _, err := NewSender("not a host:port:extra"); err == nil {
		t.Error("expected error for malformed target")
	}
}

func TestSenderClosedSend(t *testing.T) {
	_, sender := newLoopback(t)
	if err := sender.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := sender.Send([]byte{1}); err != ErrSenderClosed {
		t.Errorf("Send after Close = %v, want ErrSenderClosed", err)
	}
	// Idempotent close.
	if err := sender.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
}

func TestPublisherFrameLayout(t *testing.T) {
	conn, sender := newLoopback(t)

	pub, err := NewPublisher(5*time.Millisecond, sender)
	if err != nil {
		t.Fatalf("failed to create publisher: %v", err)
	}

	res := analysis.Result{
		Bands:     [analysis.NumBands]float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7},
		Volume:    0.8,
		Direction: 0.25,
		Spike:     true,
	}
	if err := pub.Send(res); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	pub.Start()
	defer pub.Stop()

	frame := readFrame(t, conn)
	if len(frame) != frameSize {
		t.Fatalf("frame length = %d, want %d", len(frame), frameSize)
	}

	if seq := binary.BigEndian.Uint32(frame[0:4]); seq != 1 {
		t.Errorf("sequence = %d, want 1", seq)
	}
	nanos := int64(binary.BigEndian.Uint64(frame[4:12]))
	if time.Since(time.Unix(0, nanos)) > time.Minute {
		t.Errorf("timestamp implausible: %d", nanos)
	}
	if vol := math.Float32frombits(binary.BigEndian.Uint32(frame[12:16])); vol != 0.8 {
		t.Errorf("volume = %f, want 0.8", vol)
	}
	if dir := math.Float32frombits(binary.BigEndian.Uint32(frame[16:20])); dir != 0.25 {
		t.Errorf("direction = %f, want 0.25", dir)
	}
	if frame[20] != 1 {
		t.Errorf("spike byte = %d, want 1", frame[20])
	}
	if count := binary.BigEndian.Uint16(frame[21:23]); count != analysis.NumBands {
		t.Errorf("band count = %d, want %d", count, analysis.NumBands)
	}
	for i := 0; i < analysis.NumBands; i++ {
		off := 23 + i*4
		got := math.Float32frombits(binary.BigEndian.Uint32(frame[off : off+4]))
		want := float32(res.Bands[i])
		if got != want {
			t.Errorf("band %d = %f, want %f", i, got, want)
		}
	}
}

func TestPublisherSkipsStaleTicks(t *testing.T) {
	conn, sender := newLoopback(t)

	pub, err := NewPublisher(5*time.Millisecond, sender)
	if err != nil {
		t.Fatalf("failed to create publisher: %v", err)
	}

	pub.Send(analysis.Result{Volume: 0.5, Direction: 0.5})
	pub.Start()
	defer pub.Stop()

	// One fresh result, many ticks: exactly one frame should arrive.
	readFrame(t, conn)

	buf := make([]byte, 256)
	conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	if n, _, err := conn.ReadFromUDP(buf); err == nil {
		t.Errorf("unexpected second frame of %d bytes from a stale result", n)
	}
}

func TestPublisherRejects(t *testing.T) {
	_, sender := newLoopback(t)

	if _, err := NewPublisher(time.Millisecond, nil); err == nil {
		t.Error("expected error for nil sender")
	}

	pub, err := NewPublisher(time.Millisecond, sender)
	if err != nil {
		t.Fatalf("failed to create publisher: %v", err)
	}
	if err := pub.Send("not a result"); err == nil {
		t.Error("expected error for unsupported payload type")
	}
}

func TestPublisherStartStopCycles(t *testing.T) {
	_, sender := newLoopback(t)

	pub, err := NewPublisher(time.Millisecond, sender)
	if err != nil {
		t.Fatalf("failed to create publisher: %v", err)
	}

	// Stop before Start is a no-op.
	if err := pub.Stop(); err != nil {
		t.Fatalf("Stop before Start = %v, want nil", err)
	}

	for i := 0; i < 3; i++ {
		pub.Start()
		pub.Start() // Double Start is a no-op.
		if err := pub.Stop(); err != nil {
			t.Fatalf("Stop cycle %d failed: %v", i, err)
		}
		if err := pub.Stop(); err != nil {
			t.Fatalf("double Stop cycle %d failed: %v", i, err)
		}
	}

	if err := pub.Close(); err != nil {
		t.Errorf("Close = %v, want nil", err)
	}
}
