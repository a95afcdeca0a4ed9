package audioctx

import (
	"testing"
	"time"
)

type fakePlaybackDevice struct{ started bool }

func (d *fakePlaybackDevice) Start() error    { d.started = true; return nil }
func (d *fakePlaybackDevice) IsStarted() bool { return d.started }
func (d *fakePlaybackDevice) Uninit()         {}

func TestMarkWaitsForDeviceDrain(t *testing.T) {
	o := newOutput(16000)
	o.device = &fakePlaybackDevice{}
	o.bufferBytes = 8
	cb := o.feed(2)

	if err := o.Write(make([]byte, 16)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	fired := make(chan struct{})
	o.Mark(func() { close(fired) })

	// Drain the queue: four callbacks of two frames each.
	buf := make([]byte, 4)
	for i := 0; i < 4; i++ {
		cb(buf, nil, 2)
	}
	if got := o.Pending(); got != 0 {
		t.Fatalf("pending after drain = %d, want 0", got)
	}
	select {
	case <-fired:
		t.Fatal("mark fired while the device buffer still held audio")
	case <-time.After(50 * time.Millisecond):
	}

	// Two more device periods flush the buffered tail.
	cb(buf, nil, 2)
	cb(buf, nil, 2)
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("mark never fired after the device buffer drained")
	}
}

func TestClearFiresPendingMarks(t *testing.T) {
	o := newOutput(16000)
	o.device = &fakePlaybackDevice{}
	o.bufferBytes = 8

	if err := o.Write(make([]byte, 16)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	fired := make(chan struct{})
	o.Mark(func() { close(fired) })

	o.Clear()
	if got := o.Pending(); got != 0 {
		t.Fatalf("pending after Clear = %d, want 0", got)
	}
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("Clear did not resolve the pending mark")
	}
}
