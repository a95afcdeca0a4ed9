package vad

import (
	"context"
	"errors"
	"testing"

	"github.com/lumenvoice/voxloop/pkg/errorsx"
)

// scriptedModel scores a frame by its first sample, letting tests script
// exact probability sequences.
type scriptedModel struct{ resets int }

func (m *scriptedModel) Score(frame []float32) (float32, error) {
	if len(frame) == 0 {
		return 0, nil
	}
	return frame[0], nil
}

func (m *scriptedModel) Reset() error {
	m.resets++
	return nil
}

type stubSource struct {
	started int
	stopped int
	onFrame func([]float32)
}

func (s *stubSource) Start(_ context.Context, onFrame func([]float32)) error {
	s.started++
	s.onFrame = onFrame
	return nil
}

func (s *stubSource) Stop() error {
	s.stopped++
	return nil
}

type eventLog struct {
	starts   int
	ends     int
	misfires int
	segments [][]float32
}

func newDetector(t *testing.T, cfg Config) (*FrameDetector, *stubSource, *eventLog) {
	t.Helper()
	src := &stubSource{}
	log := &eventLog{}
	d, err := NewFrameDetector(cfg, &scriptedModel{}, src, Callbacks{
		OnSpeechStart: func() { log.starts++ },
		OnSpeechEnd: func(segment []float32) {
			log.ends++
			log.segments = append(log.segments, segment)
		},
		OnMisfire: func() { log.misfires++ },
	})
	if err != nil {
		t.Fatalf("detector init: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("detector start: %v", err)
	}
	return d, src, log
}

// frame builds a 4-sample frame whose score equals p.
func frame(p float32) []float32 { return []float32{p, 0, 0, 0} }

func feed(src *stubSource, score float32, n int) {
	for i := 0; i < n; i++ {
		src.onFrame(frame(score))
	}
}

func TestUtteranceLifecycle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameSamples = 4
	_, src, log := newDetector(t, cfg)

	feed(src, 0.1, 12) // idle padding
	feed(src, 0.9, 5)  // speech
	if log.starts != 1 {
		t.Fatalf("expected one speech start, got %d", log.starts)
	}
	if log.ends != 0 {
		t.Fatalf("speech end before silence, got %d", log.ends)
	}

	feed(src, 0.1, cfg.RedemptionFrames+1)
	if log.ends != 1 {
		t.Fatalf("expected one speech end, got %d", log.ends)
	}
	if log.misfires != 0 {
		t.Fatalf("unexpected misfire")
	}

	// Segment carries the pre-speech pad, the speech frames, and the
	// redemption tail.
	wantFrames := cfg.PreSpeechPadFrames + 5 + cfg.RedemptionFrames + 1
	if got := len(log.segments[0]); got != wantFrames*cfg.FrameSamples {
		t.Fatalf("expected %d samples, got %d", wantFrames*cfg.FrameSamples, got)
	}
}

func TestMisfireOnShortBurst(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameSamples = 4
	_, src, log := newDetector(t, cfg)

	feed(src, 0.9, cfg.MinSpeechFrames-1)
	feed(src, 0.1, cfg.RedemptionFrames+1)

	if log.starts != 1 {
		t.Fatalf("expected speech start even for a misfire, got %d", log.starts)
	}
	if log.misfires != 1 {
		t.Fatalf("expected one misfire, got %d", log.misfires)
	}
	if log.ends != 0 {
		t.Fatalf("misfire must not deliver a segment, got %d ends", log.ends)
	}
}

func TestHysteresisBandExtendsUtterance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameSamples = 4
	_, src, log := newDetector(t, cfg)

	feed(src, 0.9, cfg.MinSpeechFrames)
	// Scores inside the band neither confirm speech nor count as
	// silence; the utterance stays open far beyond the redemption
	// window.
	feed(src, 0.6, cfg.RedemptionFrames*3)
	if log.ends != 0 {
		t.Fatalf("in-band frames must not close the utterance")
	}

	feed(src, 0.1, cfg.RedemptionFrames+1)
	if log.ends != 1 {
		t.Fatalf("expected speech end after true silence, got %d", log.ends)
	}
}

func TestSpeechResetsRedemption(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameSamples = 4
	_, src, log := newDetector(t, cfg)

	feed(src, 0.9, cfg.MinSpeechFrames)
	feed(src, 0.1, cfg.RedemptionFrames) // one short of closing
	feed(src, 0.9, 1)                    // mid-utterance pause absorbed
	feed(src, 0.1, cfg.RedemptionFrames)
	if log.ends != 0 {
		t.Fatalf("redemption window should have been reset by speech")
	}

	feed(src, 0.1, 1)
	if log.ends != 1 {
		t.Fatalf("expected speech end, got %d", log.ends)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameSamples = 4
	d, src, _ := newDetector(t, cfg)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if src.started != 1 {
		t.Fatalf("expected single source start, got %d", src.started)
	}

	d.Stop()
	d.Stop()
	if src.stopped != 1 {
		t.Fatalf("expected single source stop, got %d", src.stopped)
	}
}

func TestStoppedDetectorDropsFrames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameSamples = 4
	d, src, log := newDetector(t, cfg)

	d.Stop()
	feed(src, 0.9, 10)
	if log.starts != 0 {
		t.Fatalf("stopped detector must not emit events")
	}
}

func TestConfigValidation(t *testing.T) {
	cfg := Config{PositiveSpeechThreshold: 0.4, NegativeSpeechThreshold: 0.6}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected inverted thresholds to be rejected")
	}

	cfg = Config{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("zero config should fill defaults: %v", err)
	}
	if cfg.PositiveSpeechThreshold != 0.8 || cfg.RedemptionFrames != 10 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

type brokenModel struct{ err error }

func (m *brokenModel) Score([]float32) (float32, error) { return 0, nil }
func (m *brokenModel) Reset() error                     { return m.err }

func TestStartReportsModelInitFailure(t *testing.T) {
	src := &stubSource{}
	d, err := NewFrameDetector(DefaultConfig(), &brokenModel{err: errors.New("weights missing")}, src, Callbacks{})
	if err != nil {
		t.Fatalf("NewFrameDetector: %v", err)
	}

	err = d.Start(context.Background())
	if err == nil {
		t.Fatal("Start succeeded with a broken model")
	}
	if !errorsx.HasReason(err, errorsx.ReasonVADModelInit) {
		t.Fatalf("reason = %v, want %v", errorsx.Reason(err), errorsx.ReasonVADModelInit)
	}
	if src.started != 0 {
		t.Fatalf("source started despite model failure: %d", src.started)
	}
}
