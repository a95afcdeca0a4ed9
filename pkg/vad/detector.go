// Package vad segments a live capture stream into utterances. A
// FrameDetector scores fixed-size frames with a pluggable Model and runs
// a hysteresis state machine over the scores: a positive frame opens a
// tentative utterance, trailing silence beyond the redemption window
// closes it, and utterances that never accumulate enough speech frames
// are discarded as misfires.
package vad

import (
	"context"
	"sync"

	"github.com/lumenvoice/voxloop/pkg/errorsx"
)

// Callbacks receive segmentation events. They are invoked synchronously
// in frame order from the capture goroutine: a speech-end or misfire
// always follows its speech-start, and no second start is delivered
// before the previous utterance resolved.
type Callbacks struct {
	// OnSpeechStart fires once voice activity is detected.
	OnSpeechStart func()
	// OnSpeechEnd delivers the accumulated utterance, including the
	// pre-speech pad, once trailing silence exceeds the redemption
	// window.
	OnSpeechEnd func(segment []float32)
	// OnMisfire fires instead of OnSpeechEnd when the utterance never
	// reached MinSpeechFrames. Purely informational.
	OnMisfire func()
}

// Detector is the lifecycle surface the coordinator drives. Both calls
// are idempotent; Stop releases the underlying capture stream.
type Detector interface {
	Start(ctx context.Context) error
	Stop()
}

// FrameDetector is the stock Detector over a Source and a Model.
type FrameDetector struct {
	cfg       Config
	model     Model
	source    Source
	callbacks Callbacks

	mu      sync.Mutex
	started bool

	// Segmentation state, touched only from the frame path.
	speaking     bool
	speechFrames int
	redemption   int
	pad          [][]float32
	segment      []float32
}

func NewFrameDetector(cfg Config, model Model, source Source, callbacks Callbacks) (*FrameDetector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &FrameDetector{
		cfg:       cfg,
		model:     model,
		source:    source,
		callbacks: callbacks,
	}, nil
}

// Start arms the detector. Idempotent while running.
func (d *FrameDetector) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return nil
	}
	d.resetLocked()
	d.mu.Unlock()

	if err := d.model.Reset(); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonVADModelInit)
	}

	// Mark started before the source spins up so the leading capture
	// frames are not dropped.
	d.mu.Lock()
	d.started = true
	d.mu.Unlock()

	if err := d.source.Start(ctx, d.processFrame); err != nil {
		d.mu.Lock()
		d.started = false
		d.mu.Unlock()
		return err
	}
	return nil
}

// Stop disarms the detector and releases the capture stream. Idempotent.
// An utterance in progress is dropped without a speech-end event.
func (d *FrameDetector) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.started = false
	d.resetLocked()
	d.mu.Unlock()

	_ = d.source.Stop()
}

func (d *FrameDetector) resetLocked() {
	d.speaking = false
	d.speechFrames = 0
	d.redemption = 0
	d.pad = nil
	d.segment = nil
}

// processFrame runs the hysteresis machine on one frame. Called from the
// source's capture goroutine; frames arrive in capture order.
func (d *FrameDetector) processFrame(frame []float32) {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}

	score, err := d.model.Score(frame)
	if err != nil {
		// A scoring failure drops the frame; the stream continues.
		d.mu.Unlock()
		return
	}

	if !d.speaking {
		if score >= d.cfg.PositiveSpeechThreshold {
			d.speaking = true
			d.speechFrames = 1
			d.redemption = 0
			d.segment = d.segment[:0]
			for _, padFrame := range d.pad {
				d.segment = append(d.segment, padFrame...)
			}
			d.pad = nil
			d.segment = append(d.segment, frame...)
			onStart := d.callbacks.OnSpeechStart
			d.mu.Unlock()
			if onStart != nil {
				onStart()
			}
			return
		}

		d.pad = append(d.pad, frame)
		if len(d.pad) > d.cfg.PreSpeechPadFrames {
			d.pad = d.pad[1:]
		}
		d.mu.Unlock()
		return
	}

	d.segment = append(d.segment, frame...)
	switch {
	case score >= d.cfg.PositiveSpeechThreshold:
		d.speechFrames++
		d.redemption = 0
	case score < d.cfg.NegativeSpeechThreshold:
		d.redemption++
	}

	if d.redemption <= d.cfg.RedemptionFrames {
		d.mu.Unlock()
		return
	}

	// Utterance closed by trailing silence.
	segment := d.segment
	confirmed := d.speechFrames >= d.cfg.MinSpeechFrames
	d.speaking = false
	d.speechFrames = 0
	d.redemption = 0
	d.segment = nil
	onEnd := d.callbacks.OnSpeechEnd
	onMisfire := d.callbacks.OnMisfire
	d.mu.Unlock()

	if confirmed {
		if onEnd != nil {
			onEnd(segment)
		}
		return
	}
	if onMisfire != nil {
		onMisfire()
	}
}
