// Package turn sequences the capture → dispatch → playback cycle and
// owns the engine's state machine. The coordinator is the only component
// that starts or stops the speech detector and the only consumer of
// dispatch results; everything it mutates is serialized under one mutex,
// so state transitions are atomic with respect to each other.
package turn

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lumenvoice/voxloop/pkg/dispatch"
	"github.com/lumenvoice/voxloop/pkg/errorsx"
	"github.com/lumenvoice/voxloop/pkg/metrics"
	"github.com/lumenvoice/voxloop/pkg/redact"
	"github.com/lumenvoice/voxloop/pkg/vad"
	"github.com/lumenvoice/voxloop/pkg/wav"
)

// Player is the slice of the playback controller the coordinator needs.
type Player interface {
	// Play starts a session; the channel closes when it ends.
	Play(payload []byte) (<-chan struct{}, error)
	// Stop hard-stops the active session; no-op when idle.
	Stop()
}

// Exchange is one completed turn, the engine-side shadow of the
// backend's conversation history.
type Exchange struct {
	TurnID        string
	Transcription string
	ResponseText  string
	CompletedAt   time.Time
}

// Options wires a coordinator. Detector is bound separately because its
// callbacks point back at the coordinator.
type Options struct {
	Dispatcher dispatch.Dispatcher
	Player     Player
	VoiceID    string
	SampleRate int
	Observer   metrics.Observer
	Logger     *slog.Logger
}

// Coordinator drives one full cycle at a time: arm detector, capture
// segment, encode, dispatch, apply result, play response, re-arm.
type Coordinator struct {
	mu sync.Mutex

	sm         *stateMachine
	detector   vad.Detector
	dispatcher dispatch.Dispatcher
	player     Player

	voiceID    string
	sampleRate int

	// cycle is the stale-result guard: every arm issues a fresh token
	// and late results carrying an older one are discarded.
	cycle   string
	baseCtx context.Context

	history []Exchange

	obs metrics.Observer
	log *slog.Logger
}

func NewCoordinator(opts Options) *Coordinator {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	sampleRate := opts.SampleRate
	if sampleRate <= 0 {
		sampleRate = wav.DefaultSampleRate
	}
	return &Coordinator{
		sm:         newStateMachine(),
		dispatcher: opts.Dispatcher,
		player:     opts.Player,
		voiceID:    opts.VoiceID,
		sampleRate: sampleRate,
		baseCtx:    context.Background(),
		obs:        opts.Observer,
		log:        log,
	}
}

// BindDetector attaches the detector built around Callbacks(). Must be
// called before the first Arm.
func (c *Coordinator) BindDetector(d vad.Detector) {
	c.mu.Lock()
	c.detector = d
	c.mu.Unlock()
}

// Callbacks returns the event hooks a detector must be built with.
func (c *Coordinator) Callbacks() vad.Callbacks {
	return vad.Callbacks{
		OnSpeechStart: c.onSpeechStart,
		OnSpeechEnd:   c.onSpeechEnd,
		OnMisfire:     c.onMisfire,
	}
}

// AddStatusSink registers a passive phase observer.
func (c *Coordinator) AddStatusSink(sink StatusSink) {
	c.sm.AddSink(sink)
}

// State returns the current phase.
func (c *Coordinator) State() State {
	return c.sm.State()
}

// SetVoice switches the voice identifier sent with subsequent turns.
func (c *Coordinator) SetVoice(voiceID string) {
	c.mu.Lock()
	c.voiceID = voiceID
	c.mu.Unlock()
}

// History returns a snapshot of completed turns.
func (c *Coordinator) History() []Exchange {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Exchange(nil), c.history...)
}

// Arm starts a capture cycle. Arming while Speaking is the barge-in
// path: the active playback is hard-stopped before anything else
// happens. Arming while already listening or mid-cycle is a no-op.
func (c *Coordinator) Arm(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.sm.State() {
	case StateIdle, StatePaused, StateError:
		// armable
	case StateSpeaking:
		// Barge-in: stop playback before the new cycle may begin.
		c.player.Stop()
	default:
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}
	c.baseCtx = ctx
	c.cycle = uuid.NewString()
	turnID := c.cycle

	if err := c.sm.Transition(StateArming, turnID, "user arm"); err != nil {
		return err
	}

	if err := c.detector.Start(ctx); err != nil {
		_ = c.sm.Transition(StateError, turnID, "capture unavailable: "+err.Error())
		c.record("turn_arm_failed", turnID, 0)
		return errorsx.Wrap(err, errorsx.ReasonMicPermission)
	}

	_ = c.sm.Transition(StateListening, turnID, "detector armed")
	c.record("turn_armed", turnID, 0)
	return nil
}

// Disarm pauses the engine from any interruptible phase. An in-flight
// dispatch is not cancelled; its result is discarded on arrival.
func (c *Coordinator) Disarm() {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.sm.State() {
	case StateListening, StateCapturingSpeech, StateSpeaking,
		StateEncoding, StateDispatching, StateAwaitingResponse:
	default:
		return
	}

	turnID := c.cycle
	c.player.Stop()
	c.detector.Stop()
	c.cycle = ""
	_ = c.sm.Transition(StatePaused, turnID, "user disarm")
	c.record("turn_disarmed", turnID, 0)
}

func (c *Coordinator) onSpeechStart() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sm.State() != StateListening {
		return
	}
	_ = c.sm.Transition(StateCapturingSpeech, c.cycle, "speech detected")
	c.record("turn_speech_start", c.cycle, 0)
}

func (c *Coordinator) onMisfire() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sm.State() != StateCapturingSpeech {
		return
	}
	// Informational only: no encoder, no dispatch, straight back to
	// listening.
	_ = c.sm.Transition(StateListening, c.cycle, "misfire discarded")
	c.record("turn_misfire", c.cycle, 0)
}

// onSpeechEnd hands the segment off the capture goroutine; stopping the
// detector from inside its own frame callback is not safe.
func (c *Coordinator) onSpeechEnd(segment []float32) {
	go c.finishCapture(segment)
}

func (c *Coordinator) finishCapture(segment []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sm.State() != StateCapturingSpeech {
		return // disarmed while the segment was in flight
	}
	turnID := c.cycle

	_ = c.sm.Transition(StateEncoding, turnID, "speech ended")
	c.detector.Stop()

	payload := wav.Encode(segment, c.sampleRate)
	c.record("turn_encoded", turnID, float64(len(payload)))

	_ = c.sm.Transition(StateDispatching, turnID, "payload ready")
	req := dispatch.Request{Audio: payload, VoiceID: c.voiceID}
	ctx := c.baseCtx

	go func() {
		res, err := c.dispatcher.Dispatch(ctx, req)
		c.resolve(turnID, res, err)
	}()
}

// resolve applies a dispatch result, or discards it when the coordinator
// has moved on since the request went out.
func (c *Coordinator) resolve(turnID string, res dispatch.Result, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cycle != turnID || c.sm.State() != StateDispatching {
		c.log.Debug("discarding stale dispatch result",
			"turn_id", turnID, "reason", string(errorsx.ReasonStaleResult))
		c.recordTagged("turn_stale_result", turnID, 0,
			map[string]string{"reason": string(errorsx.ReasonStaleResult)})
		return
	}

	_ = c.sm.Transition(StateAwaitingResponse, turnID, "network resolved")
	c.record("turn_response", turnID, 0)

	if err != nil {
		c.log.Warn("dispatch failed", "turn_id", turnID, "error", err.Error())
		c.rearmLocked(turnID, "dispatch failed")
		return
	}

	switch res.Status {
	case dispatch.StatusError:
		c.log.Warn("backend rejected turn", "turn_id", turnID, "message", res.Message)
		c.rearmLocked(turnID, "backend error: "+res.Message)

	case dispatch.StatusExit:
		c.appendHistoryLocked(turnID, res)
		_ = c.sm.Transition(StateIdle, turnID, "conversation ended")
		c.record("turn_exit", turnID, 0)

	case dispatch.StatusSuccess:
		c.appendHistoryLocked(turnID, res)
		if len(res.ResponseAudio) == 0 {
			c.rearmLocked(turnID, "no response audio")
			return
		}
		done, perr := c.player.Play(res.ResponseAudio)
		if perr != nil {
			c.log.Warn("response playback unavailable", "turn_id", turnID, "error", perr.Error())
			c.rearmLocked(turnID, "playback unavailable")
			return
		}
		_ = c.sm.Transition(StateSpeaking, turnID, "playing response")
		c.record("turn_speaking", turnID, 0)
		go func() {
			<-done
			c.playbackDone(turnID)
		}()
	}
}

func (c *Coordinator) playbackDone(turnID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cycle != turnID || c.sm.State() != StateSpeaking {
		return // superseded by barge-in or disarm
	}
	c.record("turn_playback_done", turnID, 0)
	c.rearmLocked(turnID, "playback complete")
}

// rearmLocked restarts listening after a completed or failed turn. A
// capture stream that can no longer be acquired parks the engine in
// Paused, which the user can arm out of.
func (c *Coordinator) rearmLocked(turnID, reason string) {
	if err := c.detector.Start(c.baseCtx); err != nil {
		c.log.Warn("re-arm failed", "turn_id", turnID, "error", err.Error())
		c.cycle = ""
		_ = c.sm.Transition(StatePaused, turnID, "capture lost: "+err.Error())
		return
	}
	_ = c.sm.Transition(StateListening, turnID, reason)
}

func (c *Coordinator) appendHistoryLocked(turnID string, res dispatch.Result) {
	c.history = append(c.history, Exchange{
		TurnID:        turnID,
		Transcription: res.Transcription,
		ResponseText:  res.ResponseText,
		CompletedAt:   time.Now(),
	})
	c.log.Info("turn completed",
		"turn_id", turnID,
		"transcription", redact.Text(res.Transcription),
		"response", redact.Text(res.ResponseText))
}

func (c *Coordinator) record(name, turnID string, value float64) {
	c.recordTagged(name, turnID, value, nil)
}

func (c *Coordinator) recordTagged(name, turnID string, value float64, extra map[string]string) {
	if c.obs == nil {
		return
	}
	tags := map[string]string{"turn_id": turnID}
	for k, v := range extra {
		tags[k] = v
	}
	c.obs.RecordEvent(metrics.MetricsEvent{
		Name:  name,
		Time:  time.Now(),
		Value: value,
		Tags:  tags,
	})
}
