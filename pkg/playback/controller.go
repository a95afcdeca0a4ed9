// Package playback plays response audio through the shared output
// device. At most one session is active engine-wide: starting a new one
// hard-stops and releases its predecessor, and Stop ends the active
// session immediately for barge-in.
package playback

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/lumenvoice/voxloop/pkg/errorsx"
	"github.com/lumenvoice/voxloop/pkg/wav"
)

// Sink is the slice of the output device a controller needs. Write
// queues PCM, Mark schedules a callback for when everything queued so
// far has played, Clear drops queued audio immediately.
type Sink interface {
	Write(pcm []byte) error
	Mark(callback func())
	Clear()
}

// SinkProvider lazily resolves the shared output, creating it on first
// use. Resolution failure means the host has no audio capability.
type SinkProvider func() (Sink, error)

// ErrNoAudio is returned when the output device cannot be resolved; the
// caller finishes the turn without audio.
var ErrNoAudio = errors.New("playback: output unavailable")

type session struct {
	id   uint64
	done chan struct{}
	once sync.Once
}

func (s *session) finish() {
	s.once.Do(func() { close(s.done) })
}

// Controller owns the active session.
type Controller struct {
	provider SinkProvider
	log      *slog.Logger

	mu     sync.Mutex
	sink   Sink
	active *session
	nextID uint64
}

func NewController(provider SinkProvider, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{provider: provider, log: log}
}

// Play decodes payload and plays it, superseding any active session.
// The returned channel closes when playback finishes, naturally or by
// Stop. A payload that fails WAV decoding falls back to being treated
// as opaque raw PCM; the decode failure is reported, not retried.
func (c *Controller) Play(payload []byte) (<-chan struct{}, error) {
	if len(payload) == 0 {
		return nil, errorsx.Wrap(errors.New("empty payload"), errorsx.ReasonPlaybackDecode)
	}

	pcm, err := wav.PCM(payload)
	if err != nil {
		c.log.Warn("response audio is not a readable wav container, playing as raw pcm",
			"error", err.Error(), "bytes", len(payload))
		pcm = payload
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sink == nil {
		sink, err := c.provider()
		if err != nil {
			return nil, errorsx.Wrap(ErrNoAudio, errorsx.ReasonAudioUnavailable)
		}
		c.sink = sink
	}

	// The prior session is stopped and resolved before the new source
	// produces a single sample.
	if c.active != nil {
		c.sink.Clear()
		c.active.finish()
		c.active = nil
	}

	c.nextID++
	sess := &session{id: c.nextID, done: make(chan struct{})}

	if err := c.sink.Write(pcm); err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonPlaybackDevice)
	}
	c.active = sess
	c.sink.Mark(func() {
		c.mu.Lock()
		if c.active != nil && c.active.id == sess.id {
			c.active = nil
		}
		c.mu.Unlock()
		sess.finish()
	})

	return sess.done, nil
}

// Stop force-ends the active session. No-op when none is active.
func (c *Controller) Stop() {
	c.mu.Lock()
	sess := c.active
	c.active = nil
	sink := c.sink
	c.mu.Unlock()

	if sess == nil {
		return
	}
	if sink != nil {
		sink.Clear()
	}
	sess.finish()
}

// Playing reports whether a session is active.
func (c *Controller) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}
