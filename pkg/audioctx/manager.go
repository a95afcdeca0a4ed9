// Package audioctx owns the single shared miniaudio context. Every other
// component that touches the audio device goes through a Manager; nothing
// else in the engine may create or free the underlying context.
package audioctx

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"
)

var (
	// ErrUnavailable is returned when the host offers no audio backend.
	// Callers are expected to degrade rather than fail the engine.
	ErrUnavailable = errors.New("audioctx: audio backend unavailable")

	// ErrClosed is returned after Close; the context is never re-created.
	ErrClosed = errors.New("audioctx: manager closed")
)

// Manager lazily creates the shared malgo context plus the playback
// device on first use and hands out capture devices bound to the same
// context. The context is created at most once per process and torn down
// only by Close.
type Manager struct {
	mu         sync.Mutex
	sampleRate int

	audioContext *malgo.AllocatedContext
	output       *Output
	closed       bool

	log *slog.Logger
}

func NewManager(sampleRate int, log *slog.Logger) *Manager {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{sampleRate: sampleRate, log: log}
}

// Ensure returns the shared playback output, creating the context and
// device on first call and restarting the device if it was stopped.
// Idempotent on repeated calls; no side effects beyond create/resume.
func (m *Manager) Ensure() (*Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	if err := m.initContextLocked(); err != nil {
		return nil, err
	}

	if m.output == nil {
		out := newOutput(m.sampleRate)
		if err := out.init(m.audioContext); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		m.output = out
	}

	if err := m.output.resume(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return m.output, nil
}

// OpenInput creates a capture device on the shared context delivering
// float32 frames of frameSamples each. The caller owns the returned
// Input's start/stop lifecycle; Uninit releases the device.
func (m *Manager) OpenInput(frameSamples int) (*Input, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if err := m.initContextLocked(); err != nil {
		return nil, err
	}

	in := newInput(m.sampleRate, frameSamples)
	if err := in.init(m.audioContext); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return in, nil
}

func (m *Manager) SampleRate() int { return m.sampleRate }

// Close tears the context down. Only the engine's shutdown path (the
// navigation equivalent) calls this.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	if m.output != nil {
		_ = m.output.uninit()
		m.output = nil
	}
	if m.audioContext != nil {
		if err := m.audioContext.Uninit(); err != nil {
			m.log.Warn("audio context uninit failed", "error", err.Error())
		}
		m.audioContext.Free()
		m.audioContext = nil
	}
	return nil
}

func (m *Manager) initContextLocked() error {
	if m.audioContext != nil {
		return nil
	}

	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	m.audioContext = audioCtx
	m.log.Debug("audio context created", "sample_rate", m.sampleRate)
	return nil
}
