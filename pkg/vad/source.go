package vad

import (
	"context"
	"sync"

	"github.com/lumenvoice/voxloop/pkg/audioctx"
)

// Source produces analysis frames for a detector. The microphone is the
// production source; tests script their own.
type Source interface {
	// Start begins frame delivery. Acquiring the underlying capture
	// stream may fail (device permission, missing hardware); the error
	// is returned rather than surfaced asynchronously.
	Start(ctx context.Context, onFrame func([]float32)) error
	// Stop halts delivery and releases the capture stream. Idempotent.
	Stop() error
}

// MicSource captures from the shared audio context. The capture device is
// acquired once on first Start and cached for subsequent cycles; a failed
// acquisition is retried on the next Start.
type MicSource struct {
	manager      *audioctx.Manager
	frameSamples int

	mu    sync.Mutex
	input *audioctx.Input
}

func NewMicSource(manager *audioctx.Manager, frameSamples int) *MicSource {
	return &MicSource{manager: manager, frameSamples: frameSamples}
}

func (s *MicSource) Start(ctx context.Context, onFrame func([]float32)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.input == nil {
		input, err := s.manager.OpenInput(s.frameSamples)
		if err != nil {
			return err
		}
		s.input = input
	}
	return s.input.Start(onFrame)
}

func (s *MicSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.input == nil {
		return nil
	}
	return s.input.Stop()
}

// Close releases the cached capture device.
func (s *MicSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.input == nil {
		return nil
	}
	err := s.input.Uninit()
	s.input = nil
	return err
}
