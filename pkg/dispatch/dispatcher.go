// Package dispatch ships a finished utterance to the backend responder
// and returns its reply. The backend performs transcription, response
// generation, and synthesis behind one opaque call; this package only
// moves bytes. One attempt per turn, no retry or backoff.
package dispatch

import (
	"context"
	"sync"

	"github.com/lumenvoice/voxloop/pkg/wav"
)

// Status is the backend's verdict on a turn.
type Status string

const (
	// StatusSuccess carries a transcription, response text, and
	// usually response audio.
	StatusSuccess Status = "success"
	// StatusExit means the responder ended the conversation.
	StatusExit Status = "exit"
	// StatusError carries a human-readable message.
	StatusError Status = "error"
)

// Request is one utterance bound for the backend.
type Request struct {
	Audio   wav.Payload
	VoiceID string
}

// Result is the backend's reply, consumed once by the coordinator.
// ResponseAudio is already base64-decoded; empty means no audio.
type Result struct {
	Status        Status
	Message       string
	Transcription string
	ResponseText  string
	ResponseAudio []byte
}

// Dispatcher performs the network round trip.
type Dispatcher interface {
	Name() string
	Dispatch(ctx context.Context, req Request) (Result, error)
}

// Mock returns scripted results and records requests; it serves tests
// and the offline example binary.
type Mock struct {
	mu       sync.Mutex
	results  []Result
	err      error
	requests []Request
}

func NewMock(results ...Result) *Mock {
	return &Mock{results: results}
}

func (m *Mock) Name() string { return "mock" }

// Fail makes every subsequent Dispatch return err.
func (m *Mock) Fail(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *Mock) Dispatch(_ context.Context, req Request) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if m.err != nil {
		return Result{}, m.err
	}
	if len(m.results) == 0 {
		return Result{Status: StatusSuccess}, nil
	}
	res := m.results[0]
	if len(m.results) > 1 {
		m.results = m.results[1:]
	}
	return res, nil
}

// Requests returns a copy of everything dispatched so far.
func (m *Mock) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}
