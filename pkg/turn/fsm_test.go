package turn

import (
	"errors"
	"sync"
	"testing"
)

type recordingSink struct {
	mu     sync.Mutex
	events []StateChange
}

func (s *recordingSink) OnStateChange(ev StateChange) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *recordingSink) snapshot() []StateChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StateChange(nil), s.events...)
}

func TestFullCycleTransitions(t *testing.T) {
	sm := newStateMachine()
	path := []State{
		StateArming, StateListening, StateCapturingSpeech, StateEncoding,
		StateDispatching, StateAwaitingResponse, StateSpeaking, StateListening,
	}
	for _, next := range path {
		if err := sm.Transition(next, "t1", "test"); err != nil {
			t.Fatalf("transition to %v: %v", next, err)
		}
	}
	if sm.State() != StateListening {
		t.Fatalf("final state = %v", sm.State())
	}
}

func TestCaptureNeverJumpsToSpeaking(t *testing.T) {
	sm := newStateMachine()
	for _, next := range []State{StateArming, StateListening, StateCapturingSpeech} {
		if err := sm.Transition(next, "t1", "test"); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}
	for _, bad := range []State{StateSpeaking, StateDispatching, StateAwaitingResponse, StateIdle} {
		err := sm.Transition(bad, "t1", "test")
		if err == nil {
			t.Fatalf("CapturingSpeech -> %v was allowed", bad)
		}
		var ite *InvalidTransitionError
		if !errors.As(err, &ite) {
			t.Fatalf("error type = %T", err)
		}
		if sm.State() != StateCapturingSpeech {
			t.Fatalf("rejected transition moved state to %v", sm.State())
		}
	}
}

func TestPausedReachableFromInterruptiblePhases(t *testing.T) {
	interruptible := [][]State{
		{StateArming, StateListening},
		{StateArming, StateListening, StateCapturingSpeech},
		{StateArming, StateListening, StateCapturingSpeech, StateEncoding},
		{StateArming, StateListening, StateCapturingSpeech, StateEncoding, StateDispatching},
		{StateArming, StateListening, StateCapturingSpeech, StateEncoding, StateDispatching, StateAwaitingResponse},
		{StateArming, StateListening, StateCapturingSpeech, StateEncoding, StateDispatching, StateAwaitingResponse, StateSpeaking},
	}
	for _, path := range interruptible {
		sm := newStateMachine()
		for _, next := range path {
			if err := sm.Transition(next, "t1", "test"); err != nil {
				t.Fatalf("setup %v: %v", path, err)
			}
		}
		if err := sm.Transition(StatePaused, "t1", "disarm"); err != nil {
			t.Fatalf("%v -> Paused: %v", path[len(path)-1], err)
		}
		// Paused is armable again.
		if err := sm.Transition(StateArming, "t2", "arm"); err != nil {
			t.Fatalf("Paused -> Arming: %v", err)
		}
	}
}

func TestBargeInPathFromSpeaking(t *testing.T) {
	sm := newStateMachine()
	path := []State{
		StateArming, StateListening, StateCapturingSpeech, StateEncoding,
		StateDispatching, StateAwaitingResponse, StateSpeaking,
	}
	for _, next := range path {
		if err := sm.Transition(next, "t1", "test"); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}
	if err := sm.Transition(StateArming, "t2", "barge-in"); err != nil {
		t.Fatalf("Speaking -> Arming: %v", err)
	}
}

func TestIdleOnlyArms(t *testing.T) {
	sm := newStateMachine()
	for _, bad := range []State{StateListening, StateSpeaking, StatePaused, StateDispatching} {
		if err := sm.Transition(bad, "t1", "test"); err == nil {
			t.Fatalf("Idle -> %v was allowed", bad)
		}
	}
}

func TestSinkReceivesOrderedEvents(t *testing.T) {
	sm := newStateMachine()
	sink := &recordingSink{}
	sm.AddSink(sink)

	if err := sm.Transition(StateArming, "t1", "user arm"); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := sm.Transition(StateListening, "t1", "detector armed"); err != nil {
		t.Fatalf("transition: %v", err)
	}

	events := sink.snapshot()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].FromState != StateIdle || events[0].ToState != StateArming {
		t.Fatalf("first event = %+v", events[0])
	}
	if events[1].Reason != "detector armed" || events[1].TurnID != "t1" {
		t.Fatalf("second event = %+v", events[1])
	}
	if events[1].Timestamp.Before(events[0].Timestamp) {
		t.Fatal("events out of order")
	}
}
