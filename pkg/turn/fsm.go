package turn

import (
	"sync"
	"time"
)

// StateChange represents a state transition event.
type StateChange struct {
	FromState State
	ToState   State
	TurnID    string
	Timestamp time.Time
	Reason    string
}

// StatusSink observes phase changes. Sinks are passive: they are owned
// by the surrounding UI, never touch engine internals, and must return
// promptly.
type StatusSink interface {
	OnStateChange(event StateChange)
}

// stateMachine validates and publishes turn state transitions.
type stateMachine struct {
	mu           sync.RWMutex
	currentState State
	sinks        []StatusSink
}

func newStateMachine() *stateMachine {
	return &stateMachine{currentState: StateIdle}
}

// State returns the current state.
func (sm *stateMachine) State() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.currentState
}

// validTransitions captures the full turn cycle: arm, capture, encode,
// dispatch, speak, re-arm, plus disarm into Paused from every
// interruptible phase and barge-in from Speaking back into Arming.
var validTransitions = map[State][]State{
	StateIdle:             {StateArming},
	StateArming:           {StateListening, StateError},
	StateListening:        {StateCapturingSpeech, StatePaused},
	StateCapturingSpeech:  {StateEncoding, StateListening, StatePaused},
	StateEncoding:         {StateDispatching, StatePaused},
	StateDispatching:      {StateAwaitingResponse, StatePaused},
	StateAwaitingResponse: {StateSpeaking, StateListening, StateIdle, StatePaused},
	StateSpeaking:         {StateListening, StateArming, StatePaused},
	StatePaused:           {StateArming},
	StateError:            {StateArming},
}

func transitionValid(from, to State) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition moves to a new state with validation and notifies sinks.
func (sm *stateMachine) Transition(state State, turnID, reason string) error {
	sm.mu.Lock()

	if !transitionValid(sm.currentState, state) {
		err := &InvalidTransitionError{From: sm.currentState, To: state}
		sm.mu.Unlock()
		return err
	}

	event := StateChange{
		FromState: sm.currentState,
		ToState:   state,
		TurnID:    turnID,
		Timestamp: time.Now(),
		Reason:    reason,
	}
	sm.currentState = state

	// Notify outside the lock so a slow sink cannot wedge the machine.
	sinks := make([]StatusSink, len(sm.sinks))
	copy(sinks, sm.sinks)
	sm.mu.Unlock()

	for _, sink := range sinks {
		sink.OnStateChange(event)
	}
	return nil
}

// AddSink registers a sink for state change events.
func (sm *stateMachine) AddSink(sink StatusSink) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.sinks = append(sm.sinks, sink)
}

// InvalidTransitionError represents an invalid state transition attempt.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return "invalid state transition from " + e.From.String() + " to " + e.To.String()
}
