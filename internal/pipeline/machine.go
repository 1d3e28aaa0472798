// Package pipeline holds the client-resident controller that sequences
// transcode, upload and transcription for one video submission.
package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"uploadai/internal/models"
)

// Event advances the pipeline state machine.
type Event string

const (
	EventSubmit      Event = "submit"
	EventTranscoded  Event = "transcoded"
	EventUploaded    Event = "uploaded"
	EventTranscribed Event = "transcribed"
	EventFailed      Event = "failed"
)

// ErrInvalidTransition reports an event not accepted in the current state,
// including a submit while a run is already in flight.
var ErrInvalidTransition = errors.New("invalid pipeline transition")

// Next is the pure transition function. Submit is accepted only from Idle;
// a failure from any non-terminal state lands in Failed; Ready and Failed
// accept no events.
func Next(state models.PipelineState, event Event) (models.PipelineState, error) {
	switch state {
	case models.StateIdle, models.StateConverting, models.StateUploading, models.StateTranscribing:
		if event == EventFailed {
			return models.StateFailed, nil
		}
	}

	switch {
	case state == models.StateIdle && event == EventSubmit:
		return models.StateConverting, nil
	case state == models.StateConverting && event == EventTranscoded:
		return models.StateUploading, nil
	case state == models.StateUploading && event == EventUploaded:
		return models.StateTranscribing, nil
	case state == models.StateTranscribing && event == EventTranscribed:
		return models.StateReady, nil
	}
	return state, fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, event, state)
}

// Observer is notified after every committed transition.
type Observer func(from, to models.PipelineState)

// Machine owns the current state cell. Transitions go through the pure Next
// function; the observer runs under the lock so notifications arrive in
// transition order.
type Machine struct {
	mu       sync.Mutex
	state    models.PipelineState
	failedAt models.PipelineState
	failure  error
	observer Observer
}

func NewMachine(observer Observer) *Machine {
	return &Machine{state: models.StateIdle, observer: observer}
}

func (m *Machine) State() models.PipelineState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Apply advances the machine by one event.
func (m *Machine) Apply(event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := Next(m.state, event)
	if err != nil {
		return err
	}
	m.transition(next)
	return nil
}

// Fail moves the machine to Failed, recording which stage broke and why.
func (m *Machine) Fail(stage models.PipelineState, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := Next(m.state, EventFailed)
	if err != nil {
		return
	}
	m.failedAt = stage
	m.failure = cause
	m.transition(next)
}

// Failure reports the stage and cause of the last failed run.
func (m *Machine) Failure() (models.PipelineState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failedAt, m.failure
}

// Reset returns a finished machine to Idle so a new submission can start.
// Resetting mid-run is rejected.
func (m *Machine) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != models.StateReady && m.state != models.StateFailed {
		return fmt.Errorf("%w: reset in state %s", ErrInvalidTransition, m.state)
	}
	m.failedAt = ""
	m.failure = nil
	m.transition(models.StateIdle)
	return nil
}

func (m *Machine) transition(next models.PipelineState) {
	from := m.state
	m.state = next
	if m.observer != nil {
		m.observer(from, next)
	}
}
