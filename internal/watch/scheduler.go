package watch

import (
	"log/slog"
	"sync"
)

// RunFunc is one complete re-run cycle. It is never invoked concurrently
// with itself.
type RunFunc func()

// Scheduler enforces the re-entrancy guard: no two runs overlap, and a
// trigger arriving mid-run queues exactly one follow-up run instead of
// starting a new one. Triggers while a follow-up is already queued are
// coalesced and dropped.
type Scheduler struct {
	mu     sync.Mutex
	state  State
	run    RunFunc
	logger *slog.Logger
	wg     sync.WaitGroup

	// OnTransition, when set before the first Trigger, observes every
	// state change.
	OnTransition func(old, new State)
}

// NewScheduler creates a scheduler around the given run function.
func NewScheduler(run RunFunc, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		state:  StateIdle,
		run:    run,
		logger: logger,
	}
}

// State returns the current scheduler state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Trigger requests a run. Idle starts one immediately; mid-run it queues
// a single pending follow-up; already-pending triggers are coalesced.
func (s *Scheduler) Trigger() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateIdle:
		s.setState(StateRunning)
		s.wg.Add(1)
		go s.loop()
	case StateRunning:
		s.setState(StateRunningPending)
	case StateRunningPending:
		// coalesced
	}
}

// loop executes runs until no follow-up is pending. Pending is cleared
// before the queued run starts so a trigger during that run queues again
// rather than re-entering.
func (s *Scheduler) loop() {
	defer s.wg.Done()

	for {
		s.run()

		s.mu.Lock()
		if s.state == StateRunningPending {
			s.setState(StateRunning)
			s.mu.Unlock()
			continue
		}
		s.setState(StateIdle)
		s.mu.Unlock()
		return
	}
}

// Wait blocks until the scheduler has drained back to idle.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// setState updates the state and notifies. Caller holds mu.
func (s *Scheduler) setState(newState State) {
	oldState := s.state
	s.state = newState
	s.logger.Debug("scheduler_transition", "from", oldState.String(), "to", newState.String())
	if s.OnTransition != nil && oldState != newState {
		s.OnTransition(oldState, newState)
	}
}
