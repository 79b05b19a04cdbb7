package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// State is the position of an import run in its lifecycle:
//
//	idle -> parsed -> validated -> committing -> done
//	idle -> failed                        (parse error)
//	committing -> cancelled               (context cancelled between batches)
type State string

const (
	StateIdle       State = "idle"
	StateParsed     State = "parsed"
	StateValidated  State = "validated"
	StateCommitting State = "committing"
	StateDone       State = "done"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateCancelled
}

var transitions = map[State][]State{
	StateIdle:       {StateParsed, StateFailed},
	StateParsed:     {StateValidated, StateFailed},
	StateValidated:  {StateCommitting, StateFailed},
	StateCommitting: {StateDone, StateCancelled, StateFailed},
}

// Run drives one import through parse, validate and commit. Each step may
// only be called from the state before it.
type Run struct {
	mu      sync.Mutex
	state   State
	parsed  *Parsed
	outcome *Outcome
	result  *CommitResult
	err     error
}

// NewRun returns a run in StateIdle.
func NewRun() *Run {
	return &Run{state: StateIdle}
}

// State returns the current state.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the error that moved the run to failed, if any.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Parsed returns the parsed rows once the run has passed StateParsed.
func (r *Run) Parsed() *Parsed {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.parsed
}

// Outcome returns the validation outcome once available.
func (r *Run) Outcome() *Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcome
}

// Result returns the commit result once available.
func (r *Run) Result() *CommitResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// transition moves to next. Caller must hold r.mu.
func (r *Run) transition(next State) error {
	for _, allowed := range transitions[r.state] {
		if allowed == next {
			r.state = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.state, next)
}

// Parse reads src. On a parse error the run ends in StateFailed.
func (r *Run) Parse(src io.Reader) (*Parsed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateIdle {
		return nil, fmt.Errorf("%w: parse from %s", ErrInvalidTransition, r.state)
	}

	parsed, err := Parse(src)
	if err != nil {
		r.err = err
		_ = r.transition(StateFailed)
		return nil, err
	}
	r.parsed = parsed
	return parsed, r.transition(StateParsed)
}

// Validate classifies the parsed rows.
func (r *Run) Validate() (*Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateParsed {
		return nil, fmt.Errorf("%w: validate from %s", ErrInvalidTransition, r.state)
	}
	r.outcome = Validate(r.parsed.Rows)
	return r.outcome, r.transition(StateValidated)
}

// Commit submits the valid rows through c. The run ends in StateDone even
// when batches failed; it ends in StateCancelled when ctx is cancelled.
func (r *Run) Commit(ctx context.Context, c *Committer, onProgress func(BatchProgress)) (*CommitResult, error) {
	r.mu.Lock()
	if r.state != StateValidated {
		defer r.mu.Unlock()
		return nil, fmt.Errorf("%w: commit from %s", ErrInvalidTransition, r.state)
	}
	if err := r.transition(StateCommitting); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	records := r.outcome.Valid()
	r.mu.Unlock()

	res, err := c.Commit(ctx, records, onProgress)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.result = res
	switch {
	case err == nil:
		return res, r.transition(StateDone)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		r.err = err
		_ = r.transition(StateCancelled)
		return res, err
	default:
		r.err = err
		_ = r.transition(StateFailed)
		return res, err
	}
}
