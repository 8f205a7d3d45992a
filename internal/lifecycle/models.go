// Package lifecycle tracks each upload session from probe to confirmed
// download: its state machine, the files it owns, and their cleanup.
//
// Every file the pipeline creates is recorded in the sqlite artifact index
// under the session that owns it, so cleanup never has to guess by globbing
// directory contents. Cleanup never fails a request; it reports what it did.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type State string

const (
	StateUploaded   State = "uploaded"
	StateProbed     State = "probed"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateCleaned    State = "cleaned"
)

// transitions lists, for each state, the states it may move to.
var transitions = map[State][]State{
	StateUploaded:   {StateProbed, StateCleaned},
	StateProbed:     {StateProcessing, StateCleaned},
	StateProcessing: {StateCompleted, StateFailed},
	StateCompleted:  {StateCleaned},
	StateFailed:     {StateCleaned},
}

// ErrInvalidTransition is returned for a state change the machine forbids.
var ErrInvalidTransition = errors.New("invalid state transition")

// CanTransition reports whether from may move to to.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to State) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Terminal reports whether a session in s no longer has work in flight.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCleaned
}

type Role string

const (
	RoleSource     Role = "source"
	RoleOutput     Role = "output"
	RoleSubtitle   Role = "subtitle"
	RoleOverlay    Role = "overlay"
	RoleTranscript Role = "transcript"
)

// Session is one uploaded video and everything derived from it.
type Session struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"original_name"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	State        State     `json:"state"`
	LastError    string    `json:"last_error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Artifact is a file owned by a session.
type Artifact struct {
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

func NewID() string {
	return uuid.NewString()
}

// Outcome summarizes a cleanup attempt.
type Outcome string

const (
	OutcomeNothing   Outcome = "nothing"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomePartial   Outcome = "partial"
	OutcomeFailed    Outcome = "failed"
)

// CleanupFailure is one artifact that could not be removed.
type CleanupFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// CleanupReport lists what a cleanup removed and what it could not.
type CleanupReport struct {
	Removed []string         `json:"removed,omitempty"`
	Failed  []CleanupFailure `json:"failed,omitempty"`
}

func (r CleanupReport) Outcome() Outcome {
	switch {
	case len(r.Removed) == 0 && len(r.Failed) == 0:
		return OutcomeNothing
	case len(r.Failed) == 0:
		return OutcomeSucceeded
	case len(r.Removed) == 0:
		return OutcomeFailed
	default:
		return OutcomePartial
	}
}

// Merge appends other's entries to r.
func (r *CleanupReport) Merge(other CleanupReport) {
	r.Removed = append(r.Removed, other.Removed...)
	r.Failed = append(r.Failed, other.Failed...)
}
