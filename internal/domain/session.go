package domain

import "fmt"

// Stage is a step of an interactive session.
type Stage string

const (
	StageNotStarted    Stage = "not_started"
	StageLoggingIn     Stage = "logging_in"
	StageAuthenticated Stage = "authenticated"
	StageExtracting    Stage = "extracting"
	StageDone          Stage = "done"
	StageFailed        Stage = "failed"
)

// transitions lists the allowed next stages. failed is reachable from any
// non-terminal stage and is handled separately.
var transitions = map[Stage][]Stage{
	StageNotStarted:    {StageLoggingIn, StageExtracting},
	StageLoggingIn:     {StageAuthenticated},
	StageAuthenticated: {StageExtracting},
	StageExtracting:    {StageDone},
}

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// SessionState is the transient state of one interactive collection call.
type SessionState struct {
	Stage          Stage  `json:"stage"`
	Reason         string `json:"reason,omitempty"`
	ItemsExtracted int    `json:"items_extracted"`
	ScrollCount    int    `json:"scroll_count"`
}

// NewSessionState returns a state in not_started.
func NewSessionState() *SessionState {
	return &SessionState{Stage: StageNotStarted}
}

// Advance moves to next, rejecting transitions outside the table.
func (s *SessionState) Advance(next Stage) error {
	if next == StageFailed {
		return fmt.Errorf("use Fail to enter %s", StageFailed)
	}
	for _, allowed := range transitions[s.Stage] {
		if allowed == next {
			s.Stage = next
			return nil
		}
	}
	return fmt.Errorf("invalid session transition %s -> %s", s.Stage, next)
}

// Fail moves to failed with a reason. A terminal state is left untouched.
func (s *SessionState) Fail(reason string) {
	if s.Stage.Terminal() {
		return
	}
	s.Stage = StageFailed
	s.Reason = reason
}
