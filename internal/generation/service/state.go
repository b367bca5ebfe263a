package service

import (
	"context"
	"errors"
)

// State of a generation request.
type State string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StateRetrying   State = "retrying"
	StateSucceeded  State = "succeeded"
	StateCancelled  State = "cancelled"
	StateFailed     State = "failed"
)

var (
	ErrRequireLogin         = errors.New("login required")
	ErrEmptyPrompt          = errors.New("prompt is empty")
	ErrNoCredits            = errors.New("no credits left")
	ErrGenerationInProgress = errors.New("a generation is already running")
	ErrNoModelAvailable     = errors.New("no model could be reached")
)

// Messages appended on non-success outcomes.
const (
	StoppedMessage = "Generation stopped."
	failureFormat  = "Sorry, the request failed after %d attempt(s). Please try again."
)

// flight is the in-flight generation of one user. Once done is set a
// cancel can no longer change the outcome.
type flight struct {
	id        string
	cancel    context.CancelFunc
	state     State
	model     string
	cancelled bool
	done      bool
}
