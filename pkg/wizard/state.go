package wizard

import "errors"

// State is the navigation state of a Session.
type State int

const (
	StateEditing State = iota
	StateReviewing
	StateSubmitting
	StateSucceeded
	StateFailed
	StateAwaitingAuth
)

func (s State) String() string {
	switch s {
	case StateEditing:
		return "editing"
	case StateReviewing:
		return "reviewing"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateAwaitingAuth:
		return "awaiting_auth"
	}
	return "unknown"
}

var (
	// ErrClosed is returned once the session has been closed.
	ErrClosed = errors.New("wizard: session closed")
	// ErrBusy is returned for mutations attempted while a submission is pending.
	ErrBusy = errors.New("wizard: submission in progress")
	// ErrFinished is returned after a successful submission until Reset.
	ErrFinished = errors.New("wizard: already submitted")
	// ErrFirstStep is returned by Back on the first step.
	ErrFirstStep = errors.New("wizard: already on the first step")
	// ErrStepRange is returned by GoTo for an index outside the wizard.
	ErrStepRange = errors.New("wizard: step out of range")
	// ErrNotAwaitingAuth is returned by Resume outside StateAwaitingAuth.
	ErrNotAwaitingAuth = errors.New("wizard: not waiting for authentication")
	// ErrAwaitingAuth is returned by Submit until Resume is called.
	ErrAwaitingAuth = errors.New("wizard: waiting for authentication")
	// ErrNotReviewing is returned by Submit before the review step is reached.
	ErrNotReviewing = errors.New("wizard: submit is only available from review")
)
