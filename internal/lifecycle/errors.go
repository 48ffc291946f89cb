package lifecycle

import "errors"

// Sentinel errors answered on the controls and organizer commands.
// Invalid clicks are part of normal operation and never crash a unit
// of work.
var (
	ErrUnauthorized    = errors.New("you are not the designated runner for this attempt")
	ErrAlreadyReady    = errors.New("this attempt is already marked ready")
	ErrAlreadyStarted  = errors.New("the countdown has already run for this attempt")
	ErrAlreadyFinished = errors.New("this attempt already has a recorded result")
	ErrNotStarted      = errors.New("this attempt has not been started")
	ErrNotFound        = errors.New("no async attempt matches this context")
	ErrMalformedInput  = errors.New("malformed input")
)
