package client

import "errors"

// connectFailedMsg is the generic message surfaced for transport-level
// failures, where "try again" is better advice than "check your password".
const connectFailedMsg = "failed to connect to server"

// ErrLoginInFlight is returned when Login is called while another login on
// the same Gateway has not completed.
var ErrLoginInFlight = errors.New("a login attempt is already in progress")

// ValidationError is a client-side input error detected before any network
// call is made.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// AuthError carries a server-supplied rejection message, surfaced verbatim.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string { return e.Message }

// TransportError indicates the backend could not be reached or returned an
// unintelligible response. The underlying cause is preserved for logging but
// the user-facing message is always generic.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return connectFailedMsg }

func (e *TransportError) Unwrap() error { return e.Err }
