package harvest

import "errors"

// ErrAuthFailed is returned when credential submission does not produce a
// logged-in session. Fatal for the run; never retried automatically.
var ErrAuthFailed = errors.New("harvest: authentication failed")

// ErrNotStarted is returned when a session method is called before Start.
var ErrNotStarted = errors.New("harvest: session not started")
