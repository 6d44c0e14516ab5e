package privacy

// ScrubbedError reports a scrubbed message while keeping the wrapped
// error reachable for errors.Is and errors.As.
type ScrubbedError struct {
	err error
	msg string
}

func (e *ScrubbedError) Error() string { return e.msg }

func (e *ScrubbedError) Unwrap() error { return e.err }

// WrapError returns err with its message passed through ScrubMessage.
// Notification URLs carry tokens in their path and query, so sender
// errors are wrapped before they reach logs or telemetry.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &ScrubbedError{err: err, msg: ScrubMessage(err.Error())}
}
