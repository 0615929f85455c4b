package queue

import "errors"

// permanentError marks a task failure that must not be retried, such as a
// missing account or an undecodable payload.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the pool fails the job instead of requeueing it
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err carries the permanent-failure marker
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
