package inference

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreachable means no connection to the classifier could be
	// established. Callers surface actionable guidance for this case.
	ErrUnreachable = errors.New("inference service unreachable")

	// ErrMalformedResponse means the classifier reported success but the
	// payload did not match the expected shape.
	ErrMalformedResponse = errors.New("malformed inference response")
)

// ServerError is a non-success response from the classifier, carrying the
// server-supplied detail when one was present.
type ServerError struct {
	Status int
	Detail string
}

func (e *ServerError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("server error %d", e.Status)
}
