package analyses

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrAnalysisInFlight = errors.New("analysis already in flight")
	ErrNotFinalized     = errors.New("record is not finalized")
)
