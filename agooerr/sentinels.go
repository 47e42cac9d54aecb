package agooerr

import "errors"

// Sentinel errors for the small set of infrastructure conditions that never
// carry a per-call message, mirroring the concurrency package's use of plain
// errors.New values for closed/invalid states.
var (
	ErrQueueClosed    = errors.New("agoo: queue is closed")
	ErrExecutorClosed = errors.New("agoo: executor is closed")
	ErrReactorClosed  = errors.New("agoo: reactor is closed")
	ErrConnHijacked   = errors.New("agoo: connection already hijacked")
	ErrConnClosed     = errors.New("agoo: connection is closed")
)
