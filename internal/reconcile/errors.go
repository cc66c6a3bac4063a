package reconcile

import "errors"

var (
	// ErrInvalidPayload is returned when an AI payload is empty or not valid JSON.
	ErrInvalidPayload = errors.New("invalid analysis payload")

	// ErrResultNotFound is returned when a video has no analysis result yet.
	ErrResultNotFound = errors.New("analysis result not found")

	// ErrSentinelMissing is returned when the fallback technique for unlinked
	// drills does not exist.
	ErrSentinelMissing = errors.New("sentinel technique missing")
)
