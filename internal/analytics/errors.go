package analytics

import "errors"

var (
	ErrSprintCompleted         = errors.New("sprint already completed")
	ErrNegativePlannedVelocity = errors.New("planned velocity cannot be negative")
	ErrInvalidDateRange        = errors.New("end date must be after start date")
)
