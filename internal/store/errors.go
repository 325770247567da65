package store

import "errors"

var (
	ErrNotFound        = errors.New("record not found")
	ErrSprintCompleted = errors.New("sprint already completed")
	ErrSprintHasTasks  = errors.New("sprint has assigned tasks")
	ErrTaskNotInSprint = errors.New("task does not belong to sprint")
)
