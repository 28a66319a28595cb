package scheduler

import "errors"

var (
	ErrInvalidSchedule = errors.New("invalid cron schedule")
	ErrDuplicateJob    = errors.New("job already registered")
	ErrUnknownJob      = errors.New("unknown job")
	ErrAlreadyStarted  = errors.New("scheduler already started")
)
