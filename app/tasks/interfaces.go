package tasks

import (
	"time"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Example usage:
//
//	scheduler := NewScheduler(sessions, workerCount, interval)
//	scheduler.Start()
//	defer scheduler.Stop()
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

// SessionSweeper closes sessions left idle since before the given time and
// reports how many it closed.
type SessionSweeper interface {
	Sweep(now time.Time) int
	Count() int
}
