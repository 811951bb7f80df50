package tasks

import (
	"context"
	"log/slog"
	"time"
)

type SweepSessionsTask struct {
	Task
	sessions SessionSweeper
	now      func() time.Time
}

func NewSweepSessionsTask(sessions SessionSweeper) *SweepSessionsTask {
	return &SweepSessionsTask{
		Task:     NewTask(TaskTypeSweepSessions),
		sessions: sessions,
		now:      time.Now,
	}
}

func (t *SweepSessionsTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	swept := t.sessions.Sweep(t.now())
	if swept == 0 {
		slog.Debug("No idle sessions to sweep", "active", t.sessions.Count())
		return nil
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"duration", t.GetDuration(),
		"swept", swept,
		"active", t.sessions.Count())

	return nil
}
