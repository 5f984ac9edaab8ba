package services

import "time"

// ScheduledTask is a callback due after a delay that can be pre-empted.
// Cancel only stops the timer; callers that race with a firing task must
// also check identity under their own lock.
type ScheduledTask struct {
	timer *time.Timer
	due   time.Time
}

func Schedule(delay time.Duration, fn func()) *ScheduledTask {
	return &ScheduledTask{
		timer: time.AfterFunc(delay, fn),
		due:   time.Now().Add(delay),
	}
}

// Cancel reports whether the task was stopped before it fired.
func (t *ScheduledTask) Cancel() bool {
	if t == nil {
		return false
	}
	return t.timer.Stop()
}

func (t *ScheduledTask) Due() time.Time { return t.due }
