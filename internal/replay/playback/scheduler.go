package playback

import "time"

// CancelFunc stops a scheduled callback. Safe to call more than once.
type CancelFunc func()

// Scheduler runs a callback once after a delay. Injected so the
// cancel-and-reschedule discipline is testable without wall-clock waits.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) CancelFunc
}

// TimerScheduler schedules on real timers.
type TimerScheduler struct{}

// Schedule runs fn once after delay.
func (TimerScheduler) Schedule(delay time.Duration, fn func()) CancelFunc {
	timer := time.AfterFunc(delay, fn)
	return func() { timer.Stop() }
}
