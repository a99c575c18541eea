package playback

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeScheduler captures scheduled callbacks so ticks fire only when the
// test says so.
type fakeScheduler struct {
	mu        sync.Mutex
	delays    []time.Duration
	pending   func()
	cancelled int
}

func (f *fakeScheduler) Schedule(delay time.Duration, fn func()) CancelFunc {
	f.mu.Lock()
	f.delays = append(f.delays, delay)
	f.pending = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.cancelled++
		f.mu.Unlock()
	}
}

// fire runs the most recently scheduled callback, keeping it around the way
// a real timer that already popped would not.
func (f *fakeScheduler) fire(t *testing.T) {
	t.Helper()
	f.mu.Lock()
	fn := f.pending
	f.mu.Unlock()
	if fn == nil {
		t.Fatalf("expected a scheduled tick")
	}
	fn()
}

func (f *fakeScheduler) lastDelay(t *testing.T) time.Duration {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.delays) == 0 {
		t.Fatalf("expected at least one schedule call")
	}
	return f.delays[len(f.delays)-1]
}

func testSpeeds() []Speed {
	return []Speed{
		{Label: "0.5x", Duration: 2000 * time.Millisecond},
		{Label: "1x", Duration: 1000 * time.Millisecond},
		{Label: "2x", Duration: 500 * time.Millisecond},
	}
}

func newTestController(t *testing.T, length int) (*Controller, *fakeScheduler) {
	t.Helper()
	scheduler := &fakeScheduler{}
	controller, err := NewController(scheduler, testSpeeds(), 300*time.Millisecond, length)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	return controller, scheduler
}

func TestNewControllerValidation(t *testing.T) {
	if _, err := NewController(nil, testSpeeds(), 0, 5); err == nil {
		t.Fatalf("expected error for nil scheduler")
	}
	if _, err := NewController(&fakeScheduler{}, nil, 0, 5); err == nil {
		t.Fatalf("expected error for empty speed menu")
	}
	if _, err := NewController(&fakeScheduler{}, []Speed{{Label: "1x", Duration: 0}}, 0, 5); err == nil {
		t.Fatalf("expected error for non-positive duration")
	}
}

func TestControllerInitialView(t *testing.T) {
	controller, _ := newTestController(t, 5)
	view := controller.View()
	if view.CurrentIndex != 0 || view.IsPlaying {
		t.Fatalf("expected idle at index 0, got %+v", view)
	}
	if view.SpeedLabel != "0.5x" {
		t.Fatalf("expected first menu entry selected, got %s", view.SpeedLabel)
	}
	if view.Length != 5 {
		t.Fatalf("expected length 5, got %d", view.Length)
	}
}

func TestPlaySchedulesWithSpeedPlusTransition(t *testing.T) {
	controller, scheduler := newTestController(t, 5)
	controller.Play()
	if !controller.View().IsPlaying {
		t.Fatalf("expected playing after Play")
	}
	if got := scheduler.lastDelay(t); got != 2300*time.Millisecond {
		t.Fatalf("expected delay 2300ms, got %s", got)
	}
}

func TestTickAdvancesAndReschedules(t *testing.T) {
	controller, scheduler := newTestController(t, 3)
	controller.Play()

	scheduler.fire(t)
	view := controller.View()
	if view.CurrentIndex != 1 || !view.IsPlaying {
		t.Fatalf("expected playing at index 1, got %+v", view)
	}

	scheduler.fire(t)
	view = controller.View()
	if view.CurrentIndex != 2 {
		t.Fatalf("expected index 2, got %d", view.CurrentIndex)
	}
}

func TestTickAtEndGoesIdle(t *testing.T) {
	controller, scheduler := newTestController(t, 2)
	controller.Play()
	scheduler.fire(t)
	if view := controller.View(); view.CurrentIndex != 1 || !view.IsPlaying {
		t.Fatalf("expected playing at last index, got %+v", view)
	}
	scheduler.fire(t)
	view := controller.View()
	if view.IsPlaying {
		t.Fatalf("expected idle after tick at end")
	}
	if view.CurrentIndex != 1 {
		t.Fatalf("expected index to stay at 1, got %d", view.CurrentIndex)
	}
}

func TestPlayAtEndRestartsAtZero(t *testing.T) {
	controller, _ := newTestController(t, 4)
	controller.SkipToEnd()
	controller.Play()
	view := controller.View()
	if view.CurrentIndex != 0 || !view.IsPlaying {
		t.Fatalf("expected restart from index 0, got %+v", view)
	}
}

func TestManualNavigationPreemptsAutoPlay(t *testing.T) {
	controller, scheduler := newTestController(t, 5)
	controller.Play()
	controller.Next()
	view := controller.View()
	if view.IsPlaying {
		t.Fatalf("expected manual step to pause playback")
	}
	if view.CurrentIndex != 1 {
		t.Fatalf("expected index 1, got %d", view.CurrentIndex)
	}

	// The tick scheduled before Next must be a no-op now.
	scheduler.fire(t)
	if got := controller.View().CurrentIndex; got != 1 {
		t.Fatalf("expected stale tick ignored, got index %d", got)
	}
}

func TestStaleTickAfterSeekIgnored(t *testing.T) {
	controller, scheduler := newTestController(t, 10)
	controller.Play()
	scheduler.mu.Lock()
	stale := scheduler.pending
	scheduler.mu.Unlock()

	controller.Seek(7)
	controller.Play()
	stale()
	if got := controller.View().CurrentIndex; got != 7 {
		t.Fatalf("expected superseded tick to not advance, got index %d", got)
	}
}

func TestSeekClampsToBounds(t *testing.T) {
	controller, _ := newTestController(t, 5)
	controller.Seek(42)
	if got := controller.View().CurrentIndex; got != 4 {
		t.Fatalf("expected clamp to 4, got %d", got)
	}
	controller.Seek(-3)
	if got := controller.View().CurrentIndex; got != 0 {
		t.Fatalf("expected clamp to 0, got %d", got)
	}
}

func TestNextPreviousBounds(t *testing.T) {
	controller, _ := newTestController(t, 2)
	controller.Previous()
	if got := controller.View().CurrentIndex; got != 0 {
		t.Fatalf("expected Previous at start to stay at 0, got %d", got)
	}
	controller.Next()
	controller.Next()
	if got := controller.View().CurrentIndex; got != 1 {
		t.Fatalf("expected Next at end to stay at 1, got %d", got)
	}
}

func TestSkipToStartAndEnd(t *testing.T) {
	controller, _ := newTestController(t, 6)
	controller.SkipToEnd()
	if got := controller.View().CurrentIndex; got != 5 {
		t.Fatalf("expected index 5, got %d", got)
	}
	controller.SkipToStart()
	if got := controller.View().CurrentIndex; got != 0 {
		t.Fatalf("expected index 0, got %d", got)
	}
}

func TestSetSpeedReschedulesWhilePlaying(t *testing.T) {
	controller, scheduler := newTestController(t, 5)
	controller.Play()
	if err := controller.SetSpeed("2x"); err != nil {
		t.Fatalf("set speed: %v", err)
	}
	if got := scheduler.lastDelay(t); got != 800*time.Millisecond {
		t.Fatalf("expected delay 800ms after speed change, got %s", got)
	}
	if got := controller.View().SpeedLabel; got != "2x" {
		t.Fatalf("expected speed 2x, got %s", got)
	}
}

func TestSetSpeedUnknownLabel(t *testing.T) {
	controller, _ := newTestController(t, 5)
	if err := controller.SetSpeed("10x"); !errors.Is(err, ErrUnknownSpeed) {
		t.Fatalf("expected ErrUnknownSpeed, got %v", err)
	}
	if got := controller.View().SpeedLabel; got != "0.5x" {
		t.Fatalf("expected selection unchanged, got %s", got)
	}
}

func TestSetSequenceLengthReclamps(t *testing.T) {
	controller, _ := newTestController(t, 10)
	controller.Seek(9)
	controller.SetSequenceLength(4)
	view := controller.View()
	if view.CurrentIndex != 3 || view.Length != 4 {
		t.Fatalf("expected index clamped to 3 with length 4, got %+v", view)
	}

	controller.Play()
	controller.SetSequenceLength(0)
	view = controller.View()
	if view.IsPlaying || view.CurrentIndex != 0 {
		t.Fatalf("expected idle at 0 for empty sequence, got %+v", view)
	}
}

func TestPlayOnEmptySequenceStaysIdle(t *testing.T) {
	controller, _ := newTestController(t, 0)
	controller.Play()
	if controller.View().IsPlaying {
		t.Fatalf("expected empty sequence to never play")
	}
}

func TestListenerReceivesViews(t *testing.T) {
	controller, scheduler := newTestController(t, 3)
	var mu sync.Mutex
	var views []View
	controller.SetListener(func(v View) {
		mu.Lock()
		views = append(views, v)
		mu.Unlock()
	})

	controller.Play()
	scheduler.fire(t)
	controller.Pause()

	mu.Lock()
	defer mu.Unlock()
	if len(views) != 3 {
		t.Fatalf("expected 3 view notifications, got %d", len(views))
	}
	if !views[0].IsPlaying || views[0].CurrentIndex != 0 {
		t.Fatalf("expected play notification at index 0, got %+v", views[0])
	}
	if views[1].CurrentIndex != 1 {
		t.Fatalf("expected tick notification at index 1, got %+v", views[1])
	}
	if views[2].IsPlaying {
		t.Fatalf("expected pause notification idle, got %+v", views[2])
	}
}

func TestTimerSchedulerFires(t *testing.T) {
	scheduler := TimerScheduler{}
	done := make(chan struct{})
	scheduler.Schedule(5*time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for scheduled callback")
	}
}

func TestTimerSchedulerCancel(t *testing.T) {
	scheduler := TimerScheduler{}
	fired := make(chan struct{}, 1)
	cancel := scheduler.Schedule(50*time.Millisecond, func() { fired <- struct{}{} })
	cancel()
	select {
	case <-fired:
		t.Fatal("expected cancelled callback to not fire")
	case <-time.After(120 * time.Millisecond):
	}
}
