package playback

import (
	"errors"
	"sync"
	"time"
)

// Speed is one entry of the ordered speed menu.
type Speed struct {
	Label    string
	Duration time.Duration
}

// View is the read-only playback state handed to consumers.
type View struct {
	CurrentIndex int    `json:"current_index"`
	IsPlaying    bool   `json:"is_playing"`
	SpeedLabel   string `json:"speed_label"`
	Length       int    `json:"length"`
}

// Listener receives a view after every state change.
type Listener func(View)

// Controller steps through an immutable sequence: idle or playing, with
// auto-advance on a timer, manual navigation clamped to bounds, and a fixed
// speed menu. At most one timer is outstanding; every change to the inputs
// of the scheduled tick cancels and reschedules it, and a superseded timer
// can never advance the index.
type Controller struct {
	mu         sync.Mutex
	scheduler  Scheduler
	speeds     []Speed
	transition time.Duration
	listener   Listener

	length     int
	index      int
	playing    bool
	speedIdx   int
	generation uint64
	cancel     CancelFunc
}

// ErrUnknownSpeed rejects a label outside the configured menu.
var ErrUnknownSpeed = errors.New("playback: unknown speed label")

// NewController builds an idle controller over a sequence of the given
// length. The speed menu must be non-empty; the first entry is the initial
// selection.
func NewController(scheduler Scheduler, speeds []Speed, transition time.Duration, length int) (*Controller, error) {
	if scheduler == nil {
		return nil, errors.New("playback: nil scheduler")
	}
	if len(speeds) == 0 {
		return nil, errors.New("playback: empty speed menu")
	}
	for _, speed := range speeds {
		if speed.Label == "" || speed.Duration <= 0 {
			return nil, errors.New("playback: invalid speed preset")
		}
	}
	if length < 0 {
		length = 0
	}
	return &Controller{
		scheduler:  scheduler,
		speeds:     speeds,
		transition: transition,
		length:     length,
	}, nil
}

// SetListener registers the index-change callback. The controller never
// renders; it only emits views.
func (c *Controller) SetListener(listener Listener) {
	c.mu.Lock()
	c.listener = listener
	c.mu.Unlock()
}

// View returns the current playback state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view()
}

// Play starts auto-advance. Playing from the last index restarts at 0.
func (c *Controller) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.length == 0 {
		return
	}
	if c.index == c.length-1 {
		c.index = 0
	}
	c.playing = true
	c.reschedule()
	c.notify()
}

// Pause stops the timer and stays at the current index.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interrupt()
	c.notify()
}

// Next steps forward one snapshot. Manual navigation always preempts
// auto-play.
func (c *Controller) Next() {
	c.seekLocked(func(index int) int { return index + 1 })
}

// Previous steps back one snapshot.
func (c *Controller) Previous() {
	c.seekLocked(func(index int) int { return index - 1 })
}

// Seek jumps to an index, silently clamped to bounds.
func (c *Controller) Seek(index int) {
	c.seekLocked(func(int) int { return index })
}

// SkipToStart jumps to the first snapshot.
func (c *Controller) SkipToStart() {
	c.seekLocked(func(int) int { return 0 })
}

// SkipToEnd jumps to the last snapshot.
func (c *Controller) SkipToEnd() {
	c.seekLocked(func(int) int { return c.length - 1 })
}

// SetSpeed selects a preset from the menu. While playing, the pending tick
// is rescheduled with the new delay.
func (c *Controller) SetSpeed(label string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, speed := range c.speeds {
		if speed.Label == label {
			c.speedIdx = i
			c.reschedule()
			c.notify()
			return nil
		}
	}
	return ErrUnknownSpeed
}

// Speeds returns the ordered speed menu labels.
func (c *Controller) Speeds() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	labels := make([]string, len(c.speeds))
	for i, speed := range c.speeds {
		labels[i] = speed.Label
	}
	return labels
}

// SetSequenceLength re-clamps the index when the underlying sequence
// changes size, cancelling any pending tick whose inputs are now stale.
func (c *Controller) SetSequenceLength(length int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if length < 0 {
		length = 0
	}
	c.length = length
	c.index = clamp(c.index, length)
	if length == 0 {
		c.playing = false
	}
	c.reschedule()
	c.notify()
}

// Close cancels any pending tick.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interrupt()
}

func (c *Controller) seekLocked(target func(int) int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interrupt()
	if c.length == 0 {
		c.notify()
		return
	}
	c.index = clamp(target(c.index), c.length)
	c.notify()
}

// interrupt forces idle and invalidates any scheduled tick.
func (c *Controller) interrupt() {
	c.playing = false
	c.generation++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// reschedule replaces the outstanding timer with one matching the current
// inputs. Must hold c.mu.
func (c *Controller) reschedule() {
	c.generation++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if !c.playing || c.length == 0 {
		return
	}
	generation := c.generation
	c.cancel = c.scheduler.Schedule(c.stepDelay(), func() { c.tick(generation) })
}

func (c *Controller) tick(generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation || !c.playing {
		// Ghost advance: the inputs changed after this tick was scheduled.
		return
	}
	if c.index >= c.length-1 {
		c.playing = false
		c.cancel = nil
		c.notify()
		return
	}
	c.index++
	c.reschedule()
	c.notify()
}

func (c *Controller) stepDelay() time.Duration {
	return c.speeds[c.speedIdx].Duration + c.transition
}

func (c *Controller) view() View {
	return View{
		CurrentIndex: c.index,
		IsPlaying:    c.playing,
		SpeedLabel:   c.speeds[c.speedIdx].Label,
		Length:       c.length,
	}
}

func (c *Controller) notify() {
	if c.listener != nil {
		c.listener(c.view())
	}
}

func clamp(index, length int) int {
	if length <= 0 {
		return 0
	}
	if index < 0 {
		return 0
	}
	if index > length-1 {
		return length - 1
	}
	return index
}
