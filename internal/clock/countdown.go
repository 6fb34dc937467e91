package clock

import (
	"sync"
	"time"
)

// Countdown ticks once per second while armed and expires once at zero.
// Every Arm starts a new generation; callbacks carry it so consumers that
// queue them can still drop ones that belong to an older arm cycle.
type Countdown struct {
	clock Clock

	mu        sync.Mutex
	gen       uint64
	armed     bool
	remaining int
	timer     Timer
	onTick    func(gen uint64, remaining int)
	onExpire  func(gen uint64)
}

func NewCountdown(c Clock) *Countdown {
	if c == nil {
		c = Real{}
	}
	return &Countdown{clock: c}
}

// Arm disarms any running cycle and starts a new one. A non-positive
// duration expires on the first tick.
func (c *Countdown) Arm(seconds int, onTick func(gen uint64, remaining int), onExpire func(gen uint64)) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.disarmLocked()
	c.gen++
	c.armed = true
	c.remaining = seconds
	c.onTick = onTick
	c.onExpire = onExpire
	c.scheduleLocked(c.gen)
	return c.gen
}

// Disarm stops the current cycle without firing. Safe to call repeatedly.
func (c *Countdown) Disarm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disarmLocked()
}

func (c *Countdown) Armed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed
}

func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Countdown) disarmLocked() {
	if !c.armed {
		return
	}
	c.armed = false
	// bump so a timer callback already past Stop sees a stale generation
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Countdown) scheduleLocked(gen uint64) {
	c.timer = c.clock.AfterFunc(time.Second, func() { c.fire(gen) })
}

func (c *Countdown) fire(gen uint64) {
	c.mu.Lock()
	if !c.armed || c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.remaining--
	if c.remaining > 0 {
		remaining := c.remaining
		onTick := c.onTick
		c.scheduleLocked(gen)
		c.mu.Unlock()
		if onTick != nil {
			onTick(gen, remaining)
		}
		return
	}

	c.remaining = 0
	c.armed = false
	c.timer = nil
	onTick := c.onTick
	onExpire := c.onExpire
	c.mu.Unlock()

	if onTick != nil {
		onTick(gen, 0)
	}
	if onExpire != nil {
		onExpire(gen)
	}
}
