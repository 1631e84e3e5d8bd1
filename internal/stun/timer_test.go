package stun

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock lets the test advance time deterministically rather than
// sleeping.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time  { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTimerRetransmissionSchedule(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	timer := &Timer{now: clock.now}
	timer.Start(200*time.Millisecond, 3)

	// Before the first deadline: still SUCCESS.
	clock.advance(100 * time.Millisecond)
	assert.Equal(t, TimerSuccess, timer.Refresh())

	// 200ms: first retransmit, delay doubles to 400ms (deadline at 600ms).
	clock.advance(101 * time.Millisecond)
	assert.Equal(t, TimerRetransmit, timer.Refresh())

	// 600ms: second retransmit, delay doubles to 800ms (deadline at 1400ms).
	clock.advance(400 * time.Millisecond)
	assert.Equal(t, TimerRetransmit, timer.Refresh())

	// 1400ms: third retransmit, delay doubles to 1600ms (deadline at 3000ms).
	clock.advance(800 * time.Millisecond)
	assert.Equal(t, TimerRetransmit, timer.Refresh())

	// 3000ms: retries exhausted (max_retrans=3 already used).
	clock.advance(1600 * time.Millisecond)
	assert.Equal(t, TimerTimeout, timer.Refresh())
}

func TestTimerReliableVariant(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	timer := &Timer{now: clock.now}
	timer.StartReliable(5 * time.Second)

	clock.advance(4 * time.Second)
	assert.Equal(t, TimerSuccess, timer.Refresh())

	clock.advance(2 * time.Second)
	assert.Equal(t, TimerTimeout, timer.Refresh())
}
