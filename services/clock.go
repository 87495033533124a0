package services

import (
	"sync"
	"time"

	"github.com/cppla/homedash/streak"
)

// Clock supplies "now"; today is derived from it in the clock's location.
type Clock interface {
	Now() time.Time
}

// RealClock reads the wall clock in a fixed location.
type RealClock struct {
	Location *time.Location
}

func (c RealClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// FakeClock is deterministic and test-friendly.
type FakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{t: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func today(c Clock) time.Time {
	return streak.DayOf(c.Now())
}
