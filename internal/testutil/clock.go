package testutil

import (
	"strconv"
	"sync"
	"time"
)

// RunTime is the instant FixedClock starts at. Tests derive expected
// backed_up_at and operation timestamps from it.
var RunTime = time.Date(2024, 2, 28, 9, 30, 0, 0, time.UTC)

// StubClock is an ibk.Clock that only moves when told to. Workers read it
// concurrently, so access is locked.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewStubClock(start time.Time) *StubClock {
	return &StubClock{now: start}
}

// FixedClock returns a StubClock at RunTime.
func FixedClock() *StubClock {
	return NewStubClock(RunTime)
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward, e.g. between two backup runs.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// StubIDGenerator mints predictable backup IDs: backup-1, backup-2, ...
type StubIDGenerator struct {
	mu   sync.Mutex
	next int
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{}
}

func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return "backup-" + strconv.Itoa(g.next)
}
