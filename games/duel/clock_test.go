package duel

import (
	"math/rand/v2"
	"testing"
	"time"
)

// manualClock is a Scheduler driven by Advance.
type manualClock struct {
	now    time.Duration
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	at      time.Duration
	seq     int
	f       func()
	stopped bool
	fired   bool
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.seq++
	t := &manualTimer{at: c.now + d, seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance runs every timer due within d, in order.
func (c *manualClock) Advance(d time.Duration) {
	target := c.now + d

	for {
		var next *manualTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at > target {
				continue
			}
			if next == nil || t.at < next.at || (t.at == next.at && t.seq < next.seq) {
				next = t
			}
		}
		if next == nil {
			break
		}

		c.now = next.at
		next.fired = true
		next.f()
	}

	c.now = target
}

func (c *manualClock) pending() int {
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func testCategory(answers ...string) Category {
	cat := Category{ID: "animals", Name: "Animals", Mode: ModeSingle}
	for i, a := range answers {
		cat.Questions = append(cat.Questions, Question{
			ID:     string(rune('a' + i)),
			Answer: a,
		})
	}
	return cat
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.HintDelay = 0
	return cfg
}

type harness struct {
	s       *Session
	clock   *manualClock
	cues    []Cue
	closed  []Outcome
	changes int
}

func newHarness(t *testing.T, cfg Config, cat Category) *harness {
	t.Helper()

	h := &harness{clock: &manualClock{}}

	s, err := NewSession(cfg, cat, 4, h.clock,
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithCueHandler(func(c Cue) { h.cues = append(h.cues, c) }),
		WithChangeHandler(func(*Session) { h.changes++ }),
		WithCloseHandler(func(_ *Session, o Outcome) { h.closed = append(h.closed, o) }),
	)
	if err != nil {
		t.Fatal(err)
	}
	h.s = s

	return h
}

func (h *harness) count(c Cue) int {
	n := 0
	for _, x := range h.cues {
		if x == c {
			n++
		}
	}
	return n
}

func (h *harness) questionID(t *testing.T) string {
	t.Helper()

	q, ok := h.s.Current()
	if !ok {
		t.Fatal("no current question")
	}
	return q.ID
}
