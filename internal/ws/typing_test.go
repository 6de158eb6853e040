package ws

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// manualScheduler lets tests fire or inspect timers deterministically.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	fn      func()
	stopped bool
	fired   bool
}

func (s *manualScheduler) AfterFunc(d time.Duration, fn func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	tm := &manualTimer{fn: fn}
	s.timers = append(s.timers, tm)
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if tm.fired || tm.stopped {
			return false
		}
		tm.stopped = true
		return true
	}
}

// fire runs the i-th timer as if its duration elapsed.
func (s *manualScheduler) fire(i int) {
	s.mu.Lock()
	tm := s.timers[i]
	if tm.stopped || tm.fired {
		s.mu.Unlock()
		return
	}
	tm.fired = true
	fn := tm.fn
	s.mu.Unlock()
	fn()
}

func (s *manualScheduler) armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, tm := range s.timers {
		if !tm.stopped && !tm.fired {
			n++
		}
	}
	return n
}

type typingEvent struct {
	conversationID int64
	userID         int64
	typing         bool
}

func newTestTyping() (*Typing, *manualScheduler, *[]typingEvent) {
	sched := &manualScheduler{}
	var events []typingEvent
	ty := NewTyping(DefaultTypingWindow, sched, func(conversationID, userID int64, typing bool) {
		events = append(events, typingEvent{conversationID, userID, typing})
	})
	return ty, sched, &events
}

func TestTypingStartThenExpire(t *testing.T) {
	ty, sched, events := newTestTyping()

	ty.Start(1, 10)
	assert.Equal(t, []typingEvent{{1, 10, true}}, *events)

	sched.fire(0)
	assert.Equal(t, []typingEvent{{1, 10, true}, {1, 10, false}}, *events)
	assert.Zero(t, sched.armed())
}

func TestTypingRestartRefreshesWindow(t *testing.T) {
	ty, sched, events := newTestTyping()

	ty.Start(1, 10)
	ty.Start(1, 10)
	assert.Equal(t, 1, sched.armed(), "refresh replaces the timer instead of stacking")

	// the first timer was cancelled; firing it anyway must be a no-op
	sched.fire(0)
	assert.Equal(t, []typingEvent{{1, 10, true}, {1, 10, true}}, *events)

	sched.fire(1)
	assert.Equal(t, typingEvent{1, 10, false}, (*events)[len(*events)-1])
}

func TestTypingStopCancelsTimer(t *testing.T) {
	ty, sched, events := newTestTyping()

	ty.Start(1, 10)
	ty.Stop(1, 10)
	assert.Zero(t, sched.armed())
	assert.Equal(t, []typingEvent{{1, 10, true}, {1, 10, false}}, *events)

	// a late firing of the cancelled timer changes nothing
	sched.fire(0)
	assert.Len(t, *events, 2)
}

func TestTypingStopWithoutStartStillNotifies(t *testing.T) {
	ty, _, events := newTestTyping()

	ty.Stop(3, 10)
	assert.Equal(t, []typingEvent{{3, 10, false}}, *events)
}

func TestTypingClearAll(t *testing.T) {
	ty, sched, events := newTestTyping()

	ty.Start(1, 10)
	ty.Start(2, 10)
	ty.Start(1, 99)
	*events = nil

	ty.ClearAll(10)

	assert.Len(t, *events, 2)
	for _, e := range *events {
		assert.Equal(t, int64(10), e.userID)
		assert.False(t, e.typing)
	}
	assert.Equal(t, 1, sched.armed(), "the other user's indicator stays armed")
}

func TestTypingStaleExpiryAfterRestart(t *testing.T) {
	ty, _, events := newTestTyping()

	ty.Start(1, 10)
	ty.Start(1, 10)
	*events = nil

	// an expiry that raced the restart carries the old sequence and is dropped
	ty.expire(typingKey{1, 10}, 1)
	assert.Empty(t, *events)

	ty.expire(typingKey{1, 10}, 2)
	assert.Equal(t, []typingEvent{{1, 10, false}}, *events)
}
