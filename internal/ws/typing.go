package ws

import (
	"sync"
	"time"
)

// DefaultTypingWindow is how long a typing indicator stays alive without a
// refresh before it auto-expires.
const DefaultTypingWindow = 5 * time.Second

// Scheduler abstracts timer creation so expiry can be driven manually in
// tests. The returned cancel reports whether the timer was stopped before
// firing.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) (cancel func() bool)
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, fn func()) func() bool {
	t := time.AfterFunc(d, fn)
	return t.Stop
}

type typingKey struct {
	conversationID int64
	userID         int64
}

type typingEntry struct {
	seq    uint64
	cancel func() bool
}

// Typing coordinates typing indicators per (conversation, user). A repeated
// start refreshes the expiry window instead of stacking timers, and a stop
// or disconnect clears the indicator immediately.
type Typing struct {
	mu      sync.Mutex
	entries map[typingKey]*typingEntry
	seq     uint64

	window time.Duration
	sched  Scheduler

	// notify is invoked outside the lock whenever an indicator turns on
	// or off. typing=false fires on explicit stop, expiry and ClearAll.
	notify func(conversationID, userID int64, typing bool)
}

func NewTyping(window time.Duration, sched Scheduler, notify func(conversationID, userID int64, typing bool)) *Typing {
	if window <= 0 {
		window = DefaultTypingWindow
	}
	if sched == nil {
		sched = realScheduler{}
	}
	return &Typing{
		entries: make(map[typingKey]*typingEntry),
		window:  window,
		sched:   sched,
		notify:  notify,
	}
}

// Start turns the indicator on and arms (or re-arms) its expiry timer.
func (t *Typing) Start(conversationID, userID int64) {
	key := typingKey{conversationID, userID}

	t.mu.Lock()
	if e, ok := t.entries[key]; ok {
		e.cancel()
	}
	t.seq++
	seq := t.seq
	entry := &typingEntry{seq: seq}
	entry.cancel = t.sched.AfterFunc(t.window, func() {
		t.expire(key, seq)
	})
	t.entries[key] = entry
	t.mu.Unlock()

	t.notify(conversationID, userID, true)
}

// Stop clears the indicator. The stopped notification is sent even when no
// indicator was active, so a stop that races expiry still reaches clients.
func (t *Typing) Stop(conversationID, userID int64) {
	key := typingKey{conversationID, userID}

	t.mu.Lock()
	if e, ok := t.entries[key]; ok {
		e.cancel()
		delete(t.entries, key)
	}
	t.mu.Unlock()

	t.notify(conversationID, userID, false)
}

// ClearAll drops every indicator held by the user, notifying each affected
// conversation. Called when the user's last connection goes away.
func (t *Typing) ClearAll(userID int64) {
	t.mu.Lock()
	var cleared []typingKey
	for key, e := range t.entries {
		if key.userID == userID {
			e.cancel()
			delete(t.entries, key)
			cleared = append(cleared, key)
		}
	}
	t.mu.Unlock()

	for _, key := range cleared {
		t.notify(key.conversationID, key.userID, false)
	}
}

// expire fires when a timer elapses. The sequence check discards firings
// that lost a race with a refresh or an explicit stop.
func (t *Typing) expire(key typingKey, seq uint64) {
	t.mu.Lock()
	e, ok := t.entries[key]
	if !ok || e.seq != seq {
		t.mu.Unlock()
		return
	}
	delete(t.entries, key)
	t.mu.Unlock()

	t.notify(key.conversationID, key.userID, false)
}
