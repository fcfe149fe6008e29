// ABOUTME: Per-chat timer registry for inactivity and response timeouts
// ABOUTME: Starting a timer replaces any live timer of the same kind for that chat

package timers

import (
	"log/slog"
	"sync"
	"time"
)

// Kind distinguishes the two independent timers a chat may have
type Kind string

const (
	// KindInactivity expires an idle automated session
	KindInactivity Kind = "inactivity"
	// KindResponse reassigns a chat whose agent has gone quiet
	KindResponse Kind = "response"
)

type timerKey struct {
	chatID string
	kind   Kind
}

// Registry owns all live timers for one gateway instance. Timers are pure
// process-local scheduled callbacks; a restart loses them, which is an
// accepted limitation of the design.
type Registry struct {
	mu     sync.Mutex
	timers map[timerKey]*time.Timer
	closed bool
	logger *slog.Logger
}

// NewRegistry creates an empty timer registry. Pass nil logger for the default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		timers: make(map[timerKey]*time.Timer),
		logger: logger.With("component", "timers"),
	}
}

// Start schedules fn to run after d. Any live timer of the same kind for
// the same chat is cancelled first, so at most one instance of each kind
// exists per chat. After StopAll, Start is a no-op.
func (r *Registry) Start(chatID string, kind Kind, d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	key := timerKey{chatID: chatID, kind: kind}
	if prev, ok := r.timers[key]; ok {
		prev.Stop()
	}

	// Stop above can miss: the old timer may have fired already with its
	// callback parked on mu. The callback therefore claims its own map
	// entry by identity before running, so a stale one cannot touch the
	// replacement and never invokes its fn.
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		if !r.claim(key, t) {
			return
		}
		fn()
	})
	r.timers[key] = t
}

// claim removes the entry for key if it still refers to t. A false return
// means the timer was replaced or cancelled between firing and acquiring
// the lock; the caller must not run its callback.
func (r *Registry) claim(key timerKey, t *time.Timer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timers[key] != t {
		return false
	}
	delete(r.timers, key)
	return true
}

// Cancel stops the timer of the given kind for the chat, if one is live
func (r *Registry) Cancel(chatID string, kind Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := timerKey{chatID: chatID, kind: kind}
	if t, ok := r.timers[key]; ok {
		t.Stop()
		delete(r.timers, key)
	}
}

// Active reports whether a timer of the given kind is live for the chat
func (r *Registry) Active(chatID string, kind Kind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.timers[timerKey{chatID: chatID, kind: kind}]
	return ok
}

// StopAll cancels every live timer and rejects further Start calls.
// Called on gateway shutdown so no callback fires into torn-down state.
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, t := range r.timers {
		t.Stop()
		delete(r.timers, key)
	}
	r.closed = true
	r.logger.Debug("all timers stopped")
}
