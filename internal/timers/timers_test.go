// ABOUTME: Tests for the per-chat timer registry
// ABOUTME: Verifies replacement semantics, cancellation and shutdown behavior

package timers

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStart_FiresOnce(t *testing.T) {
	r := NewRegistry(nil)
	defer r.StopAll()

	fired := make(chan struct{})
	r.Start("chat-1", KindInactivity, 10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
	assert.False(t, r.Active("chat-1", KindInactivity), "fired timer is removed")
}

func TestStart_ReplacesPriorOfSameKind(t *testing.T) {
	r := NewRegistry(nil)
	defer r.StopAll()

	var first, second atomic.Int32
	r.Start("chat-1", KindResponse, 20*time.Millisecond, func() { first.Add(1) })
	r.Start("chat-1", KindResponse, 20*time.Millisecond, func() { second.Add(1) })

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, first.Load(), "replaced timer must never fire")
	assert.Equal(t, int32(1), second.Load())
}

func TestStart_ReplacementSurvivesExpiredPredecessor(t *testing.T) {
	r := NewRegistry(nil)
	defer r.StopAll()

	key := timerKey{chatID: "chat-1", kind: KindResponse}

	var oldFired atomic.Int32
	r.Start("chat-1", KindResponse, 10*time.Millisecond, func() { oldFired.Add(1) })

	// Park the expired timer's callback behind the registry lock, then
	// install a replacement while it waits, the way a concurrent Start
	// would. The stale callback must leave the replacement's entry alone.
	r.mu.Lock()
	time.Sleep(50 * time.Millisecond) // old timer fires and blocks on mu

	replacement := time.AfterFunc(time.Hour, func() {})
	if prev, ok := r.timers[key]; ok {
		prev.Stop()
	}
	r.timers[key] = replacement
	r.mu.Unlock()

	time.Sleep(50 * time.Millisecond)
	assert.True(t, r.Active("chat-1", KindResponse), "replacement must stay visible")
	assert.Zero(t, oldFired.Load(), "replaced timer callback must not run")

	r.Cancel("chat-1", KindResponse)
	assert.False(t, r.Active("chat-1", KindResponse), "replacement must stay cancellable")
}

func TestStart_KindsAreIndependent(t *testing.T) {
	r := NewRegistry(nil)
	defer r.StopAll()

	var inactivity, response atomic.Int32
	r.Start("chat-1", KindInactivity, 10*time.Millisecond, func() { inactivity.Add(1) })
	r.Start("chat-1", KindResponse, 10*time.Millisecond, func() { response.Add(1) })

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), inactivity.Load())
	assert.Equal(t, int32(1), response.Load())
}

func TestCancel(t *testing.T) {
	r := NewRegistry(nil)
	defer r.StopAll()

	var fired atomic.Int32
	r.Start("chat-1", KindResponse, 20*time.Millisecond, func() { fired.Add(1) })
	assert.True(t, r.Active("chat-1", KindResponse))

	r.Cancel("chat-1", KindResponse)
	assert.False(t, r.Active("chat-1", KindResponse))

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, fired.Load())
}

func TestStopAll_CancelsAndRejectsNewTimers(t *testing.T) {
	r := NewRegistry(nil)

	var fired atomic.Int32
	r.Start("chat-1", KindInactivity, 20*time.Millisecond, func() { fired.Add(1) })
	r.Start("chat-2", KindResponse, 20*time.Millisecond, func() { fired.Add(1) })

	r.StopAll()

	r.Start("chat-3", KindResponse, 10*time.Millisecond, func() { fired.Add(1) })

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, fired.Load())
	assert.False(t, r.Active("chat-3", KindResponse))
}
