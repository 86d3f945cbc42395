package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAssignsIncreasingIDs(t *testing.T) {
	l := New()
	e1 := l.Append(TypeInfo, 1, "first")
	e2 := l.Append(TypeInfo, 2, "second")
	assert.Equal(t, int64(1), e1.ID)
	assert.Equal(t, int64(2), e2.ID)
}

func TestTailBoundedToCapacity(t *testing.T) {
	l := New()
	for i := 0; i < defaultCapacity+10; i++ {
		l.Append(TypeInfo, int64(i), "entry")
	}
	tail := l.Tail()
	require.Len(t, tail, defaultCapacity)
	assert.Equal(t, int64(11), tail[0].ID, "oldest 10 entries should have been trimmed")
	assert.Equal(t, int64(defaultCapacity+10), tail[len(tail)-1].ID)
}

func TestSubscribeReceivesTailThenLiveAppends(t *testing.T) {
	l := New()
	l.Append(TypeInfo, 1, "before subscribe")

	tail, ch, unsubscribe := l.Subscribe()
	defer unsubscribe()
	require.Len(t, tail, 1)

	l.Append(TypeSuccess, 2, "after subscribe")
	select {
	case e := <-ch:
		assert.Equal(t, TypeSuccess, e.Type)
		assert.Equal(t, "after subscribe", e.Message)
	default:
		t.Fatal("expected a live entry on the subscriber channel")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	l := New()
	_, ch, unsubscribe := l.Subscribe()
	unsubscribe()

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")
}

func TestAppendNeverBlocksOnSlowSubscriber(t *testing.T) {
	l := New()
	_, _, unsubscribe := l.Subscribe()
	defer unsubscribe()

	// The subscriber channel buffer is l.capacity; publish well past that
	// without ever draining it. Append must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < defaultCapacity*2; i++ {
			l.Append(TypeInfo, int64(i), "flood")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Append blocked on a slow subscriber")
	}
}
