package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, OverflowDropOldest, p)

	p, err = ParsePolicy("drop_oldest")
	require.NoError(t, err)
	assert.Equal(t, OverflowDropOldest, p)

	p, err = ParsePolicy("drop_newest")
	require.NoError(t, err)
	assert.Equal(t, OverflowDropNewest, p)

	_, err = ParsePolicy("drop_random")
	require.Error(t, err)
}

func TestPushPopFIFOOrder(t *testing.T) {
	q := New(10, OverflowDropOldest)

	assert.True(t, q.Push([]byte("A")))
	assert.True(t, q.Push([]byte("B")))
	assert.True(t, q.Push([]byte("C")))
	assert.Equal(t, 3, q.Size())

	for _, want := range []string{"A", "B", "C"} {
		got, err := q.Pop(time.Second)
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
}

func TestPopTimesOutWhenEmpty(t *testing.T) {
	q := New(10, OverflowDropOldest)
	_, err := q.Pop(50 * time.Millisecond)
	assert.ErrorIs(t, err, ErrEmpty)
}

// TestOverflowDropOldest covers S4: queue_capacity=3, push A..E, expect [C,D,E].
func TestOverflowDropOldest(t *testing.T) {
	q := New(3, OverflowDropOldest)
	for _, m := range []string{"A", "B", "C", "D", "E"} {
		q.Push([]byte(m))
	}
	assert.Equal(t, 3, q.Size())

	var got []string
	for i := 0; i < 3; i++ {
		msg, err := q.Pop(time.Second)
		require.NoError(t, err)
		got = append(got, string(msg))
	}
	assert.Equal(t, []string{"C", "D", "E"}, got)
}

func TestOverflowDropNewest(t *testing.T) {
	q := New(3, OverflowDropNewest)
	for _, m := range []string{"A", "B", "C", "D", "E"} {
		q.Push([]byte(m))
	}
	assert.Equal(t, 3, q.Size())

	var got []string
	for i := 0; i < 3; i++ {
		msg, err := q.Pop(time.Second)
		require.NoError(t, err)
		got = append(got, string(msg))
	}
	assert.Equal(t, []string{"A", "B", "C"}, got)
}

func TestDropNewestRefusesWhileFull(t *testing.T) {
	q := New(1, OverflowDropNewest)
	assert.True(t, q.Push([]byte("A")))
	assert.False(t, q.Push([]byte("B")))
	assert.Equal(t, 1, q.Size())
}

func TestStopSignalPopsLikeAnyElement(t *testing.T) {
	q := New(2, OverflowDropOldest)
	q.Push(StopSignal)
	msg, err := q.Pop(time.Second)
	require.NoError(t, err)
	assert.Equal(t, StopSignal, msg)
}

func TestDrainReturnsDiscardedCount(t *testing.T) {
	q := New(5, OverflowDropOldest)
	q.Push([]byte("A"))
	q.Push([]byte("B"))
	assert.Equal(t, 2, q.Drain())
	assert.Equal(t, 0, q.Size())
}

func TestPopUnblocksOnConcurrentPush(t *testing.T) {
	q := New(5, OverflowDropOldest)
	done := make(chan []byte, 1)
	go func() {
		msg, err := q.Pop(2 * time.Second)
		if err == nil {
			done <- msg
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push([]byte("woken"))

	select {
	case msg := <-done:
		assert.Equal(t, "woken", string(msg))
	case <-time.After(time.Second):
		t.Fatal("Pop did not unblock on Push")
	}
}
