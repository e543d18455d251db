package queue

import (
	"encoding/binary"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteQueue_FIFO(t *testing.T) {
	q := New()
	assert.True(t, q.IsEmpty())

	_, ok := q.Pop()
	assert.False(t, ok, "pop on empty must not block and must report empty")

	q.Push([]byte("a"))
	q.Push([]byte("b"))
	q.Push([]byte{})
	assert.Equal(t, 3, q.Len())

	for _, want := range [][]byte{[]byte("a"), []byte("b"), {}} {
		got, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	assert.True(t, q.IsEmpty())
}

func TestByteQueue_Reset(t *testing.T) {
	q := New()
	q.Push([]byte("x"))
	q.Push([]byte("y"))
	_, _ = q.Pop()

	assert.Equal(t, 1, q.Reset())
	assert.True(t, q.IsEmpty())

	q.Push([]byte("z"))
	got, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, []byte("z"), got)
}

func TestByteQueue_CompactionKeepsOrder(t *testing.T) {
	q := New()
	next := 0
	for round := 0; round < 10; round++ {
		for i := 0; i < 100; i++ {
			q.Push(encode(0, round*100+i))
		}
		for i := 0; i < 70; i++ {
			msg, ok := q.Pop()
			require.True(t, ok)
			_, seq := decode(msg)
			require.Equal(t, next, seq)
			next++
		}
	}
	for !q.IsEmpty() {
		msg, _ := q.Pop()
		_, seq := decode(msg)
		require.Equal(t, next, seq)
		next++
	}
	assert.Equal(t, 1000, next)
}

// Per-producer order must survive arbitrary interleaving between producers.
func TestByteQueue_PerProducerOrder(t *testing.T) {
	const producers = 8
	const perProducer = 2000

	q := New()
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(encode(p, i))
			}
		}(p)
	}

	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}

	received := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	drain := func() {
		for {
			msg, ok := q.Pop()
			if !ok {
				return
			}
			p, seq := decode(msg)
			require.Equal(t, last[p]+1, seq, "producer %d out of order", p)
			last[p] = seq
			received++
		}
	}

	for {
		select {
		case <-done:
			drain()
			assert.Equal(t, producers*perProducer, received)
			return
		default:
			drain()
		}
	}
}

func encode(producer, seq int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint32(b, uint32(producer))
	binary.BigEndian.PutUint32(b[4:], uint32(seq))
	return b
}

func decode(b []byte) (int, int) {
	return int(binary.BigEndian.Uint32(b)), int(binary.BigEndian.Uint32(b[4:]))
}
