// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFIFO(t *testing.T) {
	q := New[string](8)
	require.NoError(t, q.Push("m1"))
	require.NoError(t, q.Push("m2"))
	require.NoError(t, q.Push("m3"))

	for _, expected := range []string{"m1", "m2", "m3"} {
		entry, ok := q.TryPop()
		require.True(t, ok)
		assert.Equal(t, expected, entry)
	}

	_, ok := q.TryPop()
	assert.False(t, ok)
}

func TestPushFull(t *testing.T) {
	q := New[int](2)
	require.NoError(t, q.Push(1))
	require.NoError(t, q.Push(2))
	assert.ErrorIs(t, q.Push(3), FullErr)
	assert.Equal(t, 2, q.Len())
}

func TestPopTimeout(t *testing.T) {
	q := New[int](1)

	start := time.Now()
	_, ok := q.Pop(20 * time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	require.NoError(t, q.Push(7))
	entry, ok := q.Pop(time.Second)
	require.True(t, ok)
	assert.Equal(t, 7, entry)
}

func TestPopUnblocksOnPush(t *testing.T) {
	q := New[int](1)
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = q.Push(42)
	}()
	entry, ok := q.Pop(time.Second)
	require.True(t, ok)
	assert.Equal(t, 42, entry)
}

func TestDrain(t *testing.T) {
	q := New[int](8)
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Push(i))
	}
	assert.Equal(t, 5, q.Drain())
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, q.Drain())
}
