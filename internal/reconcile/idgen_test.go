package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(from, to int) []int {
	var out []int
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func TestIDAllocatorSequential(t *testing.T) {
	a := NewIDAllocator(seq(1, 20))

	id, err := a.Next()
	require.NoError(t, err)
	assert.Equal(t, 21, id)

	id, err = a.Next()
	require.NoError(t, err)
	assert.Equal(t, 22, id)
	assert.Equal(t, seq(1, 22), a.IDs())
}

func TestIDAllocatorIgnoresOutliers(t *testing.T) {
	ids := append(seq(100, 108), 5000)
	a := NewIDAllocator(ids)

	id, err := a.Next()
	require.NoError(t, err)
	assert.Equal(t, 109, id)
	assert.Equal(t, append(seq(100, 109), 5000), a.IDs(), "inserted after the inlier max, not appended")

	id, err = a.Next()
	require.NoError(t, err)
	assert.Equal(t, 110, id)
	assert.True(t, a.Known(110))
}

func TestIDAllocatorNeverReturnsKnownID(t *testing.T) {
	ids := append([]int{1205, 1206}, seq(1190, 1199)...)
	a := NewIDAllocator(ids)
	seen := make(map[int]bool)
	for _, id := range ids {
		seen[id] = true
	}

	for i := 0; i < 5; i++ {
		id, err := a.Next()
		if err != nil {
			assert.ErrorIs(t, err, ErrIDCollision)
			return
		}
		assert.False(t, seen[id], "id %d handed out twice", id)
		seen[id] = true
	}
}

func TestIDAllocatorCollision(t *testing.T) {
	a := NewIDAllocator(append([]int{11}, seq(1, 10)...))

	_, err := a.Next()
	assert.ErrorIs(t, err, ErrIDCollision)
}

func TestIDAllocatorEmpty(t *testing.T) {
	a := NewIDAllocator(nil)

	_, err := a.Next()
	assert.ErrorIs(t, err, ErrEmptyIDWindow)
}

func TestMaxInlierOfIdenticalWindow(t *testing.T) {
	latest, ok := maxInlier([]int{7, 7, 7}, outlierFactor)
	require.True(t, ok)
	assert.Equal(t, 7, latest)
}
