package partition

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestShareConcatenationAndBalance(t *testing.T) {
	for n := 0; n <= 40; n++ {
		for count := 1; count <= 12; count++ {
			items := seq(n)
			var concat []int
			minSize, maxSize := n+1, -1
			seen := make(map[int]bool)

			for id := 0; id < count; id++ {
				share, err := Share(items, id, count)
				require.NoError(t, err)
				for _, v := range share {
					require.False(t, seen[v], "n=%d count=%d: item %d in two shares", n, count, v)
					seen[v] = true
				}
				concat = append(concat, share...)
				if len(share) < minSize {
					minSize = len(share)
				}
				if len(share) > maxSize {
					maxSize = len(share)
				}
			}

			if n == 0 {
				assert.Empty(t, concat)
			} else {
				assert.Equal(t, items, concat, "n=%d count=%d", n, count)
			}
			assert.LessOrEqual(t, maxSize-minSize, 1, "n=%d count=%d", n, count)
		}
	}
}

func TestShareSingleTaskReturnsAll(t *testing.T) {
	items := []string{"a", "b", "c"}
	share, err := Share(items, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, items, share)
}

func TestShareMoreTasksThanItems(t *testing.T) {
	items := seq(3)
	for id := 3; id < 8; id++ {
		share, err := Share(items, id, 8)
		require.NoError(t, err)
		assert.Empty(t, share, "task %d", id)
	}
}

func TestShareEmptyInput(t *testing.T) {
	for id := 0; id < 4; id++ {
		share, err := Share([]int{}, id, 4)
		require.NoError(t, err)
		assert.Empty(t, share)
	}
}

func TestSizes(t *testing.T) {
	assert.Equal(t, []int{5, 5, 5, 4, 4}, Sizes(23, 5))
	assert.Equal(t, []int{1, 1, 1, 0}, Sizes(3, 4))
	assert.Equal(t, []int{14}, Sizes(14, 1))
	assert.Nil(t, Sizes(10, 0))
}

func TestBounds(t *testing.T) {
	tests := []struct {
		n, id, count int
		start, end   int
	}{
		{23, 0, 5, 0, 5},
		{23, 2, 5, 10, 15},
		{23, 3, 5, 15, 19},
		{23, 4, 5, 19, 23},
		{14, 3, 4, 11, 14},
		{2, 5, 6, 2, 2},
	}
	for _, tt := range tests {
		start, end := Bounds(tt.n, tt.id, tt.count)
		assert.Equal(t, tt.start, start, "%+v", tt)
		assert.Equal(t, tt.end, end, "%+v", tt)
	}
}

func TestShareInvalidTask(t *testing.T) {
	cases := []struct{ id, count int }{{0, 0}, {-1, 3}, {3, 3}, {7, 2}}
	for _, c := range cases {
		_, err := Share(seq(5), c.id, c.count)
		assert.True(t, errors.Is(err, ErrInvalidTask), "id=%d count=%d", c.id, c.count)
	}
}

func TestShareDoesNotLeakCapacity(t *testing.T) {
	items := seq(10)
	share, err := Share(items, 0, 2)
	require.NoError(t, err)
	share = append(share, 99)
	assert.Equal(t, 5, items[5], "appending to a share must not overwrite the next share")
}

func TestSplit(t *testing.T) {
	parts, err := Split(seq(23), 5)
	require.NoError(t, err)
	require.Len(t, parts, 5)
	for id, p := range parts {
		assert.Equal(t, id, p.TaskID)
		assert.Equal(t, 5, p.TaskCount)
	}
	assert.Equal(t, []int{19, 20, 21, 22}, parts[4].Items)

	_, err = Split(seq(3), 0)
	assert.ErrorIs(t, err, ErrInvalidTask)
}
