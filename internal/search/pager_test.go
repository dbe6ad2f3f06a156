package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func numbers(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func TestPager_TotalPages(t *testing.T) {
	testCases := []struct {
		count    int
		expected int
	}{
		{0, 0}, {1, 1}, {4, 1}, {5, 1}, {6, 2}, {10, 2}, {11, 3}, {23, 5},
	}

	for _, tc := range testCases {
		p := NewPager[int](5)
		p.Reset(numbers(tc.count))
		assert.Equal(t, tc.expected, p.TotalPages(), "count=%d", tc.count)
		assert.Equal(t, tc.count > 0, p.Visible(), "count=%d", tc.count)
	}
}

func TestPager_NavigationIsClamped(t *testing.T) {
	p := NewPager[int](5)
	p.Reset(numbers(12))

	assert.False(t, p.Prev(), "previous on page 1 is a no-op")
	assert.Equal(t, 1, p.Page())
	assert.Equal(t, []int{1, 2, 3, 4, 5}, p.Current())

	assert.True(t, p.Next())
	assert.True(t, p.Next())
	assert.Equal(t, 3, p.Page())
	assert.Equal(t, []int{11, 12}, p.Current())

	assert.False(t, p.Next(), "next on the last page is a no-op")
	assert.Equal(t, 3, p.Page())

	assert.True(t, p.Prev())
	assert.Equal(t, []int{6, 7, 8, 9, 10}, p.Current())
}

func TestPager_ResetReturnsToFirstPage(t *testing.T) {
	p := NewPager[string](2)
	p.Reset([]string{"c", "a", "b"})
	p.Next()

	p.Reset([]string{"z", "y"})
	assert.Equal(t, 1, p.Page())
	assert.Equal(t, []string{"z", "y"}, p.Current(), "insertion order is preserved")
}

func TestPager_EmptyAndGoTo(t *testing.T) {
	p := NewPager[int](0)
	assert.Equal(t, DefaultPageSize, p.PageSize())
	assert.Nil(t, p.Current())
	assert.False(t, p.Next())

	p.Reset(numbers(11))
	p.GoTo(99)
	assert.Equal(t, 3, p.Page())
	p.GoTo(-4)
	assert.Equal(t, 1, p.Page())
}

func TestPager_Find(t *testing.T) {
	p := NewPager[int](5)
	p.Reset(numbers(8))

	v, ok := p.Find(func(n int) bool { return n == 7 })
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	_, ok = p.Find(func(n int) bool { return n == 70 })
	assert.False(t, ok)
}
