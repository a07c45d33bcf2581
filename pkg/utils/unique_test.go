package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnique(t *testing.T) {
	t.Run("fifo keeps first occurrences", func(t *testing.T) {
		assert.Equal(t, []string{"a", "b", "c"}, Unique([]string{"a", "b", "a", "c", "b"}, false /*lifo*/))
	})

	t.Run("lifo keeps last occurrences", func(t *testing.T) {
		assert.Equal(t, []string{"a", "c", "b"}, Unique([]string{"a", "b", "a", "c", "b"}, true /*lifo*/))
	})

	t.Run("already unique input is unchanged", func(t *testing.T) {
		assert.Equal(t, []int{1, 2, 3}, Unique([]int{1, 2, 3}, false))
		assert.Equal(t, []int{1, 2, 3}, Unique([]int{1, 2, 3}, true))
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, Unique([]int{}, false))
		assert.Empty(t, Unique([]int{}, true))
	})
}
