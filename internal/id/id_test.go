package id

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LengthAndUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		u := New()
		require.Len(t, u, 26)
		assert.False(t, seen[u], "duplicate ULID %s", u)
		seen[u] = true
	}
}

func TestNew_MonotonicWithinRun(t *testing.T) {
	ids := make([]string, 100)
	for i := range ids {
		ids[i] = New()
	}
	assert.True(t, sort.StringsAreSorted(ids), "ULIDs should be lexicographically increasing")
}
