package datasource

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ident(s string) string { return s }

func TestCacheFirstSnapshotIsAllNew(t *testing.T) {
	c := NewCache(ident, 0)
	delta := c.Apply([]string{"c", "b", "a"}, time.Now())

	assert.Equal(t, []string{"c", "b", "a"}, delta)
	assert.Equal(t, []string{"c", "b", "a"}, c.Items())
}

func TestCachePrependsItemsAboveHead(t *testing.T) {
	c := NewCache(ident, 0)
	c.Apply([]string{"c", "b", "a"}, time.Now())

	delta := c.Apply([]string{"e", "d", "c", "b"}, time.Now())

	assert.Equal(t, []string{"e", "d"}, delta)
	assert.Equal(t, []string{"e", "d", "c", "b", "a"}, c.Items())
}

func TestCacheUnchangedSnapshotHasNoDelta(t *testing.T) {
	c := NewCache(ident, 0)
	c.Apply([]string{"b", "a"}, time.Now())

	delta := c.Apply([]string{"b", "a"}, time.Now())

	assert.Empty(t, delta)
	assert.Equal(t, []string{"b", "a"}, c.Items())
}

func TestCacheReplacesWhenHeadMissing(t *testing.T) {
	c := NewCache(ident, 0)
	c.Apply([]string{"b", "a"}, time.Now())

	delta := c.Apply([]string{"z", "y"}, time.Now())

	assert.Equal(t, []string{"z", "y"}, delta)
	assert.Equal(t, []string{"z", "y"}, c.Items())
}

func TestCacheEmptySnapshotKeepsItems(t *testing.T) {
	c := NewCache(ident, 0)
	first := time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)
	c.Apply([]string{"b", "a"}, first)

	later := first.Add(time.Minute)
	delta := c.Apply(nil, later)

	assert.Empty(t, delta)
	assert.Equal(t, []string{"b", "a"}, c.Items())
	assert.Equal(t, later, c.LastFetch())
}

func TestCacheTrimsTail(t *testing.T) {
	c := NewCache(ident, 3)
	c.Apply([]string{"c", "b", "a"}, time.Now())

	delta := c.Apply([]string{"e", "d", "c"}, time.Now())

	assert.Equal(t, []string{"e", "d"}, delta)
	assert.Equal(t, []string{"e", "d", "c"}, c.Items())
	assert.Equal(t, 3, c.Len())
}

func TestCacheReadResetsCount(t *testing.T) {
	c := NewCache(ident, 0)
	at := time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)
	c.Apply([]string{"b", "a"}, at)

	items, count, last := c.Read()
	assert.Equal(t, []string{"b", "a"}, items)
	assert.Equal(t, 2, count)
	assert.Equal(t, at, last)

	_, count, _ = c.Read()
	assert.Equal(t, 0, count)
}

func TestCacheCountIsLatestDelta(t *testing.T) {
	c := NewCache(ident, 0)
	c.Apply([]string{"b", "a"}, time.Now())
	c.Apply([]string{"c", "b"}, time.Now())

	_, count, _ := c.Read()
	assert.Equal(t, 1, count)
}

func TestCacheDeltaDoesNotAliasSnapshot(t *testing.T) {
	c := NewCache(ident, 0)
	snap := []string{"b", "a"}
	delta := c.Apply(snap, time.Now())
	snap[0] = "mutated"

	require.Len(t, delta, 2)
	assert.Equal(t, "b", delta[0])
	head, ok := c.Head()
	require.True(t, ok)
	assert.Equal(t, "b", head)
}

// The provider serves a sliding window over a growing stream; each cycle
// adds fewer items than the window, so the cached head is always in view.
func TestCacheAccumulatesDistinctKeysAcrossCycles(t *testing.T) {
	cases := []struct {
		name     string
		window   int
		arrivals []int
	}{
		{"steady", 5, []int{2, 2, 2, 2}},
		{"bursty with quiet cycles", 6, []int{0, 5, 0, 1, 3, 0}},
		{"one at a time", 3, []int{1, 1, 1, 1, 1, 1, 1}},
	}

	key := func(i int) string { return fmt.Sprintf("k%03d", i) }

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCache(ident, 0)
			produced := tc.window
			snapshot := func() []string {
				out := make([]string, 0, tc.window)
				for i := produced - 1; i >= 0 && len(out) < tc.window; i-- {
					out = append(out, key(i))
				}
				return out
			}

			delivered := c.Apply(snapshot(), time.Now())
			for _, n := range tc.arrivals {
				produced += n
				delta := c.Apply(snapshot(), time.Now())
				assert.Len(t, delta, n)
				delivered = append(delivered, delta...)
			}

			want := make([]string, 0, produced)
			for i := produced - 1; i >= 0; i-- {
				want = append(want, key(i))
			}
			assert.Equal(t, want, c.Items())

			seen := make(map[string]bool, len(delivered))
			for _, k := range delivered {
				assert.False(t, seen[k], "delivered twice: %s", k)
				seen[k] = true
			}
			assert.Len(t, seen, produced)
		})
	}
}
