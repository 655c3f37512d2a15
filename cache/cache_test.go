package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type item struct {
	key   string
	value int
}

func newItemCache(capacity int) *Cache[string, item] {
	return New(capacity, func(i item) string {
		return i.key
	})
}

func TestCacheInsert(t *testing.T) {
	t.Run("inserted entries are retrievable", func(t *testing.T) {
		c := newItemCache(4)
		c.Insert(item{key: "a", value: 1}, item{key: "b", value: 2})

		require.Equal(t, 2, c.Len())
		require.True(t, c.Contains("a"))
		require.True(t, c.Contains("b"))
		require.False(t, c.Contains("c"))
	})

	t.Run("insert overwrites an existing key", func(t *testing.T) {
		c := newItemCache(4)
		c.Insert(item{key: "a", value: 1})
		c.Insert(item{key: "a", value: 2})

		require.Equal(t, 1, c.Len())
	})

	t.Run("insert does not enforce capacity", func(t *testing.T) {
		c := newItemCache(2)
		c.Insert(
			item{key: "a"},
			item{key: "b"},
			item{key: "c"},
			item{key: "d"},
		)

		require.Equal(t, 4, c.Len())
	})
}

func TestCachePurge(t *testing.T) {
	t.Run("entries never marked are removed", func(t *testing.T) {
		c := newItemCache(4)
		c.Insert(item{key: "a"}, item{key: "b"})

		removed := c.Purge()

		require.Len(t, removed, 2)
		require.Equal(t, 0, c.Len())
	})

	t.Run("only unmarked entries are removed", func(t *testing.T) {
		c := newItemCache(4)
		c.Insert(item{key: "a"}, item{key: "b"}, item{key: "c"})

		c.Visit(func(i item) bool {
			return i.key != "b"
		})
		removed := c.Purge()

		require.Len(t, removed, 1)
		require.Equal(t, "b", removed[0].key)
		require.True(t, c.Contains("a"))
		require.True(t, c.Contains("c"))
	})

	t.Run("a later pass overrides an earlier mark", func(t *testing.T) {
		c := newItemCache(4)
		c.Insert(item{key: "a"})

		c.Visit(func(item) bool { return true })
		c.Visit(func(item) bool { return false })
		removed := c.Purge()

		require.Len(t, removed, 1)
		require.Equal(t, 0, c.Len())
	})

	t.Run("overwriting an entry resets its mark", func(t *testing.T) {
		c := newItemCache(4)
		c.Insert(item{key: "a", value: 1})
		c.Visit(func(item) bool { return true })
		c.Insert(item{key: "a", value: 2})

		removed := c.Purge()

		require.Len(t, removed, 1)
		require.Equal(t, 2, removed[0].value)
		require.Equal(t, 0, c.Len())
	})

	t.Run("ties within one pass are broken by insertion recency", func(t *testing.T) {
		c := newItemCache(2)
		c.Insert(item{key: "a"}, item{key: "b"}, item{key: "c"})

		c.Visit(func(item) bool { return true })
		removed := c.Purge()

		require.Len(t, removed, 1)
		require.Equal(t, "a", removed[0].key)
		require.True(t, c.Contains("b"))
		require.True(t, c.Contains("c"))
	})

	t.Run("purge leaves at most capacity entries", func(t *testing.T) {
		c := newItemCache(3)
		for _, k := range []string{"a", "b", "c", "d", "e", "f", "g"} {
			c.Insert(item{key: k})
		}

		c.Visit(func(item) bool { return true })
		removed := c.Purge()

		require.Len(t, removed, 4)
		require.Equal(t, 3, c.Len())
	})
}

func TestCacheSetCapacity(t *testing.T) {
	c := newItemCache(4)
	c.Insert(item{key: "a"}, item{key: "b"}, item{key: "c"})
	c.Visit(func(item) bool { return true })

	c.SetCapacity(1)
	require.Equal(t, 1, c.Capacity())

	// Shrinking does not evict until the next purge.
	require.Equal(t, 3, c.Len())

	c.Purge()
	require.Equal(t, 1, c.Len())
	require.True(t, c.Contains("c"))
}
