package overlay

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeKey(t *testing.T) {
	a := NewScopeKey()
	b := NewScopeKey()
	assert.NotEqual(t, a, b)

	parsed, err := ParseScopeKey(a.String())
	require.NoError(t, err)
	assert.Equal(t, a, parsed)

	_, err = ParseScopeKey("not-a-key")
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	t.Run("create if absent", func(t *testing.T) {
		r := NewRegistry(RegistryConfig{})
		key := NewScopeKey()

		s1, err := r.ForScope(key)
		require.NoError(t, err)
		s2, err := r.ForScope(key)
		require.NoError(t, err)
		assert.Same(t, s1, s2)
		assert.Equal(t, key, s1.Key())
		assert.Equal(t, 1, r.Len())

		found, ok := r.Lookup(key)
		assert.True(t, ok)
		assert.Same(t, s1, found)
	})

	t.Run("evict discards state", func(t *testing.T) {
		r := NewRegistry(RegistryConfig{})
		key := NewScopeKey()
		s1, err := r.ForScope(key)
		require.NoError(t, err)
		s1.Store().CreateNode()

		s1.NodeFilter().Activate([]int64{1})
		s1.Views().Put("v", [][]int64{{1}})

		assert.True(t, r.Evict(key))
		assert.False(t, r.Evict(key))
		_, ok := r.Lookup(key)
		assert.False(t, ok)

		assert.True(t, s1.Closed())
		assert.Empty(t, s1.Store().NodeIDs(), "evicted scope is torn down in place")
		assert.True(t, s1.NodeFilter().Unused())
		assert.Equal(t, 0, s1.Views().Len())

		s2, err := r.ForScope(key)
		require.NoError(t, err)
		assert.NotSame(t, s1, s2)
		assert.Empty(t, s2.Store().NodeIDs())
	})

	t.Run("max scopes", func(t *testing.T) {
		r := NewRegistry(RegistryConfig{MaxScopes: 2})
		k1, k2 := NewScopeKey(), NewScopeKey()
		_, err := r.ForScope(k1)
		require.NoError(t, err)
		_, err = r.ForScope(k2)
		require.NoError(t, err)

		_, err = r.ForScope(NewScopeKey())
		assert.ErrorIs(t, err, ErrTooManyScopes)

		_, err = r.ForScope(k1)
		assert.NoError(t, err, "existing scopes are still reachable")

		r.Evict(k2)
		_, err = r.ForScope(NewScopeKey())
		assert.NoError(t, err)
		assert.Len(t, r.Keys(), 2)
	})

	t.Run("concurrent first touch yields one scope", func(t *testing.T) {
		r := NewRegistry(RegistryConfig{})
		key := NewScopeKey()

		var wg sync.WaitGroup
		scopes := make([]*Scope, 16)
		for i := range scopes {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				s, err := r.ForScope(key)
				assert.NoError(t, err)
				scopes[i] = s
			}(i)
		}
		wg.Wait()

		for _, s := range scopes {
			assert.Same(t, scopes[0], s)
		}
		assert.Equal(t, 1, r.Len())
	})
}

func TestScopeStats(t *testing.T) {
	s := NewScope(NewScopeKey(), 0)
	s.Store().CreateNode()
	s.NodeFilter().Activate([]int64{1, 2})
	s.Views().Put("v", [][]int64{{1}})

	stats := s.Stats()
	assert.Equal(t, s.Key().String(), stats.Key)
	assert.Equal(t, 1, stats.Virtual.Nodes)
	assert.Equal(t, 2, stats.NodeFilterSize)
	assert.True(t, stats.NodeFilterActive)
	assert.False(t, stats.RelFilterActive)
	assert.Equal(t, 1, stats.CachedViews)
}

func TestViewCache(t *testing.T) {
	t.Run("put and get", func(t *testing.T) {
		c := NewViewCache(0)
		_, ok := c.Get("friends")
		assert.False(t, ok)

		c.Put("friends", [][]int64{{3, 1, -2, 1}, {}})
		sets, ok := c.Get("friends")
		require.True(t, ok)
		assert.Equal(t, [][]int64{{-2, 1, 3}, {}}, sets)
		assert.True(t, c.Contains("friends", -2))
		assert.False(t, c.Contains("friends", 2))
		assert.False(t, c.Contains("missing", 1))
	})

	t.Run("returned sets are copies", func(t *testing.T) {
		c := NewViewCache(0)
		c.Put("v", [][]int64{{1, 2}})
		sets, _ := c.Get("v")
		sets[0][0] = 99
		again, _ := c.Get("v")
		assert.Equal(t, []int64{1, 2}, again[0])
	})

	t.Run("replace keeps insertion order", func(t *testing.T) {
		c := NewViewCache(0)
		c.Put("a", nil)
		c.Put("b", nil)
		c.Put("a", [][]int64{{5}})
		assert.Equal(t, []string{"a", "b"}, c.Names())
		assert.Equal(t, 2, c.Len())
	})

	t.Run("bounded", func(t *testing.T) {
		c := NewViewCache(2)
		c.Put("a", nil)
		c.Put("b", nil)
		c.Put("c", nil)
		assert.Equal(t, []string{"b", "c"}, c.Names())
		_, ok := c.Get("a")
		assert.False(t, ok)
	})

	t.Run("delete and clear", func(t *testing.T) {
		c := NewViewCache(0)
		c.Put("a", nil)
		c.Put("b", nil)
		assert.True(t, c.Delete("a"))
		assert.False(t, c.Delete("a"))
		assert.Equal(t, []string{"b"}, c.Names())
		c.Clear()
		assert.Equal(t, 0, c.Len())
		assert.Empty(t, c.Names())
	})
}
