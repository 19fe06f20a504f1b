package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_BasicOperations(t *testing.T) {
	c := New(Config{DefaultTTL: time.Minute, MaxItems: 100})
	defer c.Close()

	t.Run("SetAndGet", func(t *testing.T) {
		c.Set("key1", "value1", 0)

		val, ok := c.Get("key1")
		assert.True(t, ok)
		assert.Equal(t, "value1", val)
	})

	t.Run("GetNonExistent", func(t *testing.T) {
		val, ok := c.Get("nonexistent")
		assert.False(t, ok)
		assert.Nil(t, val)
	})

	t.Run("UpdateExisting", func(t *testing.T) {
		c.Set("key2", "original", 0)
		c.Set("key2", "updated", 0)

		val, ok := c.Get("key2")
		assert.True(t, ok)
		assert.Equal(t, "updated", val)
	})

	t.Run("Delete", func(t *testing.T) {
		c.Set("key3", "value3", 0)
		c.Delete("key3")

		_, ok := c.Get("key3")
		assert.False(t, ok)
	})
}

func TestCache_Expiration(t *testing.T) {
	c := New(Config{DefaultTTL: time.Minute, MaxItems: 100})
	defer c.Close()

	c.Set("expiring", "value", 30*time.Millisecond)

	val, ok := c.Get("expiring")
	assert.True(t, ok)
	assert.Equal(t, "value", val)

	time.Sleep(40 * time.Millisecond)

	_, ok = c.Get("expiring")
	assert.False(t, ok)
}

func TestCache_Eviction(t *testing.T) {
	evicted := make(map[string]any)
	c := New(Config{
		DefaultTTL: time.Minute,
		MaxItems:   3,
		OnEviction: func(key string, value any) {
			evicted[key] = value
		},
	})
	defer c.Close()

	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("key%d", i), i, 0)
	}
	// key0 is the least recently used, key3 pushes it out.
	c.Set("key3", 3, 0)

	_, ok := c.Get("key0")
	assert.False(t, ok)
	assert.Contains(t, evicted, "key0")
	assert.Equal(t, 3, c.Size())

	for _, key := range []string{"key1", "key2", "key3"} {
		_, ok := c.Get(key)
		assert.True(t, ok, key)
	}
}

func TestCache_BackgroundSweep(t *testing.T) {
	c := New(Config{
		DefaultTTL:      10 * time.Millisecond,
		CleanupInterval: 20 * time.Millisecond,
		MaxItems:        100,
	})
	defer c.Close()

	c.Set("a", 1, 0)
	c.Set("b", 2, 0)

	assert.Eventually(t, func() bool {
		return c.Size() == 0
	}, time.Second, 10*time.Millisecond)
}
