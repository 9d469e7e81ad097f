package cache

import (
	"testing"
	"time"
)

func TestLRU_GetSet(t *testing.T) {
	c := NewLRU[string](2, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("Get() on empty cache reported a hit")
	}

	c.Set("a", "alpha")
	if v, ok := c.Get("a"); !ok || v != "alpha" {
		t.Errorf("Get(a) = %q, %v", v, ok)
	}

	c.Set("a", "updated")
	if v, _ := c.Get("a"); v != "updated" {
		t.Errorf("Get(a) after update = %q", v)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d after updating the same key", c.Size())
	}
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	// Touch a so b becomes the eviction candidate.
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("least recently used entry survived eviction")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("recently used entry was evicted")
	}
}

func TestLRU_Expiry(t *testing.T) {
	c := NewLRU[int](10, 10*time.Millisecond)
	c.Set("a", 1)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("a"); ok {
		t.Error("expired entry reported as a hit")
	}
}

func TestLRU_DeletePrefix(t *testing.T) {
	c := NewLRU[int](10, time.Minute)
	c.Set("u1:2024-03", 1)
	c.Set("u1:2024-04", 2)
	c.Set("u2:2024-03", 3)

	if removed := c.DeletePrefix("u1:"); removed != 2 {
		t.Errorf("DeletePrefix() = %d, want 2", removed)
	}
	if _, ok := c.Get("u1:2024-03"); ok {
		t.Error("prefixed entry survived DeletePrefix")
	}
	if _, ok := c.Get("u2:2024-03"); !ok {
		t.Error("unrelated entry was removed")
	}
}
