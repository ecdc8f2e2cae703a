package cache

import (
	"sync"
	"testing"
	"time"
)

func TestTTL_GetMiss(t *testing.T) {
	c := NewTTL[string, int](time.Minute)
	if _, _, ok := c.Get("missing"); ok {
		t.Error("Get() ok = true for missing key")
	}
}

func TestTTL_SetAndGetFresh(t *testing.T) {
	c := NewTTL[string, int](time.Minute)
	c.Set("k", 42)

	v, fresh, ok := c.Get("k")
	if !ok || !fresh {
		t.Errorf("Get() = (_, fresh=%v, ok=%v), want fresh and ok", fresh, ok)
	}
	if v != 42 {
		t.Errorf("Get() value = %d, want 42", v)
	}
}

func TestTTL_StaleValueStillReadable(t *testing.T) {
	c := NewTTL[string, int](time.Nanosecond)
	c.Set("k", 42)
	time.Sleep(time.Millisecond)

	v, fresh, ok := c.Get("k")
	if !ok {
		t.Fatal("Get() ok = false for stale entry, want the stale fallback")
	}
	if fresh {
		t.Error("Get() fresh = true for expired entry")
	}
	if v != 42 {
		t.Errorf("Get() stale value = %d, want 42", v)
	}
}

func TestTTL_SetRestartsFreshness(t *testing.T) {
	c := NewTTL[string, int](50 * time.Millisecond)
	c.Set("k", 1)
	time.Sleep(60 * time.Millisecond)
	c.Set("k", 2)

	v, fresh, ok := c.Get("k")
	if !ok || !fresh || v != 2 {
		t.Errorf("Get() = (%d, fresh=%v, ok=%v), want (2, true, true)", v, fresh, ok)
	}
}

func TestTTL_Invalidate(t *testing.T) {
	c := NewTTL[string, int](time.Minute)
	c.Set("k", 42)
	c.Invalidate("k")
	if _, _, ok := c.Get("k"); ok {
		t.Error("Get() ok = true after Invalidate")
	}
}

func TestTTL_Purge(t *testing.T) {
	c := NewTTL[string, int](time.Nanosecond)
	c.Set("old", 1)
	time.Sleep(5 * time.Millisecond)
	c.Set("new", 2)

	c.Purge(2 * time.Millisecond)
	if _, _, ok := c.Get("old"); ok {
		t.Error("old entry survived Purge")
	}
	if _, _, ok := c.Get("new"); !ok {
		t.Error("recent entry removed by Purge")
	}
}

func TestTTL_ConcurrentAccess(t *testing.T) {
	c := NewTTL[int, int](time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set(n, j)
				c.Get(n)
			}
		}(i)
	}
	wg.Wait()
	if c.Len() != 16 {
		t.Errorf("Len() = %d, want 16", c.Len())
	}
}
