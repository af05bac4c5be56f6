package intake

import (
	"fmt"
	"testing"
)

func TestDedupCache_SeenAndMark(t *testing.T) {
	cache := NewDedupCache(10)

	if cache.Seen("ev-1") {
		t.Error("fresh cache should not report ev-1 as seen")
	}

	cache.MarkSeen("ev-1")

	if !cache.Seen("ev-1") {
		t.Error("expected ev-1 to be seen after marking")
	}
	if cache.Seen("ev-2") {
		t.Error("ev-2 was never marked")
	}
}

func TestDedupCache_EvictionBoundary(t *testing.T) {
	const capacity = 5
	cache := NewDedupCache(capacity)

	for i := 0; i < capacity; i++ {
		cache.MarkSeen(fmt.Sprintf("ev-%d", i))
	}
	if cache.Len() != capacity {
		t.Fatalf("len = %d, want %d", cache.Len(), capacity)
	}

	// One more insert evicts exactly the first-inserted key.
	cache.MarkSeen("ev-overflow")

	if cache.Len() != capacity {
		t.Errorf("len = %d after overflow, want %d", cache.Len(), capacity)
	}
	if cache.Seen("ev-0") {
		t.Error("oldest key ev-0 should have been evicted")
	}
	for i := 1; i < capacity; i++ {
		if !cache.Seen(fmt.Sprintf("ev-%d", i)) {
			t.Errorf("ev-%d should still be present", i)
		}
	}
	if !cache.Seen("ev-overflow") {
		t.Error("newly inserted key should be present")
	}
}

func TestDedupCache_NoRefreshOnRemark(t *testing.T) {
	cache := NewDedupCache(3)

	cache.MarkSeen("a")
	cache.MarkSeen("b")
	cache.MarkSeen("c")

	// Re-marking "a" must not move it to the back of the eviction order.
	cache.MarkSeen("a")
	cache.MarkSeen("d")

	if cache.Seen("a") {
		t.Error("a should have been evicted despite being re-marked")
	}
	if !cache.Seen("b") || !cache.Seen("c") || !cache.Seen("d") {
		t.Error("b, c, d should all be present")
	}
}

func TestDedupCache_MinimumCapacity(t *testing.T) {
	cache := NewDedupCache(0)
	cache.MarkSeen("x")
	if !cache.Seen("x") {
		t.Error("cache with clamped capacity should still hold one key")
	}
}
