package ring_test

import (
	"testing"

	"github.com/ortizmas/whats-send/ring"
)

func TestSelect_Deterministic(t *testing.T) {
	candidates := []string{"worker-a", "worker-b", "worker-c", "worker-d"}
	keys := []string{"bot1", "bot2", "session-long-key", "", "áéí"}

	for _, key := range keys {
		first, ok := ring.Select(key, candidates)
		if !ok {
			t.Fatalf("Select(%q) reported no selection with non-empty candidates", key)
		}
		for range 50 {
			got, _ := ring.Select(key, candidates)
			if got != first {
				t.Fatalf("Select(%q) = %q, want stable %q", key, got, first)
			}
		}
	}
}

func TestSelect_SingleCandidate(t *testing.T) {
	for _, key := range []string{"a", "bot1", "", "anything at all"} {
		got, ok := ring.Select(key, []string{"only"})
		if !ok || got != "only" {
			t.Errorf("Select(%q, [only]) = (%q, %v), want (only, true)", key, got, ok)
		}
	}
}

func TestSelect_EmptyCandidates(t *testing.T) {
	if got, ok := ring.Select("bot1", nil); ok || got != "" {
		t.Errorf("Select with no candidates = (%q, %v), want (\"\", false)", got, ok)
	}
	if _, ok := ring.Select("bot1", []string{}); ok {
		t.Error("Select with empty slice reported a selection")
	}
}

func TestSelect_OrderSensitive(t *testing.T) {
	// Placement is defined over the candidate ordering; a key's index is
	// fixed, so reordering the list may move the key. Verify the index
	// itself is what is stable.
	candidates := []string{"w1", "w2", "w3"}
	key := "bot1"

	want := int(abs32(ring.Hash(key))) % len(candidates)
	got, _ := ring.Select(key, candidates)
	if got != candidates[want] {
		t.Errorf("Select(%q) = %q, want candidates[%d] = %q", key, got, want, candidates[want])
	}
}

func TestSelect_SpreadsAcrossCandidates(t *testing.T) {
	candidates := []string{"w1", "w2", "w3", "w4", "w5"}
	hits := make(map[string]int)
	for i := range 1000 {
		got, _ := ring.Select("session-"+string(rune('a'+i%26))+string(rune('a'+i/26)), candidates)
		hits[got]++
	}
	if len(hits) < 2 {
		t.Errorf("all keys mapped to a single candidate: %v", hits)
	}
}

func abs32(h uint32) uint32 {
	s := int32(h)
	if s < 0 {
		return uint32(-int64(s))
	}
	return uint32(s)
}
