package partition

import (
	"strconv"
	"testing"
)

func TestFor_Determinism(t *testing.T) {
	// Same input must always produce the same partition.
	id := For("user-abc")
	for i := 0; i < 100; i++ {
		if got := For("user-abc"); got != id {
			t.Fatalf("For(\"user-abc\") = %d on iteration %d, want %d", got, i, id)
		}
	}
}

func TestFor_Range(t *testing.T) {
	// All outputs must be in [0, Count).
	inputs := []string{"", "1", "2", "user-2", "very-long-user-id-that-should-still-hash-correctly"}
	for _, s := range inputs {
		p := For(s)
		if p < 0 || p >= Count {
			t.Errorf("For(%q) = %d, want [0, %d)", s, p, Count)
		}
	}
}

func TestFor_Distribution(t *testing.T) {
	// With 256 buckets and 1000 keys the expected unique count is ~248;
	// 100 is a very conservative floor.
	seen := make(map[int]struct{})
	for i := 0; i < 1000; i++ {
		seen[For("user-"+strconv.Itoa(i))] = struct{}{}
	}
	if len(seen) < 100 {
		t.Errorf("only %d distinct partitions from 1000 inputs, want >= 100", len(seen))
	}
}

func TestShard(t *testing.T) {
	if got := Shard("user-1", 0); got != 0 {
		t.Errorf("Shard with n=0 = %d, want 0", got)
	}
	if got := Shard("user-1", 1); got != 0 {
		t.Errorf("Shard with n=1 = %d, want 0", got)
	}

	hits := make(map[int]int)
	for i := 0; i < 500; i++ {
		s := Shard("user-"+strconv.Itoa(i), 4)
		if s < 0 || s >= 4 {
			t.Fatalf("Shard out of range: %d", s)
		}
		hits[s]++
	}
	if len(hits) != 4 {
		t.Errorf("expected all 4 shards used, got %v", hits)
	}
}
