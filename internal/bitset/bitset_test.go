package bitset

import "testing"

func TestSetGet(t *testing.T) {
	tests := []struct {
		name string
		ids  []int64
		want int64
	}{
		{name: "zero", ids: []int64{0}, want: 0},
		{name: "within first segment", ids: []int64{1, 2, 3}, want: 2},
		{name: "segment boundary", ids: []int64{segmentBits - 1, segmentBits, segmentBits + 1}, want: segmentBits},
		{name: "sparse large id", ids: []int64{9_000_000_000}, want: 9_000_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New()
			for _, id := range tt.ids {
				tr.Set(id)
			}
			if !tr.Get(tt.want) {
				t.Errorf("Get(%d) = false, want true after setting %v", tt.want, tt.ids)
			}
		})
	}
}

func TestGetUnsetReadsZero(t *testing.T) {
	tr := New()
	if tr.Get(42) {
		t.Error("Get on empty tracker = true, want false")
	}
	tr.Set(100)
	if tr.Get(42) {
		t.Error("Get(42) = true after setting an unrelated id, want false")
	}
}

func TestSetIsIdempotent(t *testing.T) {
	tr := New()
	tr.Set(5)
	tr.Set(5)
	tr.Set(5)
	if got := tr.Count(); got != 1 {
		t.Errorf("Count() = %d after three Set(5) calls, want 1", got)
	}
}

func TestClearPreservesSegments(t *testing.T) {
	tr := New()
	tr.Set(10)
	tr.Set(segmentBits + 10)
	segsBefore := tr.Segments()

	tr.Clear()

	if tr.Get(10) || tr.Get(segmentBits+10) {
		t.Error("Clear() left bits set")
	}
	if got := tr.Count(); got != 0 {
		t.Errorf("Count() = %d after Clear(), want 0", got)
	}
	if got := tr.Segments(); got != segsBefore {
		t.Errorf("Segments() = %d after Clear(), want %d (segments must not be freed)", got, segsBefore)
	}
}

func TestSegmentsLazilyAllocated(t *testing.T) {
	tr := New()
	if got := tr.Segments(); got != 0 {
		t.Errorf("Segments() = %d on empty tracker, want 0", got)
	}
	tr.Set(segmentBits*3 + 5)
	if got := tr.Segments(); got != 1 {
		t.Errorf("Segments() = %d after setting one far id, want 1 (sparse segments stay unallocated)", got)
	}
}
