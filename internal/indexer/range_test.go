package indexer

import (
	"math"
	"reflect"
	"testing"
)

func TestSplitRange(t *testing.T) {
	cases := []struct {
		name      string
		from, to  uint64
		batchSize uint64
		want      []BlockRange
	}{
		{"even batches", 100, 105, 2, []BlockRange{{100, 101}, {102, 103}, {104, 105}}},
		{"short tail", 100, 104, 2, []BlockRange{{100, 101}, {102, 103}, {104, 104}}},
		{"single block", 5, 5, 10, []BlockRange{{5, 5}}},
		{"batch wider than window", 10, 12, 2000, []BlockRange{{10, 12}}},
		{"top of uint64", math.MaxUint64 - 2, math.MaxUint64, 2, []BlockRange{{math.MaxUint64 - 2, math.MaxUint64 - 1}, {math.MaxUint64, math.MaxUint64}}},
	}
	for _, tc := range cases {
		got, err := SplitRange(tc.from, tc.to, tc.batchSize)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: ranges mismatch: %+v != %+v", tc.name, got, tc.want)
		}
	}
}

func TestSplitRangeInvalid(t *testing.T) {
	if _, err := SplitRange(10, 9, 1); err == nil {
		t.Fatalf("expected error for inverted range")
	}
	if _, err := SplitRange(1, 9, 0); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
}

func TestResumeMidBatch(t *testing.T) {
	// A run with batch size 5 from block 100 stopped after checkpointing 103
	// (a shortened final batch); the next run must not re-read 100..103.
	from := ResumeFrom(100, 103, true)
	if from != 104 {
		t.Fatalf("resume from %d", from)
	}
	got, err := SplitRange(from, 112, 5)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	want := []BlockRange{{104, 108}, {109, 112}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
}

func TestResumeFrom(t *testing.T) {
	if got := ResumeFrom(100, 0, false); got != 100 {
		t.Fatalf("no checkpoint: %d", got)
	}
	if got := ResumeFrom(100, 42, true); got != 100 {
		t.Fatalf("checkpoint behind start should be ignored: %d", got)
	}
	if got := ResumeFrom(100, 100, true); got != 101 {
		t.Fatalf("checkpoint at start: %d", got)
	}
}
