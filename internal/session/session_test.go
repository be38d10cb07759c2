package session

import (
	"testing"
	"time"
)

func TestBoundaryLatch(t *testing.T) {
	b := NewBoundary()
	if _, set := b.Cutoff(); set {
		t.Fatalf("boundary set before first tick")
	}
	if b.IsLive(time.UnixMilli(999_999)) {
		t.Fatalf("unset boundary reported live")
	}

	first := time.UnixMilli(150).UTC()
	b.ObserveTick(first)
	b.ObserveTick(time.UnixMilli(100).UTC()) // late tick must not move the latch
	b.ObserveTick(time.UnixMilli(900).UTC())

	cut, set := b.Cutoff()
	if !set || !cut.Equal(first) {
		t.Fatalf("cutoff = %v set=%v, want %v", cut, set, first)
	}
	if b.IsLive(time.UnixMilli(150).UTC()) {
		t.Fatalf("close at boundary must be replay")
	}
	if b.IsLive(time.UnixMilli(100).UTC()) {
		t.Fatalf("close before boundary must be replay")
	}
	if !b.IsLive(time.UnixMilli(151).UTC()) {
		t.Fatalf("close after boundary must be live")
	}
}

func TestBoundaryReset(t *testing.T) {
	b := NewBoundary()
	b.ObserveTick(time.UnixMilli(150).UTC())
	b.Reset()
	if _, set := b.Cutoff(); set {
		t.Fatalf("boundary survived reset")
	}
	b.ObserveTick(time.UnixMilli(500).UTC())
	cut, _ := b.Cutoff()
	if !cut.Equal(time.UnixMilli(500).UTC()) {
		t.Fatalf("relatch after reset = %v", cut)
	}
}

func TestDetectorMonotonicity(t *testing.T) {
	d := NewDetector()
	var completed []int
	for _, idx := range []int{0, 0, 0, 1, 1, 2, 5} {
		if c, ok := d.OnFeedAdvance(idx); ok {
			completed = append(completed, c)
		}
	}
	want := []int{0, 1, 4}
	if len(completed) != len(want) {
		t.Fatalf("completed = %v, want %v", completed, want)
	}
	for i := range want {
		if completed[i] != want[i] {
			t.Fatalf("completed = %v, want %v", completed, want)
		}
	}
}

func TestDetectorIgnoresRegression(t *testing.T) {
	d := NewDetector()
	d.OnFeedAdvance(3)
	if _, ok := d.OnFeedAdvance(2); ok {
		t.Fatalf("regressing index reported a completion")
	}
	if _, ok := d.OnFeedAdvance(3); ok {
		t.Fatalf("repeated index reported a completion")
	}
	if c, ok := d.OnFeedAdvance(4); !ok || c != 3 {
		t.Fatalf("advance after regression = %d ok=%v", c, ok)
	}
}

func TestDetectorReset(t *testing.T) {
	d := NewDetector()
	d.OnFeedAdvance(5)
	d.Reset()
	if _, ok := d.OnFeedAdvance(0); ok {
		t.Fatalf("first bar after reset cannot complete anything")
	}
	if c, ok := d.OnFeedAdvance(1); !ok || c != 0 {
		t.Fatalf("post-reset advance = %d ok=%v", c, ok)
	}
}
