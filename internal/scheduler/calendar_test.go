package scheduler

import (
	"errors"
	"math/rand"
	"testing"
	"time"
)

func TestCalendar_InsertRejectsOverlap(t *testing.T) {
	t.Parallel()

	var cal Calendar
	if err := cal.Insert("m-1", Interval{Start: at(9, 0), End: at(10, 0)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cal.Insert("m-2", Interval{Start: at(9, 30), End: at(10, 30)}); !errors.Is(err, ErrOverlap) {
		t.Fatalf("expected ErrOverlap, got %v", err)
	}
	if err := cal.Insert("m-3", Interval{Start: at(10, 0), End: at(11, 0)}); err != nil {
		t.Fatalf("expected adjacent slot to be accepted, got %v", err)
	}
	if err := cal.Insert("m-4", Interval{Start: at(7, 0), End: at(8, 0)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries := cal.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if !entries[i-1].Interval.Start.Before(entries[i].Interval.Start) {
			t.Fatalf("expected entries sorted by start, got %+v", entries)
		}
	}
}

func TestCalendar_IsFreeAndRemove(t *testing.T) {
	t.Parallel()

	cal, err := NewCalendar([]Commitment{
		commitment("a", InstructorResource("m"), at(9, 0), at(10, 0)),
		commitment("b", InstructorResource("m"), at(13, 0), at(14, 0)),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	slot := Interval{Start: at(9, 30), End: at(10, 30)}
	if cal.IsFree(slot, "") {
		t.Fatalf("expected slot to be busy")
	}
	if !cal.IsFree(slot, "a") {
		t.Fatalf("expected slot to be free when excluding its own session")
	}

	cal.Remove("a")
	cal.Remove("missing")
	if !cal.IsFree(slot, "") {
		t.Fatalf("expected slot to be free after removal")
	}
	if cal.Len() != 1 {
		t.Fatalf("expected 1 entry left, got %d", cal.Len())
	}
}

func TestCalendar_Gaps(t *testing.T) {
	t.Parallel()

	cal, err := NewCalendar([]Commitment{
		commitment("a", InstructorResource("m"), at(9, 0), at(10, 0)),
		commitment("b", InstructorResource("m"), at(10, 30), at(12, 0)),
		commitment("c", InstructorResource("m"), at(16, 0), at(19, 0)),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gaps := cal.Gaps(Interval{Start: at(8, 0), End: at(18, 0)}, time.Hour)
	want := []Interval{
		{Start: at(8, 0), End: at(9, 0)},
		{Start: at(12, 0), End: at(16, 0)},
	}
	if len(gaps) != len(want) {
		t.Fatalf("expected %d gaps, got %+v", len(want), gaps)
	}
	for i := range want {
		if !gaps[i].Start.Equal(want[i].Start) || !gaps[i].End.Equal(want[i].End) {
			t.Fatalf("gap %d: expected %+v, got %+v", i, want[i], gaps[i])
		}
	}
}

func TestCalendar_RandomInsertsNeverOverlap(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	var cal Calendar
	day := at(0, 0)
	for i := 0; i < 500; i++ {
		start := day.Add(time.Duration(rng.Intn(24*60)) * time.Minute)
		end := start.Add(time.Duration(15+rng.Intn(120)) * time.Minute)
		_ = cal.Insert("s", Interval{Start: start, End: end})
	}

	entries := cal.Entries()
	for i := range entries {
		for j := i + 1; j < len(entries); j++ {
			if entries[i].Interval.Overlaps(entries[j].Interval) {
				t.Fatalf("entries %d and %d overlap: %+v %+v", i, j, entries[i], entries[j])
			}
		}
	}
}
