package scheduler

import (
	"testing"
	"time"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, 5, 6, hour, minute, 0, 0, time.UTC)
}

func commitment(sessionID string, resource ResourceRef, start, end time.Time) Commitment {
	return Commitment{SessionID: sessionID, Resource: resource, Interval: Interval{Start: start, End: end}}
}

func TestInterval_Overlaps(t *testing.T) {
	t.Parallel()

	base := Interval{Start: at(9, 0), End: at(10, 0)}
	cases := []struct {
		name  string
		other Interval
		want  bool
	}{
		{name: "partial overlap", other: Interval{Start: at(9, 30), End: at(10, 30)}, want: true},
		{name: "contained", other: Interval{Start: at(9, 15), End: at(9, 45)}, want: true},
		{name: "touching end", other: Interval{Start: at(10, 0), End: at(11, 0)}, want: false},
		{name: "touching start", other: Interval{Start: at(8, 0), End: at(9, 0)}, want: false},
		{name: "disjoint", other: Interval{Start: at(14, 0), End: at(15, 0)}, want: false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := base.Overlaps(tc.other); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			if got := tc.other.Overlaps(base); got != tc.want {
				t.Fatalf("expected symmetric result %v, got %v", tc.want, got)
			}
		})
	}
}

func TestDetectConflicts(t *testing.T) {
	t.Parallel()

	instructor := InstructorResource("moniteur-m")
	vehicle := VehicleResource("vehicle-1")
	existing := []Commitment{
		commitment("morning", instructor, at(9, 0), at(10, 0)),
		commitment("morning", vehicle, at(9, 0), at(10, 0)),
	}

	t.Run("instructor overlap produces conflict", func(t *testing.T) {
		t.Parallel()
		requested := []Commitment{commitment("new", instructor, at(9, 30), at(10, 30))}
		conflicts := DetectConflicts(existing, requested, "")
		if len(conflicts) != 1 {
			t.Fatalf("expected 1 conflict, got %d", len(conflicts))
		}
		if conflicts[0].WithSessionID != "morning" || conflicts[0].Resource != instructor {
			t.Fatalf("unexpected conflict %+v", conflicts[0])
		}
	})

	t.Run("vehicle overlap produces conflict", func(t *testing.T) {
		t.Parallel()
		requested := []Commitment{
			commitment("new", InstructorResource("other"), at(9, 30), at(10, 30)),
			commitment("new", vehicle, at(9, 30), at(10, 30)),
		}
		conflicts := DetectConflicts(existing, requested, "")
		if len(conflicts) != 1 || conflicts[0].Resource != vehicle {
			t.Fatalf("expected a single vehicle conflict, got %+v", conflicts)
		}
	})

	t.Run("instructor conflicts are reported first", func(t *testing.T) {
		t.Parallel()
		requested := []Commitment{
			commitment("new", vehicle, at(9, 30), at(10, 30)),
			commitment("new", instructor, at(9, 30), at(10, 30)),
		}
		conflicts := DetectConflicts(existing, requested, "")
		if len(conflicts) != 2 || conflicts[0].Resource.Kind != ResourceInstructor {
			t.Fatalf("expected instructor conflict first, got %+v", conflicts)
		}
	})

	t.Run("adjacent slot yields no conflicts", func(t *testing.T) {
		t.Parallel()
		requested := []Commitment{commitment("new", instructor, at(10, 0), at(11, 0))}
		if conflicts := DetectConflicts(existing, requested, ""); len(conflicts) != 0 {
			t.Fatalf("expected no conflicts, got %+v", conflicts)
		}
	})

	t.Run("own commitments are ignored when excluded", func(t *testing.T) {
		t.Parallel()
		requested := []Commitment{commitment("morning", instructor, at(9, 30), at(10, 30))}
		if conflicts := DetectConflicts(existing, requested, "morning"); len(conflicts) != 0 {
			t.Fatalf("expected no conflicts, got %+v", conflicts)
		}
	})
}

func TestCommitmentsFor(t *testing.T) {
	t.Parallel()

	s := practicalSession(MeetingPoint{Address: "Gare"})
	got := CommitmentsFor(s)
	if len(got) != 2 {
		t.Fatalf("expected instructor and vehicle commitments, got %+v", got)
	}
	if got[0].Resource != InstructorResource("instructor-1") || got[1].Resource != VehicleResource("vehicle-1") {
		t.Fatalf("unexpected resources: %+v", got)
	}

	s.Status = StatusCancelled
	if got := CommitmentsFor(s); got != nil {
		t.Fatalf("expected cancelled session to hold nothing, got %+v", got)
	}
}
