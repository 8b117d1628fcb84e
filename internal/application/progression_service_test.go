package application

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/example/autoecole-scheduler/internal/scheduler"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestComputeProgressionRatios(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name      string
		planned   map[scheduler.Kind]int
		completed map[scheduler.Kind]int
		weights   ProgressionWeights
		theory    float64
		practical float64
		overall   float64
	}{
		{
			name:      "equal weights",
			planned:   map[scheduler.Kind]int{scheduler.KindTheory: 10, scheduler.KindPractical: 8},
			completed: map[scheduler.Kind]int{scheduler.KindTheory: 6, scheduler.KindPractical: 4},
			weights:   DefaultProgressionWeights(),
			theory:    0.6,
			practical: 0.5,
			overall:   0.55,
		},
		{
			name:    "nothing planned",
			weights: DefaultProgressionWeights(),
		},
		{
			name:      "presence beyond plan is clamped",
			planned:   map[scheduler.Kind]int{scheduler.KindTheory: 2},
			completed: map[scheduler.Kind]int{scheduler.KindTheory: 3},
			weights:   DefaultProgressionWeights(),
			theory:    1,
			overall:   0.5,
		},
		{
			name:      "weighted towards practice",
			planned:   map[scheduler.Kind]int{scheduler.KindTheory: 10, scheduler.KindPractical: 10},
			completed: map[scheduler.Kind]int{scheduler.KindTheory: 10, scheduler.KindPractical: 5},
			weights:   ProgressionWeights{Theory: 1, Practical: 3},
			theory:    1,
			practical: 0.5,
			overall:   0.625,
		},
		{
			name:      "invalid weights fall back to equal",
			planned:   map[scheduler.Kind]int{scheduler.KindTheory: 4, scheduler.KindPractical: 4},
			completed: map[scheduler.Kind]int{scheduler.KindTheory: 4},
			weights:   ProgressionWeights{Theory: -1, Practical: 0},
			theory:    1,
			overall:   0.5,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			snap := computeProgression("cand-1", tc.planned, tc.completed, nil, tc.weights, now)
			if !approxEqual(snap.Theory.Ratio, tc.theory) {
				t.Fatalf("expected theory ratio %v, got %v", tc.theory, snap.Theory.Ratio)
			}
			if !approxEqual(snap.Practical.Ratio, tc.practical) {
				t.Fatalf("expected practical ratio %v, got %v", tc.practical, snap.Practical.Ratio)
			}
			if !approxEqual(snap.OverallRatio, tc.overall) {
				t.Fatalf("expected overall ratio %v, got %v", tc.overall, snap.OverallRatio)
			}
			if snap.OverallRatio < 0 || snap.OverallRatio > 1 {
				t.Fatalf("expected overall ratio within [0,1], got %v", snap.OverallRatio)
			}
			if !snap.ComputedAt.Equal(now) {
				t.Fatalf("expected computed at %v, got %v", now, snap.ComputedAt)
			}
		})
	}
}

func TestComputeProgressionExamStats(t *testing.T) {
	t.Parallel()

	exams := []scheduler.ExamRecord{
		{ID: "e1", Type: scheduler.ExamTheory, Outcome: scheduler.ExamFailed},
		{ID: "e2", Type: scheduler.ExamTheory, Outcome: scheduler.ExamPassed},
		{ID: "e3", Type: scheduler.ExamPractical, Outcome: scheduler.ExamPending},
	}
	snap := computeProgression("cand-1", nil, nil, exams, DefaultProgressionWeights(), testNow)

	theory := snap.Exams[scheduler.ExamTheory]
	if theory.Attempts != 2 || !theory.Passed || theory.Pending != 0 {
		t.Fatalf("expected two theory attempts with a pass, got %+v", theory)
	}
	practical := snap.Exams[scheduler.ExamPractical]
	if practical.Attempts != 1 || practical.Passed || practical.Pending != 1 {
		t.Fatalf("expected one pending practical attempt, got %+v", practical)
	}
}

func TestGetProgressionAggregatesAttendance(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		session, err := env.services.Sessions.CreateTheorySession(ctx, theoryParams("inst-1", at(i+1, 9, 0), 60, 20))
		if err != nil {
			t.Fatalf("expected theory session %d, got %v", i, err)
		}
		if err := env.services.Enrollment.Enroll(ctx, session.ID, "cand-1"); err != nil {
			t.Fatalf("expected enrollment, got %v", err)
		}
		if i < 6 {
			if _, err := env.services.Sessions.Complete(ctx, CompleteParams{SessionID: session.ID, Attendance: map[string]bool{"cand-1": true}}); err != nil {
				t.Fatalf("expected completion, got %v", err)
			}
		}
	}
	for i := 0; i < 8; i++ {
		lesson, err := env.services.Sessions.CreatePracticalSession(ctx, practicalParams("inst-2", "veh-2", "cand-1", at(i+1, 14, 0), 60))
		if err != nil {
			t.Fatalf("expected lesson %d, got %v", i, err)
		}
		if i < 4 {
			if _, err := env.services.Sessions.Complete(ctx, CompleteParams{SessionID: lesson.ID, Attendance: map[string]bool{"cand-1": true}}); err != nil {
				t.Fatalf("expected completion, got %v", err)
			}
		}
	}
	// Cancelled sessions do not count as planned work.
	cancelled, err := env.services.Sessions.CreatePracticalSession(ctx, practicalParams("inst-2", "veh-2", "cand-1", at(12, 14, 0), 60))
	if err != nil {
		t.Fatalf("expected lesson, got %v", err)
	}
	if _, err := env.services.Sessions.Cancel(ctx, cancelled.ID); err != nil {
		t.Fatalf("expected cancel, got %v", err)
	}

	snap, err := env.services.Progression.GetProgression(ctx, "cand-1")
	if err != nil {
		t.Fatalf("expected progression, got %v", err)
	}
	if snap.Theory.Planned != 10 || snap.Theory.Completed != 6 || !approxEqual(snap.Theory.Ratio, 0.6) {
		t.Fatalf("expected theory 6/10, got %+v", snap.Theory)
	}
	if snap.Practical.Planned != 8 || snap.Practical.Completed != 4 || !approxEqual(snap.Practical.Ratio, 0.5) {
		t.Fatalf("expected practical 4/8, got %+v", snap.Practical)
	}
	if !approxEqual(snap.OverallRatio, 0.55) {
		t.Fatalf("expected overall 0.55, got %v", snap.OverallRatio)
	}
}

func TestGetProgressionIsInvalidatedByWrites(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	session, err := env.services.Sessions.CreateTheorySession(ctx, theoryParams("inst-1", at(1, 9, 0), 60, 20))
	if err != nil {
		t.Fatalf("expected session, got %v", err)
	}

	empty, err := env.services.Progression.GetProgression(ctx, "cand-2")
	if err != nil {
		t.Fatalf("expected progression, got %v", err)
	}
	if empty.OverallRatio != 0 || empty.Theory.Planned != 0 {
		t.Fatalf("expected an empty snapshot, got %+v", empty)
	}

	if err := env.services.Enrollment.Enroll(ctx, session.ID, "cand-2"); err != nil {
		t.Fatalf("expected enrollment, got %v", err)
	}
	planned, err := env.services.Progression.GetProgression(ctx, "cand-2")
	if err != nil {
		t.Fatalf("expected progression, got %v", err)
	}
	if planned.Theory.Planned != 1 || planned.Theory.Completed != 0 {
		t.Fatalf("expected the enrollment to be visible, got %+v", planned.Theory)
	}

	if err := env.services.Presence.RecordPresence(ctx, session.ID, "cand-2", true); err != nil {
		t.Fatalf("expected presence, got %v", err)
	}
	attended, err := env.services.Progression.GetProgression(ctx, "cand-2")
	if err != nil {
		t.Fatalf("expected progression, got %v", err)
	}
	if attended.Theory.Completed != 1 || !approxEqual(attended.OverallRatio, 0.5) {
		t.Fatalf("expected the presence to be visible, got %+v", attended)
	}
}

func TestGetProgressionUnknownCandidate(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	if _, err := env.services.Progression.GetProgression(context.Background(), "cand-404"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	var vErr *ValidationError
	if _, err := env.services.Progression.GetProgression(context.Background(), ""); !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
