package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/example/autoecole-scheduler/internal/application"
	"github.com/example/autoecole-scheduler/internal/scheduler"
)

type stubCandidates struct {
	candidates []scheduler.Candidate
	err        error
}

func (s stubCandidates) ListCandidates(context.Context) ([]scheduler.Candidate, error) {
	return s.candidates, s.err
}

type stubProgression map[string]application.ProgressionSnapshot

func (s stubProgression) GetProgression(_ context.Context, candidateID string) (application.ProgressionSnapshot, error) {
	snapshot, ok := s[candidateID]
	if !ok {
		return application.ProgressionSnapshot{}, application.ErrNotFound
	}
	return snapshot, nil
}

func TestCollectRowsSortsByOverallRatio(t *testing.T) {
	t.Parallel()

	candidates := stubCandidates{candidates: []scheduler.Candidate{
		{ID: "c1", FirstName: "Luc", LastName: "Bernard", TargetCategory: "B"},
		{ID: "c2", FirstName: "Inès", LastName: "Petit", TargetCategory: "B"},
		{ID: "c3", FirstName: "Marc", LastName: "Roux", TargetCategory: "A2"},
		{ID: "gone", FirstName: "Ana", LastName: "Vidal", TargetCategory: "B"},
	}}
	progression := stubProgression{
		"c1": {CandidateID: "c1", OverallRatio: 0.25},
		"c2": {CandidateID: "c2", OverallRatio: 0.75},
		"c3": {CandidateID: "c3", OverallRatio: 1},
	}

	rows, err := collectRows(context.Background(), candidates, progression, "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].Candidate.ID != "c3" || rows[1].Candidate.ID != "c2" || rows[2].Candidate.ID != "c1" {
		t.Fatalf("expected c3, c2, c1 order, got %s, %s, %s", rows[0].Candidate.ID, rows[1].Candidate.ID, rows[2].Candidate.ID)
	}

	rows, err = collectRows(context.Background(), candidates, progression, "A2")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(rows) != 1 || rows[0].Candidate.ID != "c3" {
		t.Fatalf("expected only c3 for category A2, got %+v", rows)
	}
}

func TestCollectRowsPropagatesListFailure(t *testing.T) {
	t.Parallel()

	_, err := collectRows(context.Background(), stubCandidates{err: application.ErrStorageUnavailable}, stubProgression{}, "")
	if !errors.Is(err, application.ErrStorageUnavailable) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestRenderReport(t *testing.T) {
	t.Parallel()

	rows := []reportRow{{
		Candidate: scheduler.Candidate{ID: "c1", FirstName: "Inès", LastName: "Petit", TargetCategory: "B"},
		Snapshot: application.ProgressionSnapshot{
			Theory:       application.TrackProgress{Completed: 3, Planned: 4, Ratio: 0.75},
			Practical:    application.TrackProgress{Completed: 1, Planned: 2, Ratio: 0.5},
			Exams:        map[scheduler.ExamType]application.ExamStats{scheduler.ExamTheory: {Attempts: 1, Passed: true}},
			OverallRatio: 0.6,
		},
	}}

	var out bytes.Buffer
	renderReport(&out, rows)
	text := out.String()
	for _, want := range []string{"Progression des candidats (1)", "Inès Petit", "3/4", "1/2", "réussi", "60%"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected report to contain %q, got:\n%s", want, text)
		}
	}
}

func TestRenderReportEmpty(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	renderReport(&out, nil)
	if !strings.Contains(out.String(), "Aucun candidat.") {
		t.Fatalf("expected empty marker, got %q", out.String())
	}
}

func TestParseOptionsRejectsBadWeight(t *testing.T) {
	t.Parallel()

	if _, err := parseOptions([]string{"-theory-weight", "1.5"}); err == nil {
		t.Fatalf("expected error for out of range weight")
	}
	opts, err := parseOptions([]string{"-category", " a2 ", "-dsn", "report.db"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if opts.category != "A2" || opts.dsn != "report.db" {
		t.Fatalf("expected normalized options, got %+v", opts)
	}
}
