package application

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/example/autoecole-scheduler/internal/persistence"
	"github.com/example/autoecole-scheduler/internal/scheduler"
)

// memoryStore is an in-memory implementation of every repository the services use.
// failWith, when set, is returned by every call.
type memoryStore struct {
	mu          sync.Mutex
	sessions    map[string]scheduler.Session
	commitments map[string][]scheduler.Commitment
	presence    map[[2]string]scheduler.PresenceRecord
	exams       map[string]scheduler.ExamRecord
	instructors map[string]scheduler.Instructor
	candidates  map[string]scheduler.Candidate
	vehicles    map[string]scheduler.Vehicle
	failWith    error
	updates     int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		sessions:    make(map[string]scheduler.Session),
		commitments: make(map[string][]scheduler.Commitment),
		presence:    make(map[[2]string]scheduler.PresenceRecord),
		exams:       make(map[string]scheduler.ExamRecord),
		instructors: make(map[string]scheduler.Instructor),
		candidates:  make(map[string]scheduler.Candidate),
		vehicles:    make(map[string]scheduler.Vehicle),
	}
}

func (m *memoryStore) stores() Stores {
	return Stores{Sessions: m, Presence: m, Exams: m, Directory: m}
}

func (m *memoryStore) CreateSession(ctx context.Context, change persistence.SessionChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, exists := m.sessions[change.Session.ID]; exists {
		return persistence.ErrDuplicate
	}
	m.sessions[change.Session.ID] = change.Session.Clone()
	m.commitments[change.Session.ID] = slices.Clone(change.Commitments)
	m.upsertLocked(change.Presence)
	return nil
}

func (m *memoryStore) UpdateSession(ctx context.Context, change persistence.SessionChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	current, exists := m.sessions[change.Session.ID]
	if !exists || current.Kind != change.Session.Kind {
		return persistence.ErrNotFound
	}
	m.sessions[change.Session.ID] = change.Session.Clone()
	if !change.KeepCommitments {
		m.commitments[change.Session.ID] = slices.Clone(change.Commitments)
	}
	m.upsertLocked(change.Presence)
	m.updates++
	return nil
}

func (m *memoryStore) GetSession(ctx context.Context, id string) (scheduler.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return scheduler.Session{}, m.failWith
	}
	session, ok := m.sessions[id]
	if !ok {
		return scheduler.Session{}, persistence.ErrNotFound
	}
	return session.Clone(), nil
}

func (m *memoryStore) ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]scheduler.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []scheduler.Session
	for _, s := range m.sessions {
		if filter.InstructorID != "" && s.InstructorID != filter.InstructorID {
			continue
		}
		if filter.VehicleID != "" && s.VehicleID() != filter.VehicleID {
			continue
		}
		if filter.CandidateID != "" && !s.HasParticipant(filter.CandidateID) {
			continue
		}
		if filter.Kind != "" && s.Kind != filter.Kind {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, s.Status) {
			continue
		}
		if filter.From != nil && !s.End().After(*filter.From) {
			continue
		}
		if filter.To != nil && !s.Start.Before(*filter.To) {
			continue
		}
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memoryStore) ListCommitments(ctx context.Context, filter persistence.CommitmentFilter) ([]scheduler.Commitment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	window := scheduler.Interval{Start: filter.From, End: filter.To}
	var out []scheduler.Commitment
	for _, commitments := range m.commitments {
		for _, c := range commitments {
			if !slices.Contains(filter.Resources, c.Resource) {
				continue
			}
			if !c.Interval.Overlaps(window) {
				continue
			}
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Interval.Start.Before(out[j].Interval.Start) })
	return out, nil
}

func (m *memoryStore) DeleteCommitments(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	delete(m.commitments, sessionID)
	return nil
}

func (m *memoryStore) upsertLocked(records []scheduler.PresenceRecord) {
	for _, r := range records {
		m.presence[[2]string{r.SessionID, r.CandidateID}] = r
	}
}

func (m *memoryStore) UpsertPresence(ctx context.Context, record scheduler.PresenceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.upsertLocked([]scheduler.PresenceRecord{record})
	return nil
}

func (m *memoryStore) ListPresence(ctx context.Context, filter persistence.PresenceFilter) ([]scheduler.PresenceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []scheduler.PresenceRecord
	for _, r := range m.presence {
		if filter.SessionID != "" && r.SessionID != filter.SessionID {
			continue
		}
		if filter.CandidateID != "" && r.CandidateID != filter.CandidateID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SessionID != out[j].SessionID {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].CandidateID < out[j].CandidateID
	})
	return out, nil
}

func (m *memoryStore) CountPresent(ctx context.Context, candidateID string, kind scheduler.Kind, since *time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return 0, m.failWith
	}
	count := 0
	for _, r := range m.presence {
		if r.CandidateID != candidateID || !r.Present {
			continue
		}
		session, ok := m.sessions[r.SessionID]
		if !ok || session.Kind != kind {
			continue
		}
		if since != nil && session.Start.Before(*since) {
			continue
		}
		count++
	}
	return count, nil
}

func (m *memoryStore) presenceRows() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.presence)
}

func (m *memoryStore) CreateExamRecord(ctx context.Context, record scheduler.ExamRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.exams[record.ID] = record
	return nil
}

func (m *memoryStore) UpdateExamOutcome(ctx context.Context, id string, outcome scheduler.ExamOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.exams[id]
	if !ok {
		return persistence.ErrNotFound
	}
	record.Outcome = outcome
	m.exams[id] = record
	return nil
}

func (m *memoryStore) GetExamRecord(ctx context.Context, id string) (scheduler.ExamRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.exams[id]
	if !ok {
		return scheduler.ExamRecord{}, persistence.ErrNotFound
	}
	return record, nil
}

func (m *memoryStore) ListExamRecords(ctx context.Context, candidateID string) ([]scheduler.ExamRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []scheduler.ExamRecord
	for _, r := range m.exams {
		if r.CandidateID == candidateID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *memoryStore) CreateInstructor(ctx context.Context, instructor scheduler.Instructor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.instructors[instructor.ID]; exists {
		return persistence.ErrDuplicate
	}
	m.instructors[instructor.ID] = instructor.Clone()
	return nil
}

func (m *memoryStore) UpdateInstructor(ctx context.Context, instructor scheduler.Instructor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.instructors[instructor.ID]; !exists {
		return persistence.ErrNotFound
	}
	m.instructors[instructor.ID] = instructor.Clone()
	return nil
}

func (m *memoryStore) GetInstructor(ctx context.Context, id string) (scheduler.Instructor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return scheduler.Instructor{}, m.failWith
	}
	instructor, ok := m.instructors[id]
	if !ok {
		return scheduler.Instructor{}, persistence.ErrNotFound
	}
	return instructor.Clone(), nil
}

func (m *memoryStore) ListInstructors(ctx context.Context) ([]scheduler.Instructor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]scheduler.Instructor, 0, len(m.instructors))
	for _, i := range m.instructors {
		out = append(out, i.Clone())
	}
	return out, nil
}

func (m *memoryStore) CreateCandidate(ctx context.Context, candidate scheduler.Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.candidates[candidate.ID]; exists {
		return persistence.ErrDuplicate
	}
	m.candidates[candidate.ID] = candidate
	return nil
}

func (m *memoryStore) GetCandidate(ctx context.Context, id string) (scheduler.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return scheduler.Candidate{}, m.failWith
	}
	candidate, ok := m.candidates[id]
	if !ok {
		return scheduler.Candidate{}, persistence.ErrNotFound
	}
	return candidate, nil
}

func (m *memoryStore) ListCandidates(ctx context.Context) ([]scheduler.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]scheduler.Candidate, 0, len(m.candidates))
	for _, c := range m.candidates {
		out = append(out, c)
	}
	return out, nil
}

func (m *memoryStore) CreateVehicle(ctx context.Context, vehicle scheduler.Vehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.vehicles {
		if v.Registration == vehicle.Registration {
			return persistence.ErrDuplicate
		}
	}
	m.vehicles[vehicle.ID] = vehicle
	return nil
}

func (m *memoryStore) GetVehicle(ctx context.Context, id string) (scheduler.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vehicle, ok := m.vehicles[id]
	if !ok {
		return scheduler.Vehicle{}, persistence.ErrNotFound
	}
	return vehicle, nil
}

func (m *memoryStore) ListVehicles(ctx context.Context) ([]scheduler.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]scheduler.Vehicle, 0, len(m.vehicles))
	for _, v := range m.vehicles {
		out = append(out, v)
	}
	return out, nil
}

// sequence returns a deterministic ID generator.
func sequence(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%03d", prefix, n)
	}
}
