package appointment

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clearpath/prevention/pkg/pagination"
)

type mockScheduleRepo struct {
	mu    sync.Mutex
	store map[uuid.UUID]*Schedule
}

func newMockScheduleRepo() *mockScheduleRepo {
	return &mockScheduleRepo{store: make(map[uuid.UUID]*Schedule)}
}

func (m *mockScheduleRepo) Create(_ context.Context, s *Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	m.store[s.ID] = s
	return nil
}

func (m *mockScheduleRepo) GetByID(_ context.Context, id uuid.UUID) (*Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return nil, ErrScheduleNotFound
	}
	return s, nil
}

func (m *mockScheduleRepo) ListByIDs(_ context.Context, ids []uuid.UUID) ([]*Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Schedule
	for _, id := range ids {
		if s, ok := m.store[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockScheduleRepo) ListByConsultant(_ context.Context, consultantID string, limit, offset int) ([]*Schedule, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Schedule
	for _, s := range m.store {
		if s.ConsultantID == consultantID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	start, end := pagination.Params{Limit: limit, Offset: offset}.Window(len(out))
	return out[start:end], len(out), nil
}

// mockAppointmentRepo stores copies so callers cannot mutate stored rows,
// matching the database-backed repository.
type mockAppointmentRepo struct {
	mu        sync.Mutex
	store     map[uuid.UUID]Appointment
	schedules *mockScheduleRepo

	// beforeUpdate runs inside UpdateStatus and CancelUnattended before the
	// conditional write, letting tests simulate a concurrent writer.
	beforeUpdate func(id uuid.UUID)
	failUpdate   map[uuid.UUID]error
}

func newMockAppointmentRepo(schedules *mockScheduleRepo) *mockAppointmentRepo {
	return &mockAppointmentRepo{store: make(map[uuid.UUID]Appointment), schedules: schedules, failUpdate: map[uuid.UUID]error{}}
}

func (m *mockAppointmentRepo) Create(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.store {
		if existing.ScheduleID == a.ScheduleID && existing.Status != StatusCancelled {
			return ErrSlotTaken
		}
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	m.store[a.ID] = *a
	return nil
}

func (m *mockAppointmentRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *mockAppointmentRepo) Search(_ context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Appointment
	for _, a := range m.store {
		if f.AccountID != "" && a.AccountID != f.AccountID {
			continue
		}
		if f.ConsultantID != "" && a.ConsultantID != f.ConsultantID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		a := a
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	start, end := pagination.Params{Limit: limit, Offset: offset}.Window(len(out))
	return out[start:end], len(out), nil
}

func (m *mockAppointmentRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status) (bool, error) {
	if m.beforeUpdate != nil {
		m.beforeUpdate(id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failUpdate[id]; err != nil {
		return false, err
	}
	a, ok := m.store[id]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	if to.Terminal() {
		a.MeetingLink = ""
	}
	a.UpdatedAt = time.Now()
	m.store[id] = a
	return true, nil
}

func (m *mockAppointmentRepo) CancelUnattended(_ context.Context, id uuid.UUID) (bool, error) {
	if m.beforeUpdate != nil {
		m.beforeUpdate(id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failUpdate[id]; err != nil {
		return false, err
	}
	a, ok := m.store[id]
	if !ok || a.Status != StatusBooked || a.CheckedIn {
		return false, nil
	}
	a.Status = StatusCancelled
	a.MeetingLink = ""
	a.UpdatedAt = time.Now()
	m.store[id] = a
	return true, nil
}

func (m *mockAppointmentRepo) MarkCheckedIn(_ context.Context, id uuid.UUID, link string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok || a.Status != StatusBooked || a.CheckedIn {
		return false, nil
	}
	a.CheckedIn = true
	a.MeetingLink = link
	m.store[id] = a
	return true, nil
}

func (m *mockAppointmentRepo) ListUnattended(_ context.Context, endedBefore time.Time) ([]*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Appointment
	for _, a := range m.store {
		if a.Status != StatusBooked || a.CheckedIn {
			continue
		}
		s, ok := m.schedules.store[a.ScheduleID]
		if !ok || !s.EndTime.Before(endedBefore) {
			continue
		}
		a := a
		out = append(out, &a)
	}
	return out, nil
}

// set overwrites a stored appointment directly.
func (m *mockAppointmentRepo) set(a Appointment) {
	m.mu.Lock()
	m.store[a.ID] = a
	m.mu.Unlock()
}

type stubLinks struct {
	link string
	err  error
}

func (s stubLinks) MeetingLink(_ context.Context, a *Appointment) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.link + "/" + a.ID.String(), nil
}

var errDown = errors.New("connection reset")
