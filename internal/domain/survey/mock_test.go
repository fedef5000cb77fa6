package survey

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clearpath/prevention/pkg/pagination"
)

type mockSurveyRepo struct {
	store map[uuid.UUID]*Survey
}

func newMockSurveyRepo() *mockSurveyRepo {
	return &mockSurveyRepo{store: make(map[uuid.UUID]*Survey)}
}

func (m *mockSurveyRepo) Save(_ context.Context, s *Survey) error {
	for id, existing := range m.store {
		if existing.Slug == s.Slug {
			s.ID = id
			s.CreatedAt = existing.CreatedAt
			s.UpdatedAt = time.Now()
			m.store[id] = s
			return nil
		}
	}
	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	m.store[s.ID] = s
	return nil
}

func (m *mockSurveyRepo) GetByID(_ context.Context, id uuid.UUID) (*Survey, error) {
	s, ok := m.store[id]
	if !ok {
		return nil, ErrSurveyNotFound
	}
	return s, nil
}

func (m *mockSurveyRepo) GetBySlug(_ context.Context, slug string) (*Survey, error) {
	for _, s := range m.store {
		if s.Slug == slug {
			return s, nil
		}
	}
	return nil, ErrSurveyNotFound
}

func (m *mockSurveyRepo) List(_ context.Context, limit, offset int) ([]*Survey, int, error) {
	var all []*Survey
	for _, s := range m.store {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Slug < all[j].Slug })
	start, end := pagination.Params{Limit: limit, Offset: offset}.Window(len(all))
	return all[start:end], len(all), nil
}

type mockSubmissionRepo struct {
	store map[uuid.UUID]*Submission
}

func newMockSubmissionRepo() *mockSubmissionRepo {
	return &mockSubmissionRepo{store: make(map[uuid.UUID]*Submission)}
}

func (m *mockSubmissionRepo) Create(_ context.Context, sub *Submission) error {
	for _, existing := range m.store {
		if existing.AttemptID == sub.AttemptID {
			return ErrAlreadySubmitted
		}
	}
	sub.ID = uuid.New()
	sub.CreatedAt = time.Now()
	m.store[sub.ID] = sub
	return nil
}

func (m *mockSubmissionRepo) GetByID(_ context.Context, id uuid.UUID) (*Submission, error) {
	sub, ok := m.store[id]
	if !ok {
		return nil, ErrSubmissionNotFound
	}
	return sub, nil
}

func (m *mockSubmissionRepo) ListByAccount(_ context.Context, accountID string, limit, offset int) ([]*Submission, int, error) {
	var out []*Submission
	for _, sub := range m.store {
		if sub.AccountID == accountID {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	start, end := pagination.Params{Limit: limit, Offset: offset}.Window(len(out))
	return out[start:end], len(out), nil
}

func newTestService() (*Service, *mockSurveyRepo, *mockSubmissionRepo) {
	surveys := newMockSurveyRepo()
	subs := newMockSubmissionRepo()
	return NewService(surveys, subs, NewMemorySessionStore(time.Hour)), surveys, subs
}
