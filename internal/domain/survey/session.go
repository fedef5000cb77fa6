package survey

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one respondent's progress through a survey, persisted between
// HTTP calls. Survey is the definition as it was when the session started;
// later imports of the same slug do not affect it.
type Session struct {
	ID        uuid.UUID `json:"sessionId"`
	SurveyID  uuid.UUID `json:"surveyId"`
	AccountID string    `json:"accountId"`
	// AttemptID changes on every restart; a submission is unique per attempt.
	AttemptID    uuid.UUID  `json:"attemptId"`
	State        State      `json:"state"`
	SubmissionID *uuid.UUID `json:"submissionId,omitempty"`
	Survey       *Survey    `json:"survey,omitempty"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type SessionStore interface {
	Save(ctx context.Context, s *Session) error
	// Get returns ErrSessionNotFound for unknown or expired sessions.
	Get(ctx context.Context, id uuid.UUID) (*Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type memoryEntry struct {
	session   Session
	expiresAt time.Time
}

// MemorySessionStore keeps sessions in process. It is used when no Redis
// URL is configured and by tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[uuid.UUID]memoryEntry
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{ttl: ttl, now: time.Now, sessions: make(map[uuid.UUID]memoryEntry)}
}

func (m *MemorySessionStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, e := range m.sessions {
		if now.After(e.expiresAt) {
			delete(m.sessions, id)
		}
	}
	cp := *s
	cp.State = s.State.copy()
	m.sessions[s.ID] = memoryEntry{session: cp, expiresAt: now.Add(m.ttl)}
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok || m.now().After(e.expiresAt) {
		delete(m.sessions, id)
		return nil, ErrSessionNotFound
	}
	cp := e.session
	cp.State = e.session.State.copy()
	return &cp, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}
