package survey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionView is what clients see of a session: its state plus the question
// to render, or the result once the flow has terminated.
type SessionView struct {
	ID            uuid.UUID  `json:"sessionId"`
	SurveyID      uuid.UUID  `json:"surveyId"`
	AccountID     string     `json:"accountId"`
	State         State      `json:"state"`
	SubmissionID  *uuid.UUID `json:"submissionId,omitempty"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	Question      *Question  `json:"question,omitempty"`
	QuestionCount int        `json:"questionCount"`
	Result        *Result    `json:"result,omitempty"`
}

type Service struct {
	surveys     SurveyRepository
	submissions SubmissionRepository
	sessions    SessionStore
	skips       SkipTable
	now         func() time.Time
}

func NewService(surveys SurveyRepository, submissions SubmissionRepository, sessions SessionStore) *Service {
	return &Service{
		surveys:     surveys,
		submissions: submissions,
		sessions:    sessions,
		skips:       CRAFFTSkips,
		now:         time.Now,
	}
}

// -- Surveys --

// ImportSurvey validates a definition and stores it, replacing any survey
// with the same slug.
func (s *Service) ImportSurvey(ctx context.Context, sv *Survey) error {
	sv.Normalize()
	if sv.Slug == "" {
		return fmt.Errorf("%w: slug is required", ErrMalformedSurvey)
	}
	if err := sv.Validate(); err != nil {
		return err
	}
	return s.surveys.Save(ctx, sv)
}

// EnsureBuiltin stores the embedded CRAFFT survey unless one already exists.
func (s *Service) EnsureBuiltin(ctx context.Context) (*Survey, error) {
	existing, err := s.surveys.GetBySlug(ctx, CRAFFTSlug)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrSurveyNotFound) {
		return nil, err
	}
	sv := CRAFFT()
	if err := s.surveys.Save(ctx, sv); err != nil {
		return nil, err
	}
	return sv, nil
}

func (s *Service) GetSurvey(ctx context.Context, id uuid.UUID) (*Survey, error) {
	return s.surveys.GetByID(ctx, id)
}

func (s *Service) GetSurveyBySlug(ctx context.Context, slug string) (*Survey, error) {
	return s.surveys.GetBySlug(ctx, slug)
}

func (s *Service) ListSurveys(ctx context.Context, limit, offset int) ([]*Survey, int, error) {
	return s.surveys.List(ctx, limit, offset)
}

// -- Sessions --

func (s *Service) StartSession(ctx context.Context, surveyID uuid.UUID, accountID string) (*SessionView, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account id is required")
	}
	sv, err := s.surveys.GetByID(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	sess := &Session{
		ID:        uuid.New(),
		SurveyID:  sv.ID,
		AccountID: accountID,
		AttemptID: uuid.New(),
		State:     NewFlow(sv, s.skips).State(),
		Survey:    sv,
		UpdatedAt: s.now().UTC(),
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return s.view(sess, NewFlow(sv, s.skips)), nil
}

func (s *Service) GetSession(ctx context.Context, sessionID uuid.UUID, accountID string) (*SessionView, error) {
	sess, sv, err := s.load(ctx, sessionID, accountID)
	if err != nil {
		return nil, err
	}
	return s.view(sess, ResumeFlow(sv, s.skips, sess.State)), nil
}

// SelectOption records the transient choice for the current question.
func (s *Service) SelectOption(ctx context.Context, sessionID uuid.UUID, accountID string, option int) (*SessionView, error) {
	return s.mutate(ctx, sessionID, accountID, func(f *Flow) error {
		q := f.CurrentQuestion()
		if q == nil {
			return ErrAlreadyTerminated
		}
		if option < 0 || option >= len(q.Options) {
			return fmt.Errorf("%w: %d (question has %d options)", ErrInvalidOption, option, len(q.Options))
		}
		f.SelectOption(option)
		return nil
	})
}

// Advance commits the selection and moves along the skip table. Without a
// selection it returns the unchanged session.
func (s *Service) Advance(ctx context.Context, sessionID uuid.UUID, accountID string) (*SessionView, error) {
	return s.mutate(ctx, sessionID, accountID, func(f *Flow) error {
		f.Advance()
		return nil
	})
}

func (s *Service) GoBack(ctx context.Context, sessionID uuid.UUID, accountID string) (*SessionView, error) {
	return s.mutate(ctx, sessionID, accountID, func(f *Flow) error {
		f.GoBack()
		return nil
	})
}

// Restart clears progress and any link to an earlier submission so the
// survey can be retaken.
func (s *Service) Restart(ctx context.Context, sessionID uuid.UUID, accountID string) (*SessionView, error) {
	sess, sv, err := s.load(ctx, sessionID, accountID)
	if err != nil {
		return nil, err
	}
	f := ResumeFlow(sv, s.skips, sess.State)
	f.Restart()
	sess.State = f.State()
	sess.AttemptID = uuid.New()
	sess.SubmissionID = nil
	sess.UpdatedAt = s.now().UTC()
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return s.view(sess, f), nil
}

func (s *Service) Result(ctx context.Context, sessionID uuid.UUID, accountID string) (*Result, error) {
	sess, sv, err := s.load(ctx, sessionID, accountID)
	if err != nil {
		return nil, err
	}
	res, err := ResumeFlow(sv, s.skips, sess.State).ComputeResult()
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Submit stores the result of a terminated session for the account. The
// submission is keyed by the session attempt, so a concurrent second submit
// of the same attempt fails with ErrAlreadySubmitted.
func (s *Service) Submit(ctx context.Context, sessionID uuid.UUID, accountID string) (*Submission, error) {
	sess, sv, err := s.load(ctx, sessionID, accountID)
	if err != nil {
		return nil, err
	}
	if sess.SubmissionID != nil {
		return nil, ErrAlreadySubmitted
	}
	res, err := ResumeFlow(sv, s.skips, sess.State).ComputeResult()
	if err != nil {
		return nil, err
	}

	if sess.AttemptID == uuid.Nil {
		sess.AttemptID = sess.ID
	}
	sub := &Submission{
		AttemptID: sess.AttemptID,
		SurveyID:  sv.ID,
		AccountID: accountID,
		Answers:   answersFor(sv, sess.State.Answers),
		Score:     res.Score,
		MaxScore:  res.MaxPossibleScore,
		RiskTier:  res.RiskTier,
	}
	if err := s.submissions.Create(ctx, sub); err != nil {
		if errors.Is(err, ErrAlreadySubmitted) {
			return nil, err
		}
		return nil, fmt.Errorf("store submission: %w", err)
	}

	sess.SubmissionID = &sub.ID
	sess.UpdatedAt = s.now().UTC()
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return sub, nil
}

// -- Submissions --

// GetSubmission returns a submission. Callers that are not privileged only
// see their own.
func (s *Service) GetSubmission(ctx context.Context, id uuid.UUID, accountID string, privileged bool) (*Submission, error) {
	sub, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !privileged && sub.AccountID != accountID {
		return nil, ErrSubmissionNotFound
	}
	return sub, nil
}

func (s *Service) ListSubmissions(ctx context.Context, accountID string, limit, offset int) ([]*Submission, int, error) {
	return s.submissions.ListByAccount(ctx, accountID, limit, offset)
}

// -- helpers --

func (s *Service) load(ctx context.Context, sessionID uuid.UUID, accountID string) (*Session, *Survey, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if sess.AccountID != accountID {
		return nil, nil, ErrSessionNotFound
	}
	if sess.Survey != nil {
		return sess, sess.Survey, nil
	}
	// sessions stored without a snapshot pin the current definition
	sv, err := s.surveys.GetByID(ctx, sess.SurveyID)
	if err != nil {
		return nil, nil, err
	}
	sess.Survey = sv
	return sess, sv, nil
}

func (s *Service) mutate(ctx context.Context, sessionID uuid.UUID, accountID string, fn func(f *Flow) error) (*SessionView, error) {
	sess, sv, err := s.load(ctx, sessionID, accountID)
	if err != nil {
		return nil, err
	}
	f := ResumeFlow(sv, s.skips, sess.State)
	if err := fn(f); err != nil {
		return nil, err
	}
	sess.State = f.State()
	sess.UpdatedAt = s.now().UTC()
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return s.view(sess, f), nil
}

func (s *Service) view(sess *Session, f *Flow) *SessionView {
	v := &SessionView{
		ID:            sess.ID,
		SurveyID:      sess.SurveyID,
		AccountID:     sess.AccountID,
		State:         sess.State,
		SubmissionID:  sess.SubmissionID,
		UpdatedAt:     sess.UpdatedAt,
		Question:      f.CurrentQuestion(),
		QuestionCount: len(f.survey.Questions),
	}
	if res, err := f.ComputeResult(); err == nil {
		v.Result = &res
	}
	return v
}
