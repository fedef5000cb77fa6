package survey

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func seedCRAFFT(t *testing.T, svc *Service) *Survey {
	t.Helper()
	sv, err := svc.EnsureBuiltin(context.Background())
	if err != nil {
		t.Fatalf("EnsureBuiltin: %v", err)
	}
	return sv
}

func TestService_EnsureBuiltinIsIdempotent(t *testing.T) {
	svc, repo, _ := newTestService()
	first := seedCRAFFT(t, svc)
	second := seedCRAFFT(t, svc)
	if first.ID != second.ID {
		t.Errorf("expected the same survey, got %s and %s", first.ID, second.ID)
	}
	if len(repo.store) != 1 {
		t.Errorf("expected 1 stored survey, got %d", len(repo.store))
	}
}

func TestService_ImportSurvey(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	sv := twoQuestionSurvey()
	if err := svc.ImportSurvey(ctx, sv); !errors.Is(err, ErrMalformedSurvey) {
		t.Errorf("expected slug to be required, got %v", err)
	}

	sv.Slug = "Quick"
	if err := svc.ImportSurvey(ctx, sv); err != nil {
		t.Fatalf("ImportSurvey: %v", err)
	}
	if sv.ID == uuid.Nil || sv.Slug != "quick" {
		t.Errorf("expected stored survey with normalized slug, got %s/%q", sv.ID, sv.Slug)
	}

	bad := &Survey{Slug: "bad", Title: "Bad"}
	if err := svc.ImportSurvey(ctx, bad); !errors.Is(err, ErrMalformedSurvey) {
		t.Errorf("expected ErrMalformedSurvey, got %v", err)
	}
	if len(repo.store) != 1 {
		t.Errorf("malformed survey was stored")
	}
}

func TestService_TakeSurveyToSubmission(t *testing.T) {
	svc, _, subs := newTestService()
	ctx := context.Background()
	sv := seedCRAFFT(t, svc)

	view, err := svc.StartSession(ctx, sv.ID, "acct-1")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if view.Question == nil || view.Question.ID != 101 || view.QuestionCount != 11 {
		t.Fatalf("unexpected first view %+v", view)
	}
	sid := view.ID

	steps := []int{1, 0} // once or twice, then skip to part B
	for _, opt := range steps {
		if _, err := svc.SelectOption(ctx, sid, "acct-1", opt); err != nil {
			t.Fatalf("SelectOption: %v", err)
		}
		if view, err = svc.Advance(ctx, sid, "acct-1"); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}
	if view.State.Current != 5 {
		t.Fatalf("expected index 5, got %d", view.State.Current)
	}

	if _, err := svc.Result(ctx, sid, "acct-1"); !errors.Is(err, ErrNotTerminated) {
		t.Errorf("expected ErrNotTerminated, got %v", err)
	}
	if _, err := svc.Submit(ctx, sid, "acct-1"); !errors.Is(err, ErrNotTerminated) {
		t.Errorf("expected ErrNotTerminated on early submit, got %v", err)
	}

	for i := 0; i < 6; i++ {
		_, _ = svc.SelectOption(ctx, sid, "acct-1", 1)
		view, _ = svc.Advance(ctx, sid, "acct-1")
	}
	if view.Result == nil || view.Result.Score != 8 || view.Result.RiskTier != RiskHigh {
		t.Fatalf("expected 8/HIGH result, got %+v", view.Result)
	}

	if _, err := svc.SelectOption(ctx, sid, "acct-1", 0); !errors.Is(err, ErrAlreadyTerminated) {
		t.Errorf("expected ErrAlreadyTerminated, got %v", err)
	}

	sub, err := svc.Submit(ctx, sid, "acct-1")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sub.Score != 8 || sub.RiskTier != RiskHigh || len(sub.Answers) != 8 {
		t.Errorf("unexpected submission %+v", sub)
	}
	if sub.Answers[0].QuestionID != 101 || sub.Answers[0].SelectedOptionID != 2 {
		t.Errorf("unexpected first answer %+v", sub.Answers[0])
	}
	if _, ok := subs.store[sub.ID]; !ok {
		t.Error("submission not stored")
	}

	if _, err := svc.Submit(ctx, sid, "acct-1"); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("expected ErrAlreadySubmitted, got %v", err)
	}

	view, err = svc.Restart(ctx, sid, "acct-1")
	if err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if view.SubmissionID != nil || view.State.Current != 0 || view.Result != nil {
		t.Errorf("expected fresh session after restart, got %+v", view)
	}
}

func TestService_SelectOptionValidatesIndex(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	sv := seedCRAFFT(t, svc)
	view, _ := svc.StartSession(ctx, sv.ID, "acct-1")

	if _, err := svc.SelectOption(ctx, view.ID, "acct-1", 4); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("expected ErrInvalidOption, got %v", err)
	}
	got, _ := svc.GetSession(ctx, view.ID, "acct-1")
	if got.State.Selected != nil {
		t.Error("invalid option changed the session")
	}
}

func TestService_AdvanceWithoutSelection(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	sv := seedCRAFFT(t, svc)
	view, _ := svc.StartSession(ctx, sv.ID, "acct-1")

	got, err := svc.Advance(ctx, view.ID, "acct-1")
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if got.State.Current != 0 || len(got.State.Answers) != 0 {
		t.Errorf("expected unchanged session, got %+v", got.State)
	}
}

func TestService_GoBack(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	sv := seedCRAFFT(t, svc)
	view, _ := svc.StartSession(ctx, sv.ID, "acct-1")

	_, _ = svc.SelectOption(ctx, view.ID, "acct-1", 2)
	_, _ = svc.Advance(ctx, view.ID, "acct-1")
	got, err := svc.GoBack(ctx, view.ID, "acct-1")
	if err != nil {
		t.Fatalf("GoBack: %v", err)
	}
	if got.State.Current != 0 || got.State.Selected == nil || *got.State.Selected != 2 {
		t.Errorf("expected index 0 with selection 2, got %+v", got.State)
	}
}

func TestService_SessionsAreScopedToAccount(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	sv := seedCRAFFT(t, svc)
	view, _ := svc.StartSession(ctx, sv.ID, "acct-1")

	if _, err := svc.GetSession(ctx, view.ID, "acct-2"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound for other account, got %v", err)
	}
	if _, err := svc.Advance(ctx, view.ID, "acct-2"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound for other account, got %v", err)
	}
}

func TestService_StartSessionErrors(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.StartSession(ctx, uuid.New(), "acct-1"); !errors.Is(err, ErrSurveyNotFound) {
		t.Errorf("expected ErrSurveyNotFound, got %v", err)
	}
	sv := seedCRAFFT(t, svc)
	if _, err := svc.StartSession(ctx, sv.ID, ""); err == nil {
		t.Error("expected error without account")
	}
}

func TestService_GetSubmissionVisibility(t *testing.T) {
	svc, _, subs := newTestService()
	ctx := context.Background()
	sub := &Submission{AccountID: "acct-1", Score: 3, RiskTier: RiskMedium}
	_ = subs.Create(ctx, sub)

	if _, err := svc.GetSubmission(ctx, sub.ID, "acct-1", false); err != nil {
		t.Errorf("owner should see submission: %v", err)
	}
	if _, err := svc.GetSubmission(ctx, sub.ID, "acct-2", false); !errors.Is(err, ErrSubmissionNotFound) {
		t.Errorf("expected ErrSubmissionNotFound for other account, got %v", err)
	}
	if _, err := svc.GetSubmission(ctx, sub.ID, "staff-1", true); err != nil {
		t.Errorf("privileged caller should see submission: %v", err)
	}

	items, total, err := svc.ListSubmissions(ctx, "acct-1", 20, 0)
	if err != nil || total != 1 || len(items) != 1 {
		t.Errorf("expected one submission, got %d/%d (%v)", len(items), total, err)
	}
}

func TestService_SessionKeepsSurveyAcrossReimport(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	sv := seedCRAFFT(t, svc)

	view, err := svc.StartSession(ctx, sv.ID, "acct-1")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	sid := view.ID
	for _, opt := range []int{1, 1} {
		_, _ = svc.SelectOption(ctx, sid, "acct-1", opt)
		_, _ = svc.Advance(ctx, sid, "acct-1")
	}

	short := &Survey{
		Slug:  CRAFFTSlug,
		Title: "Short screening",
		Questions: []Question{
			{ID: 1, Text: "Used in the past year?", Options: []Option{{Text: "Never"}, {Text: "Yes", Score: 3}}},
			{ID: 2, Text: "Used alone?", Options: []Option{{Text: "No"}, {Text: "Yes", Score: 1}}},
		},
	}
	if err := svc.ImportSurvey(ctx, short); err != nil {
		t.Fatalf("ImportSurvey: %v", err)
	}

	got, err := svc.GetSession(ctx, sid, "acct-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.QuestionCount != 11 || got.State.Current != 2 || got.Question == nil || got.Question.ID != 103 {
		t.Fatalf("session should keep the survey it started with, got %+v", got)
	}

	for !got.State.Terminated {
		if _, err := svc.SelectOption(ctx, sid, "acct-1", 1); err != nil {
			t.Fatalf("SelectOption at %d: %v", got.State.Current, err)
		}
		if got, err = svc.Advance(ctx, sid, "acct-1"); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}
	if got.Result == nil || got.Result.Score != 16 || got.Result.RiskTier != RiskHigh {
		t.Errorf("unexpected result %+v", got.Result)
	}

	fresh, err := svc.StartSession(ctx, sv.ID, "acct-2")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if fresh.QuestionCount != 2 {
		t.Errorf("new sessions should use the imported survey, got %d questions", fresh.QuestionCount)
	}
}

func TestService_SubmitOncePerAttempt(t *testing.T) {
	svc, _, subs := newTestService()
	ctx := context.Background()
	sv := seedCRAFFT(t, svc)

	view, _ := svc.StartSession(ctx, sv.ID, "acct-1")
	sid := view.ID
	_, _ = svc.SelectOption(ctx, sid, "acct-1", 0)
	_, _ = svc.Advance(ctx, sid, "acct-1")

	// a second caller that loaded the session before the first submit landed
	stale, err := svc.sessions.Get(ctx, sid)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := svc.Submit(ctx, sid, "acct-1"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := svc.sessions.Save(ctx, stale); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := svc.Submit(ctx, sid, "acct-1"); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
	if len(subs.store) != 1 {
		t.Errorf("expected one stored submission, got %d", len(subs.store))
	}

	_, _ = svc.Restart(ctx, sid, "acct-1")
	_, _ = svc.SelectOption(ctx, sid, "acct-1", 0)
	_, _ = svc.Advance(ctx, sid, "acct-1")
	if _, err := svc.Submit(ctx, sid, "acct-1"); err != nil {
		t.Fatalf("Submit after restart: %v", err)
	}
	if len(subs.store) != 2 {
		t.Errorf("expected a second submission for the new attempt, got %d", len(subs.store))
	}
}
