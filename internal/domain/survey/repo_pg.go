package survey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// =========== Survey Repository ===========

type surveyRepoPG struct{ pool *pgxpool.Pool }

func NewSurveyRepoPG(pool *pgxpool.Pool) SurveyRepository { return &surveyRepoPG{pool: pool} }

const surveyCols = `id, slug, title, note, questions, created_at, updated_at`

func (r *surveyRepoPG) scanSurvey(row pgx.Row) (*Survey, error) {
	var s Survey
	var questions []byte
	if err := row.Scan(&s.ID, &s.Slug, &s.Title, &s.Note, &questions, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSurveyNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(questions, &s.Questions); err != nil {
		return nil, fmt.Errorf("decode questions of survey %s: %w", s.ID, err)
	}
	return &s, nil
}

func (r *surveyRepoPG) Save(ctx context.Context, s *Survey) error {
	questions, err := json.Marshal(s.Questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO survey (id, slug, title, note, questions)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (slug) DO UPDATE SET title = EXCLUDED.title, note = EXCLUDED.note,
			questions = EXCLUDED.questions, updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		s.ID, s.Slug, s.Title, s.Note, questions).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

func (r *surveyRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Survey, error) {
	return r.scanSurvey(r.pool.QueryRow(ctx, `SELECT `+surveyCols+` FROM survey WHERE id = $1`, id))
}

func (r *surveyRepoPG) GetBySlug(ctx context.Context, slug string) (*Survey, error) {
	return r.scanSurvey(r.pool.QueryRow(ctx, `SELECT `+surveyCols+` FROM survey WHERE slug = $1`, slug))
}

func (r *surveyRepoPG) List(ctx context.Context, limit, offset int) ([]*Survey, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM survey`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+surveyCols+` FROM survey ORDER BY title LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Survey
	for rows.Next() {
		s, err := r.scanSurvey(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

// =========== Submission Repository ===========

type submissionRepoPG struct{ pool *pgxpool.Pool }

func NewSubmissionRepoPG(pool *pgxpool.Pool) SubmissionRepository {
	return &submissionRepoPG{pool: pool}
}

const submissionCols = `id, attempt_id, survey_id, account_id, answers, score, max_score, risk_tier, created_at`

func (r *submissionRepoPG) scanSubmission(row pgx.Row) (*Submission, error) {
	var sub Submission
	var answers []byte
	err := row.Scan(&sub.ID, &sub.AttemptID, &sub.SurveyID, &sub.AccountID, &answers,
		&sub.Score, &sub.MaxScore, &sub.RiskTier, &sub.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(answers, &sub.Answers); err != nil {
		return nil, fmt.Errorf("decode answers of submission %s: %w", sub.ID, err)
	}
	return &sub, nil
}

func (r *submissionRepoPG) Create(ctx context.Context, sub *Submission) error {
	answers, err := json.Marshal(sub.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	sub.ID = uuid.New()
	err = r.pool.QueryRow(ctx, `
		INSERT INTO survey_submission (id, attempt_id, survey_id, account_id, answers, score, max_score, risk_tier)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at`,
		sub.ID, sub.AttemptID, sub.SurveyID, sub.AccountID, answers, sub.Score, sub.MaxScore, sub.RiskTier).Scan(&sub.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadySubmitted
	}
	return err
}

func (r *submissionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Submission, error) {
	return r.scanSubmission(r.pool.QueryRow(ctx, `SELECT `+submissionCols+` FROM survey_submission WHERE id = $1`, id))
}

func (r *submissionRepoPG) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*Submission, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM survey_submission WHERE account_id = $1`, accountID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+submissionCols+` FROM survey_submission WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, accountID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Submission
	for rows.Next() {
		sub, err := r.scanSubmission(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, sub)
	}
	return items, total, rows.Err()
}
