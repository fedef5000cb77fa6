package survey

import (
	"context"

	"github.com/google/uuid"
)

type SurveyRepository interface {
	// Save inserts the survey or replaces the one with the same slug. The
	// stored ID is written back to s.
	Save(ctx context.Context, s *Survey) error
	GetByID(ctx context.Context, id uuid.UUID) (*Survey, error)
	GetBySlug(ctx context.Context, slug string) (*Survey, error)
	List(ctx context.Context, limit, offset int) ([]*Survey, int, error)
}

type SubmissionRepository interface {
	// Create returns ErrAlreadySubmitted when the attempt already has a
	// submission.
	Create(ctx context.Context, sub *Submission) error
	GetByID(ctx context.Context, id uuid.UUID) (*Submission, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*Submission, int, error)
}
