package survey

import (
	"time"

	"github.com/google/uuid"
)

// Survey is a fixed, ordered questionnaire. Questions are addressed by their
// position in Questions; the ID field is only used to key submitted answers.
type Survey struct {
	ID        uuid.UUID  `db:"id" json:"id" yaml:"-"`
	Slug      string     `db:"slug" json:"slug" yaml:"slug"`
	Title     string     `db:"title" json:"title" yaml:"title"`
	Note      string     `db:"note" json:"note" yaml:"note"`
	Questions []Question `db:"questions" json:"questions" yaml:"questions"`
	CreatedAt time.Time  `db:"created_at" json:"created_at" yaml:"-"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at" yaml:"-"`
}

type Question struct {
	ID      int64    `json:"id" yaml:"id"`
	Text    string   `json:"question" yaml:"question"`
	Options []Option `json:"options" yaml:"options"`
}

type Option struct {
	ID    int64  `json:"id,omitempty" yaml:"id,omitempty"`
	Text  string `json:"text" yaml:"text"`
	Score int    `json:"score" yaml:"score"`
}

// maxScore returns the highest option score of the question.
func (q *Question) maxScore() int {
	max := 0
	for _, o := range q.Options {
		if o.Score > max {
			max = o.Score
		}
	}
	return max
}

// AnswerSet maps question index to selected option index.
type AnswerSet map[int]int

func (a AnswerSet) clone() AnswerSet {
	out := make(AnswerSet, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

type RiskTier string

const (
	RiskLow    RiskTier = "LOW"
	RiskMedium RiskTier = "MEDIUM"
	RiskHigh   RiskTier = "HIGH"
)

// Tier thresholds, inclusive.
const (
	mediumThreshold = 2
	highThreshold   = 7
)

// TierFor classifies a total score.
func TierFor(score int) RiskTier {
	switch {
	case score >= highThreshold:
		return RiskHigh
	case score >= mediumThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Result is derived from a terminated flow and never stored on its own.
type Result struct {
	Score            int      `json:"score"`
	MaxPossibleScore int      `json:"maxPossibleScore"`
	RiskTier         RiskTier `json:"riskTier"`
}

// Evaluate scores an answer set against the survey's option table.
func Evaluate(s *Survey, answers AnswerSet) Result {
	var res Result
	for qi, oi := range answers {
		if qi < 0 || qi >= len(s.Questions) {
			continue
		}
		q := &s.Questions[qi]
		if oi < 0 || oi >= len(q.Options) {
			continue
		}
		res.Score += q.Options[oi].Score
		res.MaxPossibleScore += q.maxScore()
	}
	res.RiskTier = TierFor(res.Score)
	return res
}

// Answer is the wire form of one committed answer.
type Answer struct {
	QuestionID       int64 `json:"questionId"`
	SelectedOptionID int64 `json:"selectedOptionId"`
}

// Submission records a completed survey for an account.
type Submission struct {
	ID        uuid.UUID `db:"id" json:"id"`
	AttemptID uuid.UUID `db:"attempt_id" json:"attemptId"`
	SurveyID  uuid.UUID `db:"survey_id" json:"surveyId"`
	AccountID string    `db:"account_id" json:"accountId"`
	Answers   []Answer  `db:"answers" json:"answers"`
	Score     int       `db:"score" json:"score"`
	MaxScore  int       `db:"max_score" json:"maxPossibleScore"`
	RiskTier  RiskTier  `db:"risk_tier" json:"riskTier"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// answersFor converts an answer set to wire answers ordered by question index.
func answersFor(s *Survey, answers AnswerSet) []Answer {
	out := make([]Answer, 0, len(answers))
	for qi := range s.Questions {
		oi, ok := answers[qi]
		if !ok || oi < 0 || oi >= len(s.Questions[qi].Options) {
			continue
		}
		out = append(out, Answer{
			QuestionID:       s.Questions[qi].ID,
			SelectedOptionID: s.Questions[qi].Options[oi].ID,
		})
	}
	return out
}
