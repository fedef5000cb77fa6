package survey

import "errors"

var (
	ErrSurveyNotFound     = errors.New("survey not found")
	ErrSessionNotFound    = errors.New("survey session not found")
	ErrSubmissionNotFound = errors.New("survey submission not found")
	ErrMalformedSurvey    = errors.New("malformed survey")

	ErrInvalidOption     = errors.New("option index out of range")
	ErrNotTerminated     = errors.New("survey has not reached the result stage")
	ErrAlreadyTerminated = errors.New("survey session has already terminated")
	ErrAlreadySubmitted  = errors.New("survey session already submitted")
)
