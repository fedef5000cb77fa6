package survey

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed crafft.yaml
var crafftYAML []byte

// CRAFFTSlug identifies the built-in screening survey.
const CRAFFTSlug = "crafft"

// CRAFFT returns a fresh copy of the built-in risk screening survey.
func CRAFFT() *Survey {
	s, err := ParseDefinitionYAML(crafftYAML)
	if err != nil {
		panic(fmt.Sprintf("survey: embedded CRAFFT definition: %v", err))
	}
	return s
}

// ParseDefinitionYAML decodes and validates a survey definition.
func ParseDefinitionYAML(data []byte) (*Survey, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: definition is empty", ErrMalformedSurvey)
	}
	var s Survey
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: decode definition: %v", ErrMalformedSurvey, err)
	}
	s.Normalize()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadDefinitionFile reads and parses a YAML survey definition from disk.
func LoadDefinitionFile(path string) (*Survey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("survey: read %s: %w", path, err)
	}
	s, err := ParseDefinitionYAML(data)
	if err != nil {
		return nil, fmt.Errorf("survey: %s: %w", path, err)
	}
	return s, nil
}

// Normalize trims text and assigns positional IDs to questions and options
// that were defined without one.
func (s *Survey) Normalize() {
	s.Slug = strings.ToLower(strings.TrimSpace(s.Slug))
	s.Title = strings.TrimSpace(s.Title)
	s.Note = strings.TrimSpace(s.Note)
	for qi := range s.Questions {
		q := &s.Questions[qi]
		q.Text = strings.TrimSpace(q.Text)
		if q.ID == 0 {
			q.ID = int64(qi + 1)
		}
		for oi := range q.Options {
			o := &q.Options[oi]
			o.Text = strings.TrimSpace(o.Text)
			if o.ID == 0 {
				o.ID = int64(oi + 1)
			}
		}
	}
}

// Validate rejects surveys the flow engine cannot run: no questions, a
// question without options, negative scores or duplicate IDs.
func (s *Survey) Validate() error {
	if s.Title == "" {
		return fmt.Errorf("%w: title is required", ErrMalformedSurvey)
	}
	if len(s.Questions) == 0 {
		return fmt.Errorf("%w: at least one question is required", ErrMalformedSurvey)
	}
	seenQ := make(map[int64]bool, len(s.Questions))
	for qi, q := range s.Questions {
		if q.Text == "" {
			return fmt.Errorf("%w: question %d has no text", ErrMalformedSurvey, qi)
		}
		if seenQ[q.ID] {
			return fmt.Errorf("%w: duplicate question id %d", ErrMalformedSurvey, q.ID)
		}
		seenQ[q.ID] = true
		if len(q.Options) == 0 {
			return fmt.Errorf("%w: question %d has no options", ErrMalformedSurvey, qi)
		}
		seenO := make(map[int64]bool, len(q.Options))
		for oi, o := range q.Options {
			if o.Text == "" {
				return fmt.Errorf("%w: question %d option %d has no text", ErrMalformedSurvey, qi, oi)
			}
			if o.Score < 0 {
				return fmt.Errorf("%w: question %d option %d has negative score %d", ErrMalformedSurvey, qi, oi, o.Score)
			}
			if seenO[o.ID] {
				return fmt.Errorf("%w: question %d has duplicate option id %d", ErrMalformedSurvey, qi, o.ID)
			}
			seenO[o.ID] = true
		}
	}
	return nil
}
