// Package survey validates completed roommate surveys before they reach the
// matching engine.
package survey

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"roommatch/models"
)

const (
	MinAge = 18
	MaxAge = 99
)

var (
	ErrInvalidName     = errors.New("name is required")
	ErrInvalidAge      = errors.New("age out of range")
	ErrUnknownQuestion = errors.New("unknown question")
	ErrInvalidAnswer   = errors.New("unrecognized answer")
	ErrDuplicateAnswer = errors.New("duplicate answer")
	ErrNoAnswers       = errors.New("no answers")
)

// Submission is what the survey UI posts once the conversation is complete.
type Submission struct {
	Name            string          `json:"name"`
	Age             int             `json:"age"`
	Location        string          `json:"location"`
	Major           string          `json:"major"`
	InstagramHandle string          `json:"instagramHandle"`
	Answers         []models.Answer `json:"answers"`
}

// Validate rejects submissions the scorer must never see.
func Validate(s Submission) error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrInvalidName
	}
	if s.Age < MinAge || s.Age > MaxAge {
		return fmt.Errorf("%w: %d (allowed %d-%d)", ErrInvalidAge, s.Age, MinAge, MaxAge)
	}
	if len(s.Answers) == 0 {
		return ErrNoAnswers
	}

	seen := make(map[string]bool, len(s.Answers))
	for _, a := range s.Answers {
		q, ok := Lookup(a.QuestionID)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownQuestion, a.QuestionID)
		}
		if seen[a.QuestionID] {
			return fmt.Errorf("%w: %q", ErrDuplicateAnswer, a.QuestionID)
		}
		seen[a.QuestionID] = true

		text := strings.ToLower(strings.TrimSpace(a.AnswerText))
		if text == "" {
			return fmt.Errorf("%w: %q is blank", ErrInvalidAnswer, a.QuestionID)
		}
		if len(q.Keywords) > 0 && !slices.Contains(q.Keywords, text) {
			return fmt.Errorf("%w: %q for %q", ErrInvalidAnswer, a.AnswerText, a.QuestionID)
		}
	}
	return nil
}

// Profile turns a validated submission into the profile document stored for id.
// Sentiment scores are recomputed server-side.
func (s Submission) Profile(id string, createdAt int64) models.Profile {
	answers := make([]models.Answer, len(s.Answers))
	for i, a := range s.Answers {
		answers[i] = models.Answer{
			QuestionID:     a.QuestionID,
			AnswerText:     strings.TrimSpace(a.AnswerText),
			SentimentScore: Sentiment(a.AnswerText),
		}
	}
	return models.Profile{
		ID:                     id,
		Name:                   strings.TrimSpace(s.Name),
		Answers:                answers,
		Location:               strings.TrimSpace(s.Location),
		Major:                  strings.TrimSpace(s.Major),
		Age:                    s.Age,
		InstagramHandle:        strings.TrimPrefix(strings.TrimSpace(s.InstagramHandle), "@"),
		CompatibilityBaseScore: BaseScore(answers),
		CreatedAt:              createdAt,
	}
}
