// Package matching scores answer-set similarity and ranks candidates.
package matching

import (
	"math"
	"sort"
	"strings"

	"roommatch/models"
)

// DefaultCompatibility is reported when two profiles share no answered question.
const DefaultCompatibility = 50.0

const (
	weightIdentical = 1.0
	weightContains  = 0.8
	weightDifferent = 0.2
)

// Score compares the questions both profiles answered and returns a 0-100
// percentage rounded to two decimals. The denominator is the number of
// overlapping questions, so a single shared identical answer scores 100.
func Score(a, b models.Profile) float64 {
	ma, mb := answerMap(a.Answers), answerMap(b.Answers)

	ids := make([]string, 0, len(ma))
	for id := range ma {
		if _, ok := mb[id]; ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return DefaultCompatibility
	}
	sort.Strings(ids)

	var sum float64
	for _, id := range ids {
		sum += answerWeight(ma[id], mb[id])
	}
	return round2(sum / float64(len(ids)) * 100)
}

func answerWeight(x, y string) float64 {
	switch {
	case x == y:
		return weightIdentical
	case strings.Contains(x, y) || strings.Contains(y, x):
		return weightContains
	default:
		return weightDifferent
	}
}

// answerMap keeps the first non-blank answer per question, normalized.
func answerMap(answers []models.Answer) map[string]string {
	m := make(map[string]string, len(answers))
	for _, a := range answers {
		text := normalize(a.AnswerText)
		if a.QuestionID == "" || text == "" {
			continue
		}
		if _, seen := m[a.QuestionID]; !seen {
			m[a.QuestionID] = text
		}
	}
	return m
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
