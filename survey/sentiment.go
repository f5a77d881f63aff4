package survey

import (
	"math"
	"strings"
	"unicode"

	"roommatch/models"
)

var positiveWords = map[string]bool{
	"love": true, "like": true, "enjoy": true, "great": true, "good": true, "happy": true,
	"clean": true, "tidy": true, "quiet": true, "friendly": true, "respectful": true,
	"flexible": true, "calm": true, "chill": true, "easygoing": true, "fun": true,
	"organized": true, "considerate": true, "yes": true, "always": true,
}

var negativeWords = map[string]bool{
	"hate": true, "dislike": true, "messy": true, "loud": true, "dirty": true, "rude": true,
	"never": true, "no": true, "annoying": true, "smoke": true, "smoking": true,
	"allergic": true, "late": true, "noisy": true, "bad": true, "not": true,
}

// Sentiment scores text with a small lexicon. The result is in [-1, 1]; text
// with no lexicon words scores 0.
func Sentiment(text string) float64 {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	var pos, neg int
	for _, w := range words {
		switch {
		case positiveWords[w]:
			pos++
		case negativeWords[w]:
			neg++
		}
	}
	if pos+neg == 0 {
		return 0
	}
	return round2(float64(pos-neg) / float64(pos+neg))
}

// BaseScore is the weighted sentiment sum over answers. Unknown questions
// weigh 1.
func BaseScore(answers []models.Answer) float64 {
	var total float64
	for _, a := range answers {
		w := 1.0
		if q, ok := Lookup(a.QuestionID); ok {
			w = q.Weight
		}
		total += w * a.SentimentScore
	}
	return round2(total)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
