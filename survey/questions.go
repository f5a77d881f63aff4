package survey

// Question describes one survey prompt. Keyword questions only accept the
// listed answers; free-text questions accept anything non-blank.
type Question struct {
	ID       string
	Weight   float64
	Keywords []string
}

// Questions is the catalogue the survey UI walks through.
var Questions = []Question{
	{ID: "noise", Weight: 1.5, Keywords: []string{"quiet", "moderate", "loud"}},
	{ID: "sleep", Weight: 1.5, Keywords: []string{"early", "late", "flexible"}},
	{ID: "cleanliness", Weight: 2, Keywords: []string{"very clean", "clean", "relaxed", "messy"}},
	{ID: "guests", Weight: 1, Keywords: []string{"never", "sometimes", "often"}},
	{ID: "smoking", Weight: 2, Keywords: []string{"yes", "no", "outside only"}},
	{ID: "pets", Weight: 1, Keywords: []string{"yes", "no", "allergic"}},
	{ID: "budget", Weight: 1},
	{ID: "schedule", Weight: 1},
	{ID: "hobbies", Weight: 0.5},
	{ID: "ideal_weekend", Weight: 0.5},
	{ID: "dealbreakers", Weight: 1},
}

var questionIndex = func() map[string]Question {
	m := make(map[string]Question, len(Questions))
	for _, q := range Questions {
		m[q.ID] = q
	}
	return m
}()

// Lookup returns the catalogue entry for id.
func Lookup(id string) (Question, bool) {
	q, ok := questionIndex[id]
	return q, ok
}
