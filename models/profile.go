package models

// Answer is one survey response.
type Answer struct {
	QuestionID     string  `bson:"questionId" json:"questionId"`
	AnswerText     string  `bson:"answerText" json:"answerText"`
	SentimentScore float64 `bson:"sentimentScore" json:"sentimentScore"`
}

type Coordinates struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

// Profile is a roommate seeker's public document. ID is the canonical
// identity; UserID is an alias some writers populate instead of ID.
type Profile struct {
	ID                     string       `bson:"_id" json:"id"`
	UserID                 string       `bson:"userId,omitempty" json:"userId,omitempty"`
	Name                   string       `bson:"name" json:"name"`
	Answers                []Answer     `bson:"answers" json:"answers"`
	Location               string       `bson:"location" json:"location"`
	Coordinates            *Coordinates `bson:"coordinates,omitempty" json:"coordinates,omitempty"`
	Major                  string       `bson:"major" json:"major"`
	Age                    int          `bson:"age" json:"age"`
	InstagramHandle        string       `bson:"instagramHandle" json:"instagramHandle"`
	ImageRef               string       `bson:"imageRef" json:"imageRef"`
	CompatibilityBaseScore float64      `bson:"compatibilityBaseScore" json:"compatibilityBaseScore"`
	CreatedAt              int64        `bson:"createdAt" json:"createdAt"` // unix millis
}

// Identity returns the canonical id, falling back to the alias field.
func (p Profile) Identity() string {
	if p.ID != "" {
		return p.ID
	}
	return p.UserID
}

// Identifies reports whether id names this profile through either identity field.
func (p Profile) Identifies(id string) bool {
	if id == "" {
		return false
	}
	return p.ID == id || p.UserID == id
}

// SameIdentity reports whether p and other belong to the same user.
func (p Profile) SameIdentity(other Profile) bool {
	return p.Identifies(other.ID) || p.Identifies(other.UserID)
}
