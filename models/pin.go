package models

// Pin keeps a candidate at the top of a user's match list.
type Pin struct {
	UserID    string `bson:"userId" json:"userId"`
	TargetID  string `bson:"targetId" json:"targetId"`
	CreatedAt int64  `bson:"createdAt" json:"createdAt"`
}
