package qa

import "time"

// Collection is the document database collection holding Question records.
const Collection = "questions"

// Question is an asked question with its append-only answer thread.
type Question struct {
	ID        string    `json:"id" bson:"-"`
	Question  string    `json:"question" bson:"question"`
	ImageURL  string    `json:"imageUrl" bson:"imageUrl"`
	AskedBy   string    `json:"askedBy" bson:"askedBy"`
	UserID    string    `json:"userId" bson:"userId"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	Answers   []Answer  `json:"answers" bson:"answers"`
}

// Answer is embedded in a Question; array order is display order.
type Answer struct {
	Text       string    `json:"text" bson:"text"`
	AnsweredBy string    `json:"answeredBy" bson:"answeredBy"`
	UserID     string    `json:"userId,omitempty" bson:"userId,omitempty"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
}
