package catalog

import "time"

// Collection is the document database collection holding Document records.
const Collection = "documents"

// Document is one uploaded study file. Records are immutable once inserted.
type Document struct {
	ID         string    `json:"id" bson:"-"`
	Title      string    `json:"title" bson:"title"`
	Subject    string    `json:"subject" bson:"subject"`
	URL        string    `json:"url" bson:"url"`
	FileName   string    `json:"fileName" bson:"fileName"`
	UploadedBy string    `json:"uploadedBy" bson:"uploadedBy"`
	UserID     string    `json:"userId" bson:"userId"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
}
