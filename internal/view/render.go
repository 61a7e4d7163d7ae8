package view

import (
	"github.com/studyhub/studyhub/internal/catalog"
	"github.com/studyhub/studyhub/internal/identity"
	"github.com/studyhub/studyhub/internal/qa"
)

// Documents is what Render reads from the document catalog.
type Documents interface {
	Search(term string) []catalog.Document
	Find(id string) (catalog.Document, bool)
}

// Questions is what Render reads from the question controller.
type Questions interface {
	Questions() []qa.Question
	Find(id string) (qa.Question, bool)
}

// User is the header identity block.
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Page is the full render model of one workspace.
type Page struct {
	User         *User              `json:"user"`
	CanWrite     bool               `json:"canWrite"`
	State        Snapshot           `json:"state"`
	Documents    []catalog.Document `json:"documents,omitempty"`
	OpenDocument *catalog.Document  `json:"openDocument,omitempty"`
	Questions    []qa.Question      `json:"questions,omitempty"`
	ReplyTo      *qa.Question       `json:"replyTo,omitempty"`
}

// Render projects controller state through the view state. Only the active
// tab's content is included. References to records no longer present are
// dropped.
func Render(st Snapshot, who *identity.Identity, docs Documents, questions Questions) Page {
	p := Page{State: st, CanWrite: who != nil}
	if who != nil {
		p.User = &User{ID: who.ID, FirstName: who.FirstName(), AvatarURL: who.AvatarURL}
	}

	switch st.Tab {
	case TabQA:
		p.Questions = questions.Questions()
		if st.ReplyTo != "" {
			if q, ok := questions.Find(st.ReplyTo); ok {
				p.ReplyTo = &q
			}
		}
	default:
		p.Documents = docs.Search(st.Search)
		if st.OpenDocument != "" {
			if d, ok := docs.Find(st.OpenDocument); ok {
				p.OpenDocument = &d
			}
		}
	}
	return p
}
