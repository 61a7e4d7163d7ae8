// Package view holds the ephemeral per-workspace presentation state and
// projects controller state into a renderable page.
package view

import (
	"errors"
	"sync"
)

type Tab string

const (
	TabDocuments Tab = "documents"
	TabQA        Tab = "qa"
)

var ErrUnknownTab = errors.New("unknown tab")

// Drafts are the compose form fields. They are never persisted.
type Drafts struct {
	DocumentTitle   string `json:"documentTitle"`
	DocumentSubject string `json:"documentSubject"`
	Question        string `json:"question"`
	Answer          string `json:"answer"`
}

// Snapshot is a consistent copy of State.
type Snapshot struct {
	Tab          Tab    `json:"tab"`
	Search       string `json:"search"`
	Drafts       Drafts `json:"drafts"`
	ReplyTo      string `json:"replyTo,omitempty"`
	OpenDocument string `json:"openDocument,omitempty"`
}

// Patch updates selected fields; nil fields are left alone.
type Patch struct {
	Tab             *Tab    `json:"tab,omitempty"`
	Search          *string `json:"search,omitempty"`
	DocumentTitle   *string `json:"documentTitle,omitempty"`
	DocumentSubject *string `json:"documentSubject,omitempty"`
	Question        *string `json:"question,omitempty"`
	Answer          *string `json:"answer,omitempty"`
	ReplyTo         *string `json:"replyTo,omitempty"`
	OpenDocument    *string `json:"openDocument,omitempty"`
}

// State is safe for concurrent use.
type State struct {
	mu sync.Mutex
	s  Snapshot
}

func NewState() *State {
	return &State{s: Snapshot{Tab: TabDocuments}}
}

func (st *State) Snapshot() Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s
}

// Apply validates the patch and applies it whole, or not at all.
func (st *State) Apply(p Patch) error {
	if p.Tab != nil && *p.Tab != TabDocuments && *p.Tab != TabQA {
		return ErrUnknownTab
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	if p.Tab != nil {
		st.s.Tab = *p.Tab
	}
	set(&st.s.Search, p.Search)
	set(&st.s.Drafts.DocumentTitle, p.DocumentTitle)
	set(&st.s.Drafts.DocumentSubject, p.DocumentSubject)
	set(&st.s.Drafts.Question, p.Question)
	set(&st.s.Drafts.Answer, p.Answer)
	set(&st.s.ReplyTo, p.ReplyTo)
	set(&st.s.OpenDocument, p.OpenDocument)
	return nil
}

// DocumentUploaded clears the upload form.
func (st *State) DocumentUploaded() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Drafts.DocumentTitle = ""
	st.s.Drafts.DocumentSubject = ""
}

// QuestionAsked clears the question form.
func (st *State) QuestionAsked() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Drafts.Question = ""
}

// AnswerPosted clears the answer form and closes the reply box.
func (st *State) AnswerPosted() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Drafts.Answer = ""
	st.s.ReplyTo = ""
}
