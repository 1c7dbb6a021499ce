package models

import "time"

// KnowledgeSnippet is a user-authored text block that can be prepended to
// outbound model requests while it is active.
type KnowledgeSnippet struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
