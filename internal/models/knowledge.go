package models

import "time"

// KnowledgeArticle is one entry in the local enrollment FAQ corpus.
// Articles ground LLM drafts so replies cite institutional policy
// instead of model guesswork.
type KnowledgeArticle struct {
	ID        string    `json:"id" badgerhold:"key"`
	Title     string    `json:"title"`
	Body      string    `json:"body"` // markdown
	Tags      []string  `json:"tags,omitempty"`
	Source    string    `json:"source,omitempty"` // file the article was loaded from
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
