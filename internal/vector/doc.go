// File path: internal/vector/doc.go
package vector

import (
	"strings"

	"github.com/google/uuid"
)

// Vector document kinds. The kind plus the location fields identify one
// indexed unit, so re-running the pipeline overwrites instead of duplicating.
const (
	KindDivision  = "division"
	KindSection   = "section"
	KindParagraph = "paragraph"
	KindStory     = "story"
)

// Doc is one unit of indexed knowledge about a program: the summary of a
// division, section or paragraph, or a generated user story.
type Doc struct {
	Kind      string `json:"kind"`
	Program   string `json:"program"`
	Division  string `json:"division,omitempty"`
	Section   string `json:"section,omitempty"`
	Paragraph string `json:"paragraph,omitempty"`
	Title     string `json:"title,omitempty"`
	Content   string `json:"content"`
}

var docNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// ID derives a stable identifier from the document kind and its location, so
// the same unit always maps to the same vector store entry.
func (d Doc) ID() string {
	key := strings.Join([]string{d.Kind, d.Program, d.Division, d.Section, d.Paragraph, d.Title}, "|")
	return uuid.NewSHA1(docNamespace, []byte(key)).String()
}

// Metadata flattens the document's location fields for the vector store.
func (d Doc) Metadata() map[string]interface{} {
	metadata := map[string]interface{}{
		"kind":    d.Kind,
		"program": d.Program,
	}
	if d.Division != "" {
		metadata["division"] = d.Division
	}
	if d.Section != "" {
		metadata["section"] = d.Section
	}
	if d.Paragraph != "" {
		metadata["paragraph"] = d.Paragraph
	}
	if d.Title != "" {
		metadata["title"] = d.Title
	}
	return metadata
}
