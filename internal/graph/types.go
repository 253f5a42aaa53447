// File path: internal/graph/types.go
package graph

import "context"

// Client is the graph-database collaborator. Implementations upsert program
// and paragraph nodes and PERFORM relationships; loading the same program
// twice must converge to the same graph.
type Client interface {
	// Available reports whether the backend is reachable and ready.
	Available() bool
	// EnsureSchema guarantees the node tables and relationship types exist.
	EnsureSchema(ctx context.Context) error
	// InsertProgram upserts a program node keyed by program name.
	InsertProgram(ctx context.Context, program Program) error
	// InsertParagraph upserts a paragraph node and attaches it to its program.
	InsertParagraph(ctx context.Context, paragraph Paragraph) error
	// InsertPerform upserts a PERFORMS relationship between two paragraphs
	// of the same program.
	InsertPerform(ctx context.Context, perform Perform) error
	// Close releases resources associated with the client.
	Close() error
}

// Program is a program node.
type Program struct {
	Name     string
	Filename string
	Summary  string
}

// Paragraph is a paragraph node. Defined is false for dangling PERFORM
// targets that have no matching paragraph in the source.
type Paragraph struct {
	Program string
	Name    string
	Summary string
	Defined bool
}

// Perform is one aggregated PERFORM relationship; Occurrences counts how
// many times the caller references the target.
type Perform struct {
	Program     string
	From        string
	To          string
	Occurrences int
}
