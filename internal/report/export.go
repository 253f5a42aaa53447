// File path: internal/report/export.go
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/legacylens/legacylens/internal/catalog"
	"github.com/legacylens/legacylens/internal/cobol"
	"github.com/legacylens/legacylens/internal/common"
)

// Service renders markdown reports from the catalog.
type Service struct {
	store *catalog.Store
}

func NewService(store *catalog.Store) *Service {
	return &Service{store: store}
}

// UserStories renders all stored user stories grouped by program.
func (s *Service) UserStories(ctx context.Context) (string, error) {
	stories, err := s.store.ListStories(ctx)
	if err != nil {
		return "", fmt.Errorf("report user stories: %w", err)
	}
	var b strings.Builder
	b.WriteString("# User Stories\n")
	current := ""
	for _, story := range stories {
		if story.Program != current {
			current = story.Program
			fmt.Fprintf(&b, "\n## %s\n\n", current)
		}
		fmt.Fprintf(&b, "### %s\n\n%s\n\n", story.Title, story.StoryText)
	}
	if current == "" {
		b.WriteString("\nNo user stories generated yet.\n")
	}
	return b.String(), nil
}

// Summaries renders the summaries of every program, walking divisions,
// sections and paragraphs in source order.
func (s *Service) Summaries(ctx context.Context) (string, error) {
	programs, err := s.store.ListPrograms(ctx)
	if err != nil {
		return "", fmt.Errorf("report summaries: %w", err)
	}
	var b strings.Builder
	b.WriteString("# Program Summaries\n")
	for _, program := range programs {
		fmt.Fprintf(&b, "\n## %s (%s)\n\n", program.Name, program.Filename)
		units, err := s.store.SummarizedUnits(ctx, program.ID)
		if err != nil {
			return "", fmt.Errorf("report summaries for %s: %w", program.Name, err)
		}
		if len(units) == 0 {
			b.WriteString("No summaries yet.\n")
			continue
		}
		for _, unit := range units {
			fmt.Fprintf(&b, "- **%s**: %s\n", unitLabel(unit), unit.Summary)
		}
	}
	if len(programs) == 0 {
		b.WriteString("\nNo programs ingested yet.\n")
	}
	return b.String(), nil
}

// CallFlows renders the procedure-division call chart of every program as
// an embedded mermaid block.
func (s *Service) CallFlows(ctx context.Context) (string, error) {
	programs, err := s.store.ListPrograms(ctx)
	if err != nil {
		return "", fmt.Errorf("report call flows: %w", err)
	}
	var b strings.Builder
	b.WriteString("# Call Flows\n")
	for _, program := range programs {
		diagram, err := s.store.DivisionDiagram(ctx, program.Name, cobol.DivisionProcedure)
		if errors.Is(err, catalog.ErrNotFound) {
			common.Logger().Debug("report: no procedure division", "program", program.Name)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("report call flow for %s: %w", program.Name, err)
		}
		if strings.TrimSpace(diagram) == "" {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n```mermaid\n%s```\n", program.Name, diagram)
	}
	return b.String(), nil
}

func unitLabel(unit catalog.Unit) string {
	switch unit.Kind {
	case "division":
		return unit.Division + " DIVISION"
	case "section":
		return fmt.Sprintf("%s / %s SECTION", unit.Division, unit.Section)
	default:
		return fmt.Sprintf("%s / %s / %s", unit.Division, unit.Section, unit.Name)
	}
}
