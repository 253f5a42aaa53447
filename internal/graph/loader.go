// File path: internal/graph/loader.go
package graph

import (
	"context"
	"fmt"

	"github.com/legacylens/legacylens/internal/cobol"
	"github.com/legacylens/legacylens/internal/common/telemetry"
)

// Load pushes one parsed program's procedure call graph into the backend.
// Paragraph nodes are keyed by name within the program, so dangling PERFORM
// targets become undefined nodes rather than being dropped. Repeated calls
// from the same paragraph collapse into a single relationship with an
// occurrence count.
func Load(ctx context.Context, client Client, program *cobol.Program) error {
	if client == nil {
		return fmt.Errorf("graph load: no client")
	}
	if program == nil {
		return fmt.Errorf("graph load: nil program")
	}
	if err := client.InsertProgram(ctx, Program{
		Name:     program.ProgramName,
		Filename: program.Filename,
	}); err != nil {
		return fmt.Errorf("graph load program %s: %w", program.ProgramName, err)
	}
	telemetry.RecordGraphLoad("program", 1)

	for _, division := range program.Divisions {
		if division.Name != cobol.DivisionProcedure || division.CallGraph == nil {
			continue
		}
		if err := loadDivision(ctx, client, program.ProgramName, division); err != nil {
			return err
		}
	}
	return nil
}

func loadDivision(ctx context.Context, client Client, programName string, division cobol.Division) error {
	defined := make(map[string]struct{})
	for _, section := range division.Sections {
		for _, paragraph := range section.Paragraphs {
			defined[paragraph.Name] = struct{}{}
		}
	}
	for _, node := range division.CallGraph.Nodes {
		_, isDefined := defined[node]
		if err := client.InsertParagraph(ctx, Paragraph{
			Program: programName,
			Name:    node,
			Defined: isDefined,
		}); err != nil {
			return fmt.Errorf("graph load paragraph %s: %w", node, err)
		}
	}
	telemetry.RecordGraphLoad("paragraph", len(division.CallGraph.Nodes))

	type edgeKey struct{ from, to string }
	counts := make(map[edgeKey]int)
	var order []edgeKey
	for _, edge := range division.CallGraph.Edges {
		key := edgeKey{from: edge.From, to: edge.To}
		if counts[key] == 0 {
			order = append(order, key)
		}
		counts[key]++
	}
	for _, key := range order {
		if err := client.InsertPerform(ctx, Perform{
			Program:     programName,
			From:        key.from,
			To:          key.to,
			Occurrences: counts[key],
		}); err != nil {
			return fmt.Errorf("graph load perform %s -> %s: %w", key.from, key.to, err)
		}
	}
	telemetry.RecordGraphLoad("perform", len(order))
	return nil
}
