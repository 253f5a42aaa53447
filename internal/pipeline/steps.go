// File path: internal/pipeline/steps.go
package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/legacylens/legacylens/internal/catalog"
	"github.com/legacylens/legacylens/internal/cobol"
	"github.com/legacylens/legacylens/internal/common"
	"github.com/legacylens/legacylens/internal/common/telemetry"
	"github.com/legacylens/legacylens/internal/diagram"
	"github.com/legacylens/legacylens/internal/graph"
	"github.com/legacylens/legacylens/internal/llm"
	"github.com/legacylens/legacylens/internal/summary"
	"github.com/legacylens/legacylens/internal/vector"
)

// Deps carries the collaborators the steps operate on. Graph and Vector are
// optional: a run without them still parses, summarizes and reports.
type Deps struct {
	Store      *catalog.Store
	Graph      graph.Client
	Vector     vector.Store
	Provider   llm.Provider
	Summarizer *summary.Summarizer
	SourceDir  string
}

// Steps assembles the standard four-step sequence.
func Steps(deps Deps) []Step {
	return []Step{
		{Name: StepSetup, Run: deps.setup},
		{Name: StepIngest, Run: deps.ingest},
		{Name: StepProcess, Run: deps.process},
		{Name: StepStories, Run: deps.stories},
	}
}

func (d Deps) graphReady() bool {
	return d.Graph != nil && d.Graph.Available()
}

func (d Deps) vectorReady() bool {
	return d.Vector != nil && d.Vector.Available()
}

// setup resets the catalog schema and prepares the graph and vector
// backends.
func (d Deps) setup(ctx context.Context) error {
	logger := common.Logger()
	if err := d.Store.Setup(ctx); err != nil {
		return fmt.Errorf("setup catalog: %w", err)
	}
	if d.graphReady() {
		if err := d.Graph.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("setup graph schema: %w", err)
		}
	} else {
		logger.Info("pipeline: graph backend not available; skipping schema")
	}
	if d.vectorReady() {
		probe, err := d.Provider.Embed(ctx, []string{"dimension probe"})
		if err != nil {
			return fmt.Errorf("probe embedding dimension: %w", err)
		}
		dim := vector.VectorDimension(probe)
		if err := d.Vector.EnsureCollection(ctx, dim); err != nil {
			return fmt.Errorf("setup vector collection: %w", err)
		}
	} else {
		logger.Info("pipeline: vector backend not available; skipping collection")
	}
	return d.Store.RecordAudit(ctx, "setup", "schema reset")
}

// ingest parses every COBOL source under SourceDir and replaces the stored
// representation of each program. A failing file is logged and skipped; the
// step fails only when nothing could be ingested.
func (d Deps) ingest(ctx context.Context) error {
	logger := common.Logger()
	files, err := listSources(d.SourceDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no COBOL sources found under %s", d.SourceDir)
	}
	ingested := 0
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("pipeline: source unreadable", "file", path, "error", err)
			continue
		}
		rel, err := filepath.Rel(d.SourceDir, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		program := cobol.ParseProgram(filepath.ToSlash(rel), string(raw))
		telemetry.RecordParse(countParagraphs(program))

		diagrams := make([]string, len(program.Divisions))
		for i, division := range program.Divisions {
			if division.CallGraph != nil {
				diagrams[i] = diagram.Mermaid(division.CallGraph)
			}
		}
		if err := d.Store.ReplaceProgram(ctx, program, diagrams); err != nil {
			logger.Warn("pipeline: store program failed",
				"program", program.ProgramName, "file", rel, "error", err)
			continue
		}
		if d.graphReady() {
			if err := graph.Load(ctx, d.Graph, program); err != nil {
				logger.Warn("pipeline: graph load failed",
					"program", program.ProgramName, "error", err)
			}
		}
		logger.Info("pipeline: ingested program",
			"program", program.ProgramName, "file", rel)
		ingested++
	}
	if ingested == 0 {
		return fmt.Errorf("all %d sources under %s failed to ingest", len(files), d.SourceDir)
	}
	return d.Store.RecordAudit(ctx, "ingest",
		fmt.Sprintf("%d programs from %s", ingested, d.SourceDir))
}

// process summarizes every pending unit and indexes the results. Units whose
// model call failed keep an "Error: " summary and stay pending for the next
// run.
func (d Deps) process(ctx context.Context) error {
	if err := d.summarizeDivisions(ctx); err != nil {
		return err
	}
	if err := d.summarizeSections(ctx); err != nil {
		return err
	}
	if err := d.summarizeParagraphs(ctx); err != nil {
		return err
	}
	if err := d.indexSummaries(ctx); err != nil {
		return err
	}
	return d.Store.RecordAudit(ctx, "process", "summaries refreshed")
}

func (d Deps) summarizeDivisions(ctx context.Context) error {
	units, err := d.Store.UnsummarizedDivisions(ctx)
	if err != nil {
		return err
	}
	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return err
		}
		text := d.Summarizer.Summarize(ctx, "division", unit.Name, unit.Code)
		if err := d.Store.SetDivisionSummary(ctx, unit.ID, text); err != nil {
			return err
		}
	}
	return nil
}

func (d Deps) summarizeSections(ctx context.Context) error {
	units, err := d.Store.UnsummarizedSections(ctx)
	if err != nil {
		return err
	}
	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return err
		}
		text := d.Summarizer.Summarize(ctx, "section", unit.Name, unit.Code)
		if err := d.Store.SetSectionSummary(ctx, unit.ID, text); err != nil {
			return err
		}
	}
	return nil
}

func (d Deps) summarizeParagraphs(ctx context.Context) error {
	units, err := d.Store.UnsummarizedParagraphs(ctx)
	if err != nil {
		return err
	}
	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return err
		}
		text := d.Summarizer.Summarize(ctx, "paragraph", unit.Name, unit.Code)
		if err := d.Store.SetParagraphSummary(ctx, unit.ID, text); err != nil {
			return err
		}
	}
	return nil
}

// indexSummaries embeds every summarized unit not yet present in the vector
// store. Document IDs derive from the unit location, so reruns overwrite.
func (d Deps) indexSummaries(ctx context.Context) error {
	if !d.vectorReady() {
		common.Logger().Info("pipeline: vector backend not available; skipping indexing")
		return nil
	}
	programs, err := d.Store.ListPrograms(ctx)
	if err != nil {
		return err
	}
	for _, program := range programs {
		units, err := d.Store.SummarizedUnits(ctx, program.ID)
		if err != nil {
			return err
		}
		var pending []indexable
		for _, unit := range units {
			exists, err := d.Store.VectorExists(ctx, unit.Kind, unit.ID)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			pending = append(pending, indexable{
				doc:      unitDoc(program.Name, unit),
				kind:     unit.Kind,
				entityID: unit.ID,
			})
		}
		if err := d.indexDocs(ctx, pending); err != nil {
			return fmt.Errorf("index summaries for %s: %w", program.Name, err)
		}
	}
	return nil
}

// stories derives user stories per program from its accumulated summaries
// and indexes them. A program without usable summaries is skipped, not
// fatal.
func (d Deps) stories(ctx context.Context) error {
	logger := common.Logger()
	programs, err := d.Store.ListPrograms(ctx)
	if err != nil {
		return err
	}
	generated := 0
	for _, program := range programs {
		if err := ctx.Err(); err != nil {
			return err
		}
		units, err := d.Store.SummarizedUnits(ctx, program.ID)
		if err != nil {
			return err
		}
		summaries := make([]string, 0, len(units))
		for _, unit := range units {
			summaries = append(summaries, unit.Summary)
		}
		stories, err := d.Summarizer.GenerateStories(ctx, program.Name, summaries)
		if err != nil {
			logger.Warn("pipeline: story generation skipped",
				"program", program.Name, "error", err)
			continue
		}
		rows := make([]catalog.Story, len(stories))
		for i, story := range stories {
			rows[i] = catalog.Story{Title: story.Title, StoryText: story.StoryText}
		}
		if err := d.Store.ReplaceStories(ctx, program.ID, rows); err != nil {
			return err
		}
		if err := d.indexStories(ctx, program); err != nil {
			return err
		}
		generated += len(rows)
	}
	return d.Store.RecordAudit(ctx, "stories",
		fmt.Sprintf("%d stories across %d programs", generated, len(programs)))
}

func (d Deps) indexStories(ctx context.Context, program catalog.Program) error {
	if !d.vectorReady() {
		return nil
	}
	stories, err := d.Store.StoriesForProgram(ctx, program.ID)
	if err != nil {
		return err
	}
	var pending []indexable
	for _, story := range stories {
		exists, err := d.Store.VectorExists(ctx, vector.KindStory, story.ID)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		pending = append(pending, indexable{
			doc: vector.Doc{
				Kind:    vector.KindStory,
				Program: program.Name,
				Title:   story.Title,
				Content: story.StoryText,
			},
			kind:     vector.KindStory,
			entityID: story.ID,
		})
	}
	if err := d.indexDocs(ctx, pending); err != nil {
		return fmt.Errorf("index stories for %s: %w", program.Name, err)
	}
	return nil
}

type indexable struct {
	doc      vector.Doc
	kind     string
	entityID int64
}

func (d Deps) indexDocs(ctx context.Context, pending []indexable) error {
	if len(pending) == 0 {
		return nil
	}
	contents := make([]string, len(pending))
	docs := make([]vector.Doc, len(pending))
	for i, item := range pending {
		contents[i] = item.doc.Content
		docs[i] = item.doc
	}
	vectors, err := d.Provider.Embed(ctx, contents)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("embedding count mismatch: %d vectors for %d documents",
			len(vectors), len(docs))
	}
	if err := d.Vector.UpsertDocs(ctx, docs, vectors); err != nil {
		return err
	}
	for _, item := range pending {
		if err := d.Store.RecordVector(ctx, item.kind, item.entityID, item.doc.ID()); err != nil {
			return err
		}
	}
	return nil
}

func unitDoc(programName string, unit catalog.Unit) vector.Doc {
	doc := vector.Doc{
		Kind:     unit.Kind,
		Program:  programName,
		Division: unit.Division,
		Content:  unit.Summary,
	}
	switch unit.Kind {
	case vector.KindSection:
		doc.Section = unit.Section
	case vector.KindParagraph:
		doc.Section = unit.Section
		doc.Paragraph = unit.Name
	}
	return doc
}

func listSources(root string) ([]string, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("source directory required")
	}
	var files []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".cbl", ".cob", ".cpy":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan sources under %s: %w", root, err)
	}
	return files, nil
}

func countParagraphs(program *cobol.Program) int {
	count := 0
	for _, division := range program.Divisions {
		for _, section := range division.Sections {
			count += len(section.Paragraphs)
		}
	}
	return count
}
