// File path: internal/catalog/queries.go
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/legacylens/legacylens/internal/cobol"
)

// Program is one ingested source file.
type Program struct {
	ID        int64     `db:"id"`
	Filename  string    `db:"filename"`
	Name      string    `db:"name"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Unit is one summarizable code unit (division, section or paragraph)
// joined with its location in the program tree.
type Unit struct {
	ID       int64  `db:"id"`
	Kind     string `db:"kind"`
	Program  string `db:"program"`
	Division string `db:"division"`
	Section  string `db:"section"`
	Name     string `db:"name"`
	Code     string `db:"code"`
	Summary  string `db:"summary"`
}

// Story is one persisted user story.
type Story struct {
	ID        int64  `db:"id"`
	Program   string `db:"program"`
	Title     string `db:"title"`
	StoryText string `db:"story_text"`
}

// ErrNotFound reports a missing catalog row.
var ErrNotFound = errors.New("catalog: not found")

// ReplaceProgram stores a parsed program, replacing any previous version of
// the same file. diagrams holds one rendered chart per division, empty for
// divisions without a call graph.
func (s *Store) ReplaceProgram(ctx context.Context, program *cobol.Program, diagrams []string) error {
	if s == nil || s.db == nil {
		return errors.New("catalog store not initialised")
	}
	if program == nil {
		return errors.New("nil program")
	}
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin replace program: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM programs WHERE filename = ?`, program.Filename); err != nil {
		return fmt.Errorf("delete program %s: %w", program.Filename, err)
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO programs(filename, name, content) VALUES (?, ?, ?)`,
		program.Filename, program.ProgramName, program.Content)
	if err != nil {
		return fmt.Errorf("insert program %s: %w", program.Filename, err)
	}
	programID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("program id for %s: %w", program.Filename, err)
	}

	for di, division := range program.Divisions {
		mermaid := ""
		if di < len(diagrams) {
			mermaid = diagrams[di]
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO divisions(program_id, seq, name, code, mermaid) VALUES (?, ?, ?, ?, ?)`,
			programID, di, division.Name, division.Code, mermaid)
		if err != nil {
			return fmt.Errorf("insert division %s: %w", division.Name, err)
		}
		divisionID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("division id for %s: %w", division.Name, err)
		}
		for si, section := range division.Sections {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO sections(division_id, seq, name, code) VALUES (?, ?, ?, ?)`,
				divisionID, si, section.Name, section.Code)
			if err != nil {
				return fmt.Errorf("insert section %s: %w", section.Name, err)
			}
			sectionID, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("section id for %s: %w", section.Name, err)
			}
			for pi, paragraph := range section.Paragraphs {
				res, err := tx.ExecContext(ctx,
					`INSERT INTO paragraphs(section_id, seq, name, code) VALUES (?, ?, ?, ?)`,
					sectionID, pi, paragraph.Name, paragraph.Code)
				if err != nil {
					return fmt.Errorf("insert paragraph %s: %w", paragraph.Name, err)
				}
				paragraphID, err := res.LastInsertId()
				if err != nil {
					return fmt.Errorf("paragraph id for %s: %w", paragraph.Name, err)
				}
				for ci, callee := range paragraph.Calls {
					if _, err := tx.ExecContext(ctx,
						`INSERT INTO paragraph_calls(paragraph_id, seq, callee) VALUES (?, ?, ?)`,
						paragraphID, ci, callee); err != nil {
						return fmt.Errorf("insert call %s -> %s: %w", paragraph.Name, callee, err)
					}
				}
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace program: %w", err)
	}
	return nil
}

// ListPrograms returns all programs ordered by name.
func (s *Store) ListPrograms(ctx context.Context) ([]Program, error) {
	var programs []Program
	err := s.db.SelectContext(ctx, &programs,
		`SELECT id, filename, name, content, created_at, updated_at FROM programs ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	return programs, nil
}

// ProgramByName looks one program up by its PROGRAM-ID name.
func (s *Store) ProgramByName(ctx context.Context, name string) (*Program, error) {
	var program Program
	err := s.db.GetContext(ctx, &program,
		`SELECT id, filename, name, content, created_at, updated_at FROM programs WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("program %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("program %s: %w", name, err)
	}
	return &program, nil
}

// UnsummarizedDivisions returns divisions with no summary yet, or whose last
// summarization attempt failed.
func (s *Store) UnsummarizedDivisions(ctx context.Context) ([]Unit, error) {
	var units []Unit
	err := s.db.SelectContext(ctx, &units, `
                SELECT d.id, 'division' AS kind, p.name AS program, d.name AS division,
                       '' AS section, d.name AS name, d.code, COALESCE(d.summary, '') AS summary
                FROM divisions d
                JOIN programs p ON p.id = d.program_id
                WHERE d.summary IS NULL OR d.summary LIKE 'Error: %'
                ORDER BY p.name, d.seq`)
	if err != nil {
		return nil, fmt.Errorf("unsummarized divisions: %w", err)
	}
	return units, nil
}

// UnsummarizedSections returns sections pending summarization. Sentinel
// sections that only group paragraphs still count: their code is the raw
// section body.
func (s *Store) UnsummarizedSections(ctx context.Context) ([]Unit, error) {
	var units []Unit
	err := s.db.SelectContext(ctx, &units, `
                SELECT sec.id, 'section' AS kind, p.name AS program, d.name AS division,
                       sec.name AS section, sec.name AS name, sec.code,
                       COALESCE(sec.summary, '') AS summary
                FROM sections sec
                JOIN divisions d ON d.id = sec.division_id
                JOIN programs p ON p.id = d.program_id
                WHERE sec.summary IS NULL OR sec.summary LIKE 'Error: %'
                ORDER BY p.name, d.seq, sec.seq`)
	if err != nil {
		return nil, fmt.Errorf("unsummarized sections: %w", err)
	}
	return units, nil
}

// UnsummarizedParagraphs returns paragraphs pending summarization.
func (s *Store) UnsummarizedParagraphs(ctx context.Context) ([]Unit, error) {
	var units []Unit
	err := s.db.SelectContext(ctx, &units, `
                SELECT par.id, 'paragraph' AS kind, p.name AS program, d.name AS division,
                       sec.name AS section, par.name AS name, par.code,
                       COALESCE(par.summary, '') AS summary
                FROM paragraphs par
                JOIN sections sec ON sec.id = par.section_id
                JOIN divisions d ON d.id = sec.division_id
                JOIN programs p ON p.id = d.program_id
                WHERE par.summary IS NULL OR par.summary LIKE 'Error: %'
                ORDER BY p.name, d.seq, sec.seq, par.seq`)
	if err != nil {
		return nil, fmt.Errorf("unsummarized paragraphs: %w", err)
	}
	return units, nil
}

func (s *Store) SetDivisionSummary(ctx context.Context, id int64, summary string) error {
	return s.setSummary(ctx, "divisions", id, summary)
}

func (s *Store) SetSectionSummary(ctx context.Context, id int64, summary string) error {
	return s.setSummary(ctx, "sections", id, summary)
}

func (s *Store) SetParagraphSummary(ctx context.Context, id int64, summary string) error {
	return s.setSummary(ctx, "paragraphs", id, summary)
}

func (s *Store) setSummary(ctx context.Context, table string, id int64, summary string) error {
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET summary = ? WHERE id = ?", table), summary, id)
	if err != nil {
		return fmt.Errorf("set %s summary: %w", table, err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("set %s summary %d: %w", table, id, ErrNotFound)
	}
	return nil
}

// SummarizedUnits returns all units of a program that carry a usable
// summary, ordered by position. Story generation feeds on these.
func (s *Store) SummarizedUnits(ctx context.Context, programID int64) ([]Unit, error) {
	var units []Unit
	err := s.db.SelectContext(ctx, &units, `
                SELECT d.id, 'division' AS kind, p.name AS program, d.name AS division,
                       '' AS section, d.name AS name, d.code, d.summary AS summary
                FROM divisions d JOIN programs p ON p.id = d.program_id
                WHERE p.id = ? AND d.summary IS NOT NULL AND d.summary NOT LIKE 'Error: %'
                UNION ALL
                SELECT sec.id, 'section', p.name, d.name, sec.name, sec.name, sec.code, sec.summary
                FROM sections sec
                JOIN divisions d ON d.id = sec.division_id
                JOIN programs p ON p.id = d.program_id
                WHERE p.id = ? AND sec.summary IS NOT NULL AND sec.summary NOT LIKE 'Error: %'
                UNION ALL
                SELECT par.id, 'paragraph', p.name, d.name, sec.name, par.name, par.code, par.summary
                FROM paragraphs par
                JOIN sections sec ON sec.id = par.section_id
                JOIN divisions d ON d.id = sec.division_id
                JOIN programs p ON p.id = d.program_id
                WHERE p.id = ? AND par.summary IS NOT NULL AND par.summary NOT LIKE 'Error: %'`,
		programID, programID, programID)
	if err != nil {
		return nil, fmt.Errorf("summarized units: %w", err)
	}
	return units, nil
}

// ReplaceStories overwrites the stored user stories of one program.
func (s *Store) ReplaceStories(ctx context.Context, programID int64, stories []Story) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin replace stories: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM stories WHERE program_id = ?`, programID); err != nil {
		return fmt.Errorf("delete stories: %w", err)
	}
	for i, story := range stories {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stories(program_id, seq, title, story_text) VALUES (?, ?, ?, ?)`,
			programID, i, story.Title, story.StoryText); err != nil {
			return fmt.Errorf("insert story %q: %w", story.Title, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace stories: %w", err)
	}
	return nil
}

// ListStories returns all stories joined with their program name.
func (s *Store) ListStories(ctx context.Context) ([]Story, error) {
	var stories []Story
	err := s.db.SelectContext(ctx, &stories, `
                SELECT st.id, p.name AS program, st.title, st.story_text
                FROM stories st
                JOIN programs p ON p.id = st.program_id
                ORDER BY p.name, st.seq`)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	return stories, nil
}

// StoriesForProgram returns the stories of one program in stored order.
func (s *Store) StoriesForProgram(ctx context.Context, programID int64) ([]Story, error) {
	var stories []Story
	err := s.db.SelectContext(ctx, &stories, `
                SELECT st.id, p.name AS program, st.title, st.story_text
                FROM stories st
                JOIN programs p ON p.id = st.program_id
                WHERE st.program_id = ?
                ORDER BY st.seq`, programID)
	if err != nil {
		return nil, fmt.Errorf("stories for program %d: %w", programID, err)
	}
	return stories, nil
}

// CallGraphForProgram rebuilds the procedure-division call graph of one
// program from the stored paragraphs and their PERFORM references.
func (s *Store) CallGraphForProgram(ctx context.Context, programName string) (*cobol.CallGraph, error) {
	type row struct {
		Paragraph string         `db:"paragraph"`
		Callee    sql.NullString `db:"callee"`
	}
	var rows []row
	err := s.db.SelectContext(ctx, &rows, `
                SELECT par.name AS paragraph, pc.callee AS callee
                FROM paragraphs par
                JOIN sections sec ON sec.id = par.section_id
                JOIN divisions d ON d.id = sec.division_id
                JOIN programs p ON p.id = d.program_id
                LEFT JOIN paragraph_calls pc ON pc.paragraph_id = par.id
                WHERE p.name = ? AND d.name = ?
                ORDER BY d.seq, sec.seq, par.seq, pc.seq`,
		programName, cobol.DivisionProcedure)
	if err != nil {
		return nil, fmt.Errorf("call graph for %s: %w", programName, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("call graph for %s: %w", programName, ErrNotFound)
	}
	graph := &cobol.CallGraph{}
	seen := make(map[string]struct{})
	addNode := func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		graph.Nodes = append(graph.Nodes, name)
	}
	for _, r := range rows {
		addNode(r.Paragraph)
		if r.Callee.Valid {
			addNode(r.Callee.String)
			graph.Edges = append(graph.Edges, cobol.Edge{From: r.Paragraph, To: r.Callee.String})
		}
	}
	return graph, nil
}

// DivisionDiagram returns the stored mermaid chart for a program division.
func (s *Store) DivisionDiagram(ctx context.Context, programName, divisionName string) (string, error) {
	var mermaid sql.NullString
	err := s.db.GetContext(ctx, &mermaid, `
                SELECT d.mermaid FROM divisions d
                JOIN programs p ON p.id = d.program_id
                WHERE p.name = ? AND d.name = ?
                ORDER BY d.seq LIMIT 1`, programName, divisionName)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("diagram for %s.%s: %w", programName, divisionName, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("diagram for %s.%s: %w", programName, divisionName, err)
	}
	return mermaid.String, nil
}

// VectorExists reports whether the unit already has an indexed vector, so
// re-running the process step skips work already done.
func (s *Store) VectorExists(ctx context.Context, kind string, entityID int64) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(1) FROM vectors WHERE kind = ? AND entity_id = ?`, kind, entityID)
	if err != nil {
		return false, fmt.Errorf("vector exists: %w", err)
	}
	return count > 0, nil
}

// RecordVector marks a unit as indexed under the given vector store id.
func (s *Store) RecordVector(ctx context.Context, kind string, entityID int64, vectorID string) error {
	_, err := s.db.ExecContext(ctx, `
                INSERT INTO vectors(kind, entity_id, vector_id) VALUES (?, ?, ?)
                ON CONFLICT(kind, entity_id) DO UPDATE SET vector_id = excluded.vector_id`,
		kind, entityID, vectorID)
	if err != nil {
		return fmt.Errorf("record vector: %w", err)
	}
	return nil
}

// RecordAudit appends one audit trail entry.
func (s *Store) RecordAudit(ctx context.Context, action, detail string) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(action, detail) VALUES (?, ?)`, action, detail); err != nil {
		return fmt.Errorf("record audit: %w", err)
	}
	return nil
}
