// File path: internal/graph/memory/service.go
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/legacylens/legacylens/internal/graph"
)

// Service is an in-memory graph.Client. It backs the pipeline when no graph
// database is configured and answers simple traversal questions about the
// loaded call graphs.
type Service struct {
	mu         sync.RWMutex
	programs   map[string]graph.Program
	paragraphs map[string]map[string]graph.Paragraph
	performs   map[string]map[string]map[string]int
}

// NewService constructs an empty in-memory graph.
func NewService() *Service {
	return &Service{
		programs:   make(map[string]graph.Program),
		paragraphs: make(map[string]map[string]graph.Paragraph),
		performs:   make(map[string]map[string]map[string]int),
	}
}

func (s *Service) Available() bool { return s != nil }

func (s *Service) EnsureSchema(ctx context.Context) error { return nil }

func (s *Service) InsertProgram(ctx context.Context, program graph.Program) error {
	if program.Name == "" {
		return fmt.Errorf("program name required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.programs[program.Name] = program
	if s.paragraphs[program.Name] == nil {
		s.paragraphs[program.Name] = make(map[string]graph.Paragraph)
	}
	if s.performs[program.Name] == nil {
		s.performs[program.Name] = make(map[string]map[string]int)
	}
	return nil
}

func (s *Service) InsertParagraph(ctx context.Context, paragraph graph.Paragraph) error {
	if paragraph.Program == "" || paragraph.Name == "" {
		return fmt.Errorf("paragraph program and name required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paragraphs[paragraph.Program] == nil {
		s.paragraphs[paragraph.Program] = make(map[string]graph.Paragraph)
	}
	s.paragraphs[paragraph.Program][paragraph.Name] = paragraph
	return nil
}

func (s *Service) InsertPerform(ctx context.Context, perform graph.Perform) error {
	if perform.Program == "" || perform.From == "" || perform.To == "" {
		return fmt.Errorf("perform endpoints required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byProgram := s.performs[perform.Program]
	if byProgram == nil {
		byProgram = make(map[string]map[string]int)
		s.performs[perform.Program] = byProgram
	}
	if byProgram[perform.From] == nil {
		byProgram[perform.From] = make(map[string]int)
	}
	byProgram[perform.From][perform.To] = perform.Occurrences
	return nil
}

func (s *Service) Close() error { return nil }

var _ graph.Client = (*Service)(nil)

// Programs lists the loaded program names, sorted.
func (s *Service) Programs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.programs))
	for name := range s.programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Paragraphs lists the paragraph names of one program, sorted.
func (s *Service) Paragraphs(program string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.paragraphs[program]))
	for name := range s.paragraphs[program] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reachable returns every paragraph transitively performed from start,
// excluding start itself unless it participates in a cycle.
func (s *Service) Reachable(program, start string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byProgram := s.performs[program]
	if byProgram == nil {
		return nil
	}
	visited := make(map[string]struct{})
	var walk func(name string)
	walk = func(name string) {
		for callee := range byProgram[name] {
			if _, ok := visited[callee]; ok {
				continue
			}
			visited[callee] = struct{}{}
			walk(callee)
		}
	}
	walk(start)
	names := make([]string, 0, len(visited))
	for name := range visited {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasCycle reports whether the program's PERFORM graph contains a cycle.
func (s *Service) HasCycle(program string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byProgram := s.performs[program]
	if byProgram == nil {
		return false
	}
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int)
	var visit func(name string) bool
	visit = func(name string) bool {
		color[name] = gray
		for callee := range byProgram[name] {
			switch color[callee] {
			case gray:
				return true
			case white:
				if visit(callee) {
					return true
				}
			}
		}
		color[name] = black
		return false
	}
	for name := range byProgram {
		if color[name] == white && visit(name) {
			return true
		}
	}
	return false
}
