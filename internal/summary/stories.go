// File path: internal/summary/stories.go
package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/legacylens/legacylens/internal/common"
	"github.com/legacylens/legacylens/internal/common/telemetry"
	"github.com/legacylens/legacylens/internal/llm"
)

const storySystemPrompt = "You are a business analyst reverse-engineering requirements from " +
	"legacy COBOL summaries. Produce user stories in Connextra form " +
	"(\"As a <role>, I want <goal>, so that <benefit>\"). Respond with a JSON array of " +
	"objects with exactly two keys: \"title\" and \"story_text\". Respond with JSON only."

// Story is one reverse-engineered user story.
type Story struct {
	Title     string `json:"title"`
	StoryText string `json:"story_text"`
}

// GenerateStories turns a program's summaries into user stories. Model
// output is expected to be a JSON array; a stray markdown code fence around
// it is tolerated.
func (s *Summarizer) GenerateStories(ctx context.Context, programName string, summaries []string) ([]Story, error) {
	if s == nil || s.provider == nil {
		return nil, fmt.Errorf("no model provider configured")
	}
	var usable []string
	for _, text := range summaries {
		if strings.TrimSpace(text) == "" || IsErrorSummary(text) {
			continue
		}
		usable = append(usable, text)
	}
	if len(usable) == 0 {
		return nil, fmt.Errorf("no usable summaries for program %s", programName)
	}
	ctx, finish := telemetry.StartSpan(ctx, "summary.stories")
	defer finish("program", programName)

	prompt := fmt.Sprintf("Program %s is described by these summaries:\n\n%s\n\nDerive the user stories.",
		programName, strings.Join(usable, "\n\n"))
	text, err := s.provider.Chat(ctx, []llm.Message{
		{Role: "system", Content: storySystemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return nil, fmt.Errorf("generate stories for %s: %w", programName, err)
	}

	stories, err := decodeStories(text)
	if err != nil {
		common.Logger().Warn("summary: story decode failed",
			"program", programName, "error", err)
		return nil, fmt.Errorf("decode stories for %s: %w", programName, err)
	}
	return stories, nil
}

func decodeStories(text string) ([]Story, error) {
	text = stripCodeFence(text)
	var stories []Story
	if err := json.Unmarshal([]byte(text), &stories); err != nil {
		return nil, err
	}
	out := stories[:0]
	for _, story := range stories {
		story.Title = strings.TrimSpace(story.Title)
		story.StoryText = strings.TrimSpace(story.StoryText)
		if story.Title == "" && story.StoryText == "" {
			continue
		}
		out = append(out, story)
	}
	return out, nil
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
