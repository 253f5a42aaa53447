// File path: cmd/legacylens/chat.go
package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/legacylens/legacylens/internal/chat"
	"github.com/legacylens/legacylens/internal/llm"
)

func newChatCommand(catalogPath *string) *cobra.Command {
	var question string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions about the analyzed programs",
		Long: "Ask questions about the analyzed programs. With --question the answer is " +
			"printed once; without it an interactive session starts.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx, *catalogPath)
			if err != nil {
				return err
			}
			defer app.Close()

			engine := chat.NewEngine(app.provider, app.vector)
			out := cmd.OutOrStdout()

			if strings.TrimSpace(question) != "" {
				answer, err := engine.Ask(ctx, question, nil)
				if err != nil {
					return err
				}
				printAnswer(out, answer)
				return nil
			}

			fmt.Fprintln(out, "Interactive session. Empty line or Ctrl-D to exit.")
			scanner := bufio.NewScanner(cmd.InOrStdin())
			var history []llm.Message
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					return nil
				}
				answer, err := engine.Ask(ctx, line, history)
				if err != nil {
					fmt.Fprintf(out, "error: %v\n", err)
					continue
				}
				printAnswer(out, answer)
				history = append(history,
					llm.Message{Role: "user", Content: line},
					llm.Message{Role: "assistant", Content: answer.Text},
				)
			}
		},
	}
	cmd.Flags().StringVarP(&question, "question", "q", "", "ask a single question and exit")
	return cmd
}

func printAnswer(out io.Writer, answer *chat.Answer) {
	fmt.Fprintln(out, answer.Text)
	if len(answer.References) > 0 {
		fmt.Fprintln(out, "\nReferences:")
		for i, ref := range answer.References {
			location := ref.Program
			for _, part := range []string{ref.Division, ref.Section, ref.Paragraph, ref.Title} {
				if part != "" {
					location += " / " + part
				}
			}
			fmt.Fprintf(out, "  [%d] %s (score %.2f)\n", i+1, location, ref.Score)
		}
	}
}
