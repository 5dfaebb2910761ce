package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/themateplatform/codemate/internal/proxy"
	"github.com/themateplatform/codemate/internal/suggest"
	"github.com/themateplatform/codemate/internal/ui/styles"
	"github.com/themateplatform/codemate/prompts"
)

var (
	flagSuggestModel string
	flagSuggestApply bool
)

var suggestCmd = &cobra.Command{
	Use:   "suggest <file> <goal>",
	Short: "Ask for a rewrite of a file",
	Long: `Send a file to the assistant with a rewrite goal and show the
proposed change as a unified diff. --apply writes the proposal back
to the file.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSuggest,
}

func init() {
	suggestCmd.Flags().StringVar(&flagSuggestModel, "model", "", "model to use (default from the broker)")
	suggestCmd.Flags().BoolVar(&flagSuggestApply, "apply", false, "write the proposal to the file")
	rootCmd.AddCommand(suggestCmd)
}

func runSuggest(cmd *cobra.Command, args []string) error {
	if err := setupLogging(true); err != nil {
		return err
	}

	path := args[0]
	goal := strings.Join(args[1:], " ")

	original, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	ai, err := newProxyClient()
	if err != nil {
		return err
	}

	result, err := ai.ChatCompletion(cmd.Context(), proxy.ChatRequest{
		Model: flagSuggestModel,
		Messages: []proxy.ChatMessage{
			{Role: "user", Content: prompts.Rewrite(path, goal, string(original))},
		},
	})
	if err != nil {
		return err
	}

	s := suggest.FromResponse(path, string(original), result.Content)
	diff := s.UnifiedDiff()
	if diff == "" {
		fmt.Println("No changes suggested.")
		return nil
	}

	fmt.Print(colorDiff(diff))
	fmt.Println(s.Summary())

	if !flagSuggestApply {
		return nil
	}
	if err := writeProposal(path, s.Proposed); err != nil {
		return fmt.Errorf("applying suggestion: %w", err)
	}
	fmt.Println("Applied to", path)
	return nil
}

// writeProposal replaces the file's contents, keeping its mode.
func writeProposal(path, content string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), info.Mode().Perm())
}

// colorDiff colors a unified diff for terminal display. Pipes get the
// plain text.
func colorDiff(diff string) string {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return diff
	}

	added := lipgloss.NewStyle().Foreground(styles.StatusSuccessColor)
	removed := lipgloss.NewStyle().Foreground(styles.StatusErrorColor)
	header := lipgloss.NewStyle().Foreground(styles.TextMutedColor)

	var b strings.Builder
	for _, line := range strings.Split(strings.TrimSuffix(diff, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"), strings.HasPrefix(line, "@@"):
			b.WriteString(header.Render(line))
		case strings.HasPrefix(line, "+"):
			b.WriteString(added.Render(line))
		case strings.HasPrefix(line, "-"):
			b.WriteString(removed.Render(line))
		default:
			b.WriteString(line)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
