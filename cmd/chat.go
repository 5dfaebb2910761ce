package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/themateplatform/codemate/internal/infrastructure/sqlite"
	"github.com/themateplatform/codemate/internal/proxy"
	"github.com/themateplatform/codemate/internal/transcripts/domain"
	"github.com/themateplatform/codemate/internal/ui/styles"
	"github.com/themateplatform/codemate/prompts"
)

// chatWrapWidth is the rendered reply's line width.
const chatWrapWidth = 80

// titleWidth bounds transcript titles derived from prompts.
const titleWidth = 60

var (
	flagChatModel  string
	flagChatNoSave bool
)

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Ask the assistant",
	Long: `Send one message to the assistant and print the reply. The exchange
is saved to the transcript database unless --no-save is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&flagChatModel, "model", "", "model to use (default from the broker)")
	chatCmd.Flags().BoolVar(&flagChatNoSave, "no-save", false, "do not record the exchange")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	if err := setupLogging(true); err != nil {
		return err
	}

	prompt := strings.Join(args, " ")
	ai, err := newProxyClient()
	if err != nil {
		return err
	}

	result, err := ai.ChatCompletion(cmd.Context(), proxy.ChatRequest{
		Model: flagChatModel,
		Messages: []proxy.ChatMessage{
			{Role: domain.RoleSystem, Content: prompts.ChatSystem()},
			{Role: domain.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return err
	}

	rendered, err := renderMarkdown(result.Content)
	if err != nil {
		rendered = result.Content
	}
	fmt.Print(strings.TrimRight(rendered, "\n") + "\n")

	if flagChatNoSave {
		return nil
	}
	if err := saveExchange(prompt, result); err != nil {
		return fmt.Errorf("saving transcript: %w", err)
	}
	return nil
}

// renderMarkdown pretty-prints assistant markdown when stdout is a
// terminal; pipes get the raw text.
func renderMarkdown(text string) (string, error) {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return text, nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(chatWrapWidth),
	)
	if err != nil {
		return "", err
	}
	return r.Render(text)
}

// saveExchange records the prompt and the reply as a new transcript.
func saveExchange(prompt string, result *proxy.ChatResult) error {
	db, err := sqlite.NewDB(cfg.Transcripts.Path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	repo := db.TranscriptRepository()
	t := domain.NewTranscript(transcriptTitle(prompt), string(proxy.ProviderOpenAI), result.Model)
	if err := repo.Save(t); err != nil {
		return err
	}

	if err := repo.AppendMessage(&domain.Message{
		TranscriptID: t.ID,
		Role:         domain.RoleUser,
		Content:      prompt,
	}); err != nil {
		return err
	}

	reply := &domain.Message{
		TranscriptID: t.ID,
		Role:         domain.RoleAssistant,
		Content:      result.Content,
	}
	if result.Usage != nil {
		reply.TokensUsed = result.Usage.TokensUsed
		reply.CostUSD = result.Usage.CostUSD
	}
	return repo.AppendMessage(reply)
}

// transcriptTitle derives a short title from the prompt's first line.
func transcriptTitle(prompt string) string {
	title := strings.TrimSpace(prompt)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}
	return styles.TruncateTitle(title, titleWidth)
}
