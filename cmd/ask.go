package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"fabricguide/internal/models"
	"fabricguide/internal/service/assistant"
	"fabricguide/internal/worker"
)

var (
	askRemote   bool
	askProvider string
	askModel    string
	askSearch   bool
	askPlain    bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the guide a single question in the terminal",
	Example: `  fabricguide ask "Wat gebeurt er in stap 3?"
  fabricguide ask --remote --provider openai "Hoe borgen we AVG in de gold layer?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		opts := assistant.ConversationOptions{Mode: models.ModeLocal}
		if askRemote {
			provider := askProvider
			if provider == "" {
				provider = a.cfg.Guide.Provider
			}
			model := askModel
			if model == "" {
				model = a.cfg.Providers[provider].Model
			}
			opts = assistant.ConversationOptions{
				Mode:     models.ModeRemote,
				Provider: provider,
				Model:    model,
				Search:   resolveSearch(cmd.Flags().Changed("search"), askSearch, a.cfg.Guide.Search),
			}
		}
		conv, err := a.assistant.CreateConversation(ctx, opts)
		if err != nil {
			return err
		}
		res, err := a.manager.Send(worker.TurnRequest{
			Context:        ctx,
			ConversationID: conv.ID,
			Content:        strings.Join(args, " "),
		})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if askPlain {
			_, err = fmt.Fprintln(out, res.Reply.Content)
			return err
		}
		rendered, err := renderTerminal(res.Reply.Content)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(out, rendered)
		return err
	},
}

// resolveSearch lets an explicit --search flag override the configured default
// in either direction.
func resolveSearch(flagSet, flagValue, configured bool) bool {
	if flagSet {
		return flagValue
	}
	return configured
}

func renderTerminal(markdown string) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return "", fmt.Errorf("terminal renderer: %w", err)
	}
	return renderer.Render(markdown)
}

func init() {
	askCmd.Flags().BoolVar(&askRemote, "remote", false, "answer through the configured language model")
	askCmd.Flags().StringVar(&askProvider, "provider", "", "provider for --remote (gemini, openai, claude)")
	askCmd.Flags().StringVar(&askModel, "model", "", "model for --remote (defaults to the provider's configured model)")
	askCmd.Flags().BoolVar(&askSearch, "search", false, "let the model search the web")
	askCmd.Flags().BoolVar(&askPlain, "plain", false, "print the raw markdown answer")
	rootCmd.AddCommand(askCmd)
}
