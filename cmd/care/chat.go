package main

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ashureev/care-assistant/internal/agent"
	"github.com/ashureev/care-assistant/internal/console"
	"github.com/ashureev/care-assistant/internal/session"
	"github.com/ashureev/care-assistant/internal/store"
)

var plainOutput bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant in the terminal",
	Long:  `Starts an interactive conversation. Type 'help' for commands such as trace, state and clear.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogger(os.Stderr, false)

		a, err := loadApp()
		if err != nil {
			return err
		}

		var archive agent.Archive
		if a.cfg.ArchiveEnabled() {
			repo, err := store.NewSQLite(a.cfg.ArchivePath)
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()
			archive = repo
		}

		svc, err := a.newService(session.NewStore(), archive)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		var opts []console.Option
		if !plainOutput {
			opts = append(opts, console.WithRenderer(console.MarkdownRenderer()))
		}
		return console.New(svc, console.PromptReader{Label: "You"}, os.Stdout, opts...).Run(ctx)
	},
}

func init() {
	chatCmd.Flags().BoolVar(&plainOutput, "plain", false, "print replies without markdown rendering")
	rootCmd.AddCommand(chatCmd)
}
