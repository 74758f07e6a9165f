package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/etherealheim/aria/core/identity"
	"github.com/etherealheim/aria/core/tasks"
)

var reflectSummary string

var reflectCmd = &cobra.Command{
	Use:   "reflect",
	Short: "Run one identity reflection cycle",
	Long: `Reflect asks the configured chat model what the latest conversation
revealed about the user, applies the proposed trait and dream updates
under fixed caps, decays stale entries, and persists the identity
document. The cycle runs as a background task and is best-effort: a
failed reflection changes nothing.`,
	RunE: runReflect,
}

func init() {
	reflectCmd.Flags().StringVar(&reflectSummary, "summary", "", "conversation summary to reflect on (required)")
	reflectCmd.MarkFlagRequired("summary")
	rootCmd.AddCommand(reflectCmd)
}

func runReflect(cmd *cobra.Command, args []string) error {
	app, err := setup()
	if err != nil {
		return err
	}
	defer app.close()

	chat, err := app.newChatClient()
	if err != nil {
		return err
	}
	day := 24 * time.Hour
	engine := identity.NewEngine(app.identityStore(), chat, identity.Config{
		ReflectionDebounce:     app.config.Identity.ReflectionDebounce,
		TraitDecayAfter:        time.Duration(app.config.Identity.TraitDecayDays) * day,
		ActiveDreamDecayAfter:  time.Duration(app.config.Identity.ActiveDecayDays) * day,
		BacklogDreamDecayAfter: time.Duration(app.config.Identity.BacklogDecayDays) * day,
	}, app.logger)

	recent, err := app.storage.LoadRecentUserMessages(20)
	if err != nil {
		return err
	}
	var recentTexts []string
	for _, msg := range recent {
		recentTexts = append(recentTexts, msg.Content)
	}

	// Snapshot everything the job needs before it leaves this frame.
	runner := tasks.NewRunner(tasks.Config{MaxConcurrent: app.config.Tasks.MaxConcurrent}, app.logger)
	defer runner.Close()
	summary := reflectSummary
	ctx := cmd.Context()
	outcome := <-tasks.Submit(runner, "reflection", func() (struct{}, error) {
		return struct{}{}, engine.ReflectAndUpdate(ctx, summary, recentTexts)
	})
	if outcome.Err != nil {
		app.logger.Warn("reflection cycle failed", "error", outcome.Err)
		return outcome.Err
	}
	fmt.Println("reflection complete")
	return nil
}
