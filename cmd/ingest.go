package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/etherealheim/aria/core/memory"
)

var (
	ingestRole         string
	ingestConversation string
	ingestSummary      bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [text]",
	Short: "Store a conversation message or summary",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestRole, "role", "user", "message author: user or assistant")
	ingestCmd.Flags().StringVar(&ingestConversation, "conversation", "", "conversation id (generated when empty)")
	ingestCmd.Flags().BoolVar(&ingestSummary, "summary", false, "store as a conversation summary")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	app, err := setup()
	if err != nil {
		return err
	}
	defer app.close()

	content := strings.Join(args, " ")
	if ingestSummary {
		id, err := app.storage.IngestSummary(ingestConversation, content)
		if err != nil {
			return err
		}
		fmt.Printf("stored summary %s\n", id)
		return nil
	}

	id, err := app.storage.Ingest(&memory.StoredMessage{
		ConversationID: ingestConversation,
		Role:           memory.ParseRole(ingestRole),
		Content:        content,
	}, nil)
	if err != nil {
		return err
	}
	fmt.Printf("stored message %s\n", id)
	return nil
}
