package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the keyword index from stored messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := setup()
		if err != nil {
			return err
		}
		defer app.close()

		count, err := app.storage.ReindexAll()
		if err != nil {
			return err
		}
		fmt.Printf("reindexed %d messages\n", count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}
