package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/etherealheim/aria/core/identity"
)

var identityJSON bool

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Inspect the persisted persona",
}

var identityShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the persona as it would appear in a system prompt",
	RunE:  runIdentityShow,
}

func init() {
	identityShowCmd.Flags().BoolVar(&identityJSON, "json", false, "print the raw identity document")
	identityCmd.AddCommand(identityShowCmd)
	rootCmd.AddCommand(identityCmd)
}

func runIdentityShow(cmd *cobra.Command, args []string) error {
	app, err := setup()
	if err != nil {
		return err
	}
	defer app.close()

	state, err := app.identityStore().Load()
	if err != nil {
		return err
	}
	if identityJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(state)
	}
	fmt.Println(identity.FormatPersonaPrompt(state))
	return nil
}
