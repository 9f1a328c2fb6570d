package main

import (
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
)

// rootCmd serves the API when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:          "api",
	Short:        "Contact enrichment API",
	Long:         `Serves cache-first contact enrichment for organizations and manages its database schema.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
