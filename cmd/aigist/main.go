package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "aigist",
	Short: "Document knowledge base with semantic search and grounded Q&A",
	Long: `aigist stores your documents, indexes them with embeddings, and answers
questions grounded in what you stored.

Run "aigist start" to launch the server, then use add / ask / docs from
another terminal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// A .env next to the binary is the easiest way to carry OPENAI_API_KEY
	// during development. Missing file is fine.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(docsCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the aigist version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("aigist version %s\n", version)
	},
}
