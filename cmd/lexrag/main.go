package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "lexrag",
	Short: "Ask questions about PDF and DOCX documents",
	Long: `lexrag ingests PDF and DOCX documents into per-domain vector collections
and answers questions about them with a summary, key points, guidance and
citations.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", colorDisabled(), "disable colored output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(documentsCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(configCmd)
}

// colorDisabled honors NO_COLOR and turns color off when stderr is piped.
func colorDisabled() bool {
	return os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(os.Stderr.Fd()))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		fmt.Fprintln(os.Stderr)
		os.Exit(1)
	}
}
