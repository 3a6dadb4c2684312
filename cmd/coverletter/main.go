// Package main provides the coverletter command line client and reference server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "coverletter",
	Short: "Generate and revise cover letter answers",
	Long: "coverletter creates cover letter generation sessions, waits for the answers, " +
		"and lets you revise them, add questions and share the results.",
	SilenceUsage: true,
}

var (
	configPath string
	apiURL     string
	apiToken   string
	verbose    bool
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Path to JSON config file")
	flags.StringVar(&apiURL, "api-url", "", "Backend base URL (overrides config and COVERLETTER_API_URL)")
	flags.StringVar(&apiToken, "token", "", "Bearer token for the backend (overrides COVERLETTER_TOKEN)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Print progress details")
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
