package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/coverletter/internal/config"
	"github.com/jonathan/coverletter/internal/generation"
	"github.com/jonathan/coverletter/internal/llm"
	"github.com/jonathan/coverletter/internal/server"
	"github.com/jonathan/coverletter/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reference backend",
	Long: "Start an HTTP server implementing the session API. Sessions are kept in Postgres when " +
		"DATABASE_URL is set and in memory otherwise. Answers come from Gemini when GEMINI_API_KEY " +
		"is set and from a deterministic template otherwise. JWT_SECRET turns on bearer token auth.",
	RunE: runServe,
}

var (
	servePort       int
	serveTemplate   bool
	servePrintToken bool
)

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", server.DefaultPort, "Port to listen on")
	serveCmd.Flags().BoolVar(&serveTemplate, "template", false, "Use template answers even when GEMINI_API_KEY is set")
	serveCmd.Flags().BoolVar(&servePrintToken, "print-token", false, "Print a bearer token for the CLI at startup (needs JWT_SECRET)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)

	st, err := openSessionStore(ctx, logger)
	if err != nil {
		return err
	}

	gen, closeGen, err := openGenerator(ctx, logger)
	if err != nil {
		st.Close()
		return err
	}
	defer closeGen()

	jwtConfig, err := config.NewJWTConfig()
	if err != nil {
		st.Close()
		return fmt.Errorf("failed to create JWT config: %w", err)
	}

	srv, err := server.New(server.Config{Port: servePort, JWT: jwtConfig, Logger: logger}, st, gen)
	if err != nil {
		st.Close()
		return fmt.Errorf("failed to create server: %w", err)
	}

	if servePrintToken {
		token, err := srv.IssueToken("cli")
		if err != nil {
			srv.Close()
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "COVERLETTER_TOKEN=%s\n", token)
	}

	return srv.Start(ctx)
}

func openSessionStore(ctx context.Context, logger *log.Logger) (store.Store, error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		logger.Println("[server] DATABASE_URL not set, keeping sessions in memory")
		return store.NewMemoryStore(), nil
	}
	st, err := store.Connect(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return st, nil
}

func openGenerator(ctx context.Context, logger *log.Logger) (generation.Generator, func(), error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if serveTemplate || apiKey == "" {
		logger.Println("[server] using template answers")
		return &generation.TemplateGenerator{}, func() {}, nil
	}
	client, err := llm.NewGeminiClient(ctx, llm.DefaultConfig(), apiKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return generation.NewGeminiGenerator(client), func() { _ = client.Close() }, nil
}
