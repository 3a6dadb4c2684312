package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/coverletter/internal/workspace"
)

var watchCmd = &cobra.Command{
	Use:   "watch <session>",
	Short: "Wait for a session's answers and print them",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

var showCmd = &cobra.Command{
	Use:   "show <session>",
	Short: "Print a session",
	Long:  "Print every question of a session. --version q:v shows version v of question q (both 1-based).",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var reviseCmd = &cobra.Command{
	Use:   "revise <session>",
	Short: "Ask for a rewrite of one answer",
	Args:  cobra.ExactArgs(1),
	RunE:  runRevise,
}

var addQuestionCmd = &cobra.Command{
	Use:   "add-question <session>",
	Short: "Add a question to a session",
	Long:  fmt.Sprintf("Add a question and generate its answer. A session holds at most %d questions.", workspace.MaxQuestions),
	Args:  cobra.ExactArgs(1),
	RunE:  runAddQuestion,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <session>",
	Short: "Delete a session permanently",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var (
	showVersion     string
	reviseQuestion  int
	reviseText      string
	addQuestionText string
	deleteConfirmed bool
)

func init() {
	showCmd.Flags().StringVar(&showVersion, "version", "", "Show another version, as question:version")

	reviseCmd.Flags().IntVarP(&reviseQuestion, "question", "n", 1, "Question number (1-based)")
	reviseCmd.Flags().StringVarP(&reviseText, "text", "t", "", "What to change")
	_ = reviseCmd.MarkFlagRequired("text")

	addQuestionCmd.Flags().StringVarP(&addQuestionText, "text", "t", "", "Question text")
	_ = addQuestionCmd.MarkFlagRequired("text")

	deleteCmd.Flags().BoolVarP(&deleteConfirmed, "yes", "y", false, "Confirm deletion")

	rootCmd.AddCommand(watchCmd, showCmd, reviseCmd, addQuestionCmd, deleteCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	id, err := resolveSession(args[0])
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	return watchSession(cmd, cfg, client, id)
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	ws, err := openWorkspace(cmd.Context(), cmd, cfg, args[0])
	if err != nil {
		return err
	}

	if showVersion != "" {
		question, version, err := parseVersionRef(showVersion)
		if err != nil {
			return err
		}
		if err := ws.SelectQuestion(question - 1); err != nil {
			return err
		}
		if err := ws.SelectVersion(question-1, version-1); err != nil {
			return fmt.Errorf("question %d: %w", question, err)
		}
	}
	printer(cmd).PrintSession(ws.View())
	return nil
}

// parseVersionRef reads "q:v".
func parseVersionRef(ref string) (question, version int, err error) {
	q, v, ok := strings.Cut(ref, ":")
	if ok {
		question, err = strconv.Atoi(strings.TrimSpace(q))
		if err == nil {
			version, err = strconv.Atoi(strings.TrimSpace(v))
		}
	}
	if !ok || err != nil || question < 1 || version < 1 {
		return 0, 0, fmt.Errorf("invalid --version %q, want question:version such as 1:2", ref)
	}
	return question, version, nil
}

func runRevise(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	ws, err := openWorkspace(cmd.Context(), cmd, cfg, args[0])
	if err != nil {
		return err
	}

	outcome, err := ws.Revise(cmd.Context(), reviseQuestion, reviseText)
	switch outcome {
	case workspace.OutcomeNoop:
		fmt.Fprintln(cmd.ErrOrStderr(), "Nothing to do: revision text is blank.")
		return nil
	case workspace.OutcomeNotPermitted:
		return err
	case workspace.OutcomeFailed:
		return fmt.Errorf("revision failed, your request was kept as a draft: %w", err)
	}
	if err != nil {
		return err
	}

	_ = ws.SelectQuestion(reviseQuestion - 1)
	printer(cmd).PrintSession(ws.View())
	return nil
}

func runAddQuestion(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	ws, err := openWorkspace(cmd.Context(), cmd, cfg, args[0])
	if err != nil {
		return err
	}

	outcome, err := ws.AddQuestion(cmd.Context(), addQuestionText)
	switch outcome {
	case workspace.OutcomeNotPermitted:
		if err != nil {
			return err
		}
		if !ws.CanAddQuestion() {
			return fmt.Errorf("session already has %d questions", workspace.MaxQuestions)
		}
		return errors.New("question text is blank")
	case workspace.OutcomeFailed:
		return fmt.Errorf("adding question failed: %w", err)
	}
	if err != nil {
		return err
	}

	printer(cmd).PrintSession(ws.View())
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	id, err := resolveSession(args[0])
	if err != nil {
		return err
	}
	if !deleteConfirmed {
		return fmt.Errorf("deleting session %s cannot be undone; rerun with --yes to confirm", id)
	}

	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	ws, err := workspace.New(client, id, workspace.WithLogger(logger(cmd, cfg)))
	if err != nil {
		return err
	}
	if err := ws.Delete(cmd.Context()); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Session %s deleted.\n", id)
	return nil
}
