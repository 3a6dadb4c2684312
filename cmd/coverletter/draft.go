package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/coverletter/internal/drafts"
	"github.com/jonathan/coverletter/internal/types"
)

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Save or restore an unfinished session form",
	Long: "Drafts hold the job details of a session that has not been created yet, for example " +
		"while signing in. They live in Redis (REDIS_URL), are read once and expire after DRAFT_TTL.",
}

var draftSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save form state for a page",
	RunE:  runDraftSave,
}

var draftRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Print and remove the saved form state for a page",
	RunE:  runDraftRestore,
}

var (
	draftPage        string
	draftCompany     string
	draftTitle       string
	draftDescription string
	draftJobURL      string
	draftTab         string
	draftFiles       []string
	draftManualText  string
)

func init() {
	draftCmd.PersistentFlags().StringVar(&draftPage, "page", "", "Page the draft belongs to")
	_ = draftCmd.MarkPersistentFlagRequired("page")

	flags := draftSaveCmd.Flags()
	flags.StringVar(&draftCompany, "company", "", "Company name")
	flags.StringVar(&draftTitle, "title", "", "Job title")
	flags.StringVar(&draftDescription, "description", "", "Job description")
	flags.StringVar(&draftJobURL, "job-url", "", "Job posting URL")
	flags.StringVar(&draftTab, "tab", "", "Active input tab")
	flags.StringSliceVar(&draftFiles, "file", nil, "Attached file; only name, size and type are kept")
	flags.StringVar(&draftManualText, "manual-text", "", "Manually entered resume text")

	draftCmd.AddCommand(draftSaveCmd, draftRestoreCmd)
	rootCmd.AddCommand(draftCmd)
}

func openDraftStore(cmd *cobra.Command) (*drafts.RedisStore, error) {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("draft commands need a Redis URL (set REDIS_URL or \"redis_url\" in the config file)")
	}
	return drafts.NewRedisStore(cfg.RedisURL, cfg.DraftTTL.Std())
}

func runDraftSave(cmd *cobra.Command, _ []string) error {
	files := make([]drafts.FileMeta, 0, len(draftFiles))
	for _, path := range draftFiles {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("cannot attach %s: %w", path, err)
		}
		files = append(files, drafts.FileMeta{
			Name: filepath.Base(path),
			Size: info.Size(),
			Type: mime.TypeByExtension(filepath.Ext(path)),
		})
	}

	store, err := openDraftStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	snap := drafts.Snapshot{
		JobInfo: types.JobInfo{
			CompanyName: draftCompany,
			JobTitle:    draftTitle,
			Description: draftDescription,
			JobURL:      draftJobURL,
		},
		ActiveTab:  draftTab,
		Files:      files,
		ManualText: draftManualText,
		Timestamp:  time.Now().UTC(),
	}
	if err := store.Save(cmd.Context(), draftPage, snap); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Draft saved for page %q.\n", draftPage)
	return nil
}

func runDraftRestore(cmd *cobra.Command, _ []string) error {
	store, err := openDraftStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	snap, ok, err := store.Take(cmd.Context(), draftPage)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(cmd.ErrOrStderr(), "No draft saved for page %q.\n", draftPage)
		return nil
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
