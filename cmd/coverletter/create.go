package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/coverletter/internal/backend"
	"github.com/jonathan/coverletter/internal/config"
	"github.com/jonathan/coverletter/internal/ingestion"
	"github.com/jonathan/coverletter/internal/poller"
	"github.com/jonathan/coverletter/internal/types"
	"github.com/jonathan/coverletter/internal/workspace"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Start a new cover letter session",
	Long: "Create a session for a job posting and a resume. The job description can come " +
		"from a text file or be fetched from a job board URL.",
	RunE: runCreate,
}

var (
	createCompany    string
	createTitle      string
	createJobFile    string
	createJobURL     string
	createResume     string
	createQuestion   string
	createWait       bool
	createUseBrowser bool
)

func init() {
	flags := createCmd.Flags()
	flags.StringVar(&createCompany, "company", "", "Company name (taken from the posting page when omitted)")
	flags.StringVar(&createTitle, "title", "", "Job title (taken from the posting page when omitted)")
	flags.StringVar(&createJobFile, "job-file", "", "Text file with the job description")
	flags.StringVar(&createJobURL, "job-url", "", "URL of the job posting")
	flags.StringVarP(&createResume, "resume", "r", "", "Resume text file")
	flags.StringVarP(&createQuestion, "question", "q", "", "Question to answer")
	flags.BoolVarP(&createWait, "wait", "w", false, "Wait for the answer and print it")
	flags.BoolVar(&createUseBrowser, "use-browser", false, "Render the job page in headless Chrome when needed")
	_ = createCmd.MarkFlagRequired("question")
	createCmd.MarkFlagsMutuallyExclusive("job-file", "job-url")

	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	resumePath := createResume
	if resumePath == "" {
		resumePath = cfg.Resume
	}
	if resumePath == "" {
		return errors.New("--resume is required (or set \"resume\" in the config file)")
	}
	resume, err := ingestion.FromFile(resumePath)
	if err != nil {
		return fmt.Errorf("failed to read resume: %w", err)
	}

	jobURL := createJobURL
	if jobURL == "" && createJobFile == "" {
		jobURL = cfg.JobURL
	}

	info := types.JobInfo{CompanyName: createCompany, JobTitle: createTitle, JobURL: jobURL}
	switch {
	case createJobFile != "":
		if info.Description, err = ingestion.FromFile(createJobFile); err != nil {
			return err
		}
	case jobURL != "":
		posting, err := ingestion.FromURL(ctx, jobURL, &ingestion.Options{
			UseBrowser: createUseBrowser || cfg.UseBrowser,
			Logger:     logger(cmd, cfg),
		})
		if err != nil {
			return fmt.Errorf("failed to fetch job posting: %w", err)
		}
		if cfg.Verbose {
			printer(cmd).PrintPosting(posting)
		}
		info.Description = posting.Text
		if info.CompanyName == "" {
			info.CompanyName = posting.Company
		}
		if info.JobTitle == "" {
			info.JobTitle = posting.Title
		}
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	id, err := workspace.CreateSession(ctx, client, types.CreateSessionRequest{
		JobInfo:       info,
		ResumeContent: resume,
		Question:      createQuestion,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Session created: %s\n", id)
	if !createWait {
		fmt.Fprintf(cmd.OutOrStdout(), "Run `coverletter watch %s` to follow generation.\n", id)
		return nil
	}
	return watchSession(cmd, cfg, client, id)
}

// watchSession polls id until generation ends and prints the session.
func watchSession(cmd *cobra.Command, cfg *config.Config, client backend.Backend, id string) error {
	l := logger(cmd, cfg)
	p := poller.New(client,
		poller.WithInterval(cfg.PollInterval.Std()),
		poller.WithMaxTicks(cfg.PollMaxTicks),
		poller.WithLogger(l),
	)
	if !cfg.Verbose {
		fmt.Fprintln(cmd.ErrOrStderr(), "Waiting for answers...")
	}

	res := p.Run(cmd.Context(), id)
	if cfg.Verbose {
		printer(cmd).PrintPollResult(res)
	}
	if res.State != poller.StateCompleted {
		if res.Err != nil {
			return fmt.Errorf("generation %s: %w", res.State, res.Err)
		}
		return fmt.Errorf("generation %s", res.State)
	}

	ws, err := workspace.New(client, id, workspace.WithLogger(l))
	if err != nil {
		return err
	}
	ws.LoadFromPayload(res.Payload)
	printer(cmd).PrintSession(ws.View())
	return nil
}
