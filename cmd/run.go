package cmd

import (
	"context"
	"errors"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hire-responder/internal/pipeline"
	"github.com/spigell/hire-responder/internal/report"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once: fetch proposals, score applicants and message them by tier",
	RunE:  runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addRunFlags(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("fetch-only", false, "only fetch jobs and proposals into the store")
	cmd.Flags().Bool("analyze-only", false, "only score stored applicants")
	cmd.Flags().Bool("dry-run", false, "log the messages that would be sent without sending them")
	cmd.Flags().Bool("reanalyze", false, "score every stored applicant again, not only pending ones")
	cmd.Flags().Bool("mock", false, "use the offline marketplace, oracle and an in-memory store")
	cmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation before sending messages")
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	config, err := getConfig()
	if err != nil {
		log.Error("failed to parse config", zap.Error(err))
		return err
	}

	opts, err := pipelineOptions(cmd)
	if err != nil {
		return err
	}

	useMock, _ := cmd.Flags().GetBool("mock")
	yes, _ := cmd.Flags().GetBool("yes")

	ctx := cmd.Context()

	svc, err := newServices(ctx, config, useMock, log)
	if err != nil {
		log.Error("failed to initialize", zap.Error(err))
		return err
	}
	defer svc.Close()

	if opts.Communicate {
		report.Passes(os.Stdout, svc.outreach.Describe())
	}

	if opts.Communicate && !opts.DryRun && !useMock && !yes {
		if !confirm("Send messages to applicants") {
			log.Info("messaging not confirmed, switching to dry run")
			opts.DryRun = true
		}
	}

	stats, err := svc.pipeline.Run(ctx, opts)
	if stats != nil {
		report.RunSummary(os.Stdout, stats)
		publish(ctx, config.Notify, stats, log)
	}
	if err != nil {
		log.Error("pipeline run failed", zap.Error(err))
		return err
	}

	return nil
}

// pipelineOptions maps the run flags onto phases. Without a phase flag all
// three phases run.
func pipelineOptions(cmd *cobra.Command) (pipeline.Options, error) {
	fetchOnly, _ := cmd.Flags().GetBool("fetch-only")
	analyzeOnly, _ := cmd.Flags().GetBool("analyze-only")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	reanalyze, _ := cmd.Flags().GetBool("reanalyze")

	if fetchOnly && analyzeOnly {
		return pipeline.Options{}, errors.New("--fetch-only and --analyze-only are mutually exclusive")
	}

	opts := pipeline.Options{
		Fetch:       true,
		Analyze:     true,
		Communicate: true,
		DryRun:      dryRun,
		Reanalyze:   reanalyze,
	}

	switch {
	case fetchOnly:
		opts.Analyze, opts.Communicate = false, false
	case analyzeOnly:
		opts.Fetch, opts.Communicate = false, false
	}

	return opts, nil
}

func confirm(label string) bool {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}

	// Any answer other than y, including an interrupt, is a no.
	_, err := prompt.Run()
	return err == nil
}

func publish(ctx context.Context, cfg NotifyConfig, stats *pipeline.Stats, log *zap.Logger) {
	publisher, err := newPublisher(cfg, log)
	if err != nil {
		log.Warn("run summary not published", zap.Error(err))
		return
	}
	defer publisher.Close()

	if err := publisher.Publish(ctx, stats); err != nil {
		log.Warn("run summary not published", zap.Error(err))
	}
}
