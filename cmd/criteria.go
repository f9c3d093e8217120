package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hire-responder/internal/criteria"
	"github.com/spigell/hire-responder/internal/marketplace"
	"github.com/spigell/hire-responder/internal/pipeline"
)

var criteriaCmd = &cobra.Command{
	Use:   "criteria",
	Short: "Manage per-job hiring criteria",
}

var criteriaGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Draft criteria for an open job with the LLM and save them to the criteria dir",
	RunE:  generateCriteria,
}

func init() {
	rootCmd.AddCommand(criteriaCmd)
	criteriaCmd.AddCommand(criteriaGenerateCmd)

	criteriaGenerateCmd.Flags().String("job-id", "", "open job to generate criteria for")
	criteriaGenerateCmd.Flags().Bool("force", false, "overwrite an existing criteria file")
	criteriaGenerateCmd.Flags().Bool("mock", false, "use the offline marketplace and oracle")
	criteriaGenerateCmd.MarkFlagRequired("job-id")
}

func generateCriteria(cmd *cobra.Command, _ []string) error {
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

	jobID, _ := cmd.Flags().GetString("job-id")
	force, _ := cmd.Flags().GetBool("force")
	useMock, _ := cmd.Flags().GetBool("mock")
	jobID = strings.TrimSpace(jobID)

	loader := criteria.NewLoader(config.CriteriaDir)
	if !force {
		existing, err := loader.LoadAll()
		if err != nil {
			log.Warn("some criteria files could not be loaded", zap.Error(err))
		}
		for _, c := range existing {
			if c.JobID == jobID {
				return fmt.Errorf("criteria for job %s already exist, use --force to overwrite", jobID)
			}
		}
	}

	ctx := cmd.Context()

	market, err := newMarketplace(config.Marketplace, useMock, log)
	if err != nil {
		log.Error("failed to initialize marketplace client", zap.Error(err))
		return err
	}

	oracle, err := newOracle(ctx, config.AI, useMock, log)
	if err != nil {
		log.Error("failed to initialize oracle", zap.Error(err))
		return err
	}

	jobs, err := market.ListOpenJobs(ctx)
	if err != nil {
		return err
	}

	job := findJob(jobs, jobID)
	if job == nil {
		return fmt.Errorf("job %s is not among the open jobs", jobID)
	}

	generated, err := oracle.GenerateCriteria(ctx, job.ID, job.Title, pipeline.StripHTML(job.Description))
	if err != nil {
		return err
	}

	path, err := loader.Save(generated)
	if err != nil {
		return err
	}

	log.Info("criteria saved",
		zap.String("job_id", job.ID),
		zap.String("path", path),
		zap.Int("must_have", len(generated.MustHave)),
		zap.Int("nice_to_have", len(generated.NiceToHave)),
		zap.Int("red_flags", len(generated.RedFlags)),
		zap.String("hint", "review the file before the next run"),
	)
	return nil
}

func findJob(jobs []*marketplace.Job, id string) *marketplace.Job {
	for _, job := range jobs {
		if job.ID == id {
			return job
		}
	}
	return nil
}
