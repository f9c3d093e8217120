package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hire-responder/internal/applicant"
	"github.com/spigell/hire-responder/internal/pipeline"
	"github.com/spigell/hire-responder/internal/report"
	"github.com/spigell/hire-responder/internal/store"
)

var applicantsCmd = &cobra.Command{
	Use:   "applicants",
	Short: "List stored applicants with their tier, score and contact status",
	RunE:  listApplicants,
}

func init() {
	rootCmd.AddCommand(applicantsCmd)

	applicantsCmd.Flags().String("job-id", "", "only applicants of this job")
	applicantsCmd.Flags().Int("tier", 0, "only applicants of this tier (1-3)")
	applicantsCmd.Flags().String("status", "", "only applicants with this contact status")

	applicantsCmd.AddCommand(refreshCmd)
	refreshCmd.Flags().String("proposal-id", "", "proposal of the applicant")
	refreshCmd.Flags().Bool("mock", false, "use the offline marketplace")
	refreshCmd.MarkFlagRequired("proposal-id")

	applicantsCmd.AddCommand(setStatusCmd)
	setStatusCmd.Flags().String("proposal-id", "", "proposal of the applicant")
	setStatusCmd.Flags().String("status", "", "new status: NEW, CONTACTED, INTERVIEWING, HIRED or REJECTED")
	setStatusCmd.Flags().String("note", "", "note stored with the status")
	setStatusCmd.MarkFlagRequired("proposal-id")
	setStatusCmd.MarkFlagRequired("status")
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch the current freelancer profile of a stored applicant",
	RunE:  refreshApplicant,
}

// setStatusCmd records transitions made outside the pipeline, such as an
// interview being booked.
var setStatusCmd = &cobra.Command{
	Use:   "set-status",
	Short: "Set the contact status of a stored applicant",
	RunE:  setApplicantStatus,
}

func listApplicants(cmd *cobra.Command, _ []string) error {
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
	tierFilter, _ := cmd.Flags().GetInt("tier")
	rawStatus, _ := cmd.Flags().GetString("status")

	statusFilter, err := applicant.ParseStatus(rawStatus)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	st, err := openStore(ctx, config)
	if err != nil {
		log.Error("failed to open store", zap.Error(err))
		return err
	}
	defer st.Close()

	var items []*applicant.Applicant
	if jobID = strings.TrimSpace(jobID); jobID != "" {
		items, err = st.ListByJob(ctx, jobID)
	} else {
		items, err = st.List(ctx)
	}
	if err != nil {
		return err
	}

	report.Applicants(os.Stdout, filterApplicants(items, applicant.Tier(tierFilter), statusFilter))
	return nil
}

// filterApplicants keeps items matching tier and status. Zero values match
// everything.
func filterApplicants(items []*applicant.Applicant, tier applicant.Tier, status applicant.Status) []*applicant.Applicant {
	filtered := make([]*applicant.Applicant, 0, len(items))
	for _, a := range items {
		if tier != applicant.TierUnknown && a.Tier() != tier {
			continue
		}
		current := a.Contact.Status
		if current == "" {
			current = applicant.StatusNew
		}
		if status != "" && current != status {
			continue
		}
		filtered = append(filtered, a)
	}
	return filtered
}

func setApplicantStatus(cmd *cobra.Command, _ []string) error {
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

	proposalID, _ := cmd.Flags().GetString("proposal-id")
	rawStatus, _ := cmd.Flags().GetString("status")
	note, _ := cmd.Flags().GetString("note")

	status, err := applicant.ParseStatus(rawStatus)
	if err != nil {
		return err
	}
	if status == "" {
		return errors.New("status is required")
	}

	ctx := cmd.Context()

	st, err := openStore(ctx, config)
	if err != nil {
		log.Error("failed to open store", zap.Error(err))
		return err
	}
	defer st.Close()

	fields := store.Fields{Status: &status}
	if note = strings.TrimSpace(note); note != "" {
		fields.Notes = &note
	}

	if err := st.UpdateFields(ctx, strings.TrimSpace(proposalID), fields); err != nil {
		return err
	}

	log.Info("applicant status updated",
		zap.String("proposal_id", proposalID),
		zap.String("status", string(status)),
	)
	return nil
}

// refreshApplicant re-reads the freelancer profile. The upsert keeps the
// evaluation and contact state, run with --reanalyze to score the new profile.
func refreshApplicant(cmd *cobra.Command, _ []string) error {
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

	proposalID, _ := cmd.Flags().GetString("proposal-id")
	useMock, _ := cmd.Flags().GetBool("mock")

	ctx := cmd.Context()

	st, err := openStore(ctx, config)
	if err != nil {
		log.Error("failed to open store", zap.Error(err))
		return err
	}
	defer st.Close()

	a, err := st.Get(ctx, strings.TrimSpace(proposalID))
	if err != nil {
		return err
	}
	if a.FreelancerID == "" {
		return fmt.Errorf("proposal %s has no freelancer id", a.ProposalID)
	}

	market, err := newMarketplace(config.Marketplace, useMock, log)
	if err != nil {
		log.Error("failed to initialize marketplace client", zap.Error(err))
		return err
	}

	profile, err := market.GetFreelancerProfile(ctx, a.FreelancerID)
	if err != nil {
		return err
	}

	pipeline.ApplyProfile(a, profile)
	if err := st.Upsert(ctx, a); err != nil {
		return err
	}

	log.Info("applicant profile refreshed",
		zap.String("proposal_id", a.ProposalID),
		zap.String("freelancer_id", a.FreelancerID),
	)
	report.Applicants(os.Stdout, []*applicant.Applicant{a})
	return nil
}
