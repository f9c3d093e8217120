package pipeline

import (
	"time"

	"github.com/spigell/hire-responder/internal/applicant"
)

const (
	PhaseIdle        = "idle"
	PhaseExtract     = "extract"
	PhaseAnalyze     = "analyze"
	PhaseCommunicate = "communicate"
)

type TierCounts struct {
	Tier1 int `json:"tier1"`
	Tier2 int `json:"tier2"`
	Tier3 int `json:"tier3"`
}

func (t *TierCounts) add(tier applicant.Tier) {
	switch tier {
	case applicant.Tier1:
		t.Tier1++
	case applicant.Tier2:
		t.Tier2++
	default:
		t.Tier3++
	}
}

// Stats is the outcome of one run. It is returned even when the run fails.
type Stats struct {
	RunID           string        `json:"run_id"`
	StartedAt       time.Time     `json:"started_at"`
	FinishedAt      time.Time     `json:"finished_at"`
	Duration        time.Duration `json:"-"`
	DurationSeconds float64       `json:"duration_seconds"`

	JobsProcessed      int        `json:"jobs_processed"`
	ProposalsFetched   int        `json:"proposals_fetched"`
	ApplicantsAnalyzed int        `json:"applicants_analyzed"`
	Tiers              TierCounts `json:"tiers"`

	MessagesSent    int  `json:"messages_sent"`
	MessagesFailed  int  `json:"messages_failed"`
	InitialOutreach int  `json:"initial_outreach"`
	FollowUps       int  `json:"follow_ups"`
	Declines        int  `json:"declines"`
	DryRun          bool `json:"dry_run"`

	Errors []string `json:"errors"`
}

func (s *Stats) addError(err string) {
	s.Errors = append(s.Errors, err)
}

// State is a snapshot of the pipeline for status endpoints.
type State struct {
	Running   bool      `json:"running"`
	Phase     string    `json:"phase"`
	RunID     string    `json:"run_id,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`
	Last      *Stats    `json:"last_run,omitempty"`
}
