// Package pipeline sequences the extract, analyze and communicate phases and
// keeps the run state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/hire-responder/internal/applicant"
	"github.com/spigell/hire-responder/internal/criteria"
	"github.com/spigell/hire-responder/internal/logger"
	"github.com/spigell/hire-responder/internal/marketplace"
	"github.com/spigell/hire-responder/internal/outreach"
	"github.com/spigell/hire-responder/internal/store"
	"github.com/spigell/hire-responder/internal/tier"
)

const DefaultOracleTimeout = 2 * time.Minute

var ErrAlreadyRunning = errors.New("pipeline run already in progress")

// Options select the phases. Enabled phases always run in the order
// extract, analyze, communicate.
type Options struct {
	Fetch       bool
	Analyze     bool
	Communicate bool
	DryRun      bool
	Reanalyze   bool
}

func (o Options) Any() bool {
	return o.Fetch || o.Analyze || o.Communicate
}

type JobSource interface {
	ListOpenJobs(ctx context.Context) ([]*marketplace.Job, error)
	ListProposals(ctx context.Context, jobID string) ([]*marketplace.Proposal, error)
}

type CriteriaSource interface {
	LoadAll() ([]*criteria.Criteria, error)
}

type Evaluator interface {
	Evaluate(ctx context.Context, a *applicant.Applicant, c *criteria.Criteria, jobDescription string) (*applicant.Assessment, error)
}

// Communicator is implemented by outreach.Communicator.
type Communicator interface {
	ContactTier1(ctx context.Context, dryRun bool) (outreach.Result, error)
	FollowUp(ctx context.Context, dryRun bool) (outreach.Result, error)
	DeclineTier3(ctx context.Context, dryRun bool) (outreach.Result, error)
}

type Deps struct {
	Jobs         JobSource
	Store        store.Store
	Oracle       Evaluator
	Criteria     CriteriaSource
	Classifier   *tier.Classifier
	Communicator Communicator
	Logger       *zap.Logger
}

type Config struct {
	// OracleTimeout bounds a single Evaluate call.
	OracleTimeout time.Duration
}

type Pipeline struct {
	cfg  Config
	deps Deps
	log  *zap.Logger
	now  func() time.Time

	mu    sync.Mutex
	state State
}

func New(cfg Config, deps Deps) (*Pipeline, error) {
	switch {
	case deps.Jobs == nil:
		return nil, errors.New("marketplace client is required")
	case deps.Store == nil:
		return nil, errors.New("store is required")
	case deps.Oracle == nil:
		return nil, errors.New("oracle is required")
	case deps.Criteria == nil:
		return nil, errors.New("criteria source is required")
	case deps.Communicator == nil:
		return nil, errors.New("communicator is required")
	}

	if deps.Classifier == nil {
		deps.Classifier = tier.Default()
	}
	if cfg.OracleTimeout <= 0 {
		cfg.OracleTimeout = DefaultOracleTimeout
	}

	return &Pipeline{
		cfg:   cfg,
		deps:  deps,
		log:   logger.Component(deps.Logger, "pipeline"),
		now:   time.Now,
		state: State{Phase: PhaseIdle},
	}, nil
}

// State returns a snapshot of the current run state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Run executes one pipeline invocation. Stats are always returned; the error
// is non-nil only when the run could not proceed at all (another run is
// active or the marketplace rejected the credentials).
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Stats, error) {
	stats := &Stats{
		RunID:     uuid.NewString(),
		StartedAt: p.now().UTC(),
		DryRun:    opts.DryRun,
		Errors:    []string{},
	}

	if !p.begin(stats) {
		p.finalize(stats)
		return stats, ErrAlreadyRunning
	}
	defer p.end(stats)

	log := p.log.With(zap.String("run_id", stats.RunID), zap.Bool("dry_run", opts.DryRun))
	log.Info("pipeline started",
		zap.Bool("fetch", opts.Fetch),
		zap.Bool("analyze", opts.Analyze),
		zap.Bool("communicate", opts.Communicate),
	)

	if opts.Fetch {
		p.setPhase(PhaseExtract)
		if err := p.extract(ctx, log, stats); err != nil {
			stats.addError(err.Error())
			log.Error("pipeline aborted", zap.Error(err))
			return stats, err
		}
	}

	if opts.Analyze {
		p.setPhase(PhaseAnalyze)
		p.analyze(ctx, log, stats, opts.Reanalyze)
	}

	if opts.Communicate {
		p.setPhase(PhaseCommunicate)
		if err := p.communicate(ctx, log, stats, opts.DryRun); err != nil {
			log.Error("pipeline aborted", zap.Error(err))
			return stats, err
		}
	}

	return stats, nil
}

func (p *Pipeline) begin(stats *Stats) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.Running {
		return false
	}

	p.state.Running = true
	p.state.Phase = PhaseIdle
	p.state.RunID = stats.RunID
	p.state.StartedAt = stats.StartedAt
	return true
}

func (p *Pipeline) setPhase(phase string) {
	p.mu.Lock()
	p.state.Phase = phase
	p.mu.Unlock()
}

func (p *Pipeline) end(stats *Stats) {
	p.finalize(stats)

	p.log.Info("pipeline finished",
		zap.String("run_id", stats.RunID),
		zap.Duration("duration", stats.Duration),
		zap.Int("jobs_processed", stats.JobsProcessed),
		zap.Int("proposals_fetched", stats.ProposalsFetched),
		zap.Int("applicants_analyzed", stats.ApplicantsAnalyzed),
		zap.Int("tier1", stats.Tiers.Tier1),
		zap.Int("tier2", stats.Tiers.Tier2),
		zap.Int("tier3", stats.Tiers.Tier3),
		zap.Int("messages_sent", stats.MessagesSent),
		zap.Int("errors", len(stats.Errors)),
	)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = State{Phase: PhaseIdle, Last: stats}
}

func (p *Pipeline) finalize(stats *Stats) {
	stats.FinishedAt = p.now().UTC()
	stats.Duration = stats.FinishedAt.Sub(stats.StartedAt)
	stats.DurationSeconds = stats.Duration.Seconds()
}

// extract returns an error only for authentication failures.
func (p *Pipeline) extract(ctx context.Context, log *zap.Logger, stats *Stats) error {
	jobs, err := p.deps.Jobs.ListOpenJobs(ctx)
	if err != nil {
		if marketplace.IsAuth(err) {
			return fmt.Errorf("list open jobs: %w", err)
		}
		log.Error("failed to list open jobs", zap.Error(err))
		stats.addError(fmt.Sprintf("list open jobs: %v", err))
		return nil
	}

	log.Info("found open jobs", zap.Int("count", len(jobs)))

	for _, job := range jobs {
		jlog := log.With(zap.String(logger.FieldJobID, job.ID), zap.String("job_title", job.Title))

		proposals, err := p.deps.Jobs.ListProposals(ctx, job.ID)
		if err != nil {
			if marketplace.IsAuth(err) {
				return fmt.Errorf("list proposals for %s: %w", job.ID, err)
			}
			jlog.Error("failed to list proposals", zap.Error(err))
			stats.addError(fmt.Sprintf("job %s: list proposals: %v", job.ID, err))
			continue
		}

		items := make([]*applicant.Applicant, 0, len(proposals))
		for _, proposal := range proposals {
			if proposal == nil || proposal.ID == "" {
				continue
			}
			items = append(items, ToApplicant(job, proposal))
		}

		if len(items) > 0 {
			if err := p.deps.Store.UpsertMany(ctx, items); err != nil {
				jlog.Error("failed to store applicants", zap.Error(err))
				stats.addError(fmt.Sprintf("job %s: store applicants: %v", job.ID, err))
				continue
			}
		}

		stats.JobsProcessed++
		stats.ProposalsFetched += len(items)
		jlog.Info("proposals stored", zap.Int("count", len(items)))
	}

	return nil
}

func (p *Pipeline) analyze(ctx context.Context, log *zap.Logger, stats *Stats, reanalyze bool) {
	all, err := p.deps.Criteria.LoadAll()
	if err != nil {
		log.Error("failed to load criteria", zap.Error(err))
		for _, e := range unjoin(err) {
			stats.addError(fmt.Sprintf("load criteria: %v", e))
		}
	}
	if len(all) == 0 {
		log.Warn("no job criteria found, skipping analysis")
		return
	}

	for _, c := range all {
		jlog := log.With(zap.String(logger.FieldJobID, c.JobID), zap.String("job_title", c.JobTitle))

		applicants, err := p.deps.Store.ListByJob(ctx, c.JobID)
		if err != nil {
			jlog.Error("failed to list applicants", zap.Error(err))
			stats.addError(fmt.Sprintf("job %s: list applicants: %v", c.JobID, err))
			continue
		}

		pending := make([]*applicant.Applicant, 0, len(applicants))
		for _, a := range applicants {
			if reanalyze || a.NeedsEvaluation() {
				pending = append(pending, a)
			}
		}

		if len(pending) == 0 {
			jlog.Info("no new applicants to analyze")
			continue
		}

		jlog.Info("analyzing applicants", zap.Int("count", len(pending)))

		for _, a := range pending {
			if err := ctx.Err(); err != nil {
				stats.addError(fmt.Sprintf("analyze: %v", err))
				return
			}

			ev := p.evaluate(ctx, jlog, a, c)

			if err := p.deps.Store.UpdateFields(ctx, a.ProposalID, store.Fields{Evaluation: &ev}); err != nil {
				jlog.Error("failed to save evaluation", zap.String(logger.FieldProposalID, a.ProposalID), zap.Error(err))
				stats.addError(fmt.Sprintf("proposal %s: save evaluation: %v", a.ProposalID, err))
				continue
			}

			stats.ApplicantsAnalyzed++
			stats.Tiers.add(ev.Tier)
		}
	}
}

// evaluate never fails; oracle errors become a synthetic Tier 3 result.
func (p *Pipeline) evaluate(ctx context.Context, log *zap.Logger, a *applicant.Applicant, c *criteria.Criteria) applicant.Evaluation {
	alog := log.With(logger.ApplicantFields("", a.ProposalID, a.Name)...)

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.OracleTimeout)
	defer cancel()

	assessment, err := p.deps.Oracle.Evaluate(callCtx, a, c, a.JobDescription)
	if err == nil && assessment == nil {
		err = errors.New("oracle returned no assessment")
	}
	if err != nil {
		alog.Error("failed to analyze applicant", zap.Error(err))
		return p.deps.Classifier.Failed(err)
	}

	ev := p.deps.Classifier.Classify(*assessment)
	alog.Info("applicant analyzed",
		zap.Int("score", ev.Score),
		zap.String("tier", ev.Tier.String()),
		zap.String("recommendation", string(ev.Recommendation)),
	)
	return ev
}

// communicate runs the outreach passes in order. An authentication failure
// stops the remaining passes and is returned.
func (p *Pipeline) communicate(ctx context.Context, log *zap.Logger, stats *Stats, dryRun bool) error {
	passes := []struct {
		name  string
		run   func(context.Context, bool) (outreach.Result, error)
		count *int
	}{
		{name: outreach.PassInitial, run: p.deps.Communicator.ContactTier1, count: &stats.InitialOutreach},
		{name: outreach.PassFollowUp, run: p.deps.Communicator.FollowUp, count: &stats.FollowUps},
		{name: outreach.PassDecline, run: p.deps.Communicator.DeclineTier3, count: &stats.Declines},
	}

	for _, pass := range passes {
		res, err := pass.run(ctx, dryRun)

		*pass.count += res.Sent
		stats.MessagesSent += res.Sent
		stats.MessagesFailed += res.Failed
		for _, e := range res.Errors {
			stats.addError(e)
		}

		if err != nil {
			log.Error("outreach pass failed", zap.String("pass", pass.name), zap.Error(err))
			stats.addError(fmt.Sprintf("%s: %v", pass.name, err))
			if marketplace.IsAuth(err) {
				return err
			}
		}
	}

	return nil
}

// unjoin splits an errors.Join result into its parts.
func unjoin(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
