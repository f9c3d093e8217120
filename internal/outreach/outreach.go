// Package outreach drives the applicant conversation: first contact for
// Tier 1, follow-ups for quiet contacts and declines for Tier 3.
package outreach

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spigell/hire-responder/internal/applicant"
	"github.com/spigell/hire-responder/internal/logger"
	"github.com/spigell/hire-responder/internal/marketplace"
	"github.com/spigell/hire-responder/internal/store"
	"github.com/spigell/hire-responder/internal/utils"

	"go.uber.org/zap"
)

const DefaultFollowUpAfter = 48 * time.Hour

const (
	PassInitial  = "initial_outreach"
	PassFollowUp = "follow_up"
	PassDecline  = "decline"
)

// Store is the part of store.Store the passes need.
type Store interface {
	List(ctx context.Context) ([]*applicant.Applicant, error)
	UpdateFields(ctx context.Context, proposalID string, f store.Fields) error
}

type Sender interface {
	SendMessage(ctx context.Context, roomID, text string) (bool, error)
}

// Composer personalizes the initial message. ai.Oracle satisfies it.
type Composer interface {
	ComposeMessage(ctx context.Context, a *applicant.Applicant, template, calendlyLink string) (string, error)
}

type Config struct {
	AutoRespondTier1  bool
	FollowUpAfter     time.Duration
	BatchDeclineTier3 bool
	CalendlyLink      string
}

// Result counts what one pass did. In a dry run Sent holds the messages that
// would have been sent.
type Result struct {
	Pass       string
	Candidates int
	Sent       int
	Failed     int
	Skipped    int
	DryRun     bool
	Errors     []string
}

// Status describes a pass for startup logs.
type Status struct {
	Name    string
	Enabled bool
	Details map[string]string
}

type Communicator struct {
	cfg       Config
	templates Templates
	store     Store
	sender    Sender
	composer  Composer
	logger    *zap.Logger
	now       func() time.Time
}

// New builds a Communicator. composer may be nil, in which case the initial
// message is the rendered template.
func New(cfg Config, templates Templates, st Store, sender Sender, composer Composer, log *zap.Logger) *Communicator {
	if cfg.FollowUpAfter <= 0 {
		cfg.FollowUpAfter = DefaultFollowUpAfter
	}

	return &Communicator{
		cfg:       cfg,
		templates: templates,
		store:     st,
		sender:    sender,
		composer:  composer,
		logger:    logger.Component(log, "outreach"),
		now:       time.Now,
	}
}

// ContactTier1 sends the first message to Tier 1 applicants that are still NEW.
func (c *Communicator) ContactTier1(ctx context.Context, dryRun bool) (Result, error) {
	return c.run(ctx, &initialPass{c: c}, dryRun)
}

// FollowUp re-contacts CONTACTED applicants whose last message is older than
// the configured window. There is no cap on the number of follow-ups.
func (c *Communicator) FollowUp(ctx context.Context, dryRun bool) (Result, error) {
	return c.run(ctx, &followUpPass{c: c}, dryRun)
}

// DeclineTier3 sends a polite decline to Tier 3 applicants and marks them REJECTED.
func (c *Communicator) DeclineTier3(ctx context.Context, dryRun bool) (Result, error) {
	return c.run(ctx, &declinePass{c: c}, dryRun)
}

func (c *Communicator) passes() []pass {
	return []pass{&initialPass{c: c}, &followUpPass{c: c}, &declinePass{c: c}}
}

// Describe returns status entries for every pass.
func (c *Communicator) Describe() []Status {
	passes := c.passes()
	statuses := make([]Status, 0, len(passes))
	for _, p := range passes {
		statuses = append(statuses, p.Status())
	}
	return statuses
}

func (c *Communicator) run(ctx context.Context, p pass, dryRun bool) (Result, error) {
	res := Result{Pass: p.Name(), DryRun: dryRun}
	log := c.logger.With(zap.String("pass", p.Name()), zap.Bool("dry_run", dryRun))

	if !p.IsEnabled() {
		log.Info("outreach pass disabled")
		return res, nil
	}

	all, err := c.store.List(ctx)
	if err != nil {
		return res, fmt.Errorf("%s: list applicants: %w", p.Name(), err)
	}

	now := c.now().UTC()
	for _, a := range all {
		if !p.Selects(a, now) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		res.Candidates++
		alog := log.With(logger.ApplicantFields(a.JobID, a.ProposalID, a.Name)...)

		if a.ProposalID == "" {
			alog.Warn("no room id for applicant, skipping")
			res.Skipped++
			continue
		}

		text := p.Compose(ctx, a)

		if dryRun {
			alog.Info("dry run: message not sent", zap.String("message", utils.TruncateForLog(text, 300)))
			res.Sent++
			continue
		}

		ok, err := c.sender.SendMessage(ctx, a.ProposalID, text)
		if err != nil || !ok {
			if err == nil {
				err = errors.New("marketplace did not accept the message")
			}
			alog.Error("failed to send message", zap.Error(err))
			res.Failed++
			if marketplace.IsAuth(err) {
				return res, fmt.Errorf("%s: %w", p.Name(), err)
			}
			res.Errors = append(res.Errors, fmt.Sprintf("%s %s: %v", p.Name(), a.ProposalID, err))
			continue
		}

		res.Sent++

		if err := c.store.UpdateFields(ctx, a.ProposalID, p.Next(now)); err != nil {
			alog.Error("message sent but state not saved", zap.Error(err))
			res.Errors = append(res.Errors, fmt.Sprintf("%s %s: save state: %v", p.Name(), a.ProposalID, err))
			continue
		}

		alog.Info("message sent")
	}

	log.Info("outreach pass complete",
		zap.Int("candidates", res.Candidates),
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", res.Skipped),
	)

	return res, nil
}

// pass is one slice of the applicant population and the transition applied
// after a successful send.
type pass interface {
	Name() string
	IsEnabled() bool
	Status() Status
	Selects(a *applicant.Applicant, now time.Time) bool
	Compose(ctx context.Context, a *applicant.Applicant) string
	Next(now time.Time) store.Fields
}

func transition(status applicant.Status, now time.Time, note string) store.Fields {
	return store.Fields{Status: &status, LastContact: &now, Notes: &note}
}

type initialPass struct{ c *Communicator }

func (p *initialPass) Name() string    { return PassInitial }
func (p *initialPass) IsEnabled() bool { return p.c.cfg.AutoRespondTier1 }

func (p *initialPass) Status() Status {
	return Status{
		Name:    p.Name(),
		Enabled: p.IsEnabled(),
		Details: map[string]string{"personalized": strconv.FormatBool(p.c.composer != nil)},
	}
}

func (p *initialPass) Selects(a *applicant.Applicant, _ time.Time) bool {
	return a.Tier() == applicant.Tier1 && a.Contact.Status.IsNew()
}

func (p *initialPass) Compose(ctx context.Context, a *applicant.Applicant) string {
	fallback := Render(p.c.templates.Initial, a, p.c.cfg.CalendlyLink)
	if p.c.composer == nil {
		return fallback
	}

	text, err := p.c.composer.ComposeMessage(ctx, a, p.c.templates.Initial, p.c.cfg.CalendlyLink)
	if err != nil || text == "" {
		p.c.logger.Warn("message generation failed, using template",
			append(logger.ApplicantFields(a.JobID, a.ProposalID, a.Name), zap.Error(err))...)
		return fallback
	}
	return text
}

func (p *initialPass) Next(now time.Time) store.Fields {
	return transition(applicant.StatusContacted, now, "Sent initial outreach (auto)")
}

type followUpPass struct{ c *Communicator }

func (p *followUpPass) Name() string    { return PassFollowUp }
func (p *followUpPass) IsEnabled() bool { return true }

func (p *followUpPass) Status() Status {
	return Status{
		Name:    p.Name(),
		Enabled: true,
		Details: map[string]string{"after": p.c.cfg.FollowUpAfter.String()},
	}
}

func (p *followUpPass) Selects(a *applicant.Applicant, now time.Time) bool {
	if a.Contact.Status != applicant.StatusContacted || a.Contact.LastContact == nil {
		return false
	}
	return !a.Contact.LastContact.After(now.Add(-p.c.cfg.FollowUpAfter))
}

func (p *followUpPass) Compose(_ context.Context, a *applicant.Applicant) string {
	return Render(p.c.templates.FollowUp, a, p.c.cfg.CalendlyLink)
}

func (p *followUpPass) Next(now time.Time) store.Fields {
	return transition(applicant.StatusContacted, now, "Sent follow-up (auto)")
}

type declinePass struct{ c *Communicator }

func (p *declinePass) Name() string    { return PassDecline }
func (p *declinePass) IsEnabled() bool { return p.c.cfg.BatchDeclineTier3 }

func (p *declinePass) Status() Status {
	return Status{Name: p.Name(), Enabled: p.IsEnabled()}
}

// Selects skips REJECTED as well as applicants a human moved to INTERVIEWING or HIRED.
func (p *declinePass) Selects(a *applicant.Applicant, _ time.Time) bool {
	return a.Tier() == applicant.Tier3 && !a.Contact.Status.Terminal()
}

func (p *declinePass) Compose(_ context.Context, a *applicant.Applicant) string {
	return Render(p.c.templates.Decline, a, p.c.cfg.CalendlyLink)
}

func (p *declinePass) Next(now time.Time) store.Fields {
	return transition(applicant.StatusRejected, now, "Sent polite decline (auto)")
}
