package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hire-responder/internal/applicant"
	"github.com/spigell/hire-responder/internal/criteria"
	"github.com/spigell/hire-responder/internal/marketplace"
	"github.com/spigell/hire-responder/internal/outreach"
	"github.com/spigell/hire-responder/internal/store/memory"
	"github.com/spigell/hire-responder/internal/tier"
)

type fakeJobs struct {
	jobs      []*marketplace.Job
	proposals map[string][]*marketplace.Proposal
	listErr   error
	failJobs  map[string]error
	block     chan struct{}
	entered   chan struct{}
}

func (f *fakeJobs) ListOpenJobs(ctx context.Context) ([]*marketplace.Job, error) {
	if f.block != nil {
		close(f.entered)
		<-f.block
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.jobs, nil
}

func (f *fakeJobs) ListProposals(_ context.Context, jobID string) ([]*marketplace.Proposal, error) {
	if err := f.failJobs[jobID]; err != nil {
		return nil, err
	}
	return f.proposals[jobID], nil
}

type fakeOracle struct {
	mu     sync.Mutex
	scores map[string]int
	fail   map[string]error
	calls  int
}

func (f *fakeOracle) Evaluate(_ context.Context, a *applicant.Applicant, _ *criteria.Criteria, _ string) (*applicant.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if err := f.fail[a.Name]; err != nil {
		return nil, err
	}
	return &applicant.Assessment{Score: f.scores[a.Name], PassesMustHave: true, Reasoning: "ok"}, nil
}

type staticCriteria []*criteria.Criteria

func (s staticCriteria) LoadAll() ([]*criteria.Criteria, error) { return s, nil }

type fakeSender struct {
	mu       sync.Mutex
	sent     []string
	err      error
	attempts int
}

func (f *fakeSender) SendMessage(_ context.Context, roomID, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.err != nil {
		return false, f.err
	}
	f.sent = append(f.sent, roomID)
	return true, nil
}

func proposal(jobID string, n int, name string) *marketplace.Proposal {
	return &marketplace.Proposal{
		ID:          fmt.Sprintf("%s-p%d", jobID, n),
		CoverLetter: "<p>Hello &amp; welcome</p>",
		Freelancer:  &marketplace.Freelancer{ID: "f-" + name, Name: name},
	}
}

type fixture struct {
	jobs   *fakeJobs
	oracle *fakeOracle
	store  *memory.Store
	sender *fakeSender
	p      *Pipeline
}

func newFixture(t *testing.T, crit staticCriteria) *fixture {
	t.Helper()

	f := &fixture{
		jobs: &fakeJobs{
			jobs: []*marketplace.Job{{ID: "j1", Title: "Go API", Description: "<b>Build</b> it"}},
			proposals: map[string][]*marketplace.Proposal{
				"j1": {proposal("j1", 1, "Alice"), proposal("j1", 2, "Bob"), proposal("j1", 3, "Carol")},
			},
		},
		oracle: &fakeOracle{scores: map[string]int{"Alice": 92, "Bob": 75, "Carol": 40}},
		store:  memory.New(),
		sender: &fakeSender{},
	}

	comm := outreach.New(outreach.Config{AutoRespondTier1: true, BatchDeclineTier3: true},
		outreach.DefaultTemplates(), f.store, f.sender, nil, zap.NewNop())

	p, err := New(Config{}, Deps{
		Jobs:         f.jobs,
		Store:        f.store,
		Oracle:       f.oracle,
		Criteria:     crit,
		Classifier:   tier.Default(),
		Communicator: comm,
		Logger:       zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	f.p = p
	return f
}

func all() Options {
	return Options{Fetch: true, Analyze: true, Communicate: true}
}

func TestRunTiersAndMessages(t *testing.T) {
	f := newFixture(t, staticCriteria{{JobID: "j1", JobTitle: "Go API"}})

	stats, err := f.p.Run(context.Background(), all())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.JobsProcessed != 1 || stats.ProposalsFetched != 3 || stats.ApplicantsAnalyzed != 3 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.Tiers != (TierCounts{Tier1: 1, Tier2: 1, Tier3: 1}) {
		t.Fatalf("unexpected tiers: %+v", stats.Tiers)
	}
	if stats.InitialOutreach != 1 || stats.Declines != 1 || stats.FollowUps != 0 || stats.MessagesSent != 2 {
		t.Fatalf("unexpected messages: %+v", stats)
	}
	if len(stats.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", stats.Errors)
	}
	if stats.RunID == "" || stats.FinishedAt.Before(stats.StartedAt) {
		t.Fatalf("run metadata missing: %+v", stats)
	}

	alice, _ := f.store.Get(context.Background(), "j1-p1")
	if alice.Contact.Status != applicant.StatusContacted || alice.CoverLetter != "Hello & welcome" {
		t.Fatalf("unexpected tier 1 record: %+v", alice)
	}
	if alice.JobDescription != "Build it" {
		t.Fatalf("job description not cleaned: %q", alice.JobDescription)
	}
	carol, _ := f.store.Get(context.Background(), "j1-p3")
	if carol.Contact.Status != applicant.StatusRejected {
		t.Fatalf("tier 3 applicant not declined: %+v", carol.Contact)
	}

	stats, err = f.p.Run(context.Background(), all())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if stats.ApplicantsAnalyzed != 0 || stats.MessagesSent != 0 || len(f.sender.sent) != 2 {
		t.Fatalf("second run must be idempotent: %+v sent=%v", stats, f.sender.sent)
	}
	if f.oracle.calls != 3 {
		t.Fatalf("scored applicants must not be re-evaluated, calls=%d", f.oracle.calls)
	}
}

func TestReanalyzeScoresEveryone(t *testing.T) {
	f := newFixture(t, staticCriteria{{JobID: "j1"}})

	if _, err := f.p.Run(context.Background(), Options{Fetch: true, Analyze: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stats, _ := f.p.Run(context.Background(), Options{Analyze: true, Reanalyze: true})
	if stats.ApplicantsAnalyzed != 3 || f.oracle.calls != 6 {
		t.Fatalf("expected a full re-analysis, got %+v calls=%d", stats, f.oracle.calls)
	}
}

func TestOracleFailureIsIsolated(t *testing.T) {
	f := newFixture(t, staticCriteria{{JobID: "j1"}})
	f.oracle.fail = map[string]error{"Bob": errors.New("malformed response")}

	stats, err := f.p.Run(context.Background(), Options{Fetch: true, Analyze: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.ApplicantsAnalyzed != 3 || stats.Tiers != (TierCounts{Tier1: 1, Tier3: 2}) {
		t.Fatalf("unexpected analysis stats: %+v", stats)
	}

	bob, _ := f.store.Get(context.Background(), "j1-p2")
	if bob.Evaluation == nil || bob.Evaluation.Tier != applicant.Tier3 || bob.Evaluation.RedFlags[0] != "evaluation failed" {
		t.Fatalf("expected synthetic tier 3 evaluation: %+v", bob.Evaluation)
	}

	carol, _ := f.store.Get(context.Background(), "j1-p3")
	if carol.Evaluation == nil || carol.Evaluation.Score != 40 {
		t.Fatalf("applicant after the failure was not scored: %+v", carol.Evaluation)
	}
}

func TestDryRunDoesNotSend(t *testing.T) {
	f := newFixture(t, staticCriteria{{JobID: "j1"}})

	opts := all()
	opts.DryRun = true
	stats, err := f.p.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !stats.DryRun || stats.MessagesSent != 2 {
		t.Fatalf("expected two would-be messages in a dry run: %+v", stats)
	}
	if len(f.sender.sent) != 0 {
		t.Fatalf("dry run sent messages: %v", f.sender.sent)
	}

	items, _ := f.store.List(context.Background())
	for _, a := range items {
		if a.Contact.Status != applicant.StatusNew || a.Contact.LastContact != nil {
			t.Fatalf("dry run changed %s: %+v", a.ProposalID, a.Contact)
		}
	}
}

func TestExtractIsolatesJobFailures(t *testing.T) {
	f := newFixture(t, nil)
	f.jobs.jobs = append(f.jobs.jobs, &marketplace.Job{ID: "j2", Title: "Broken"})
	f.jobs.failJobs = map[string]error{"j2": &marketplace.APIError{StatusCode: 500, Message: "boom"}}

	stats, err := f.p.Run(context.Background(), all())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.JobsProcessed != 1 || stats.ProposalsFetched != 3 || len(stats.Errors) != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.ApplicantsAnalyzed != 0 {
		t.Fatalf("analysis must be skipped without criteria: %+v", stats)
	}
}

func TestBrokenCriteriaFileDoesNotBlockOtherJobs(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"j1.yaml": "job_id: j1\njob_title: Go API\nmust_have:\n  - Go\n",
		"j2.yaml": "job_id: j2\nnice_to_have:\n  - weight: 3\n",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	f := newFixture(t, nil)
	f.p.deps.Criteria = criteria.NewLoader(dir)

	stats, err := f.p.Run(context.Background(), Options{Fetch: true, Analyze: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.ApplicantsAnalyzed != 3 || f.oracle.calls != 3 {
		t.Fatalf("j1 applicants must still be analyzed: %+v calls=%d", stats, f.oracle.calls)
	}
	if len(stats.Errors) != 1 || !strings.Contains(stats.Errors[0], "j2.yaml") {
		t.Fatalf("expected the broken file in errors, got %v", stats.Errors)
	}
}

func TestListingFailureIsRecorded(t *testing.T) {
	f := newFixture(t, staticCriteria{{JobID: "j1"}})
	f.jobs.listErr = &marketplace.NetworkError{Timeout: true, Err: errors.New("deadline")}

	stats, err := f.p.Run(context.Background(), all())
	if err != nil {
		t.Fatalf("listing failures are not fatal: %v", err)
	}
	if stats.JobsProcessed != 0 || len(stats.Errors) != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestAuthErrorAbortsRun(t *testing.T) {
	f := newFixture(t, staticCriteria{{JobID: "j1"}})
	f.jobs.listErr = &marketplace.AuthError{Err: errors.New("invalid_grant")}

	stats, err := f.p.Run(context.Background(), all())
	if !marketplace.IsAuth(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if stats == nil || len(stats.Errors) != 1 {
		t.Fatalf("stats must be returned with the error: %+v", stats)
	}
	if f.oracle.calls != 0 || len(f.sender.sent) != 0 {
		t.Fatalf("later phases must not run after an auth failure")
	}
	if f.p.State().Running {
		t.Fatalf("pipeline still marked as running")
	}
}

func TestAuthErrorWhileSendingAbortsOutreach(t *testing.T) {
	f := newFixture(t, staticCriteria{{JobID: "j1", JobTitle: "Go API"}})
	f.sender.err = &marketplace.AuthError{Err: errors.New("token revoked")}

	stats, err := f.p.Run(context.Background(), all())
	if !marketplace.IsAuth(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if stats == nil || stats.ApplicantsAnalyzed != 3 {
		t.Fatalf("analysis must complete before outreach: %+v", stats)
	}
	if f.sender.attempts != 1 || stats.MessagesFailed != 1 || stats.MessagesSent != 0 {
		t.Fatalf("outreach must stop after the rejected send: attempts=%d stats=%+v", f.sender.attempts, stats)
	}
	if stats.Declines != 0 || len(stats.Errors) == 0 {
		t.Fatalf("decline pass must not run: %+v", stats)
	}

	items, _ := f.store.List(context.Background())
	for _, a := range items {
		if a.Contact.Status != applicant.StatusNew && a.Contact.Status != "" {
			t.Fatalf("%s changed to %s", a.ProposalID, a.Contact.Status)
		}
	}
	if f.p.State().Running {
		t.Fatalf("pipeline still marked as running")
	}
}

func TestConcurrentRunIsRejected(t *testing.T) {
	f := newFixture(t, nil)
	f.jobs.block = make(chan struct{})
	f.jobs.entered = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.p.Run(context.Background(), Options{Fetch: true})
		done <- err
	}()

	select {
	case <-f.jobs.entered:
	case <-time.After(5 * time.Second):
		t.Fatalf("first run did not start")
	}

	state := f.p.State()
	if !state.Running || state.Phase != PhaseExtract || state.RunID == "" {
		t.Fatalf("unexpected state during run: %+v", state)
	}

	stats, err := f.p.Run(context.Background(), all())
	if !errors.Is(err, ErrAlreadyRunning) || stats == nil {
		t.Fatalf("expected ErrAlreadyRunning with stats, got %v %+v", err, stats)
	}

	close(f.jobs.block)
	if err := <-done; err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	state = f.p.State()
	if state.Running || state.Phase != PhaseIdle || state.Last == nil || state.Last.ProposalsFetched != 3 {
		t.Fatalf("unexpected state after run: %+v", state)
	}
}

func TestNewValidatesDeps(t *testing.T) {
	if _, err := New(Config{}, Deps{}); err == nil {
		t.Fatalf("expected error for missing deps")
	}
}
