package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/spigell/hire-responder/internal/ai"
	"github.com/spigell/hire-responder/internal/ai/mock"
	"github.com/spigell/hire-responder/internal/applicant"
	"github.com/spigell/hire-responder/internal/criteria"
	"github.com/spigell/hire-responder/internal/marketplace"
	"github.com/spigell/hire-responder/internal/notify"
	"github.com/spigell/hire-responder/internal/pipeline"
	"github.com/spigell/hire-responder/internal/secrets"
	"github.com/spigell/hire-responder/internal/store/memory"
	"github.com/spigell/hire-responder/internal/store/sqlite"
)

func TestPipelineOptions(t *testing.T) {
	tests := []struct {
		name    string
		flags   []string
		want    pipeline.Options
		wantErr bool
	}{
		{
			name: "all phases by default",
			want: pipeline.Options{Fetch: true, Analyze: true, Communicate: true},
		},
		{
			name:  "fetch only",
			flags: []string{"--fetch-only"},
			want:  pipeline.Options{Fetch: true},
		},
		{
			name:  "analyze only with reanalyze",
			flags: []string{"--analyze-only", "--reanalyze"},
			want:  pipeline.Options{Analyze: true, Reanalyze: true},
		},
		{
			name:  "dry run keeps every phase",
			flags: []string{"--dry-run"},
			want:  pipeline.Options{Fetch: true, Analyze: true, Communicate: true, DryRun: true},
		},
		{
			name:    "exclusive phase flags",
			flags:   []string{"--fetch-only", "--analyze-only"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{Use: "run"}
			addRunFlags(cmd)
			if err := cmd.ParseFlags(tt.flags); err != nil {
				t.Fatalf("parse flags: %v", err)
			}

			got, err := pipelineOptions(cmd)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestFilterApplicants(t *testing.T) {
	items := []*applicant.Applicant{
		{ProposalID: "a", Evaluation: &applicant.Evaluation{Score: 90, Tier: applicant.Tier1}},
		{ProposalID: "b", Evaluation: &applicant.Evaluation{Score: 90, Tier: applicant.Tier1}, Contact: applicant.Contact{Status: applicant.StatusContacted}},
		{ProposalID: "c", Evaluation: &applicant.Evaluation{Score: 20, Tier: applicant.Tier3}},
		{ProposalID: "d"},
	}

	ids := func(list []*applicant.Applicant) string {
		var out []string
		for _, a := range list {
			out = append(out, a.ProposalID)
		}
		return strings.Join(out, ",")
	}

	tests := []struct {
		name   string
		tier   applicant.Tier
		status applicant.Status
		want   string
	}{
		{name: "no filter", want: "a,b,c,d"},
		{name: "tier 1", tier: applicant.Tier1, want: "a,b"},
		{name: "new status includes unset", status: applicant.StatusNew, want: "a,c,d"},
		{name: "tier and status", tier: applicant.Tier1, status: applicant.StatusContacted, want: "b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ids(filterApplicants(items, tt.tier, tt.status)); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	st, err := newStore(ctx, StoreConfig{Driver: "sqlite"}, true)
	if err != nil {
		t.Fatalf("mock store: %v", err)
	}
	if _, ok := st.(*memory.Store); !ok {
		t.Fatalf("expected memory store in mock mode, got %T", st)
	}

	path := filepath.Join(t.TempDir(), "nested", "applicants.db")
	st, err = newStore(ctx, StoreConfig{Driver: "SQLite", Path: path}, false)
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	defer st.Close()
	if _, ok := st.(*sqlite.Store); !ok {
		t.Fatalf("expected sqlite store, got %T", st)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected database file: %v", err)
	}

	if _, err := newStore(ctx, StoreConfig{Driver: "mysql"}, false); err == nil {
		t.Fatalf("expected error for mysql without dsn")
	}
	if _, err := newStore(ctx, StoreConfig{Driver: "redis"}, false); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestNewOracle(t *testing.T) {
	ctx := context.Background()
	log := zap.NewNop()

	oracle, err := newOracle(ctx, AIConfig{Provider: "gemini"}, true, log)
	if err != nil {
		t.Fatalf("mock oracle: %v", err)
	}
	if _, ok := oracle.(*mock.Oracle); !ok {
		t.Fatalf("expected mock oracle, got %T", oracle)
	}

	oracle, err = newOracle(ctx, AIConfig{Provider: "Ollama", Ollama: OllamaConfig{Model: "llama3.2:latest"}}, false, log)
	if err != nil {
		t.Fatalf("ollama oracle: %v", err)
	}
	if _, ok := oracle.(*ai.Analyzer); !ok {
		t.Fatalf("expected analyzer, got %T", oracle)
	}

	_, err = newOracle(ctx, AIConfig{Provider: "gemini"}, false, log)
	if !errors.Is(err, secrets.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured for gemini without key, got %v", err)
	}

	_, err = newOracle(ctx, AIConfig{Provider: "openai"}, false, log)
	if !errors.Is(err, secrets.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured for openai without key, got %v", err)
	}

	if _, err := newOracle(ctx, AIConfig{Provider: "claude"}, false, log); err == nil {
		t.Fatalf("expected error for unsupported provider")
	}
}

func TestNewMarketplace(t *testing.T) {
	log := zap.NewNop()

	api, err := newMarketplace(MarketplaceConfig{}, true, log)
	if err != nil {
		t.Fatalf("mock marketplace: %v", err)
	}
	if _, ok := api.(*marketplace.Mock); !ok {
		t.Fatalf("expected mock marketplace, got %T", api)
	}

	if _, err := newMarketplace(MarketplaceConfig{}, false, log); !errors.Is(err, secrets.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured without access token, got %v", err)
	}

	tokenFile := filepath.Join(t.TempDir(), "access")
	if err := os.WriteFile(tokenFile, []byte("  file-token \n"), 0o600); err != nil {
		t.Fatalf("write token: %v", err)
	}

	api, err = newMarketplace(MarketplaceConfig{AccessToken: "inline", AccessTokenFile: tokenFile, RefreshToken: "refresh"}, false, log)
	if err != nil {
		t.Fatalf("marketplace: %v", err)
	}
	client, ok := api.(*marketplace.Client)
	if !ok {
		t.Fatalf("expected client, got %T", api)
	}
	access, refresh := client.Tokens()
	if access != "file-token" || refresh != "refresh" {
		t.Fatalf("unexpected tokens %q %q", access, refresh)
	}
}

func TestPersistTokens(t *testing.T) {
	dir := t.TempDir()
	cfg := MarketplaceConfig{
		AccessTokenFile:  filepath.Join(dir, "access"),
		RefreshTokenFile: filepath.Join(dir, "refresh"),
	}

	save := persistTokens(cfg, zap.NewNop())
	save(nil)
	save(&oauth2.Token{AccessToken: "new-access", RefreshToken: "new-refresh"})

	for file, want := range map[string]string{cfg.AccessTokenFile: "new-access", cfg.RefreshTokenFile: "new-refresh"} {
		got, err := secrets.Load(secrets.Source{File: file})
		if err != nil {
			t.Fatalf("load %s: %v", file, err)
		}
		if got != want {
			t.Fatalf("expected %q in %s, got %q", want, file, got)
		}
	}

	// a refresh without a new refresh token keeps the old one
	save(&oauth2.Token{AccessToken: "newer-access"})
	got, _ := secrets.Load(secrets.Source{File: cfg.RefreshTokenFile})
	if got != "new-refresh" {
		t.Fatalf("refresh token overwritten: %q", got)
	}
}

func TestNewPublisherWithoutURL(t *testing.T) {
	p, err := newPublisher(NotifyConfig{}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := p.(notify.Nop); !ok {
		t.Fatalf("expected Nop publisher, got %T", p)
	}
}

func TestMockServicesDryRun(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	loader := criteria.NewLoader(filepath.Join(dir, "criteria"))
	if _, err := loader.Save(&criteria.Criteria{
		JobID:    "~mock-backend",
		JobTitle: "Senior Go Backend Engineer",
		MustHave: []string{"Go"},
	}); err != nil {
		t.Fatalf("save criteria: %v", err)
	}

	cfg := &Config{
		Tiers:       TiersConfig{Tier1Threshold: 85, Tier2Threshold: 70},
		CriteriaDir: loader.Dir,
		Communication: CommunicationConfig{
			AutoRespondTier1:   true,
			FollowUpAfterHours: 48,
			BatchDeclineTier3:  true,
		},
	}

	svc, err := newServices(ctx, cfg, true, zap.NewNop())
	if err != nil {
		t.Fatalf("services: %v", err)
	}
	defer svc.Close()

	stats, err := svc.pipeline.Run(ctx, pipeline.Options{Fetch: true, Analyze: true, Communicate: true, DryRun: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if stats.JobsProcessed != 3 {
		t.Fatalf("expected 3 jobs, got %d", stats.JobsProcessed)
	}
	if stats.ApplicantsAnalyzed == 0 || stats.ApplicantsAnalyzed >= stats.ProposalsFetched {
		t.Fatalf("expected only the backend job analyzed, got %d of %d", stats.ApplicantsAnalyzed, stats.ProposalsFetched)
	}

	if sent := svc.market.(*marketplace.Mock).Sent(); len(sent) != 0 {
		t.Fatalf("dry run sent %d messages", len(sent))
	}

	items, err := svc.store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, a := range items {
		if a.Contact.Status != applicant.StatusNew && a.Contact.Status != "" {
			t.Fatalf("dry run changed status of %s to %s", a.ProposalID, a.Contact.Status)
		}
	}
}

func TestTiersValidatedOnStartup(t *testing.T) {
	cfg := &Config{Tiers: TiersConfig{Tier1Threshold: 60, Tier2Threshold: 70}}
	if _, err := newServices(context.Background(), cfg, true, zap.NewNop()); err == nil {
		t.Fatalf("expected error for inverted thresholds")
	}
}
