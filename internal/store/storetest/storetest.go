// Package storetest holds the behaviour every store backend must share.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spigell/hire-responder/internal/applicant"
	"github.com/spigell/hire-responder/internal/store"
)

// Sample returns a fully populated applicant.
func Sample(proposalID, jobID string) *applicant.Applicant {
	return &applicant.Applicant{
		ProposalID:      proposalID,
		JobID:           jobID,
		JobTitle:        "Go Developer",
		JobDescription:  "Build services",
		FreelancerID:    "f-" + proposalID,
		Name:            "Jane Doe",
		ProfileTitle:    "Backend Engineer",
		ProfileURL:      "https://www.upwork.com/freelancers/f-" + proposalID,
		HourlyRate:      55,
		JobSuccessScore: 97,
		TotalEarnings:   120000,
		TotalJobs:       42,
		TopRatedStatus:  "top_rated",
		Skills:          []string{"Go", "PostgreSQL"},
		Certifications:  []string{"CKA"},
		Portfolio:       []string{"Payments API"},
		WorkHistory:     "API rewrite (5.0/5)",
		Location:        "Berlin, Germany",
		Timezone:        "Europe/Berlin",
		CoverLetter:     "I can help.",
		BidAmount:       50,
		SubmittedAt:     time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC),
	}
}

// Run exercises a fresh store returned by open.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Helper()

	t.Run("upsert is idempotent", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		a := Sample("p1", "j1")
		if err := s.Upsert(ctx, a); err != nil {
			t.Fatalf("upsert: %v", err)
		}

		a.HourlyRate = 70
		a.Skills = []string{"Go", "Kubernetes", "gRPC"}
		if err := s.Upsert(ctx, a); err != nil {
			t.Fatalf("second upsert: %v", err)
		}

		all, err := s.List(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(all) != 1 {
			t.Fatalf("expected one record, got %d", len(all))
		}

		got := all[0]
		if got.HourlyRate != 70 || len(got.Skills) != 3 || got.Skills[2] != "gRPC" {
			t.Fatalf("attributes not refreshed: %+v", got)
		}
		if got.Contact.Status != applicant.StatusNew || got.Evaluation != nil {
			t.Fatalf("unexpected initial state: %+v %+v", got.Contact, got.Evaluation)
		}
		if got.SubmittedAt.IsZero() || !got.SubmittedAt.Equal(a.SubmittedAt) {
			t.Fatalf("submitted time lost: %v", got.SubmittedAt)
		}
	})

	t.Run("upsert keeps evaluation and contact", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		if err := s.Upsert(ctx, Sample("p1", "j1")); err != nil {
			t.Fatalf("upsert: %v", err)
		}

		status := applicant.StatusContacted
		contacted := time.Date(2025, 2, 1, 12, 30, 0, 0, time.UTC)
		notes := "Sent initial outreach (auto)"
		ev := applicant.Evaluation{
			Score:          91,
			Tier:           applicant.Tier1,
			Reasoning:      "strong",
			Recommendation: applicant.RecommendationAdvance,
			RedFlags:       []string{"expensive"},
			Strengths:      []string{"go", "sql"},
			EvaluatedAt:    time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC),
		}
		err := s.UpdateFields(ctx, "p1", store.Fields{Evaluation: &ev, Status: &status, LastContact: &contacted, Notes: &notes})
		if err != nil {
			t.Fatalf("update: %v", err)
		}

		refreshed := Sample("p1", "j1")
		refreshed.CoverLetter = "Updated letter"
		if err := s.Upsert(ctx, refreshed); err != nil {
			t.Fatalf("re-upsert: %v", err)
		}

		got, err := s.Get(ctx, "p1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}

		if got.CoverLetter != "Updated letter" {
			t.Fatalf("cover letter not refreshed: %q", got.CoverLetter)
		}
		if got.Contact.Status != applicant.StatusContacted || got.Contact.Notes != notes {
			t.Fatalf("contact overwritten: %+v", got.Contact)
		}
		if got.Contact.LastContact == nil || !got.Contact.LastContact.Equal(contacted) {
			t.Fatalf("last contact lost: %v", got.Contact.LastContact)
		}
		if got.Evaluation == nil || got.Evaluation.Score != 91 || got.Evaluation.Tier != applicant.Tier1 {
			t.Fatalf("evaluation overwritten: %+v", got.Evaluation)
		}
		if got.Evaluation.Recommendation != applicant.RecommendationAdvance || len(got.Evaluation.Strengths) != 2 {
			t.Fatalf("evaluation details lost: %+v", got.Evaluation)
		}
		if !got.Evaluation.EvaluatedAt.Equal(ev.EvaluatedAt) {
			t.Fatalf("evaluation time lost: %v", got.Evaluation.EvaluatedAt)
		}
	})

	t.Run("list by job in insertion order", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		items := []*applicant.Applicant{Sample("p3", "j1"), Sample("p1", "j2"), Sample("p2", "j1")}
		if err := s.UpsertMany(ctx, items); err != nil {
			t.Fatalf("upsert many: %v", err)
		}

		got, err := s.ListByJob(ctx, "j1")
		if err != nil {
			t.Fatalf("list by job: %v", err)
		}
		if len(got) != 2 || got[0].ProposalID != "p3" || got[1].ProposalID != "p2" {
			t.Fatalf("unexpected job listing: %v", ids(got))
		}

		all, err := s.List(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(all) != 3 || all[1].ProposalID != "p1" {
			t.Fatalf("unexpected listing: %v", ids(all))
		}

		none, err := s.ListByJob(ctx, "missing")
		if err != nil || len(none) != 0 {
			t.Fatalf("expected empty listing, got %v %v", ids(none), err)
		}
	})

	t.Run("missing records", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		if _, err := s.Get(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}

		status := applicant.StatusRejected
		if err := s.UpdateFields(ctx, "nope", store.Fields{Status: &status}); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on update, got %v", err)
		}

		if err := s.Upsert(ctx, &applicant.Applicant{}); err == nil {
			t.Fatalf("expected error for empty proposal id")
		}
	})

	t.Run("partial update", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		if err := s.Upsert(ctx, Sample("p1", "j1")); err != nil {
			t.Fatalf("upsert: %v", err)
		}

		status := applicant.StatusRejected
		if err := s.UpdateFields(ctx, "p1", store.Fields{Status: &status}); err != nil {
			t.Fatalf("update: %v", err)
		}

		got, err := s.Get(ctx, "p1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Contact.Status != applicant.StatusRejected || got.Contact.LastContact != nil || got.Evaluation != nil {
			t.Fatalf("unexpected state after partial update: %+v %+v", got.Contact, got.Evaluation)
		}
	})
}

func ids(items []*applicant.Applicant) []string {
	out := make([]string, 0, len(items))
	for _, a := range items {
		out = append(out, a.ProposalID)
	}
	return out
}
