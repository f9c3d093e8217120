// Package mock is an offline oracle. Scores are derived from the applicant's
// name so repeated runs agree with each other.
package mock

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/spigell/hire-responder/internal/ai"
	"github.com/spigell/hire-responder/internal/applicant"
	"github.com/spigell/hire-responder/internal/criteria"
	"github.com/spigell/hire-responder/internal/outreach"

	"go.uber.org/zap"
)

const Model = "mock-oracle"

var reasons = []string{
	"Candidate shows strong alignment with the job description.",
	"Experience seems relevant but lacks specific details on recent projects.",
	"Strong communication skills evident in the cover letter.",
	"Technical skills match the requirements well.",
	"Rate expectations are within budget.",
}

type Oracle struct {
	logger *zap.Logger
}

var _ ai.Oracle = (*Oracle)(nil)

func New(logger *zap.Logger) *Oracle {
	return &Oracle{logger: logger}
}

func (o *Oracle) Model() string { return Model }

func (o *Oracle) Evaluate(_ context.Context, a *applicant.Applicant, _ *criteria.Criteria, _ string) (*applicant.Assessment, error) {
	if a == nil {
		return nil, errors.New("applicant is required")
	}

	r := random(a.Name)
	score := 40 + r.IntN(59)

	picked := r.Perm(len(reasons))[:2+r.IntN(2)]
	parts := make([]string, 0, len(picked))
	for _, i := range picked {
		parts = append(parts, reasons[i])
	}

	recommendation := applicant.RecommendationReject
	switch {
	case score >= 85:
		recommendation = applicant.RecommendationAdvance
	case score >= 65:
		recommendation = applicant.RecommendationReview
	}

	var redFlags []string
	if score < 60 {
		redFlags = []string{"Generic cover letter"}
	}

	o.logger.Debug("mock evaluation", zap.String("applicant", a.Name), zap.Int("score", score))

	return &applicant.Assessment{
		Score:          score,
		PassesMustHave: true,
		Reasoning:      "[MOCK ANALYSIS] " + strings.Join(parts, " "),
		Recommendation: string(recommendation),
		RedFlags:       redFlags,
		Strengths:      []string{"Quick learner", "Good availability"},
	}, nil
}

func (o *Oracle) GenerateCriteria(_ context.Context, jobID, jobTitle, _ string) (*criteria.Criteria, error) {
	return &criteria.Criteria{
		JobID:    jobID,
		JobTitle: jobTitle,
		MustHave: []string{"Relevant experience", "Available to start immediately"},
		NiceToHave: []criteria.NiceToHave{
			{Criterion: "Previous startup experience", Weight: 3},
			{Criterion: "Familiarity with remote work", Weight: 2},
		},
		RedFlags: []string{"Poor communication", "Incomplete profile"},
	}, nil
}

func (o *Oracle) GenerateInterviewQuestions(_ context.Context, a *applicant.Applicant, _ string, count int) ([]ai.InterviewQuestion, error) {
	if a == nil {
		return nil, errors.New("applicant is required")
	}

	topic := "your most relevant project"
	if len(a.Portfolio) > 0 {
		topic = a.Portfolio[0]
	}

	questions := []ai.InterviewQuestion{
		{
			Type:     "Behavioral",
			Question: fmt.Sprintf("Can you walk me through %s and the hardest problem you solved there?", topic),
			Context:  "Looking for ability to handle pressure and technical depth.",
		},
		{
			Type:           "Technical",
			Question:       "How would you find and fix a race condition in a concurrent service?",
			Context:        "Critical for our backend architecture.",
			ExpectedAnswer: "Mentions reproducing with the race detector and guarding shared state with locks or channels.",
		},
		{
			Type:     "Red Flag",
			Question: "Your profile shows a gap between engagements. What were you working on during that period?",
			Context:  "Check for undeclared side projects or availability issues.",
		},
	}

	if count > 0 && count < len(questions) {
		questions = questions[:count]
	}
	return questions, nil
}

func (o *Oracle) Chat(_ context.Context, a *applicant.Applicant, _ string, _ []ai.ChatMessage, query string) (string, error) {
	if a == nil {
		return "", errors.New("applicant is required")
	}

	skills := "no listed skills"
	if len(a.Skills) > 0 {
		skills = strings.Join(a.Skills, ", ")
	}

	return fmt.Sprintf("[MOCK] About %s regarding %q: %s lists %s with a %.0f%% job success score.",
		a.Name, query, a.FirstName(), skills, a.JobSuccessScore), nil
}

func (o *Oracle) ComposeMessage(_ context.Context, a *applicant.Applicant, template, calendlyLink string) (string, error) {
	if a == nil {
		return "", errors.New("applicant is required")
	}
	return outreach.Render(template, a, calendlyLink), nil
}

func random(name string) *rand.Rand {
	var seed uint64
	for _, r := range name {
		seed += uint64(r)
	}
	return rand.New(rand.NewPCG(seed, seed))
}
