// Package tier maps oracle scores to outreach tiers.
package tier

import (
	"fmt"
	"time"

	"github.com/spigell/hire-responder/internal/applicant"
)

const (
	DefaultTier1Threshold = 85
	DefaultTier2Threshold = 70

	failedFlag = "evaluation failed"
)

// Classifier applies the score thresholds. Tier 1 starts at tier1,
// Tier 2 covers [tier2, tier1) and everything below is Tier 3.
type Classifier struct {
	tier1 int
	tier2 int
	now   func() time.Time
}

func New(tier1, tier2 int) (*Classifier, error) {
	if tier1 < 0 || tier1 > 100 || tier2 < 0 || tier2 > 100 {
		return nil, fmt.Errorf("tier thresholds must be within 0..100, got %d and %d", tier1, tier2)
	}
	if tier1 <= tier2 {
		return nil, fmt.Errorf("tier1 threshold (%d) must be greater than tier2 threshold (%d)", tier1, tier2)
	}

	return &Classifier{tier1: tier1, tier2: tier2, now: time.Now}, nil
}

func Default() *Classifier {
	return &Classifier{tier1: DefaultTier1Threshold, tier2: DefaultTier2Threshold, now: time.Now}
}

func (c *Classifier) Thresholds() (tier1, tier2 int) {
	return c.tier1, c.tier2
}

// Classify never fails. A failed must-have gate always wins over the score.
func (c *Classifier) Classify(a applicant.Assessment) applicant.Evaluation {
	score := min(max(a.Score, 0), 100)

	ev := applicant.Evaluation{
		Score:       score,
		Reasoning:   a.Reasoning,
		RedFlags:    append([]string(nil), a.RedFlags...),
		Strengths:   append([]string(nil), a.Strengths...),
		EvaluatedAt: c.now().UTC(),
	}

	switch {
	case !a.PassesMustHave:
		ev.Tier = applicant.Tier3
		ev.Recommendation = applicant.RecommendationReject
	case score >= c.tier1:
		ev.Tier = applicant.Tier1
		ev.Recommendation = applicant.RecommendationAdvance
	case score >= c.tier2:
		ev.Tier = applicant.Tier2
		ev.Recommendation = applicant.RecommendationReview
	default:
		ev.Tier = applicant.Tier3
		ev.Recommendation = applicant.RecommendationReject
	}

	return ev
}

// Failed is the synthetic result recorded when the oracle could not score an applicant.
func (c *Classifier) Failed(err error) applicant.Evaluation {
	reason := "evaluation failed"
	if err != nil {
		reason = fmt.Sprintf("evaluation failed: %v", err)
	}

	return applicant.Evaluation{
		Score:          0,
		Tier:           applicant.Tier3,
		Reasoning:      reason,
		Recommendation: applicant.RecommendationReject,
		RedFlags:       []string{failedFlag},
		EvaluatedAt:    c.now().UTC(),
	}
}
