// Package applicant holds the records the pipeline moves between the
// marketplace, the oracle, the store and the outreach passes.
package applicant

import (
	"fmt"
	"strings"
	"time"
)

// Status is the communication state of an applicant.
type Status string

const (
	StatusNew          Status = "NEW"
	StatusContacted    Status = "CONTACTED"
	StatusInterviewing Status = "INTERVIEWING"
	StatusHired        Status = "HIRED"
	StatusRejected     Status = "REJECTED"
)

// Terminal reports whether no further automatic message may be sent.
func (s Status) Terminal() bool {
	switch s {
	case StatusInterviewing, StatusHired, StatusRejected:
		return true
	default:
		return false
	}
}

// IsNew treats an empty status as NEW.
func (s Status) IsNew() bool {
	return s == "" || s == StatusNew
}

// ParseStatus accepts any case and rejects unknown values.
func ParseStatus(raw string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(raw)))
	switch status {
	case "", StatusNew, StatusContacted, StatusInterviewing, StatusHired, StatusRejected:
		return status, nil
	default:
		return "", fmt.Errorf("unknown status %q", raw)
	}
}

type Tier int

const (
	TierUnknown Tier = 0
	Tier1       Tier = 1
	Tier2       Tier = 2
	Tier3       Tier = 3
)

func (t Tier) String() string {
	if t < Tier1 || t > Tier3 {
		return "pending"
	}
	return fmt.Sprintf("Tier %d", int(t))
}

type Recommendation string

const (
	RecommendationAdvance Recommendation = "ADVANCE"
	RecommendationReview  Recommendation = "REVIEW"
	RecommendationReject  Recommendation = "REJECT"
)

// Assessment is the raw oracle verdict before tier classification.
type Assessment struct {
	Score          int      `json:"final_score"`
	PassesMustHave bool     `json:"passes_must_have"`
	Reasoning      string   `json:"reasoning"`
	Recommendation string   `json:"recommendation"`
	RedFlags       []string `json:"red_flags"`
	Strengths      []string `json:"strengths"`
}

// Evaluation is the classified, persisted result of scoring an applicant.
type Evaluation struct {
	Score          int            `json:"score"`
	Tier           Tier           `json:"tier"`
	Reasoning      string         `json:"reasoning"`
	Recommendation Recommendation `json:"recommendation"`
	RedFlags       []string       `json:"red_flags,omitempty"`
	Strengths      []string       `json:"strengths,omitempty"`
	EvaluatedAt    time.Time      `json:"evaluated_at"`
}

// Contact is owned by the outreach passes.
type Contact struct {
	Status      Status     `json:"status"`
	LastContact *time.Time `json:"last_contact,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// Applicant is one proposal together with the freelancer behind it.
type Applicant struct {
	ProposalID     string `json:"proposal_id"`
	JobID          string `json:"job_id"`
	JobTitle       string `json:"job_title"`
	JobDescription string `json:"job_description,omitempty"`

	FreelancerID    string   `json:"freelancer_id"`
	Name            string   `json:"name"`
	ProfileTitle    string   `json:"profile_title,omitempty"`
	ProfileURL      string   `json:"profile_url,omitempty"`
	HourlyRate      float64  `json:"hourly_rate,omitempty"`
	JobSuccessScore float64  `json:"job_success_score,omitempty"`
	TotalEarnings   float64  `json:"total_earnings,omitempty"`
	TotalJobs       int      `json:"total_jobs,omitempty"`
	TopRatedStatus  string   `json:"top_rated_status,omitempty"`
	Skills          []string `json:"skills,omitempty"`
	Certifications  []string `json:"certifications,omitempty"`
	Portfolio       []string `json:"portfolio,omitempty"`
	WorkHistory     string   `json:"work_history,omitempty"`
	Location        string   `json:"location,omitempty"`
	Timezone        string   `json:"timezone,omitempty"`

	CoverLetter string    `json:"cover_letter,omitempty"`
	BidAmount   float64   `json:"bid_amount,omitempty"`
	SubmittedAt time.Time `json:"submitted_at,omitempty"`

	Evaluation *Evaluation `json:"evaluation,omitempty"`
	Contact    Contact     `json:"contact"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NeedsEvaluation is true when no usable score has been stored yet.
func (a *Applicant) NeedsEvaluation() bool {
	return a.Evaluation == nil || a.Evaluation.Score == 0
}

// Tier returns TierUnknown for pending applicants.
func (a *Applicant) Tier() Tier {
	if a.Evaluation == nil {
		return TierUnknown
	}
	return a.Evaluation.Tier
}

// Clone returns a deep copy so stores never share slices with callers.
func (a *Applicant) Clone() *Applicant {
	if a == nil {
		return nil
	}

	c := *a
	c.Skills = cloneStrings(a.Skills)
	c.Certifications = cloneStrings(a.Certifications)
	c.Portfolio = cloneStrings(a.Portfolio)

	if a.Evaluation != nil {
		ev := *a.Evaluation
		ev.RedFlags = cloneStrings(a.Evaluation.RedFlags)
		ev.Strengths = cloneStrings(a.Evaluation.Strengths)
		c.Evaluation = &ev
	}

	if a.Contact.LastContact != nil {
		ts := *a.Contact.LastContact
		c.Contact.LastContact = &ts
	}

	return &c
}

// FirstName is used to address the applicant in messages.
func (a *Applicant) FirstName() string {
	fields := strings.Fields(a.Name)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
