package pipeline

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/spigell/hire-responder/internal/applicant"
	"github.com/spigell/hire-responder/internal/marketplace"
)

var plainText = func() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true)
	return p
}()

// StripHTML reduces marketplace rich text to plain, single-spaced text.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}
	clean := html.UnescapeString(plainText.Sanitize(s))
	return strings.Join(strings.Fields(clean), " ")
}

// ToApplicant flattens a proposal and its freelancer into the stored record.
func ToApplicant(job *marketplace.Job, p *marketplace.Proposal) *applicant.Applicant {
	a := &applicant.Applicant{
		ProposalID:  p.ID,
		CoverLetter: StripHTML(p.CoverLetter),
		BidAmount:   p.ChargedAmount.Amount,
		SubmittedAt: p.SubmittedDateTime,
	}

	if job == nil {
		job = p.Job
	}
	if job != nil {
		a.JobID = job.ID
		a.JobTitle = strings.TrimSpace(job.Title)
		a.JobDescription = StripHTML(job.Description)
	}

	ApplyProfile(a, p.Freelancer)

	return a
}

// ApplyProfile overwrites the profile attributes of a with those of f.
func ApplyProfile(a *applicant.Applicant, f *marketplace.Freelancer) {
	if f == nil {
		return
	}

	a.FreelancerID = f.ID
	a.Name = strings.TrimSpace(f.Name)
	a.ProfileTitle = strings.TrimSpace(f.Title)
	a.ProfileURL = f.ProfileURL()
	a.HourlyRate = f.HourlyRate.Amount
	a.JobSuccessScore = f.Stats.JobSuccessScore
	a.TotalEarnings = f.Stats.TotalEarnings
	a.TotalJobs = f.Stats.TotalJobsCount
	a.TopRatedStatus = f.TopRatedStatus
	a.Skills = f.SkillNames()
	a.Certifications = f.CertificateNames()
	a.Portfolio = f.PortfolioTitles()
	a.WorkHistory = f.WorkHistorySummary()
	a.Location = f.LocationString()
	a.Timezone = f.Location.Timezone
}
