// Package report renders run summaries and applicant listings as terminal tables.
package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/spigell/hire-responder/internal/ai"
	"github.com/spigell/hire-responder/internal/applicant"
	"github.com/spigell/hire-responder/internal/outreach"
	"github.com/spigell/hire-responder/internal/pipeline"
)

// RunSummary prints the counters of one pipeline run followed by its errors.
func RunSummary(w io.Writer, s *pipeline.Stats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Pipeline run " + s.RunID)
	t.AppendHeader(table.Row{"Metric", "Value"})

	sent := "Messages sent"
	if s.DryRun {
		sent = "Messages sent (dry run)"
	}

	t.AppendRows([]table.Row{
		{"Duration", s.Duration.Round(100 * time.Millisecond).String()},
		{"Jobs processed", s.JobsProcessed},
		{"Proposals fetched", s.ProposalsFetched},
		{"Applicants analyzed", s.ApplicantsAnalyzed},
		{"  Tier 1 (advance)", s.Tiers.Tier1},
		{"  Tier 2 (review)", s.Tiers.Tier2},
		{"  Tier 3 (reject)", s.Tiers.Tier3},
		{sent, s.MessagesSent},
		{"  Initial outreach", s.InitialOutreach},
		{"  Follow-ups", s.FollowUps},
		{"  Declines", s.Declines},
		{"Messages failed", s.MessagesFailed},
		{"Errors", len(s.Errors)},
	})
	t.Render()

	if len(s.Errors) == 0 {
		return
	}

	errs := table.NewWriter()
	errs.SetOutputMirror(w)
	errs.AppendHeader(table.Row{"#", "Error"})
	for i, e := range s.Errors {
		errs.AppendRow(table.Row{i + 1, e})
	}
	errs.Render()
}

// Applicants prints one row per applicant.
func Applicants(w io.Writer, items []*applicant.Applicant) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Proposal", "Job", "Name", "Rate", "JSS", "Score", "Tier", "Status", "Last contact"})

	for _, a := range items {
		score := "-"
		if a.Evaluation != nil {
			score = strconv.Itoa(a.Evaluation.Score)
		}

		lastContact := "-"
		if a.Contact.LastContact != nil {
			lastContact = a.Contact.LastContact.Local().Format("2006-01-02 15:04")
		}

		status := string(a.Contact.Status)
		if status == "" {
			status = string(applicant.StatusNew)
		}

		t.AppendRow(table.Row{
			a.ProposalID,
			a.JobTitle,
			a.Name,
			fmt.Sprintf("$%.0f/h", a.HourlyRate),
			fmt.Sprintf("%.0f%%", a.JobSuccessScore),
			score,
			a.Tier().String(),
			status,
			lastContact,
		})
	}

	t.AppendFooter(table.Row{"", "", "", "", "", "", "", "Total", len(items)})
	t.Render()
}

// Questions prints an interview guide.
func Questions(w io.Writer, items []ai.InterviewQuestion) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Type", "Question", "Context"})
	for i, q := range items {
		t.AppendRow(table.Row{i + 1, q.Type, q.Question, q.Context})
	}
	t.Render()
}

// Passes prints the outreach configuration.
func Passes(w io.Writer, statuses []outreach.Status) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Pass", "Enabled", "Details"})
	for _, s := range statuses {
		details := ""
		for k, v := range s.Details {
			if details != "" {
				details += ", "
			}
			details += k + "=" + v
		}
		t.AppendRow(table.Row{s.Name, s.Enabled, details})
	}
	t.Render()
}
