package outreach

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spigell/hire-responder/internal/applicant"
)

const (
	TemplateInitial  = "initial_outreach"
	TemplateFollowUp = "follow_up"
	TemplateDecline  = "decline"
)

const (
	defaultInitial = "Hi {name}, thanks for your proposal on {job_title}. Your experience with {skills} caught my attention. " +
		"I'd like to schedule a quick call to discuss the project. Here's my calendar: {calendly_link}. Looking forward to connecting!"
	defaultFollowUp = "Hi {name}, following up on my previous message. Are you still interested in the {job_title} role? " +
		"Let me know if the scheduling link works for you or if you'd prefer a different time."
	defaultDecline = "Hi {name}, thank you for your interest in {job_title}. After reviewing all applications, we've decided to " +
		"move forward with other candidates whose experience more closely matches our current needs. Best of luck with your future projects!"
)

// Templates holds the message bodies with {name}, {job_title}, {skills} and
// {calendly_link} placeholders.
type Templates struct {
	Initial  string
	FollowUp string
	Decline  string
}

func DefaultTemplates() Templates {
	return Templates{Initial: defaultInitial, FollowUp: defaultFollowUp, Decline: defaultDecline}
}

// LoadTemplates reads <dir>/<name>.txt for every template. Missing files
// and an empty dir fall back to the built-in text.
func LoadTemplates(dir string) (Templates, error) {
	t := DefaultTemplates()
	if strings.TrimSpace(dir) == "" {
		return t, nil
	}

	targets := map[string]*string{
		TemplateInitial:  &t.Initial,
		TemplateFollowUp: &t.FollowUp,
		TemplateDecline:  &t.Decline,
	}

	for name, target := range targets {
		raw, err := os.ReadFile(filepath.Join(dir, name+".txt"))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Templates{}, fmt.Errorf("read template %s: %w", name, err)
		}

		if text := strings.TrimSpace(string(raw)); text != "" {
			*target = text
		}
	}

	return t, nil
}

// Render substitutes the placeholders with the applicant's details.
func Render(template string, a *applicant.Applicant, calendlyLink string) string {
	jobTitle := strings.TrimSpace(a.JobTitle)
	if jobTitle == "" {
		jobTitle = "this role"
	}

	skills := strings.Join(a.Skills, ", ")
	if skills == "" {
		skills = "your experience"
	}

	if strings.TrimSpace(calendlyLink) == "" {
		calendlyLink = "[scheduling link]"
	}

	return strings.NewReplacer(
		"{name}", a.FirstName(),
		"{job_title}", jobTitle,
		"{skills}", skills,
		"{calendly_link}", calendlyLink,
	).Replace(template)
}
