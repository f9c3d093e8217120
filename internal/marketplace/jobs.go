package marketplace

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const openJobsQuery = `
query {
  organization {
    jobs(filter: {status: OPEN}) {
      edges {
        node {
          id
          title
          description
          createdDateTime
        }
      }
    }
  }
}`

const jobProposalsQuery = `
query GetJobProposals($jobId: ID!) {
  marketplaceJobPosting(id: $jobId) {
    id
    title
    description
    proposals {
      edges {
        node {
          id
          coverLetter
          chargedAmount
          proposedTerms {
            duration
          }
          submittedDateTime
          freelancer {
            id
            name
            title
            hourlyRate
            location {
              city
              country
              timezone
            }
            stats {
              jobSuccessScore
              totalEarnings
              totalJobsCount
            }
            topRatedStatus
            skills {
              name
            }
            workHistory {
              edges {
                node {
                  title
                  description
                  feedback {
                    score
                  }
                }
              }
            }
          }
        }
      }
    }
  }
}`

type Money struct {
	Amount   float64 `json:"amount" mapstructure:"amount"`
	Currency string  `json:"currency,omitempty" mapstructure:"currency"`
}

type Job struct {
	ID              string    `json:"id" mapstructure:"id"`
	Title           string    `json:"title" mapstructure:"title"`
	Description     string    `json:"description" mapstructure:"description"`
	CreatedDateTime time.Time `json:"createdDateTime" mapstructure:"createdDateTime"`
}

type Proposal struct {
	ID            string `json:"id" mapstructure:"id"`
	CoverLetter   string `json:"coverLetter" mapstructure:"coverLetter"`
	ChargedAmount Money  `json:"chargedAmount" mapstructure:"chargedAmount"`
	ProposedTerms struct {
		Duration string `json:"duration" mapstructure:"duration"`
	} `json:"proposedTerms" mapstructure:"proposedTerms"`
	SubmittedDateTime time.Time   `json:"submittedDateTime" mapstructure:"submittedDateTime"`
	Freelancer        *Freelancer `json:"freelancer" mapstructure:"freelancer"`
	// Job is the posting the proposal was submitted to.
	Job *Job `json:"-" mapstructure:"-"`
}

func (c *Client) ListOpenJobs(ctx context.Context) ([]*Job, error) {
	data, err := c.ExecuteQuery(ctx, openJobsQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("list open jobs: %w", err)
	}

	items, err := nodes(data, "organization", "jobs")
	if err != nil {
		return nil, err
	}

	var jobs []*Job
	if err := decode(items, &jobs); err != nil {
		return nil, fmt.Errorf("decode jobs: %w", err)
	}

	c.logger.Info("found open jobs", zap.Int("count", len(jobs)))
	return jobs, nil
}

func (c *Client) ListProposals(ctx context.Context, jobID string) ([]*Proposal, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, fmt.Errorf("job id is required")
	}

	data, err := c.ExecuteQuery(ctx, jobProposalsQuery, map[string]any{"jobId": jobID})
	if err != nil {
		return nil, fmt.Errorf("list proposals for job %s: %w", jobID, err)
	}

	posting, ok := lookup(data, "marketplaceJobPosting")
	if !ok {
		return nil, nil
	}

	var job Job
	if err := decode(posting, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", jobID, err)
	}

	items, err := nodes(data, "marketplaceJobPosting", "proposals")
	if err != nil {
		return nil, err
	}

	var proposals []*Proposal
	if err := decode(items, &proposals); err != nil {
		return nil, fmt.Errorf("decode proposals for job %s: %w", jobID, err)
	}

	for _, p := range proposals {
		p.Job = &job
	}

	c.logger.Info("found proposals", zap.String("job_id", jobID), zap.Int("count", len(proposals)))
	return proposals, nil
}
