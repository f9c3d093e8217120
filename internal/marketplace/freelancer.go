package marketplace

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const profileURLFormat = "https://www.upwork.com/freelancers/%s"

// workHistoryLimit is how many engagements make it into the summary.
const workHistoryLimit = 5

const freelancerProfileQuery = `
query GetFreelancerProfile($freelancerId: ID!) {
  freelancer(id: $freelancerId) {
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
      totalHours
    }
    topRatedStatus
    skills {
      name
      level
    }
    certificates {
      name
    }
    workHistory {
      edges {
        node {
          title
          description
          startDate
          endDate
          feedback {
            score
            comment
          }
        }
      }
    }
    portfolio {
      edges {
        node {
          title
          description
          url
        }
      }
    }
  }
}`

type Skill struct {
	Name  string `json:"name" mapstructure:"name"`
	Level string `json:"level,omitempty" mapstructure:"level"`
}

type WorkItem struct {
	Title       string    `json:"title" mapstructure:"title"`
	Description string    `json:"description" mapstructure:"description"`
	StartDate   string    `json:"startDate,omitempty" mapstructure:"startDate"`
	EndDate     string    `json:"endDate,omitempty" mapstructure:"endDate"`
	Feedback    *Feedback `json:"feedback,omitempty" mapstructure:"feedback"`
}

type Feedback struct {
	Score   float64 `json:"score" mapstructure:"score"`
	Comment string  `json:"comment,omitempty" mapstructure:"comment"`
}

type WorkEdge struct {
	Node WorkItem `json:"node" mapstructure:"node"`
}

type PortfolioEdge struct {
	Node PortfolioItem `json:"node" mapstructure:"node"`
}

type PortfolioItem struct {
	Title       string `json:"title" mapstructure:"title"`
	Description string `json:"description" mapstructure:"description"`
	URL         string `json:"url" mapstructure:"url"`
}

type Freelancer struct {
	ID         string `json:"id" mapstructure:"id"`
	Name       string `json:"name" mapstructure:"name"`
	Title      string `json:"title" mapstructure:"title"`
	HourlyRate Money  `json:"hourlyRate" mapstructure:"hourlyRate"`
	Location   struct {
		City     string `json:"city" mapstructure:"city"`
		Country  string `json:"country" mapstructure:"country"`
		Timezone string `json:"timezone" mapstructure:"timezone"`
	} `json:"location" mapstructure:"location"`
	Stats struct {
		JobSuccessScore float64 `json:"jobSuccessScore" mapstructure:"jobSuccessScore"`
		TotalEarnings   float64 `json:"totalEarnings" mapstructure:"totalEarnings"`
		TotalJobsCount  int     `json:"totalJobsCount" mapstructure:"totalJobsCount"`
		TotalHours      float64 `json:"totalHours" mapstructure:"totalHours"`
	} `json:"stats" mapstructure:"stats"`
	TopRatedStatus string  `json:"topRatedStatus" mapstructure:"topRatedStatus"`
	Skills         []Skill `json:"skills" mapstructure:"skills"`
	Certificates   []struct {
		Name string `json:"name" mapstructure:"name"`
	} `json:"certificates,omitempty" mapstructure:"certificates"`
	WorkHistory struct {
		Edges []WorkEdge `json:"edges" mapstructure:"edges"`
	} `json:"workHistory" mapstructure:"workHistory"`
	Portfolio struct {
		Edges []PortfolioEdge `json:"edges" mapstructure:"edges"`
	} `json:"portfolio" mapstructure:"portfolio"`
}

func (f *Freelancer) SkillNames() []string {
	names := make([]string, 0, len(f.Skills))
	for _, s := range f.Skills {
		if name := strings.TrimSpace(s.Name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func (f *Freelancer) CertificateNames() []string {
	names := make([]string, 0, len(f.Certificates))
	for _, c := range f.Certificates {
		if name := strings.TrimSpace(c.Name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func (f *Freelancer) PortfolioTitles() []string {
	titles := make([]string, 0, len(f.Portfolio.Edges))
	for _, e := range f.Portfolio.Edges {
		if title := strings.TrimSpace(e.Node.Title); title != "" {
			titles = append(titles, title)
		}
	}
	return titles
}

// WorkHistorySummary renders the most recent engagements as "title (score/5)".
func (f *Freelancer) WorkHistorySummary() string {
	parts := make([]string, 0, workHistoryLimit)
	for i, e := range f.WorkHistory.Edges {
		if i == workHistoryLimit {
			break
		}

		score := "N/A"
		if e.Node.Feedback != nil {
			score = strconv.FormatFloat(e.Node.Feedback.Score, 'f', -1, 64)
		}
		parts = append(parts, fmt.Sprintf("%s (%s/5)", e.Node.Title, score))
	}
	return strings.Join(parts, "; ")
}

func (f *Freelancer) LocationString() string {
	parts := make([]string, 0, 2)
	for _, p := range []string{f.Location.City, f.Location.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func (f *Freelancer) ProfileURL() string {
	if f.ID == "" {
		return ""
	}
	return fmt.Sprintf(profileURLFormat, f.ID)
}

func (c *Client) GetFreelancerProfile(ctx context.Context, freelancerID string) (*Freelancer, error) {
	data, err := c.ExecuteQuery(ctx, freelancerProfileQuery, map[string]any{"freelancerId": freelancerID})
	if err != nil {
		return nil, fmt.Errorf("get freelancer profile %s: %w", freelancerID, err)
	}

	raw, ok := lookup(data, "freelancer")
	if !ok {
		return nil, &APIError{Message: fmt.Sprintf("freelancer %s not found", freelancerID)}
	}

	var profile Freelancer
	if err := decode(raw, &profile); err != nil {
		return nil, fmt.Errorf("decode freelancer %s: %w", freelancerID, err)
	}

	c.logger.Info("retrieved freelancer profile", zap.String("freelancer_id", profile.ID), zap.String("name", profile.Name))
	return &profile, nil
}
