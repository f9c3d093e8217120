package marketplace

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"
)

var mockJobs = []Job{
	{
		ID:          "~mock-backend",
		Title:       "Senior Go Backend Engineer",
		Description: "<p>We need a Go engineer to build <b>GraphQL</b> services on PostgreSQL and RabbitMQ.</p>",
	},
	{
		ID:          "~mock-frontend",
		Title:       "React Frontend Developer",
		Description: "<p>Build a dashboard in React and TypeScript against an existing REST API.</p>",
	},
	{
		ID:          "~mock-data",
		Title:       "Data Pipeline Engineer",
		Description: "<p>Design batch pipelines with Airflow and dbt, deploy on AWS.</p>",
	},
}

type mockProfile struct {
	name     string
	title    string
	country  string
	timezone string
	skills   []string
}

var mockProfiles = []mockProfile{
	{name: "Ada Lovelace", title: "Backend engineer, Go and Rust", country: "United Kingdom", timezone: "UTC+00:00", skills: []string{"Go", "PostgreSQL", "gRPC"}},
	{name: "Linus Berg", title: "Full-stack developer", country: "Sweden", timezone: "UTC+01:00", skills: []string{"TypeScript", "React", "Node.js"}},
	{name: "Grace Moreno", title: "Data engineer", country: "Spain", timezone: "UTC+01:00", skills: []string{"Python", "Airflow", "dbt"}},
	{name: "Kenji Sato", title: "Cloud architect", country: "Japan", timezone: "UTC+09:00", skills: []string{"AWS", "Terraform", "Go"}},
	{name: "Amara Okafor", title: "Frontend specialist", country: "Nigeria", timezone: "UTC+01:00", skills: []string{"React", "Next.js", "CSS"}},
	{name: "Ivan Petrov", title: "Distributed systems engineer", country: "Serbia", timezone: "UTC+01:00", skills: []string{"Go", "Kafka", "Kubernetes"}},
	{name: "Priya Nair", title: "Analytics engineer", country: "India", timezone: "UTC+05:30", skills: []string{"SQL", "dbt", "Snowflake"}},
	{name: "Lucas Silva", title: "Web developer", country: "Brazil", timezone: "UTC-03:00", skills: []string{"PHP", "Laravel", "Vue"}},
}

// SentMessage is a message recorded by Mock.
type SentMessage struct {
	RoomID string
	Text   string
}

// Mock serves a fixed catalog without network access. Proposals for a job
// are derived from a hash of the job id so repeated runs see the same data.
type Mock struct {
	logger *zap.Logger

	mu   sync.Mutex
	sent []SentMessage
}

func NewMock(logger *zap.Logger) *Mock {
	return &Mock{logger: logger}
}

func (m *Mock) ListOpenJobs(ctx context.Context) ([]*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	created := time.Date(2024, time.January, 15, 9, 0, 0, 0, time.UTC)
	jobs := make([]*Job, 0, len(mockJobs))
	for i := range mockJobs {
		job := mockJobs[i]
		job.CreatedDateTime = created.Add(time.Duration(i) * 24 * time.Hour)
		jobs = append(jobs, &job)
	}

	m.logger.Info("found open jobs", zap.Int("count", len(jobs)), zap.Bool("mock", true))
	return jobs, nil
}

func (m *Mock) ListProposals(ctx context.Context, jobID string) ([]*Proposal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var job *Job
	for i := range mockJobs {
		if mockJobs[i].ID == jobID {
			j := mockJobs[i]
			job = &j
			break
		}
	}
	if job == nil {
		return nil, &APIError{Message: fmt.Sprintf("job %s not found", jobID)}
	}

	seed := hash(jobID)
	count := 3 + int(seed%5)
	submitted := time.Date(2024, time.February, 1, 12, 0, 0, 0, time.UTC)

	proposals := make([]*Proposal, 0, count)
	for i := 0; i < count; i++ {
		r := rand.New(rand.NewPCG(uint64(seed), uint64(i)))
		profile := mockProfiles[(int(seed)+i)%len(mockProfiles)]

		freelancer := &Freelancer{
			ID:             fmt.Sprintf("mock-freelancer-%d", (int(seed)+i)%len(mockProfiles)),
			Name:           profile.name,
			Title:          profile.title,
			HourlyRate:     Money{Amount: float64(25 + r.IntN(100)), Currency: "USD"},
			TopRatedStatus: []string{"", "TOP_RATED", "TOP_RATED_PLUS"}[r.IntN(3)],
		}
		freelancer.Location.Country = profile.country
		freelancer.Location.Timezone = profile.timezone
		freelancer.Stats.JobSuccessScore = float64(70 + r.IntN(31))
		freelancer.Stats.TotalEarnings = float64(1000 * (1 + r.IntN(200)))
		freelancer.Stats.TotalJobsCount = 1 + r.IntN(80)
		for _, s := range profile.skills {
			freelancer.Skills = append(freelancer.Skills, Skill{Name: s})
		}
		for k := 0; k < 2; k++ {
			freelancer.WorkHistory.Edges = append(freelancer.WorkHistory.Edges, WorkEdge{Node: WorkItem{
				Title:    fmt.Sprintf("%s project #%d", profile.skills[k%len(profile.skills)], k+1),
				Feedback: &Feedback{Score: float64(4 + r.IntN(2))},
			}})
		}

		p := &Proposal{
			ID:                fmt.Sprintf("%s-proposal-%d", jobID, i+1),
			CoverLetter:       fmt.Sprintf("<p>Hi! I am %s. I have worked with %s for years.</p>", profile.name, profile.skills[0]),
			ChargedAmount:     Money{Amount: freelancer.HourlyRate.Amount, Currency: "USD"},
			SubmittedDateTime: submitted.Add(time.Duration(i) * time.Hour),
			Freelancer:        freelancer,
			Job:               job,
		}
		proposals = append(proposals, p)
	}

	m.logger.Info("found proposals", zap.String("job_id", jobID), zap.Int("count", len(proposals)), zap.Bool("mock", true))
	return proposals, nil
}

func (m *Mock) GetFreelancerProfile(ctx context.Context, freelancerID string) (*Freelancer, error) {
	for _, job := range mockJobs {
		proposals, err := m.ListProposals(ctx, job.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range proposals {
			if p.Freelancer.ID == freelancerID {
				return p.Freelancer, nil
			}
		}
	}
	return nil, &APIError{Message: fmt.Sprintf("freelancer %s not found", freelancerID)}
}

func (m *Mock) SendMessage(ctx context.Context, roomID, text string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	m.sent = append(m.sent, SentMessage{RoomID: roomID, Text: text})
	m.mu.Unlock()

	m.logger.Info("sending message", zap.String("room_id", roomID), zap.Bool("mock", true))
	return true, nil
}

// Sent returns a copy of the recorded messages.
func (m *Mock) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

func hash(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
