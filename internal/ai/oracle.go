// Package ai scores applicants and drafts recruiter text through a language model.
package ai

import (
	"context"

	"github.com/spigell/hire-responder/internal/applicant"
	"github.com/spigell/hire-responder/internal/criteria"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderMock   = "mock"
)

// Oracle is implemented by Analyzer for real providers and by the mock package.
type Oracle interface {
	Evaluate(ctx context.Context, a *applicant.Applicant, c *criteria.Criteria, jobDescription string) (*applicant.Assessment, error)
	GenerateCriteria(ctx context.Context, jobID, jobTitle, jobDescription string) (*criteria.Criteria, error)
	GenerateInterviewQuestions(ctx context.Context, a *applicant.Applicant, jobDescription string, count int) ([]InterviewQuestion, error)
	Chat(ctx context.Context, a *applicant.Applicant, jobDescription string, history []ChatMessage, query string) (string, error)
	ComposeMessage(ctx context.Context, a *applicant.Applicant, template, calendlyLink string) (string, error)
}

// Generator is a single prompt/response round trip with a model.
type Generator interface {
	GenerateContent(ctx context.Context, system, prompt string) (string, error)
	Model() string
}

type InterviewQuestion struct {
	Type           string `json:"type"`
	Question       string `json:"question"`
	Context        string `json:"context,omitempty"`
	ExpectedAnswer string `json:"expected_answer,omitempty"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
