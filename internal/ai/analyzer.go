package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/spigell/hire-responder/internal/applicant"
	"github.com/spigell/hire-responder/internal/criteria"
	"github.com/spigell/hire-responder/internal/utils"

	"go.uber.org/zap"
)

var (
	//go:embed prompts/system.md
	systemPrompt string
	//go:embed prompts/evaluate.md
	evaluateTemplate string
	//go:embed prompts/criteria.md
	criteriaTemplate string
	//go:embed prompts/interview.md
	interviewTemplate string
	//go:embed prompts/chat.md
	chatTemplate string
	//go:embed prompts/outreach.md
	outreachTemplate string
)

const (
	defaultMaxLogLength   = 200
	defaultQuestionCount  = 5
	coverLetterExcerptLen = 200
)

var requiredEvaluationFields = []string{"passes_must_have", "final_score", "reasoning", "recommendation"}

// Analyzer implements Oracle on top of any Generator.
type Analyzer struct {
	generator Generator
	logger    *zap.Logger
	maxLogLen int
}

func NewAnalyzer(generator Generator, maxLogLength int, logger *zap.Logger) *Analyzer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Analyzer{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (a *Analyzer) Evaluate(ctx context.Context, app *applicant.Applicant, c *criteria.Criteria, jobDescription string) (*applicant.Assessment, error) {
	if app == nil {
		return nil, errors.New("applicant is required")
	}
	if c == nil {
		return nil, errors.New("criteria are required")
	}

	criteriaJSON, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal criteria: %w", err)
	}

	applicantJSON, err := applicantPayload(app)
	if err != nil {
		return nil, err
	}

	prompt := fill(evaluateTemplate, map[string]string{
		"JOB_DESCRIPTION": jobDescription,
		"CRITERIA_JSON":   string(criteriaJSON),
		"APPLICANT_JSON":  applicantJSON,
	})

	raw, err := a.generate(ctx, "evaluate", app.ProposalID, prompt)
	if err != nil {
		return nil, err
	}

	return parseAssessment(raw)
}

func (a *Analyzer) GenerateCriteria(ctx context.Context, jobID, jobTitle, jobDescription string) (*criteria.Criteria, error) {
	prompt := fill(criteriaTemplate, map[string]string{
		"JOB_TITLE":       jobTitle,
		"JOB_DESCRIPTION": jobDescription,
	})

	raw, err := a.generate(ctx, "generate criteria", jobID, prompt)
	if err != nil {
		return nil, err
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		return nil, fmt.Errorf("parse criteria response: %w", err)
	}

	result := &criteria.Criteria{
		JobID:    jobID,
		JobTitle: jobTitle,
		MustHave: coerceStrings(data["must_have"]),
		RedFlags: coerceStrings(data["red_flags"]),
	}

	items, _ := data["nice_to_have"].([]any)
	for _, item := range items {
		switch val := item.(type) {
		case map[string]any:
			name := coerceString(val["criterion"])
			if name == "" {
				name = coerceString(val["description"])
			}
			if name == "" {
				continue
			}
			weight := coerceFloat(val["weight"])
			if math.IsNaN(weight) || weight < 0 {
				weight = 1
			}
			result.NiceToHave = append(result.NiceToHave, criteria.NiceToHave{Criterion: name, Weight: int(math.Round(weight))})
		case string:
			if name := strings.TrimSpace(val); name != "" {
				result.NiceToHave = append(result.NiceToHave, criteria.NiceToHave{Criterion: name, Weight: 1})
			}
		}
	}

	if len(result.MustHave) == 0 && len(result.NiceToHave) == 0 {
		return nil, errors.New("criteria response is empty")
	}

	return result, nil
}

func (a *Analyzer) GenerateInterviewQuestions(ctx context.Context, app *applicant.Applicant, jobDescription string, count int) ([]InterviewQuestion, error) {
	if app == nil {
		return nil, errors.New("applicant is required")
	}
	if count <= 0 {
		count = defaultQuestionCount
	}

	applicantJSON, err := applicantPayload(app)
	if err != nil {
		return nil, err
	}

	prompt := fill(interviewTemplate, map[string]string{
		"COUNT":           strconv.Itoa(count),
		"JOB_DESCRIPTION": jobDescription,
		"APPLICANT_JSON":  applicantJSON,
	})

	raw, err := a.generate(ctx, "interview questions", app.ProposalID, prompt)
	if err != nil {
		return nil, err
	}

	cleaned := []byte(extractJSON(raw))

	var questions []InterviewQuestion
	if err := json.Unmarshal(cleaned, &questions); err != nil {
		var wrapped struct {
			Questions []InterviewQuestion `json:"questions"`
		}
		if err := json.Unmarshal(cleaned, &wrapped); err != nil {
			return nil, fmt.Errorf("parse interview questions: %w", err)
		}
		questions = wrapped.Questions
	}

	result := questions[:0]
	for _, q := range questions {
		if strings.TrimSpace(q.Question) != "" {
			result = append(result, q)
		}
	}

	if len(result) == 0 {
		return nil, errors.New("no interview questions returned")
	}

	return result, nil
}

func (a *Analyzer) Chat(ctx context.Context, app *applicant.Applicant, jobDescription string, history []ChatMessage, query string) (string, error) {
	if app == nil {
		return "", errors.New("applicant is required")
	}
	if strings.TrimSpace(query) == "" {
		return "", errors.New("query is required")
	}

	applicantJSON, err := applicantPayload(app)
	if err != nil {
		return "", err
	}

	var transcript strings.Builder
	for _, msg := range history {
		fmt.Fprintf(&transcript, "%s: %s\n", msg.Role, msg.Content)
	}
	if transcript.Len() == 0 {
		transcript.WriteString("none")
	}

	prompt := fill(chatTemplate, map[string]string{
		"JOB_DESCRIPTION": jobDescription,
		"APPLICANT_JSON":  applicantJSON,
		"HISTORY":         strings.TrimSpace(transcript.String()),
		"QUERY":           query,
	})

	return a.generate(ctx, "chat", app.ProposalID, prompt)
}

func (a *Analyzer) ComposeMessage(ctx context.Context, app *applicant.Applicant, template, calendlyLink string) (string, error) {
	if app == nil {
		return "", errors.New("applicant is required")
	}

	reasoning := ""
	if app.Evaluation != nil {
		reasoning = app.Evaluation.Reasoning
	}

	if calendlyLink == "" {
		calendlyLink = "[scheduling link]"
	}

	prompt := fill(outreachTemplate, map[string]string{
		"TEMPLATE":      template,
		"NAME":          app.FirstName(),
		"JOB_TITLE":     app.JobTitle,
		"SKILLS":        strings.Join(app.Skills, ", "),
		"COVER_LETTER":  excerpt(app.CoverLetter, coverLetterExcerptLen),
		"REASONING":     reasoning,
		"CALENDLY_LINK": calendlyLink,
	})

	text, err := a.generate(ctx, "compose message", app.ProposalID, prompt)
	if err != nil {
		return "", err
	}

	return strings.Trim(text, "\"` \n"), nil
}

func (a *Analyzer) generate(ctx context.Context, operation, subject, prompt string) (string, error) {
	a.logger.Debug("generate content request",
		zap.String("operation", operation),
		zap.String("subject", subject),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, a.maxLogLen)),
	)

	raw, err := a.generator.GenerateContent(ctx, systemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("%s: %w", operation, err)
	}

	a.logger.Debug("generate content response",
		zap.String("operation", operation),
		zap.String("subject", subject),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, a.maxLogLen)),
	)

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%s: empty response", operation)
	}

	return raw, nil
}

func parseAssessment(raw string) (*applicant.Assessment, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		return nil, fmt.Errorf("parse evaluation response: %w", err)
	}

	for _, field := range requiredEvaluationFields {
		if _, ok := data[field]; !ok {
			return nil, fmt.Errorf("evaluation response is missing %q", field)
		}
	}

	score := coerceFloat(data["final_score"])
	if math.IsNaN(score) {
		return nil, fmt.Errorf("evaluation response has invalid final_score %v", data["final_score"])
	}

	return &applicant.Assessment{
		Score:          int(math.Round(score)),
		PassesMustHave: coerceBool(data["passes_must_have"]),
		Reasoning:      coerceString(data["reasoning"]),
		Recommendation: coerceString(data["recommendation"]),
		RedFlags:       coerceStrings(data["red_flags"]),
		Strengths:      coerceStrings(data["strengths"]),
	}, nil
}

// applicantPayload is the applicant as the model sees it. Evaluation and
// contact state are left out.
func applicantPayload(app *applicant.Applicant) (string, error) {
	payload := map[string]any{
		"name":              app.Name,
		"profile_title":     app.ProfileTitle,
		"hourly_rate":       app.HourlyRate,
		"bid_amount":        app.BidAmount,
		"job_success_score": app.JobSuccessScore,
		"total_earnings":    app.TotalEarnings,
		"total_jobs":        app.TotalJobs,
		"top_rated_status":  app.TopRatedStatus,
		"skills":            app.Skills,
		"certifications":    app.Certifications,
		"portfolio":         app.Portfolio,
		"work_history":      app.WorkHistory,
		"location":          app.Location,
		"timezone":          app.Timezone,
		"cover_letter":      app.CoverLetter,
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal applicant payload: %w", err)
	}

	return string(data), nil
}

// fill substitutes {{KEY}} placeholders in one pass, so substituted values
// are never expanded again.
func fill(template string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for key, value := range values {
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// excerpt cuts s to at most n runes.
func excerpt(s string, n int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n])
}
