package mock

import (
	"context"
	"strings"
	"testing"

	"github.com/spigell/hire-responder/internal/applicant"

	"go.uber.org/zap"
)

func TestEvaluateIsDeterministic(t *testing.T) {
	o := New(zap.NewNop())
	a := &applicant.Applicant{Name: "Sarah Chen"}

	first, err := o.Evaluate(context.Background(), a, nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _ := o.Evaluate(context.Background(), a, nil, "")

	if first.Score != second.Score || first.Reasoning != second.Reasoning {
		t.Fatalf("expected identical results, got %+v and %+v", first, second)
	}
	if first.Score < 40 || first.Score > 98 {
		t.Fatalf("score out of range: %d", first.Score)
	}
	if !first.PassesMustHave || !strings.HasPrefix(first.Reasoning, "[MOCK ANALYSIS]") {
		t.Fatalf("unexpected assessment: %+v", first)
	}
}

func TestScoresStayInRange(t *testing.T) {
	o := New(zap.NewNop())
	for _, name := range []string{"", "A", "Marcus Johnson", "Elena Popescu", "李明", "Zed"} {
		got, err := o.Evaluate(context.Background(), &applicant.Applicant{Name: name}, nil, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Score < 40 || got.Score > 98 {
			t.Fatalf("%q: score out of range: %d", name, got.Score)
		}
	}
}

func TestGenerators(t *testing.T) {
	o := New(zap.NewNop())
	ctx := context.Background()
	a := &applicant.Applicant{Name: "Ana Silva", JobTitle: "Go API", Skills: []string{"Go"}, Portfolio: []string{"Billing engine"}}

	c, err := o.GenerateCriteria(ctx, "job-1", "Go API", "")
	if err != nil || c.JobID != "job-1" || c.Validate() != nil {
		t.Fatalf("unexpected criteria %+v %v", c, err)
	}

	qs, err := o.GenerateInterviewQuestions(ctx, a, "", 2)
	if err != nil || len(qs) != 2 || !strings.Contains(qs[0].Question, "Billing engine") {
		t.Fatalf("unexpected questions %+v %v", qs, err)
	}

	msg, err := o.ComposeMessage(ctx, a, "Hi {name}, about {job_title}", "")
	if err != nil || msg != "Hi Ana, about Go API" {
		t.Fatalf("unexpected message %q %v", msg, err)
	}

	answer, err := o.Chat(ctx, a, "", nil, "is she senior?")
	if err != nil || !strings.Contains(answer, "Go") {
		t.Fatalf("unexpected answer %q %v", answer, err)
	}
}
