package store

import (
	"testing"
	"time"

	"github.com/spigell/hire-responder/internal/applicant"
)

func TestFieldsApply(t *testing.T) {
	a := &applicant.Applicant{ProposalID: "p1", Contact: applicant.Contact{Status: applicant.StatusNew, Notes: "keep"}}

	if !(Fields{}).Empty() {
		t.Fatalf("zero fields should be empty")
	}

	status := applicant.StatusContacted
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	ev := &applicant.Evaluation{Score: 90, Tier: applicant.Tier1, RedFlags: []string{"x"}}

	f := Fields{Evaluation: ev, Status: &status, LastContact: &now}
	f.Apply(a)

	if a.Contact.Status != applicant.StatusContacted || !a.Contact.LastContact.Equal(now) {
		t.Fatalf("contact not applied: %+v", a.Contact)
	}
	if a.Contact.Notes != "keep" {
		t.Fatalf("notes should be unchanged, got %q", a.Contact.Notes)
	}
	if a.Evaluation == nil || a.Evaluation.Score != 90 {
		t.Fatalf("evaluation not applied: %+v", a.Evaluation)
	}

	ev.RedFlags[0] = "mutated"
	if a.Evaluation.RedFlags[0] != "x" {
		t.Fatalf("evaluation shares memory with the update")
	}
}

func TestListEncoding(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{in: nil, want: "[]"},
		{in: []string{"Go", "SQL"}, want: `["Go","SQL"]`},
	}

	for _, tt := range tests {
		if got := EncodeList(tt.in); got != tt.want {
			t.Fatalf("EncodeList(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}

	if got := DecodeList(`["Go","SQL"]`); len(got) != 2 || got[1] != "SQL" {
		t.Fatalf("unexpected decode: %v", got)
	}
	if got := DecodeList("not json"); got != nil {
		t.Fatalf("expected nil for garbage, got %v", got)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(nil); err == nil {
		t.Fatalf("expected error for nil")
	}
	if err := Validate(&applicant.Applicant{ProposalID: "  "}); err == nil {
		t.Fatalf("expected error for blank id")
	}
	if err := Validate(&applicant.Applicant{ProposalID: "p"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
