// Package store is the persistence boundary for applicants. Records are keyed
// by proposal id; every write is a single-row upsert or update.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/spigell/hire-responder/internal/applicant"
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

var ErrNotFound = errors.New("applicant not found")

// Store is implemented by the memory, sqlite and mysql subpackages.
//
// Upsert inserts unknown proposals with status NEW and, for known ones,
// refreshes job, profile and proposal attributes only. It never changes the
// evaluation or the contact state. List and ListByJob return records in
// insertion order.
type Store interface {
	Upsert(ctx context.Context, a *applicant.Applicant) error
	UpsertMany(ctx context.Context, items []*applicant.Applicant) error
	Get(ctx context.Context, proposalID string) (*applicant.Applicant, error)
	ListByJob(ctx context.Context, jobID string) ([]*applicant.Applicant, error)
	List(ctx context.Context) ([]*applicant.Applicant, error)
	UpdateFields(ctx context.Context, proposalID string, f Fields) error
	Close() error
}

// Fields is a partial update. Nil members are left unchanged.
type Fields struct {
	Evaluation  *applicant.Evaluation
	Status      *applicant.Status
	LastContact *time.Time
	Notes       *string
}

func (f Fields) Empty() bool {
	return f.Evaluation == nil && f.Status == nil && f.LastContact == nil && f.Notes == nil
}

// Apply copies the set members onto a.
func (f Fields) Apply(a *applicant.Applicant) {
	if f.Evaluation != nil {
		ev := *f.Evaluation
		ev.RedFlags = append([]string(nil), f.Evaluation.RedFlags...)
		ev.Strengths = append([]string(nil), f.Evaluation.Strengths...)
		a.Evaluation = &ev
	}
	if f.Status != nil {
		a.Contact.Status = *f.Status
	}
	if f.LastContact != nil {
		ts := *f.LastContact
		a.Contact.LastContact = &ts
	}
	if f.Notes != nil {
		a.Contact.Notes = *f.Notes
	}
}

// Validate checks the minimum a record needs before it can be stored.
func Validate(a *applicant.Applicant) error {
	if a == nil {
		return errors.New("applicant is required")
	}
	if strings.TrimSpace(a.ProposalID) == "" {
		return errors.New("proposal id is required")
	}
	return nil
}

// EncodeList serializes string lists for the SQL backends.
func EncodeList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

func DecodeList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "[]" || raw == "null" {
		return nil
	}

	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	return items
}
