// Package memory is an in-process store used by tests and mock runs.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spigell/hire-responder/internal/applicant"
	"github.com/spigell/hire-responder/internal/store"
)

type Store struct {
	mu    sync.RWMutex
	order []string
	items map[string]*applicant.Applicant
	now   func() time.Time
}

func New() *Store {
	return &Store{
		items: make(map[string]*applicant.Applicant),
		now:   time.Now,
	}
}

func (s *Store) Upsert(_ context.Context, a *applicant.Applicant) error {
	if err := store.Validate(a); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsert(a)
	return nil
}

func (s *Store) UpsertMany(_ context.Context, items []*applicant.Applicant) error {
	for _, a := range items {
		if err := store.Validate(a); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range items {
		s.upsert(a)
	}
	return nil
}

func (s *Store) upsert(a *applicant.Applicant) {
	next := a.Clone()
	next.UpdatedAt = s.now().UTC()

	if existing, ok := s.items[a.ProposalID]; ok {
		next.Evaluation = existing.Evaluation
		next.Contact = existing.Contact
		s.items[a.ProposalID] = next
		return
	}

	next.Evaluation = nil
	next.Contact = applicant.Contact{Status: applicant.StatusNew}
	s.items[a.ProposalID] = next
	s.order = append(s.order, a.ProposalID)
}

func (s *Store) Get(_ context.Context, proposalID string) (*applicant.Applicant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.items[proposalID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", proposalID, store.ErrNotFound)
	}
	return a.Clone(), nil
}

func (s *Store) ListByJob(_ context.Context, jobID string) ([]*applicant.Applicant, error) {
	return s.filter(func(a *applicant.Applicant) bool { return a.JobID == jobID }), nil
}

func (s *Store) List(context.Context) ([]*applicant.Applicant, error) {
	return s.filter(func(*applicant.Applicant) bool { return true }), nil
}

func (s *Store) filter(keep func(*applicant.Applicant) bool) []*applicant.Applicant {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*applicant.Applicant, 0, len(s.order))
	for _, id := range s.order {
		if a := s.items[id]; keep(a) {
			out = append(out, a.Clone())
		}
	}
	return out
}

func (s *Store) UpdateFields(_ context.Context, proposalID string, f store.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.items[proposalID]
	if !ok {
		return fmt.Errorf("%s: %w", proposalID, store.ErrNotFound)
	}

	f.Apply(a)
	a.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) Close() error { return nil }
