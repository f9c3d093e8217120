// Package mysql stores applicants in MySQL through gorm.
package mysql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/hire-responder/internal/applicant"
	"github.com/spigell/hire-responder/internal/store"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// profileColumns are refreshed on every upsert. Evaluation and contact
// columns are owned by UpdateFields.
var profileColumns = []string{
	"job_id", "job_title", "job_description", "freelancer_id", "name", "profile_title", "profile_url",
	"hourly_rate", "job_success_score", "total_earnings", "total_jobs", "top_rated_status", "skills",
	"certifications", "portfolio", "work_history", "location", "timezone", "cover_letter", "bid_amount",
	"submitted_at", "updated_at",
}

type record struct {
	ID              uint   `gorm:"primaryKey"`
	ProposalID      string `gorm:"size:64;uniqueIndex;not null"`
	JobID           string `gorm:"size:64;index;not null"`
	JobTitle        string `gorm:"size:512"`
	JobDescription  string `gorm:"type:text"`
	FreelancerID    string `gorm:"size:64"`
	Name            string `gorm:"size:255"`
	ProfileTitle    string `gorm:"size:512"`
	ProfileURL      string `gorm:"size:512"`
	HourlyRate      float64
	JobSuccessScore float64
	TotalEarnings   float64
	TotalJobs       int
	TopRatedStatus  string `gorm:"size:64"`
	Skills          string `gorm:"type:text"`
	Certifications  string `gorm:"type:text"`
	Portfolio       string `gorm:"type:text"`
	WorkHistory     string `gorm:"type:text"`
	Location        string `gorm:"size:255"`
	Timezone        string `gorm:"size:64"`
	CoverLetter     string `gorm:"type:text"`
	BidAmount       float64
	SubmittedAt     *time.Time

	Score          *int
	Tier           int
	Reasoning      string `gorm:"type:text"`
	Recommendation string `gorm:"size:16"`
	RedFlags       string `gorm:"type:text"`
	Strengths      string `gorm:"type:text"`
	EvaluatedAt    *time.Time

	Status      string `gorm:"size:16;not null;default:'NEW'"`
	LastContact *time.Time
	Notes       string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (record) TableName() string { return "applicants" }

type Store struct {
	db *gorm.DB
}

// Open connects with the given DSN and migrates the applicants table.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("mysql dsn is required")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&record{}); err != nil {
		return nil, fmt.Errorf("migrate mysql: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Upsert(ctx context.Context, a *applicant.Applicant) error {
	if err := store.Validate(a); err != nil {
		return err
	}
	return upsertStatement(s.db.WithContext(ctx), toRecord(a)).Error
}

func (s *Store) UpsertMany(ctx context.Context, items []*applicant.Applicant) error {
	for _, a := range items {
		if err := store.Validate(a); err != nil {
			return err
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, a := range items {
			if err := upsertStatement(tx, toRecord(a)).Error; err != nil {
				return fmt.Errorf("upsert %s: %w", a.ProposalID, err)
			}
		}
		return nil
	})
}

func upsertStatement(db *gorm.DB, rec *record) *gorm.DB {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "proposal_id"}},
		DoUpdates: clause.AssignmentColumns(profileColumns),
	}).Create(rec)
}

func (s *Store) Get(ctx context.Context, proposalID string) (*applicant.Applicant, error) {
	var rec record
	err := s.db.WithContext(ctx).Where("proposal_id = ?", proposalID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s: %w", proposalID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", proposalID, err)
	}
	return fromRecord(&rec), nil
}

func (s *Store) ListByJob(ctx context.Context, jobID string) ([]*applicant.Applicant, error) {
	return s.find(s.db.WithContext(ctx).Where("job_id = ?", jobID))
}

func (s *Store) List(ctx context.Context) ([]*applicant.Applicant, error) {
	return s.find(s.db.WithContext(ctx))
}

func (s *Store) find(q *gorm.DB) ([]*applicant.Applicant, error) {
	var recs []record
	if err := q.Order("id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list applicants: %w", err)
	}

	out := make([]*applicant.Applicant, 0, len(recs))
	for i := range recs {
		out = append(out, fromRecord(&recs[i]))
	}
	return out, nil
}

func (s *Store) UpdateFields(ctx context.Context, proposalID string, f store.Fields) error {
	db := s.db.WithContext(ctx)

	res := db.Model(&record{}).Where("proposal_id = ?", proposalID).Updates(updates(f, time.Now()))
	if res.Error != nil {
		return fmt.Errorf("update %s: %w", proposalID, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// MySQL reports zero affected rows when nothing changed.
	var count int64
	if err := db.Model(&record{}).Where("proposal_id = ?", proposalID).Count(&count).Error; err != nil {
		return fmt.Errorf("update %s: %w", proposalID, err)
	}
	if count == 0 {
		return fmt.Errorf("%s: %w", proposalID, store.ErrNotFound)
	}
	return nil
}

func updates(f store.Fields, now time.Time) map[string]any {
	values := map[string]any{"updated_at": now.UTC()}

	if ev := f.Evaluation; ev != nil {
		score := ev.Score
		values["score"] = &score
		values["tier"] = int(ev.Tier)
		values["reasoning"] = ev.Reasoning
		values["recommendation"] = string(ev.Recommendation)
		values["red_flags"] = store.EncodeList(ev.RedFlags)
		values["strengths"] = store.EncodeList(ev.Strengths)
		values["evaluated_at"] = timePtr(ev.EvaluatedAt)
	}
	if f.Status != nil {
		values["status"] = string(*f.Status)
	}
	if f.LastContact != nil {
		values["last_contact"] = f.LastContact.UTC()
	}
	if f.Notes != nil {
		values["notes"] = *f.Notes
	}

	return values
}

func toRecord(a *applicant.Applicant) *record {
	return &record{
		ProposalID:      a.ProposalID,
		JobID:           a.JobID,
		JobTitle:        a.JobTitle,
		JobDescription:  a.JobDescription,
		FreelancerID:    a.FreelancerID,
		Name:            a.Name,
		ProfileTitle:    a.ProfileTitle,
		ProfileURL:      a.ProfileURL,
		HourlyRate:      a.HourlyRate,
		JobSuccessScore: a.JobSuccessScore,
		TotalEarnings:   a.TotalEarnings,
		TotalJobs:       a.TotalJobs,
		TopRatedStatus:  a.TopRatedStatus,
		Skills:          store.EncodeList(a.Skills),
		Certifications:  store.EncodeList(a.Certifications),
		Portfolio:       store.EncodeList(a.Portfolio),
		WorkHistory:     a.WorkHistory,
		Location:        a.Location,
		Timezone:        a.Timezone,
		CoverLetter:     a.CoverLetter,
		BidAmount:       a.BidAmount,
		SubmittedAt:     timePtr(a.SubmittedAt),
		Status:          string(applicant.StatusNew),
	}
}

func fromRecord(rec *record) *applicant.Applicant {
	a := &applicant.Applicant{
		ProposalID:      rec.ProposalID,
		JobID:           rec.JobID,
		JobTitle:        rec.JobTitle,
		JobDescription:  rec.JobDescription,
		FreelancerID:    rec.FreelancerID,
		Name:            rec.Name,
		ProfileTitle:    rec.ProfileTitle,
		ProfileURL:      rec.ProfileURL,
		HourlyRate:      rec.HourlyRate,
		JobSuccessScore: rec.JobSuccessScore,
		TotalEarnings:   rec.TotalEarnings,
		TotalJobs:       rec.TotalJobs,
		TopRatedStatus:  rec.TopRatedStatus,
		Skills:          store.DecodeList(rec.Skills),
		Certifications:  store.DecodeList(rec.Certifications),
		Portfolio:       store.DecodeList(rec.Portfolio),
		WorkHistory:     rec.WorkHistory,
		Location:        rec.Location,
		Timezone:        rec.Timezone,
		CoverLetter:     rec.CoverLetter,
		BidAmount:       rec.BidAmount,
		Contact: applicant.Contact{
			Status: applicant.Status(rec.Status),
			Notes:  rec.Notes,
		},
		UpdatedAt: rec.UpdatedAt,
	}

	if rec.SubmittedAt != nil {
		a.SubmittedAt = rec.SubmittedAt.UTC()
	}
	if rec.LastContact != nil {
		ts := rec.LastContact.UTC()
		a.Contact.LastContact = &ts
	}

	if rec.Score != nil {
		a.Evaluation = &applicant.Evaluation{
			Score:          *rec.Score,
			Tier:           applicant.Tier(rec.Tier),
			Reasoning:      rec.Reasoning,
			Recommendation: applicant.Recommendation(rec.Recommendation),
			RedFlags:       store.DecodeList(rec.RedFlags),
			Strengths:      store.DecodeList(rec.Strengths),
		}
		if rec.EvaluatedAt != nil {
			a.Evaluation.EvaluatedAt = rec.EvaluatedAt.UTC()
		}
	}

	return a
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
}
