// Package sqlite stores applicants in a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spigell/hire-responder/internal/applicant"
	"github.com/spigell/hire-responder/internal/store"

	_ "modernc.org/sqlite"
)

const memoryPath = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS applicants (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	proposal_id TEXT NOT NULL UNIQUE,
	job_id TEXT NOT NULL,
	job_title TEXT,
	job_description TEXT,
	freelancer_id TEXT,
	name TEXT,
	profile_title TEXT,
	profile_url TEXT,
	hourly_rate REAL,
	job_success_score REAL,
	total_earnings REAL,
	total_jobs INTEGER,
	top_rated_status TEXT,
	skills TEXT,
	certifications TEXT,
	portfolio TEXT,
	work_history TEXT,
	location TEXT,
	timezone TEXT,
	cover_letter TEXT,
	bid_amount REAL,
	submitted_at TEXT,
	score INTEGER,
	tier INTEGER,
	reasoning TEXT,
	recommendation TEXT,
	red_flags TEXT,
	strengths TEXT,
	evaluated_at TEXT,
	status TEXT NOT NULL DEFAULT 'NEW',
	last_contact TEXT,
	notes TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_applicants_job_id ON applicants(job_id);
`

const upsertQuery = `INSERT INTO applicants (
	proposal_id, job_id, job_title, job_description, freelancer_id, name, profile_title, profile_url,
	hourly_rate, job_success_score, total_earnings, total_jobs, top_rated_status, skills, certifications,
	portfolio, work_history, location, timezone, cover_letter, bid_amount, submitted_at,
	status, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'NEW', ?, ?)
ON CONFLICT(proposal_id) DO UPDATE SET
	job_id=excluded.job_id,
	job_title=excluded.job_title,
	job_description=excluded.job_description,
	freelancer_id=excluded.freelancer_id,
	name=excluded.name,
	profile_title=excluded.profile_title,
	profile_url=excluded.profile_url,
	hourly_rate=excluded.hourly_rate,
	job_success_score=excluded.job_success_score,
	total_earnings=excluded.total_earnings,
	total_jobs=excluded.total_jobs,
	top_rated_status=excluded.top_rated_status,
	skills=excluded.skills,
	certifications=excluded.certifications,
	portfolio=excluded.portfolio,
	work_history=excluded.work_history,
	location=excluded.location,
	timezone=excluded.timezone,
	cover_letter=excluded.cover_letter,
	bid_amount=excluded.bid_amount,
	submitted_at=excluded.submitted_at,
	updated_at=excluded.updated_at
`

const selectColumns = `proposal_id, job_id, job_title, job_description, freelancer_id, name, profile_title,
	profile_url, hourly_rate, job_success_score, total_earnings, total_jobs, top_rated_status, skills,
	certifications, portfolio, work_history, location, timezone, cover_letter, bid_amount, submitted_at,
	score, tier, reasoning, recommendation, red_flags, strengths, evaluated_at, status, last_contact,
	notes, updated_at`

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}

	if path != memoryPath {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Upsert(ctx context.Context, a *applicant.Applicant) error {
	if err := store.Validate(a); err != nil {
		return err
	}
	return s.upsert(ctx, s.db, a)
}

func (s *Store) UpsertMany(ctx context.Context, items []*applicant.Applicant) error {
	for _, a := range items {
		if err := store.Validate(a); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, a := range items {
		if err := s.upsert(ctx, tx, a); err != nil {
			return err
		}
	}

	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) upsert(ctx context.Context, db execer, a *applicant.Applicant) error {
	now := formatTime(s.now())
	_, err := db.ExecContext(ctx, upsertQuery,
		a.ProposalID, a.JobID, a.JobTitle, a.JobDescription, a.FreelancerID, a.Name, a.ProfileTitle, a.ProfileURL,
		a.HourlyRate, a.JobSuccessScore, a.TotalEarnings, a.TotalJobs, a.TopRatedStatus,
		store.EncodeList(a.Skills), store.EncodeList(a.Certifications), store.EncodeList(a.Portfolio),
		a.WorkHistory, a.Location, a.Timezone, a.CoverLetter, a.BidAmount, nullTime(a.SubmittedAt),
		now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", a.ProposalID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, proposalID string) (*applicant.Applicant, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM applicants WHERE proposal_id = ?`, proposalID)

	a, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", proposalID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", proposalID, err)
	}
	return a, nil
}

func (s *Store) ListByJob(ctx context.Context, jobID string) ([]*applicant.Applicant, error) {
	return s.query(ctx, `SELECT `+selectColumns+` FROM applicants WHERE job_id = ? ORDER BY id`, jobID)
}

func (s *Store) List(ctx context.Context) ([]*applicant.Applicant, error) {
	return s.query(ctx, `SELECT `+selectColumns+` FROM applicants ORDER BY id`)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]*applicant.Applicant, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list applicants: %w", err)
	}
	defer rows.Close()

	var out []*applicant.Applicant
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan applicant: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) UpdateFields(ctx context.Context, proposalID string, f store.Fields) error {
	sets := []string{"updated_at = ?"}
	args := []any{formatTime(s.now())}

	if ev := f.Evaluation; ev != nil {
		sets = append(sets, "score = ?", "tier = ?", "reasoning = ?", "recommendation = ?",
			"red_flags = ?", "strengths = ?", "evaluated_at = ?")
		args = append(args, ev.Score, int(ev.Tier), ev.Reasoning, string(ev.Recommendation),
			store.EncodeList(ev.RedFlags), store.EncodeList(ev.Strengths), nullTime(ev.EvaluatedAt))
	}
	if f.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*f.Status))
	}
	if f.LastContact != nil {
		sets = append(sets, "last_contact = ?")
		args = append(args, formatTime(*f.LastContact))
	}
	if f.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *f.Notes)
	}

	args = append(args, proposalID)
	res, err := s.db.ExecContext(ctx, `UPDATE applicants SET `+strings.Join(sets, ", ")+` WHERE proposal_id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", proposalID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s: %w", proposalID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", proposalID, store.ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*applicant.Applicant, error) {
	var (
		a                                     applicant.Applicant
		jobTitle, jobDesc, freelancerID, name sql.NullString
		profileTitle, profileURL, topRated    sql.NullString
		skills, certs, portfolio, workHistory sql.NullString
		location, timezone, coverLetter       sql.NullString
		submittedAt, evaluatedAt, lastContact sql.NullString
		reasoning, recommendation, redFlags   sql.NullString
		strengths, status, notes, updatedAt   sql.NullString
		hourlyRate, jss, earnings, bid        sql.NullFloat64
		totalJobs, score, tier                sql.NullInt64
	)

	err := row.Scan(
		&a.ProposalID, &a.JobID, &jobTitle, &jobDesc, &freelancerID, &name, &profileTitle,
		&profileURL, &hourlyRate, &jss, &earnings, &totalJobs, &topRated, &skills,
		&certs, &portfolio, &workHistory, &location, &timezone, &coverLetter, &bid, &submittedAt,
		&score, &tier, &reasoning, &recommendation, &redFlags, &strengths, &evaluatedAt, &status, &lastContact,
		&notes, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.JobTitle = jobTitle.String
	a.JobDescription = jobDesc.String
	a.FreelancerID = freelancerID.String
	a.Name = name.String
	a.ProfileTitle = profileTitle.String
	a.ProfileURL = profileURL.String
	a.HourlyRate = hourlyRate.Float64
	a.JobSuccessScore = jss.Float64
	a.TotalEarnings = earnings.Float64
	a.TotalJobs = int(totalJobs.Int64)
	a.TopRatedStatus = topRated.String
	a.Skills = store.DecodeList(skills.String)
	a.Certifications = store.DecodeList(certs.String)
	a.Portfolio = store.DecodeList(portfolio.String)
	a.WorkHistory = workHistory.String
	a.Location = location.String
	a.Timezone = timezone.String
	a.CoverLetter = coverLetter.String
	a.BidAmount = bid.Float64
	a.SubmittedAt = parseTime(submittedAt)
	a.UpdatedAt = parseTime(updatedAt)

	if score.Valid {
		a.Evaluation = &applicant.Evaluation{
			Score:          int(score.Int64),
			Tier:           applicant.Tier(tier.Int64),
			Reasoning:      reasoning.String,
			Recommendation: applicant.Recommendation(recommendation.String),
			RedFlags:       store.DecodeList(redFlags.String),
			Strengths:      store.DecodeList(strengths.String),
			EvaluatedAt:    parseTime(evaluatedAt),
		}
	}

	a.Contact.Status = applicant.Status(status.String)
	a.Contact.Notes = notes.String
	if ts := parseTime(lastContact); !ts.IsZero() {
		a.Contact.LastContact = &ts
	}

	return &a, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func parseTime(v sql.NullString) time.Time {
	if !v.Valid || v.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return time.Time{}
	}
	return t
}
