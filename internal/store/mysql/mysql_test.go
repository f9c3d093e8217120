package mysql

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spigell/hire-responder/internal/applicant"
	"github.com/spigell/hire-responder/internal/store"
	"github.com/spigell/hire-responder/internal/store/storetest"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func TestRecordRoundTrip(t *testing.T) {
	in := storetest.Sample("p1", "j1")

	rec := toRecord(in)
	if rec.Status != "NEW" || rec.Score != nil {
		t.Fatalf("new records must start as NEW without evaluation: %+v", rec)
	}
	if rec.Skills != `["Go","PostgreSQL"]` {
		t.Fatalf("unexpected skills encoding %s", rec.Skills)
	}

	out := fromRecord(rec)
	if out.ProposalID != "p1" || out.JobID != "j1" || out.Name != in.Name || len(out.Certifications) != 1 {
		t.Fatalf("unexpected mapping: %+v", out)
	}
	if !out.SubmittedAt.Equal(in.SubmittedAt) {
		t.Fatalf("submitted time lost: %v", out.SubmittedAt)
	}
	if out.Evaluation != nil || out.Contact.LastContact != nil {
		t.Fatalf("unexpected evaluation or contact: %+v", out)
	}
}

func TestRecordWithEvaluation(t *testing.T) {
	score := 0
	evaluated := time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC)
	rec := &record{
		ProposalID:     "p1",
		Score:          &score,
		Tier:           3,
		Recommendation: "REJECT",
		RedFlags:       `["evaluation failed"]`,
		EvaluatedAt:    &evaluated,
		Status:         "REJECTED",
	}

	a := fromRecord(rec)
	if a.Evaluation == nil || a.Evaluation.Tier != applicant.Tier3 || a.Evaluation.RedFlags[0] != "evaluation failed" {
		t.Fatalf("zero score must still map to an evaluation: %+v", a.Evaluation)
	}
	if a.Contact.Status != applicant.StatusRejected {
		t.Fatalf("unexpected status %s", a.Contact.Status)
	}
}

func TestUpdatesOnlyTouchesSetFields(t *testing.T) {
	status := applicant.StatusContacted
	now := time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC)

	values := updates(store.Fields{Status: &status, LastContact: &now}, now)

	if len(values) != 3 {
		t.Fatalf("expected status, last_contact and updated_at, got %v", values)
	}
	if values["status"] != "CONTACTED" {
		t.Fatalf("unexpected status value %v", values["status"])
	}
	if _, ok := values["score"]; ok {
		t.Fatalf("score must not be written without an evaluation")
	}

	values = updates(store.Fields{Evaluation: &applicant.Evaluation{Score: 88, Tier: applicant.Tier1}}, now)
	if got := values["score"].(*int); *got != 88 || values["tier"] != 1 {
		t.Fatalf("unexpected evaluation values %v", values)
	}
}

func TestUpsertKeepsEvaluationColumns(t *testing.T) {
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "user:pass@tcp(127.0.0.1:3306)/hire?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	if err != nil {
		t.Fatalf("open dry-run db: %v", err)
	}

	stmt := upsertStatement(db.WithContext(context.Background()), toRecord(storetest.Sample("p1", "j1"))).Statement
	sql := stmt.SQL.String()

	if !strings.Contains(sql, "ON DUPLICATE KEY UPDATE") {
		t.Fatalf("expected an upsert statement, got %s", sql)
	}

	update := sql[strings.Index(sql, "ON DUPLICATE KEY UPDATE"):]
	for _, column := range []string{"`score`", "`tier`", "`status`", "`last_contact`", "`notes`"} {
		if strings.Contains(update, column) {
			t.Fatalf("upsert must not overwrite %s: %s", column, update)
		}
	}
	if !strings.Contains(update, "`cover_letter`") {
		t.Fatalf("upsert must refresh proposal attributes: %s", update)
	}
}
