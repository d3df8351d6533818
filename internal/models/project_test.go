package models

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/marketprobe/marketprobe/internal/db"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func createTestProject(t *testing.T, d *sql.DB, slug, domain, status string) *Project {
	t.Helper()
	p := &Project{Slug: slug, Title: "Test " + slug, Domain: domain, Status: status}
	if err := CreateProject(d, p); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestCreateProject_Defaults(t *testing.T) {
	d := testDB(t)
	p := &Project{Slug: "launch", Title: "Launch"}
	if err := CreateProject(d, p); err != nil {
		t.Fatal(err)
	}
	if p.ID == 0 {
		t.Error("id not assigned")
	}
	if p.Status != StatusDraft {
		t.Errorf("status = %q, want DRAFT default", p.Status)
	}
	if p.CreatedAt.IsZero() {
		t.Error("created_at not populated")
	}
}

func TestCreateProject_DuplicateSlug(t *testing.T) {
	d := testDB(t)
	createTestProject(t, d, "dup", "", StatusActive)

	err := CreateProject(d, &Project{Slug: "dup", Title: "Again"})
	if err == nil {
		t.Fatal("expected unique violation")
	}
	if !IsUniqueViolation(err) {
		t.Errorf("IsUniqueViolation = false for %v", err)
	}
}

func TestCreateProject_DuplicateDomain(t *testing.T) {
	d := testDB(t)
	createTestProject(t, d, "one", "go.example.com", StatusActive)

	err := CreateProject(d, &Project{Slug: "two", Title: "Two", Domain: "go.example.com"})
	if !IsUniqueViolation(err) {
		t.Errorf("expected unique violation, got %v", err)
	}
}

func TestCreateProject_EmptyDomainsDoNotCollide(t *testing.T) {
	d := testDB(t)
	createTestProject(t, d, "a", "", StatusDraft)
	if err := CreateProject(d, &Project{Slug: "b", Title: "B"}); err != nil {
		t.Fatalf("two projects without domains must coexist: %v", err)
	}
}

func TestGetProjectByDomain(t *testing.T) {
	d := testDB(t)
	createTestProject(t, d, "demo", "custom.example.com", StatusActive)

	p, err := GetProjectByDomain(d, "custom.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if p.Slug != "demo" {
		t.Errorf("slug = %q, want demo", p.Slug)
	}

	if _, err := GetProjectByDomain(d, "unknown.example.com"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("unknown domain: err = %v, want sql.ErrNoRows", err)
	}
}

func TestListProjects_CountsAndStatusFilter(t *testing.T) {
	d := testDB(t)
	p := createTestProject(t, d, "active", "", StatusActive)
	createTestProject(t, d, "draft", "", StatusDraft)

	if err := CreateSubmission(d, &FormSubmission{ProjectID: p.ID, Email: "a@example.com", FormData: map[string]string{"email": "a@example.com"}}); err != nil {
		t.Fatal(err)
	}
	if err := InsertEvent(d, &AnalyticsEvent{ProjectID: p.ID, EventType: EventPageView}); err != nil {
		t.Fatal(err)
	}

	all, err := ListProjects(d, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("len = %d, want 2", len(all))
	}

	active, err := ListProjects(d, StatusActive)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 {
		t.Fatalf("len = %d, want 1", len(active))
	}
	if active[0].SubmissionCount != 1 || active[0].EventCount != 1 {
		t.Errorf("counts = %d/%d, want 1/1", active[0].SubmissionCount, active[0].EventCount)
	}
}

func TestDeleteProject_Cascades(t *testing.T) {
	d := testDB(t)
	p := createTestProject(t, d, "doomed", "", StatusActive)

	if err := CreateSubmission(d, &FormSubmission{ProjectID: p.ID, Email: "x@example.com", FormData: map[string]string{"email": "x@example.com"}}); err != nil {
		t.Fatal(err)
	}
	if err := InsertEvent(d, &AnalyticsEvent{ProjectID: p.ID, EventType: EventPageView}); err != nil {
		t.Fatal(err)
	}
	if err := ActivateNewPageConfig(d, &PageConfig{ProjectID: p.ID, TemplateConfig: TemplateConfig{Headline: "h"}}); err != nil {
		t.Fatal(err)
	}

	if err := DeleteProject(d, p.ID); err != nil {
		t.Fatal(err)
	}

	for _, table := range []string{"form_submissions", "analytics_events", "page_configs"} {
		var n int
		if err := d.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			t.Fatal(err)
		}
		if n != 0 {
			t.Errorf("%s: %d rows remain after cascade delete", table, n)
		}
	}
}

func TestDeleteProject_Missing(t *testing.T) {
	d := testDB(t)
	if err := DeleteProject(d, 999); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestUpdateProject(t *testing.T) {
	d := testDB(t)
	p := createTestProject(t, d, "ship", "", StatusDraft)

	p.Status = StatusActive
	p.Domain = "ship.example.com"
	if err := UpdateProject(d, p); err != nil {
		t.Fatal(err)
	}

	got, err := GetProjectBySlug(d, "ship")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusActive || got.Domain != "ship.example.com" {
		t.Errorf("got %+v", got)
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []string{StatusActive, StatusArchived, StatusGraduated, StatusDraft} {
		if !ValidStatus(s) {
			t.Errorf("ValidStatus(%q) = false", s)
		}
	}
	if ValidStatus("LIVE") {
		t.Error("ValidStatus(LIVE) = true")
	}
}
