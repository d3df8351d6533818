package models

import (
	"database/sql"
	"errors"
	"testing"
)

func TestActivateNewPageConfig_FirstVersion(t *testing.T) {
	d := testDB(t)
	p := createTestProject(t, d, "page", "", StatusActive)

	pc := &PageConfig{
		ProjectID: p.ID,
		TemplateConfig: TemplateConfig{
			Headline: "Join the waitlist",
			CTAText:  "Sign up",
			Features: []Feature{{Title: "Fast", Description: "Really fast"}},
		},
		DesignConfig: DesignConfig{Theme: "minimal", PrimaryColor: "#6366f1"},
	}
	if err := ActivateNewPageConfig(d, pc); err != nil {
		t.Fatal(err)
	}
	if pc.ID == 0 || !pc.IsActive {
		t.Errorf("config = %+v, want active with id", pc)
	}

	got, err := GetActivePageConfig(d, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TemplateConfig.Headline != "Join the waitlist" {
		t.Errorf("headline = %q", got.TemplateConfig.Headline)
	}
	if got.DesignConfig.Theme != "minimal" {
		t.Errorf("theme = %q", got.DesignConfig.Theme)
	}
}

func TestActivateNewPageConfig_FlipsOldInactive(t *testing.T) {
	d := testDB(t)
	p := createTestProject(t, d, "page", "", StatusActive)

	for i, headline := range []string{"v1", "v2", "v3"} {
		pc := &PageConfig{ProjectID: p.ID, TemplateConfig: TemplateConfig{Headline: headline}}
		if err := ActivateNewPageConfig(d, pc); err != nil {
			t.Fatalf("version %d: %v", i+1, err)
		}

		// Invariant: at most one active config per project, at every step.
		count, err := ActiveConfigCount(d, p.ID)
		if err != nil {
			t.Fatal(err)
		}
		if count != 1 {
			t.Fatalf("after version %d: %d active configs, want 1", i+1, count)
		}
	}

	got, err := GetActivePageConfig(d, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TemplateConfig.Headline != "v3" {
		t.Errorf("active headline = %q, want v3", got.TemplateConfig.Headline)
	}

	all, err := ListPageConfigs(d, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("versions = %d, want 3", len(all))
	}
}

func TestGetActivePageConfig_NoneYet(t *testing.T) {
	d := testDB(t)
	p := createTestProject(t, d, "bare", "", StatusDraft)

	if _, err := GetActivePageConfig(d, p.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestValidTheme(t *testing.T) {
	for _, theme := range []string{"", "modern", "minimal", "bold", "eco", "tech", "creative"} {
		if !ValidTheme(theme) {
			t.Errorf("ValidTheme(%q) = false", theme)
		}
	}
	if ValidTheme("vaporwave") {
		t.Error("ValidTheme(vaporwave) = true")
	}
}

func TestValidHeroStyle(t *testing.T) {
	if !ValidHeroStyle("centered") || !ValidHeroStyle("") {
		t.Error("known styles rejected")
	}
	if ValidHeroStyle("diagonal") {
		t.Error("ValidHeroStyle(diagonal) = true")
	}
}
