package models

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// TemplateConfig is the content document rendered on a project's public page.
// Optional sections stay nil when unused; the JSON column keeps old versions
// readable after fields are added.
type TemplateConfig struct {
	Headline     string            `json:"headline"`
	Subheadline  string            `json:"subheadline,omitempty"`
	CTAText      string            `json:"cta_text,omitempty"`
	Features     []Feature         `json:"features,omitempty"`
	Testimonials []Testimonial     `json:"testimonials,omitempty"`
	Metrics      map[string]string `json:"metrics,omitempty"`
	FAQ          []FAQEntry        `json:"faq,omitempty"`
	About        string            `json:"about,omitempty"`
}

type Feature struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

type Testimonial struct {
	Name    string `json:"name"`
	Company string `json:"company,omitempty"`
	Text    string `json:"text"`
	Avatar  string `json:"avatar,omitempty"`
}

type FAQEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// DesignConfig is the look-and-feel document for a project's public page.
type DesignConfig struct {
	PrimaryColor    string `json:"primary_color,omitempty"`
	SecondaryColor  string `json:"secondary_color,omitempty"`
	BackgroundColor string `json:"background_color,omitempty"`
	TextColor       string `json:"text_color,omitempty"`
	FontFamily      string `json:"font_family,omitempty"`
	Theme           string `json:"theme,omitempty"`
	CustomCSS       string `json:"custom_css,omitempty"`
	HeroStyle       string `json:"hero_style,omitempty"`
	HeroImage       string `json:"hero_image,omitempty"`
}

var themes = map[string]bool{
	"modern": true, "minimal": true, "bold": true,
	"eco": true, "tech": true, "creative": true,
}

func ValidTheme(t string) bool {
	return t == "" || themes[t]
}

var heroStyles = map[string]bool{
	"centered": true, "split": true, "fullscreen": true,
}

func ValidHeroStyle(s string) bool {
	return s == "" || heroStyles[s]
}

type PageConfig struct {
	ID             int64          `json:"id"`
	ProjectID      int64          `json:"project_id"`
	TemplateConfig TemplateConfig `json:"template_config"`
	DesignConfig   DesignConfig   `json:"design_config"`
	IsActive       bool           `json:"is_active"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// GetActivePageConfig returns the live config for a project, or sql.ErrNoRows
// when none has been activated yet.
func GetActivePageConfig(db *sql.DB, projectID int64) (*PageConfig, error) {
	row := db.QueryRow(
		`SELECT id, project_id, template_config, design_config, is_active, created_at, updated_at
		FROM page_configs WHERE project_id = ? AND is_active = 1`,
		projectID,
	)
	return scanPageConfig(row)
}

// ActivateNewPageConfig inserts a new config version and flips any previously
// active row inactive, in one transaction, so at most one row per project is
// ever active.
func ActivateNewPageConfig(db *sql.DB, pc *PageConfig) error {
	tmpl, err := json.Marshal(pc.TemplateConfig)
	if err != nil {
		return fmt.Errorf("marshal template config: %w", err)
	}
	design, err := json.Marshal(pc.DesignConfig)
	if err != nil {
		return fmt.Errorf("marshal design config: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE page_configs SET is_active = 0, updated_at = CURRENT_TIMESTAMP WHERE project_id = ? AND is_active = 1`,
		pc.ProjectID,
	); err != nil {
		return fmt.Errorf("deactivate old config: %w", err)
	}

	res, err := tx.Exec(
		`INSERT INTO page_configs (project_id, template_config, design_config, is_active) VALUES (?, ?, ?, 1)`,
		pc.ProjectID, string(tmpl), string(design),
	)
	if err != nil {
		return fmt.Errorf("insert page config: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	id, _ := res.LastInsertId()
	pc.ID = id
	pc.IsActive = true
	return nil
}

// ListPageConfigs returns all versions for a project, newest first.
func ListPageConfigs(db *sql.DB, projectID int64) ([]PageConfig, error) {
	rows, err := db.Query(
		`SELECT id, project_id, template_config, design_config, is_active, created_at, updated_at
		FROM page_configs WHERE project_id = ? ORDER BY created_at DESC, id DESC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list page configs: %w", err)
	}
	defer rows.Close()

	var configs []PageConfig
	for rows.Next() {
		var pc PageConfig
		var tmpl, design string
		var active int
		if err := rows.Scan(&pc.ID, &pc.ProjectID, &tmpl, &design, &active, &pc.CreatedAt, &pc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan page config: %w", err)
		}
		pc.IsActive = active == 1
		if err := json.Unmarshal([]byte(tmpl), &pc.TemplateConfig); err != nil {
			return nil, fmt.Errorf("decode template config %d: %w", pc.ID, err)
		}
		if err := json.Unmarshal([]byte(design), &pc.DesignConfig); err != nil {
			return nil, fmt.Errorf("decode design config %d: %w", pc.ID, err)
		}
		configs = append(configs, pc)
	}
	return configs, rows.Err()
}

// ActiveConfigCount exists for invariant checks: it must never exceed 1.
func ActiveConfigCount(db *sql.DB, projectID int64) (int, error) {
	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM page_configs WHERE project_id = ? AND is_active = 1`,
		projectID,
	).Scan(&count)
	return count, err
}

func scanPageConfig(row *sql.Row) (*PageConfig, error) {
	pc := &PageConfig{}
	var tmpl, design string
	var active int
	if err := row.Scan(&pc.ID, &pc.ProjectID, &tmpl, &design, &active, &pc.CreatedAt, &pc.UpdatedAt); err != nil {
		return nil, err
	}
	pc.IsActive = active == 1
	if err := json.Unmarshal([]byte(tmpl), &pc.TemplateConfig); err != nil {
		return nil, fmt.Errorf("decode template config: %w", err)
	}
	if err := json.Unmarshal([]byte(design), &pc.DesignConfig); err != nil {
		return nil, fmt.Errorf("decode design config: %w", err)
	}
	return pc, nil
}
