package models

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Project statuses. Only ACTIVE projects are publicly reachable.
const (
	StatusActive    = "ACTIVE"
	StatusArchived  = "ARCHIVED"
	StatusGraduated = "GRADUATED"
	StatusDraft     = "DRAFT"
)

func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusArchived, StatusGraduated, StatusDraft:
		return true
	}
	return false
}

type Project struct {
	ID          int64     `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Domain      string    `json:"domain,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProjectWithCounts carries list-view aggregates for the admin overview.
type ProjectWithCounts struct {
	Project
	SubmissionCount int `json:"submission_count"`
	EventCount      int `json:"event_count"`
}

// IsUniqueViolation reports whether err is a sqlite UNIQUE constraint failure,
// used to surface slug/domain/email conflicts as 409s instead of 500s.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func CreateProject(db *sql.DB, p *Project) error {
	if p.Status == "" {
		p.Status = StatusDraft
	}
	res, err := db.Exec(
		`INSERT INTO projects (slug, title, description, domain, status) VALUES (?, ?, ?, ?, ?)`,
		p.Slug, p.Title, p.Description, nullable(p.Domain), p.Status,
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	id, _ := res.LastInsertId()
	p.ID = id

	// Re-read to get timestamps
	return GetProjectByID(db, p)
}

func GetProjectByID(db *sql.DB, p *Project) error {
	row := db.QueryRow(
		`SELECT id, slug, title, description, domain, status, created_at, updated_at FROM projects WHERE id = ?`,
		p.ID,
	)
	return scanProject(row, p)
}

func GetProjectBySlug(db *sql.DB, slug string) (*Project, error) {
	p := &Project{}
	row := db.QueryRow(
		`SELECT id, slug, title, description, domain, status, created_at, updated_at FROM projects WHERE slug = ?`,
		slug,
	)
	if err := scanProject(row, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetProjectByDomain resolves a custom domain to its project. Exact match only.
func GetProjectByDomain(db *sql.DB, domain string) (*Project, error) {
	p := &Project{}
	row := db.QueryRow(
		`SELECT id, slug, title, description, domain, status, created_at, updated_at FROM projects WHERE domain = ?`,
		domain,
	)
	if err := scanProject(row, p); err != nil {
		return nil, err
	}
	return p, nil
}

func ListProjects(db *sql.DB, status string) ([]ProjectWithCounts, error) {
	var args []any
	where := "1=1"
	if status != "" {
		where = "p.status = ?"
		args = append(args, status)
	}

	query := `SELECT p.id, p.slug, p.title, p.description, p.domain, p.status, p.created_at, p.updated_at,
		(SELECT COUNT(*) FROM form_submissions s WHERE s.project_id = p.id),
		(SELECT COUNT(*) FROM analytics_events e WHERE e.project_id = p.id)
		FROM projects p WHERE ` + where + ` ORDER BY p.updated_at DESC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []ProjectWithCounts
	for rows.Next() {
		var pc ProjectWithCounts
		var domain sql.NullString
		if err := rows.Scan(
			&pc.ID, &pc.Slug, &pc.Title, &pc.Description, &domain, &pc.Status,
			&pc.CreatedAt, &pc.UpdatedAt, &pc.SubmissionCount, &pc.EventCount,
		); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		pc.Domain = domain.String
		projects = append(projects, pc)
	}
	return projects, rows.Err()
}

func UpdateProject(db *sql.DB, p *Project) error {
	_, err := db.Exec(
		`UPDATE projects SET slug = ?, title = ?, description = ?, domain = ?, status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		p.Slug, p.Title, p.Description, nullable(p.Domain), p.Status, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return GetProjectByID(db, p)
}

// DeleteProject removes the project; submissions, events and page configs go
// with it via ON DELETE CASCADE.
func DeleteProject(db *sql.DB, id int64) error {
	res, err := db.Exec(`DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func SlugExists(db *sql.DB, slug string) (bool, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM projects WHERE slug = ?`, slug).Scan(&count)
	return count > 0, err
}

func scanProject(row *sql.Row, p *Project) error {
	var domain sql.NullString
	if err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Description, &domain, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return err
	}
	p.Domain = domain.String
	return nil
}

// nullable maps "" to NULL so the UNIQUE(domain) constraint ignores projects
// without a custom domain.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
