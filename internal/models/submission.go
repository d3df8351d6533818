package models

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// FormSubmission is a captured lead. Rows are immutable once created.
type FormSubmission struct {
	ID          int64             `json:"id"`
	ProjectID   int64             `json:"project_id"`
	SubmittedAt time.Time         `json:"submitted_at"`
	Email       string            `json:"email"`
	FormData    map[string]string `json:"form_data"`
	IPHash      string            `json:"ip_hash,omitempty"`
	UserAgent   string            `json:"user_agent,omitempty"`
	Referrer    string            `json:"referrer,omitempty"`
	UTMSource   string            `json:"utm_source,omitempty"`
	UTMMedium   string            `json:"utm_medium,omitempty"`
	UTMCampaign string            `json:"utm_campaign,omitempty"`
}

// CreateSubmission inserts the lead. A UNIQUE(project_id, email) violation
// means the address already joined this project's waitlist; callers surface
// that as a conflict, not a generic failure.
func CreateSubmission(db *sql.DB, s *FormSubmission) error {
	data, err := json.Marshal(s.FormData)
	if err != nil {
		return fmt.Errorf("marshal form data: %w", err)
	}
	if s.SubmittedAt.IsZero() {
		s.SubmittedAt = time.Now().UTC()
	}

	res, err := db.Exec(
		`INSERT INTO form_submissions (project_id, submitted_at, email, form_data, ip_hash, user_agent, referrer, utm_source, utm_medium, utm_campaign)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ProjectID, sqlTime(s.SubmittedAt), s.Email, string(data),
		s.IPHash, s.UserAgent, s.Referrer, s.UTMSource, s.UTMMedium, s.UTMCampaign,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	id, _ := res.LastInsertId()
	s.ID = id
	return nil
}

// ListSubmissions returns a project's most recent submissions.
func ListSubmissions(db *sql.DB, projectID int64, limit int) ([]FormSubmission, error) {
	rows, err := db.Query(
		`SELECT id, project_id, submitted_at, email, form_data, ip_hash, user_agent, referrer, utm_source, utm_medium, utm_campaign
		FROM form_submissions WHERE project_id = ? ORDER BY submitted_at DESC LIMIT ?`,
		projectID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var subs []FormSubmission
	for rows.Next() {
		var s FormSubmission
		var data string
		var ipHash, ua, ref, src, med, camp sql.NullString
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.SubmittedAt, &s.Email, &data,
			&ipHash, &ua, &ref, &src, &med, &camp); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		s.IPHash, s.UserAgent, s.Referrer = ipHash.String, ua.String, ref.String
		s.UTMSource, s.UTMMedium, s.UTMCampaign = src.String, med.String, camp.String
		if err := json.Unmarshal([]byte(data), &s.FormData); err != nil {
			return nil, fmt.Errorf("decode form data %d: %w", s.ID, err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func SubmissionCount(db *sql.DB, projectID int64, since time.Time) (int, error) {
	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM form_submissions WHERE project_id = ? AND submitted_at >= ?`,
		projectID, sqlTime(since),
	).Scan(&count)
	return count, err
}
