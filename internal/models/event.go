package models

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Analytics event types. The set is closed; ingestion rejects anything else.
const (
	EventPageView       = "PAGE_VIEW"
	EventFormSubmission = "FORM_SUBMISSION"
	EventButtonClick    = "BUTTON_CLICK"
	EventLinkClick      = "LINK_CLICK"
	EventScrollDepth    = "SCROLL_DEPTH"
	EventSessionStart   = "SESSION_START"
)

var eventTypes = map[string]bool{
	EventPageView:       true,
	EventFormSubmission: true,
	EventButtonClick:    true,
	EventLinkClick:      true,
	EventScrollDepth:    true,
	EventSessionStart:   true,
}

func ValidEventType(t string) bool {
	return eventTypes[t]
}

// AnalyticsEvent is one behavioral telemetry row. Append-only; there is no
// update path.
type AnalyticsEvent struct {
	ID          int64          `json:"id"`
	ProjectID   int64          `json:"project_id"`
	EventType   string         `json:"event_type"`
	Timestamp   time.Time      `json:"timestamp"`
	IPHash      string         `json:"ip_hash,omitempty"`
	UserAgent   string         `json:"user_agent,omitempty"`
	Referrer    string         `json:"referrer,omitempty"`
	Pathname    string         `json:"pathname,omitempty"`
	UTMSource   string         `json:"utm_source,omitempty"`
	UTMMedium   string         `json:"utm_medium,omitempty"`
	UTMCampaign string         `json:"utm_campaign,omitempty"`
	Country     string         `json:"country,omitempty"`
	DeviceType  string         `json:"device_type,omitempty"`
	Browser     string         `json:"browser,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func InsertEvent(db *sql.DB, e *AnalyticsEvent) error {
	meta := "{}"
	if e.Metadata != nil {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		meta = string(b)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	res, err := db.Exec(
		`INSERT INTO analytics_events (project_id, event_type, timestamp, ip_hash, user_agent, referrer, pathname, utm_source, utm_medium, utm_campaign, country, device_type, browser, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ProjectID, e.EventType, sqlTime(e.Timestamp), e.IPHash, e.UserAgent, e.Referrer,
		e.Pathname, e.UTMSource, e.UTMMedium, e.UTMCampaign, e.Country,
		e.DeviceType, e.Browser, meta,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	id, _ := res.LastInsertId()
	e.ID = id
	return nil
}

// BatchInsertEvents writes many events in one transaction. Used by the seed
// and bench tools; the request path inserts synchronously one at a time.
func BatchInsertEvents(db *sql.DB, events []AnalyticsEvent) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO analytics_events (project_id, event_type, timestamp, ip_hash, user_agent, referrer, pathname, utm_source, utm_medium, utm_campaign, country, device_type, browser, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		meta := "{}"
		if e.Metadata != nil {
			b, err := json.Marshal(e.Metadata)
			if err != nil {
				return fmt.Errorf("marshal metadata: %w", err)
			}
			meta = string(b)
		}
		if _, err := stmt.Exec(
			e.ProjectID, e.EventType, sqlTime(e.Timestamp), e.IPHash, e.UserAgent, e.Referrer,
			e.Pathname, e.UTMSource, e.UTMMedium, e.UTMCampaign, e.Country,
			e.DeviceType, e.Browser, meta,
		); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	return tx.Commit()
}

func EventCount(db *sql.DB, projectID int64, eventType string, since time.Time) (int, error) {
	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM analytics_events WHERE project_id = ? AND event_type = ? AND timestamp >= ?`,
		projectID, eventType, sqlTime(since),
	).Scan(&count)
	return count, err
}
