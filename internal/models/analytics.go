package models

import (
	"database/sql"
	"fmt"
	"sort"
	"time"
)

const topN = 10

type Summary struct {
	PageViews       int     `json:"page_views"`
	FormSubmissions int     `json:"form_submissions"`
	ConversionRate  float64 `json:"conversion_rate"`
}

// DayCounts is one bucket of the merged daily time series.
type DayCounts struct {
	Date        string `json:"date"` // YYYY-MM-DD, local
	PageViews   int    `json:"page_views"`
	Submissions int    `json:"submissions"`
}

type SourceCount struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

type ReferrerCount struct {
	Referrer string `json:"referrer"`
	Count    int    `json:"count"`
}

type DeviceCount struct {
	DeviceType string `json:"device_type"`
	Count      int    `json:"count"`
}

type BrowserCount struct {
	Browser string `json:"browser"`
	Count   int    `json:"count"`
}

type CountryCount struct {
	Country string `json:"country"`
	Count   int    `json:"count"`
}

// DetailedStats is the full aggregation object served to the admin dashboard
// and the export endpoint.
type DetailedStats struct {
	Summary    Summary     `json:"summary"`
	TimeSeries []DayCounts `json:"time_series"`
	Sources    struct {
		UTM       []SourceCount   `json:"utm"`
		Referrers []ReferrerCount `json:"referrers"`
	} `json:"sources"`
	Technology struct {
		Devices  []DeviceCount  `json:"devices"`
		Browsers []BrowserCount `json:"browsers"`
	} `json:"technology"`
	Geography struct {
		Countries []CountryCount `json:"countries"`
	} `json:"geography"`
}

// ProjectStats is the compact per-project view served on GET /track.
type ProjectStats struct {
	PageViews       int             `json:"pageViews"`
	FormSubmissions int             `json:"formSubmissions"`
	ConversionRate  float64         `json:"conversionRate"`
	TopReferrers    []ReferrerCount `json:"topReferrers"`
}

// FleetEntry is one project's analytics line on the admin overview.
type FleetEntry struct {
	ProjectID       int64   `json:"project_id"`
	Slug            string  `json:"slug"`
	Title           string  `json:"title"`
	Status          string  `json:"status"`
	PageViews       int     `json:"page_views"`
	FormSubmissions int     `json:"form_submissions"`
	ConversionRate  float64 `json:"conversion_rate"`
}

// conversionRate never divides by zero: no page views means rate 0.
func conversionRate(pageViews, submissions int) float64 {
	if pageViews == 0 {
		return 0
	}
	return float64(submissions) / float64(pageViews) * 100
}

func windowStart(days int) time.Time {
	return time.Now().AddDate(0, 0, -days)
}

// sqlTime is the bind format for every timestamp column. Binding a time.Time
// directly makes the driver store Go's String() form, which SQLite's date()
// cannot parse; this layout both compares lexicographically and feeds date().
const sqlTimeLayout = "2006-01-02 15:04:05"

func sqlTime(t time.Time) string {
	return t.UTC().Format(sqlTimeLayout)
}

// GetProjectStats returns the summary plus top referrers for one project.
func GetProjectStats(db *sql.DB, projectID int64, days int) (*ProjectStats, error) {
	since := windowStart(days)

	pageViews, err := EventCount(db, projectID, EventPageView, since)
	if err != nil {
		return nil, fmt.Errorf("page views: %w", err)
	}
	submissions, err := SubmissionCount(db, projectID, since)
	if err != nil {
		return nil, fmt.Errorf("submissions: %w", err)
	}
	referrers, err := topReferrers(db, projectID, since)
	if err != nil {
		return nil, err
	}

	return &ProjectStats{
		PageViews:       pageViews,
		FormSubmissions: submissions,
		ConversionRate:  conversionRate(pageViews, submissions),
		TopReferrers:    referrers,
	}, nil
}

// GetDetailedStats computes the full aggregation object for one project.
func GetDetailedStats(db *sql.DB, projectID int64, days int) (*DetailedStats, error) {
	since := windowStart(days)
	stats := &DetailedStats{}

	pageViews, err := EventCount(db, projectID, EventPageView, since)
	if err != nil {
		return nil, fmt.Errorf("page views: %w", err)
	}
	submissions, err := SubmissionCount(db, projectID, since)
	if err != nil {
		return nil, fmt.Errorf("submissions: %w", err)
	}
	stats.Summary = Summary{
		PageViews:       pageViews,
		FormSubmissions: submissions,
		ConversionRate:  conversionRate(pageViews, submissions),
	}

	if stats.TimeSeries, err = mergedTimeSeries(db, projectID, since); err != nil {
		return nil, err
	}
	if stats.Sources.UTM, err = topUTMSources(db, projectID, since); err != nil {
		return nil, err
	}
	if stats.Sources.Referrers, err = topReferrers(db, projectID, since); err != nil {
		return nil, err
	}
	if stats.Technology.Devices, err = deviceHistogram(db, projectID, since); err != nil {
		return nil, err
	}
	if stats.Technology.Browsers, err = topBrowsers(db, projectID, since); err != nil {
		return nil, err
	}
	if stats.Geography.Countries, err = topCountries(db, projectID, since); err != nil {
		return nil, err
	}
	return stats, nil
}

// GetFleetStats returns window stats for every project, newest update first.
func GetFleetStats(db *sql.DB, days int) ([]FleetEntry, error) {
	since := windowStart(days)

	rows, err := db.Query(
		`SELECT p.id, p.slug, p.title, p.status,
		(SELECT COUNT(*) FROM analytics_events e WHERE e.project_id = p.id AND e.event_type = ? AND e.timestamp >= ?),
		(SELECT COUNT(*) FROM form_submissions s WHERE s.project_id = p.id AND s.submitted_at >= ?)
		FROM projects p ORDER BY p.updated_at DESC`,
		EventPageView, sqlTime(since), sqlTime(since),
	)
	if err != nil {
		return nil, fmt.Errorf("fleet stats: %w", err)
	}
	defer rows.Close()

	var entries []FleetEntry
	for rows.Next() {
		var e FleetEntry
		if err := rows.Scan(&e.ProjectID, &e.Slug, &e.Title, &e.Status, &e.PageViews, &e.FormSubmissions); err != nil {
			return nil, fmt.Errorf("scan fleet entry: %w", err)
		}
		e.ConversionRate = conversionRate(e.PageViews, e.FormSubmissions)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// mergedTimeSeries joins daily page-view and submission counts into one
// date-ascending sequence. A day present in either source appears in the
// result with the missing side zero-filled.
func mergedTimeSeries(db *sql.DB, projectID int64, since time.Time) ([]DayCounts, error) {
	byDay := make(map[string]*DayCounts)

	rows, err := db.Query(
		`SELECT date(timestamp, 'localtime') AS day, COUNT(*) FROM analytics_events
		WHERE project_id = ? AND event_type = ? AND timestamp >= ?
		GROUP BY day`,
		projectID, EventPageView, sqlTime(since),
	)
	if err != nil {
		return nil, fmt.Errorf("daily page views: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var day string
		var count int
		if err := rows.Scan(&day, &count); err != nil {
			return nil, fmt.Errorf("scan daily page views: %w", err)
		}
		byDay[day] = &DayCounts{Date: day, PageViews: count}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	subRows, err := db.Query(
		`SELECT date(submitted_at, 'localtime') AS day, COUNT(*) FROM form_submissions
		WHERE project_id = ? AND submitted_at >= ?
		GROUP BY day`,
		projectID, sqlTime(since),
	)
	if err != nil {
		return nil, fmt.Errorf("daily submissions: %w", err)
	}
	defer subRows.Close()
	for subRows.Next() {
		var day string
		var count int
		if err := subRows.Scan(&day, &count); err != nil {
			return nil, fmt.Errorf("scan daily submissions: %w", err)
		}
		if dc, ok := byDay[day]; ok {
			dc.Submissions = count
		} else {
			byDay[day] = &DayCounts{Date: day, Submissions: count}
		}
	}
	if err := subRows.Err(); err != nil {
		return nil, err
	}

	series := make([]DayCounts, 0, len(byDay))
	for _, dc := range byDay {
		series = append(series, *dc)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date < series[j].Date })
	return series, nil
}

func topUTMSources(db *sql.DB, projectID int64, since time.Time) ([]SourceCount, error) {
	rows, err := db.Query(
		`SELECT utm_source, COUNT(*) AS cnt FROM analytics_events
		WHERE project_id = ? AND timestamp >= ? AND utm_source != ''
		GROUP BY utm_source ORDER BY cnt DESC LIMIT ?`,
		projectID, sqlTime(since), topN,
	)
	if err != nil {
		return nil, fmt.Errorf("top utm sources: %w", err)
	}
	defer rows.Close()

	var results []SourceCount
	for rows.Next() {
		var s SourceCount
		if err := rows.Scan(&s.Source, &s.Count); err != nil {
			return nil, fmt.Errorf("scan utm source: %w", err)
		}
		results = append(results, s)
	}
	return results, rows.Err()
}

func topReferrers(db *sql.DB, projectID int64, since time.Time) ([]ReferrerCount, error) {
	rows, err := db.Query(
		`SELECT referrer, COUNT(*) AS cnt FROM analytics_events
		WHERE project_id = ? AND event_type = ? AND timestamp >= ? AND referrer != ''
		GROUP BY referrer ORDER BY cnt DESC LIMIT ?`,
		projectID, EventPageView, sqlTime(since), topN,
	)
	if err != nil {
		return nil, fmt.Errorf("top referrers: %w", err)
	}
	defer rows.Close()

	var results []ReferrerCount
	for rows.Next() {
		var r ReferrerCount
		if err := rows.Scan(&r.Referrer, &r.Count); err != nil {
			return nil, fmt.Errorf("scan referrer: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func deviceHistogram(db *sql.DB, projectID int64, since time.Time) ([]DeviceCount, error) {
	rows, err := db.Query(
		`SELECT device_type, COUNT(*) AS cnt FROM analytics_events
		WHERE project_id = ? AND timestamp >= ? AND device_type != ''
		GROUP BY device_type ORDER BY cnt DESC`,
		projectID, sqlTime(since),
	)
	if err != nil {
		return nil, fmt.Errorf("device histogram: %w", err)
	}
	defer rows.Close()

	var results []DeviceCount
	for rows.Next() {
		var d DeviceCount
		if err := rows.Scan(&d.DeviceType, &d.Count); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

func topBrowsers(db *sql.DB, projectID int64, since time.Time) ([]BrowserCount, error) {
	rows, err := db.Query(
		`SELECT browser, COUNT(*) AS cnt FROM analytics_events
		WHERE project_id = ? AND timestamp >= ? AND browser != ''
		GROUP BY browser ORDER BY cnt DESC LIMIT ?`,
		projectID, sqlTime(since), topN,
	)
	if err != nil {
		return nil, fmt.Errorf("top browsers: %w", err)
	}
	defer rows.Close()

	var results []BrowserCount
	for rows.Next() {
		var b BrowserCount
		if err := rows.Scan(&b.Browser, &b.Count); err != nil {
			return nil, fmt.Errorf("scan browser: %w", err)
		}
		results = append(results, b)
	}
	return results, rows.Err()
}

func topCountries(db *sql.DB, projectID int64, since time.Time) ([]CountryCount, error) {
	rows, err := db.Query(
		`SELECT country, COUNT(*) AS cnt FROM analytics_events
		WHERE project_id = ? AND timestamp >= ? AND country != ''
		GROUP BY country ORDER BY cnt DESC LIMIT ?`,
		projectID, sqlTime(since), topN,
	)
	if err != nil {
		return nil, fmt.Errorf("top countries: %w", err)
	}
	defer rows.Close()

	var results []CountryCount
	for rows.Next() {
		var c CountryCount
		if err := rows.Scan(&c.Country, &c.Count); err != nil {
			return nil, fmt.Errorf("scan country: %w", err)
		}
		results = append(results, c)
	}
	return results, rows.Err()
}
