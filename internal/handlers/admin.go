package handlers

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/marketprobe/marketprobe/internal/db"
	"github.com/marketprobe/marketprobe/internal/models"
)

// AdminHandler serves the dashboard's analytics and lead-management reads.
type AdminHandler struct {
	DB *sql.DB
}

func (h *AdminHandler) projectIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.URL.Query().Get("projectId"), 10, 64)
	if err != nil || id <= 0 {
		jsonError(w, "projectId is required", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// DetailedStats serves the full aggregation object for one project.
func (h *AdminHandler) DetailedStats(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.projectIDParam(w, r)
	if !ok {
		return
	}
	days := daysParam(r)

	project := &models.Project{ID: projectID}
	if err := models.GetProjectByID(h.DB, project); err != nil {
		if err == sql.ErrNoRows {
			jsonError(w, "project not found", http.StatusNotFound)
			return
		}
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	stats, err := models.GetDetailedStats(h.DB, projectID, days)
	if err != nil {
		jsonError(w, "failed to retrieve analytics", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// FleetStats serves per-project summaries for the admin overview.
func (h *AdminHandler) FleetStats(w http.ResponseWriter, r *http.Request) {
	days := daysParam(r)

	entries, err := models.GetFleetStats(h.DB, days)
	if err != nil {
		jsonError(w, "failed to retrieve analytics", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []models.FleetEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"projects": entries,
		"period":   map[string]int{"days": days},
	})
}

// Submissions lists the most recent leads for a project.
func (h *AdminHandler) Submissions(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.projectIDParam(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	submissions, err := models.ListSubmissions(h.DB, projectID, limit)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if submissions == nil {
		submissions = []models.FormSubmission{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"submissions": submissions,
		"total":       len(submissions),
	})
}

// Export downloads one project's aggregation as an attachment, either the
// JSON object or a CSV of labeled 2-column sections.
func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.projectIDParam(w, r)
	if !ok {
		return
	}
	days := daysParam(r)

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "csv" && format != "json" {
		jsonError(w, "format must be csv or json", http.StatusBadRequest)
		return
	}

	stats, err := models.GetDetailedStats(h.DB, projectID, days)
	if err != nil {
		jsonError(w, "failed to export analytics", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("analytics-%d-%ddays.%s", projectID, days, format)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	if format == "json" {
		writeJSON(w, http.StatusOK, stats)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(statsToCSV(stats)))
}

// csvCell quotes a value per RFC 4180 when it contains a delimiter, quote or
// newline. Embedded quotes are doubled.
func csvCell(v string) string {
	if strings.ContainsAny(v, ",\"\n\r") {
		return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
	}
	return v
}

// statsToCSV flattens the aggregation into labeled 2-column sections
// separated by blank lines.
func statsToCSV(stats *models.DetailedStats) string {
	var lines []string

	lines = append(lines,
		"Summary",
		"Metric,Value",
		fmt.Sprintf("Page Views,%d", stats.Summary.PageViews),
		fmt.Sprintf("Form Submissions,%d", stats.Summary.FormSubmissions),
		fmt.Sprintf("Conversion Rate,%.2f%%", stats.Summary.ConversionRate),
		"",
	)

	lines = append(lines, "Daily Page Views", "Date,Page Views")
	for _, day := range stats.TimeSeries {
		lines = append(lines, fmt.Sprintf("%s,%d", day.Date, day.PageViews))
	}
	lines = append(lines, "")

	lines = append(lines, "Daily Form Submissions", "Date,Submissions")
	for _, day := range stats.TimeSeries {
		lines = append(lines, fmt.Sprintf("%s,%d", day.Date, day.Submissions))
	}
	lines = append(lines, "")

	if len(stats.Sources.UTM) > 0 {
		lines = append(lines, "UTM Sources", "Source,Visits")
		for _, s := range stats.Sources.UTM {
			lines = append(lines, fmt.Sprintf("%s,%d", csvCell(s.Source), s.Count))
		}
		lines = append(lines, "")
	}

	if len(stats.Sources.Referrers) > 0 {
		lines = append(lines, "Top Referrers", "Referrer,Visits")
		for _, ref := range stats.Sources.Referrers {
			lines = append(lines, fmt.Sprintf("%s,%d", csvCell(ref.Referrer), ref.Count))
		}
		lines = append(lines, "")
	}

	if len(stats.Technology.Devices) > 0 {
		lines = append(lines, "Device Types", "Device,Count")
		for _, d := range stats.Technology.Devices {
			lines = append(lines, fmt.Sprintf("%s,%d", csvCell(d.DeviceType), d.Count))
		}
		lines = append(lines, "")
	}

	if len(stats.Technology.Browsers) > 0 {
		lines = append(lines, "Browsers", "Browser,Count")
		for _, b := range stats.Technology.Browsers {
			lines = append(lines, fmt.Sprintf("%s,%d", csvCell(b.Browser), b.Count))
		}
		lines = append(lines, "")
	}

	if len(stats.Geography.Countries) > 0 {
		lines = append(lines, "Countries", "Country,Count")
		for _, c := range stats.Geography.Countries {
			lines = append(lines, fmt.Sprintf("%s,%d", csvCell(c.Country), c.Count))
		}
	}

	return strings.TrimRight(strings.Join(lines, "\n"), "\n") + "\n"
}

// Health reports liveness plus a database ping; unauthenticated.
func (h *AdminHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := db.Ping(h.DB); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":    "unhealthy",
			"database":  "unreachable",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
