package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/marketprobe/marketprobe/internal/config"
	"github.com/marketprobe/marketprobe/internal/geo"
	"github.com/marketprobe/marketprobe/internal/models"
	"github.com/marketprobe/marketprobe/internal/privacy"
	"github.com/marketprobe/marketprobe/internal/ratelimit"
)

var validate = newValidator()

// newValidator reports field names from json tags so validation errors match
// what the client actually sent.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationFields(err error) map[string]string {
	fields := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[fe.Field()] = "failed " + fe.Tag() + " check"
		}
		return fields
	}
	fields["body"] = "invalid request"
	return fields
}

type TrackHandler struct {
	DB      *sql.DB
	Cfg     *config.Config
	Limiter ratelimit.Store
	Geo     *geo.Reader
}

type trackRequest struct {
	Slug        string         `json:"slug" validate:"required"`
	EventType   string         `json:"eventType" validate:"required"`
	Referrer    string         `json:"referrer" validate:"omitempty,url"`
	Pathname    string         `json:"pathname" validate:"omitempty,max=500"`
	UTMSource   string         `json:"utmSource" validate:"omitempty,max=100"`
	UTMMedium   string         `json:"utmMedium" validate:"omitempty,max=100"`
	UTMCampaign string         `json:"utmCampaign" validate:"omitempty,max=100"`
	Metadata    map[string]any `json:"metadata"`
}

// Metadata bounds. Unknown keys are size-capped, not rejected.
const (
	maxMetadataValueLen = 500
	maxMetadataFields   = 50
)

// validateMetadata enforces length and range bounds on the free-form metadata
// document.
func validateMetadata(meta map[string]any) map[string]string {
	if meta == nil {
		return nil
	}
	fields := make(map[string]string)
	if len(meta) > maxMetadataFields {
		fields["metadata"] = "too many fields"
		return fields
	}
	for key, val := range meta {
		switch v := val.(type) {
		case string:
			if len(v) > maxMetadataValueLen {
				fields["metadata."+key] = "too long"
			}
		case float64:
			switch key {
			case "scroll_percentage":
				if v < 0 || v > 100 {
					fields["metadata.scroll_percentage"] = "must be between 0 and 100"
				}
			case "session_duration":
				if v < 0 {
					fields["metadata.session_duration"] = "must not be negative"
				}
			}
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// Ingest accepts one analytics event: rate-limit, validate, resolve the
// project, enrich with device/browser/geo metadata, then a single synchronous
// insert. Bot traffic is acknowledged but never stored.
func (h *TrackHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	ip := privacy.ClientIP(r)
	ipHash := privacy.HashIP(ip, h.Cfg.IPHashSalt)

	decision := h.Limiter.Check("analytics:"+ipHash, h.Cfg.AnalyticsRateLimit, h.Cfg.RateLimitWindow)
	setRateLimitHeaders(w, h.Cfg.AnalyticsRateLimit, decision)
	if !decision.Allowed {
		jsonError(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		jsonFieldErrors(w, validationFields(err))
		return
	}
	if !models.ValidEventType(req.EventType) {
		jsonFieldErrors(w, map[string]string{"eventType": "unknown event type"})
		return
	}
	if fields := validateMetadata(req.Metadata); fields != nil {
		jsonFieldErrors(w, fields)
		return
	}

	project, err := models.GetProjectBySlug(h.DB, req.Slug)
	if err != nil {
		if err == sql.ErrNoRows {
			jsonError(w, "project not found", http.StatusNotFound)
			return
		}
		jsonError(w, "failed to track event", http.StatusInternalServerError)
		return
	}

	rawUA := r.UserAgent()
	if privacy.IsBot(rawUA) {
		// Bots get the normal success shape so they cannot tell they
		// were filtered.
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		return
	}
	userAgent := privacy.SanitizeUserAgent(rawUA)

	// Body referrer wins over the header; UTM fields from the body win over
	// anything parsed from the effective referrer.
	rawReferrer := req.Referrer
	if rawReferrer == "" {
		rawReferrer = r.Referer()
	}
	utm := privacy.ExtractUTM(rawReferrer)
	if req.UTMSource != "" {
		utm.Source = req.UTMSource
	}
	if req.UTMMedium != "" {
		utm.Medium = req.UTMMedium
	}
	if req.UTMCampaign != "" {
		utm.Campaign = req.UTMCampaign
	}

	pathname := req.Pathname
	if pathname == "" {
		pathname = "/p/" + req.Slug
	}

	meta := make(map[string]any, len(req.Metadata)+2)
	for k, v := range req.Metadata {
		meta[k] = v
	}
	if version, osName := privacy.BrowserDetail(userAgent); version != "" || osName != "" {
		if version != "" {
			meta["browser_version"] = version
		}
		if osName != "" {
			meta["os"] = osName
		}
	}

	event := &models.AnalyticsEvent{
		ProjectID:   project.ID,
		EventType:   req.EventType,
		Timestamp:   time.Now().UTC(),
		IPHash:      ipHash,
		UserAgent:   userAgent,
		Referrer:    privacy.SanitizeReferrer(rawReferrer),
		Pathname:    pathname,
		UTMSource:   utm.Source,
		UTMMedium:   utm.Medium,
		UTMCampaign: utm.Campaign,
		Country:     h.Geo.Country(ip),
		DeviceType:  privacy.ClassifyDevice(userAgent),
		Browser:     privacy.ClassifyBrowser(userAgent),
		Metadata:    meta,
	}

	if err := models.InsertEvent(h.DB, event); err != nil {
		jsonError(w, "failed to track event", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type trackStatsResponse struct {
	Project struct {
		ID    int64  `json:"id"`
		Slug  string `json:"slug"`
		Title string `json:"title"`
	} `json:"project"`
	Period struct {
		Days int       `json:"days"`
		From time.Time `json:"from"`
		To   time.Time `json:"to"`
	} `json:"period"`
	*models.ProjectStats
}

// Stats serves the compact per-project summary used by embedded widgets.
func (h *TrackHandler) Stats(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("slug")
	if slug == "" {
		jsonError(w, "project slug is required", http.StatusBadRequest)
		return
	}
	days := daysParam(r)

	project, err := models.GetProjectBySlug(h.DB, slug)
	if err != nil {
		if err == sql.ErrNoRows {
			jsonError(w, "project not found", http.StatusNotFound)
			return
		}
		jsonError(w, "failed to retrieve analytics", http.StatusInternalServerError)
		return
	}

	stats, err := models.GetProjectStats(h.DB, project.ID, days)
	if err != nil {
		jsonError(w, "failed to retrieve analytics", http.StatusInternalServerError)
		return
	}

	var resp trackStatsResponse
	resp.Project.ID = project.ID
	resp.Project.Slug = project.Slug
	resp.Project.Title = project.Title
	resp.Period.Days = days
	resp.Period.To = time.Now().UTC()
	resp.Period.From = resp.Period.To.AddDate(0, 0, -days)
	resp.ProjectStats = stats

	writeJSON(w, http.StatusOK, resp)
}
