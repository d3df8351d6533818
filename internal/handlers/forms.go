package handlers

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marketprobe/marketprobe/internal/abuse"
	"github.com/marketprobe/marketprobe/internal/config"
	"github.com/marketprobe/marketprobe/internal/mailer"
	"github.com/marketprobe/marketprobe/internal/models"
	"github.com/marketprobe/marketprobe/internal/privacy"
	"github.com/marketprobe/marketprobe/internal/ratelimit"
)

type FormHandler struct {
	DB       *sql.DB
	Cfg      *config.Config
	Limiter  ratelimit.Store
	Abuse    *abuse.Checker
	Notifier *mailer.Notifier
}

type formRequest struct {
	FormData    map[string]string `json:"formData" validate:"required"`
	UTMSource   string            `json:"utmSource" validate:"omitempty,max=100"`
	UTMMedium   string            `json:"utmMedium" validate:"omitempty,max=100"`
	UTMCampaign string            `json:"utmCampaign" validate:"omitempty,max=100"`
	Honeypot    string            `json:"honeypot"`
}

// Per-field length bounds for the open form schema. Unknown keys are allowed
// but size-capped.
var formFieldMax = map[string]int{
	"name":    100,
	"company": 100,
	"message": 1000,
	"phone":   20,
}

const formUnknownFieldMax = 200

// validateFormData checks the email plus the per-field length bounds and
// returns field-level errors, or nil when the data is acceptable.
func validateFormData(data map[string]string) map[string]string {
	fields := make(map[string]string)

	email := data["email"]
	if email == "" {
		fields["formData.email"] = "email is required"
	} else if err := validate.Var(email, "email"); err != nil {
		fields["formData.email"] = "invalid email address"
	}

	for key, val := range data {
		if key == "email" {
			continue
		}
		max, known := formFieldMax[key]
		if !known {
			max = formUnknownFieldMax
		}
		if len(val) > max {
			fields["formData."+key] = "too long"
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return fields
}

// Submit captures one waitlist lead: rate-limit, validate, honeypot and
// abuse-list masking, persist, record a correlated analytics event, then
// queue a non-blocking owner notification.
func (h *FormHandler) Submit(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	ip := privacy.ClientIP(r)
	ipHash := privacy.HashIP(ip, h.Cfg.IPHashSalt)

	decision := h.Limiter.Check("form:"+ipHash, h.Cfg.FormRateLimit, h.Cfg.RateLimitWindow)
	setRateLimitHeaders(w, h.Cfg.FormRateLimit, decision)
	if !decision.Allowed {
		jsonError(w, "too many submissions, please try again later", http.StatusTooManyRequests)
		return
	}

	var req formRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		jsonFieldErrors(w, validationFields(err))
		return
	}
	if fields := validateFormData(req.FormData); fields != nil {
		jsonFieldErrors(w, fields)
		return
	}

	// Honeypot hits and known abuse sources get the normal success shape
	// with zero writes, so automated submitters cannot tell they were
	// filtered.
	if req.Honeypot != "" {
		log.Printf("forms: honeypot tripped (ip_hash=%s)", ipHash)
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}
	if h.Abuse.Blocked(ip) {
		log.Printf("forms: blocked source dropped (ip_hash=%s)", ipHash)
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}

	project, err := models.GetProjectBySlug(h.DB, slug)
	if err != nil {
		if err == sql.ErrNoRows {
			jsonError(w, "project not found", http.StatusNotFound)
			return
		}
		jsonError(w, "something went wrong, please try again", http.StatusInternalServerError)
		return
	}

	userAgent := privacy.SanitizeUserAgent(r.UserAgent())
	rawReferrer := r.Referer()

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

	submission := &models.FormSubmission{
		ProjectID:   project.ID,
		SubmittedAt: time.Now().UTC(),
		Email:       req.FormData["email"],
		FormData:    req.FormData,
		IPHash:      ipHash,
		UserAgent:   userAgent,
		Referrer:    privacy.SanitizeReferrer(rawReferrer),
		UTMSource:   utm.Source,
		UTMMedium:   utm.Medium,
		UTMCampaign: utm.Campaign,
	}

	if err := models.CreateSubmission(h.DB, submission); err != nil {
		if models.IsUniqueViolation(err) {
			jsonError(w, "this email has already been submitted for this project", http.StatusConflict)
			return
		}
		log.Printf("forms: create submission failed: %v", err)
		jsonError(w, "something went wrong, please try again", http.StatusInternalServerError)
		return
	}

	// Correlated analytics event. Field names only; values never leave the
	// submissions table.
	fieldNames := make([]string, 0, len(req.FormData))
	for key := range req.FormData {
		fieldNames = append(fieldNames, key)
	}
	event := &models.AnalyticsEvent{
		ProjectID:   project.ID,
		EventType:   models.EventFormSubmission,
		Timestamp:   submission.SubmittedAt,
		IPHash:      ipHash,
		UserAgent:   userAgent,
		Referrer:    submission.Referrer,
		Pathname:    "/p/" + slug,
		UTMSource:   utm.Source,
		UTMMedium:   utm.Medium,
		UTMCampaign: utm.Campaign,
		DeviceType:  privacy.ClassifyDevice(userAgent),
		Browser:     privacy.ClassifyBrowser(userAgent),
		Metadata: map[string]any{
			"submissionId": submission.ID,
			"formFields":   fieldNames,
		},
	}
	if err := models.InsertEvent(h.DB, event); err != nil {
		log.Printf("forms: submission event failed: %v", err)
	}

	h.Notifier.Push(mailer.Notification{
		ProjectTitle: project.Title,
		FormData:     req.FormData,
		SubmittedAt:  submission.SubmittedAt,
		Referrer:     submission.Referrer,
		UTMSource:    utm.Source,
		UTMMedium:    utm.Medium,
		UTMCampaign:  utm.Campaign,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      "Thank you for joining the waitlist! We'll be in touch soon.",
		"submissionId": submission.ID,
	})
}
