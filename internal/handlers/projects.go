package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/yeqown/go-qrcode/v2"
	"github.com/yeqown/go-qrcode/writer/standard"

	"github.com/marketprobe/marketprobe/internal/cache"
	"github.com/marketprobe/marketprobe/internal/config"
	"github.com/marketprobe/marketprobe/internal/models"
	"github.com/marketprobe/marketprobe/internal/slug"
)

type ProjectHandler struct {
	DB      *sql.DB
	Cfg     *config.Config
	Domains *cache.DomainCache
}

type projectRequest struct {
	Slug        string `json:"slug" validate:"omitempty,max=64"`
	Title       string `json:"title" validate:"omitempty,max=200"`
	Description string `json:"description" validate:"omitempty,max=1000"`
	Domain      string `json:"domain" validate:"omitempty,fqdn"`
	Status      string `json:"status"`
}

type projectListResponse struct {
	Projects []models.ProjectWithCounts `json:"projects"`
	Total    int                        `json:"total"`
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		jsonFieldErrors(w, validationFields(err))
		return
	}
	if req.Title == "" {
		jsonFieldErrors(w, map[string]string{"title": "title is required"})
		return
	}
	if req.Status != "" && !models.ValidStatus(req.Status) {
		jsonFieldErrors(w, map[string]string{"status": "unknown status"})
		return
	}
	if req.Slug != "" && !slug.Valid(req.Slug) {
		jsonFieldErrors(w, map[string]string{"slug": "lowercase letters, numbers and hyphens only"})
		return
	}

	// Generate slug if not provided, with collision retry
	if req.Slug == "" {
		for attempt := 0; attempt < 10; attempt++ {
			candidate, err := slug.Generate()
			if err != nil {
				jsonError(w, "internal error", http.StatusInternalServerError)
				return
			}
			exists, err := models.SlugExists(h.DB, candidate)
			if err != nil {
				jsonError(w, "internal error", http.StatusInternalServerError)
				return
			}
			if !exists {
				req.Slug = candidate
				break
			}
		}
		if req.Slug == "" {
			jsonError(w, "failed to generate unique slug", http.StatusInternalServerError)
			return
		}
	}

	project := &models.Project{
		Slug:        req.Slug,
		Title:       req.Title,
		Description: req.Description,
		Domain:      strings.ToLower(req.Domain),
		Status:      req.Status,
	}

	if err := models.CreateProject(h.DB, project); err != nil {
		if models.IsUniqueViolation(err) {
			jsonError(w, "slug or domain already in use", http.StatusConflict)
			return
		}
		jsonError(w, "failed to create project", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, project)
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && !models.ValidStatus(status) {
		jsonFieldErrors(w, map[string]string{"status": "unknown status"})
		return
	}

	projects, err := models.ListProjects(h.DB, status)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if projects == nil {
		projects = []models.ProjectWithCounts{}
	}

	writeJSON(w, http.StatusOK, projectListResponse{
		Projects: projects,
		Total:    len(projects),
	})
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	project, ok := h.projectFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// projectPatch uses pointers so an absent field and an explicit empty value
// can be told apart: absent fields keep their stored value, an explicit ""
// clears description or domain.
type projectPatch struct {
	Slug        *string `json:"slug" validate:"omitempty,max=64"`
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Domain      *string `json:"domain" validate:"omitempty,fqdn"`
	Status      *string `json:"status"`
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.projectFromPath(w, r)
	if !ok {
		return
	}

	var req projectPatch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		jsonFieldErrors(w, validationFields(err))
		return
	}
	if req.Slug != nil && *req.Slug != existing.Slug {
		jsonFieldErrors(w, map[string]string{"slug": "slug cannot be changed"})
		return
	}
	if req.Title != nil && *req.Title == "" {
		jsonFieldErrors(w, map[string]string{"title": "title cannot be empty"})
		return
	}
	if req.Status != nil && !models.ValidStatus(*req.Status) {
		jsonFieldErrors(w, map[string]string{"status": "unknown status"})
		return
	}

	oldDomain := existing.Domain

	if req.Title != nil {
		existing.Title = *req.Title
	}
	if req.Description != nil {
		existing.Description = *req.Description
	}
	if req.Domain != nil {
		existing.Domain = strings.ToLower(*req.Domain)
	}
	if req.Status != nil {
		existing.Status = *req.Status
	}

	if err := models.UpdateProject(h.DB, existing); err != nil {
		if models.IsUniqueViolation(err) {
			jsonError(w, "domain already in use", http.StatusConflict)
			return
		}
		jsonError(w, "failed to update project", http.StatusInternalServerError)
		return
	}

	// Domain mappings and status flips must not be served stale.
	if oldDomain != "" {
		h.Domains.Invalidate(oldDomain)
	}
	if existing.Domain != "" {
		h.Domains.Invalidate(existing.Domain)
	}

	writeJSON(w, http.StatusOK, existing)
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	project, ok := h.projectFromPath(w, r)
	if !ok {
		return
	}

	if err := models.DeleteProject(h.DB, project.ID); err != nil {
		if err == sql.ErrNoRows {
			jsonError(w, "not found", http.StatusNotFound)
			return
		}
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if project.Domain != "" {
		h.Domains.Invalidate(project.Domain)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ProjectHandler) GetPageConfig(w http.ResponseWriter, r *http.Request) {
	project, ok := h.projectFromPath(w, r)
	if !ok {
		return
	}

	pc, err := models.GetActivePageConfig(h.DB, project.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			jsonError(w, "no active page config", http.StatusNotFound)
			return
		}
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, pc)
}

type pageConfigRequest struct {
	TemplateConfig models.TemplateConfig `json:"template_config"`
	DesignConfig   models.DesignConfig   `json:"design_config"`
}

// PutPageConfig activates a new page config version. The previous active
// version is flipped inactive in the same transaction.
func (h *ProjectHandler) PutPageConfig(w http.ResponseWriter, r *http.Request) {
	project, ok := h.projectFromPath(w, r)
	if !ok {
		return
	}

	var req pageConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.TemplateConfig.Headline == "" {
		jsonFieldErrors(w, map[string]string{"template_config.headline": "headline is required"})
		return
	}
	if !models.ValidTheme(req.DesignConfig.Theme) {
		jsonFieldErrors(w, map[string]string{"design_config.theme": "unknown theme"})
		return
	}
	if !models.ValidHeroStyle(req.DesignConfig.HeroStyle) {
		jsonFieldErrors(w, map[string]string{"design_config.hero_style": "unknown hero style"})
		return
	}

	pc := &models.PageConfig{
		ProjectID:      project.ID,
		TemplateConfig: req.TemplateConfig,
		DesignConfig:   req.DesignConfig,
	}
	if err := models.ActivateNewPageConfig(h.DB, pc); err != nil {
		jsonError(w, "failed to save page config", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, pc)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// QRCode renders a PNG QR code pointing at the project's public page: the
// custom domain when one is claimed, else the main domain's /p/ path.
func (h *ProjectHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	project, ok := h.projectFromPath(w, r)
	if !ok {
		return
	}

	pageURL := "https://" + h.Cfg.MainDomain + "/p/" + project.Slug
	if project.Domain != "" {
		pageURL = "https://" + project.Domain
	}

	qrc, err := qrcode.New(pageURL)
	if err != nil {
		jsonError(w, "failed to generate qr code", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	writer := standard.NewWithWriter(nopCloser{&buf},
		standard.WithBuiltinImageEncoder(standard.PNG_FORMAT),
		standard.WithQRWidth(10),
		standard.WithBorderWidth(20),
	)
	if err := qrc.Save(writer); err != nil {
		jsonError(w, "failed to render qr code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if r.URL.Query().Get("dl") == "1" {
		w.Header().Set("Content-Disposition", `attachment; filename="`+project.Slug+`-qr.png"`)
	}
	w.Write(buf.Bytes())
}

// projectFromPath resolves the {id} URL param. On failure it writes the error
// response and returns ok=false.
func (h *ProjectHandler) projectFromPath(w http.ResponseWriter, r *http.Request) (*models.Project, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		jsonError(w, "invalid id", http.StatusBadRequest)
		return nil, false
	}

	project := &models.Project{ID: id}
	if err := models.GetProjectByID(h.DB, project); err != nil {
		if err == sql.ErrNoRows {
			jsonError(w, "not found", http.StatusNotFound)
			return nil, false
		}
		jsonError(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}
	return project, true
}
