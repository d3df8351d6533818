package handlers

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marketprobe/marketprobe/internal/models"
)

// PageHandler serves the public page document for a project: the project's
// display fields plus its active page config. The rendering frontend consumes
// this; only ACTIVE projects are reachable.
type PageHandler struct {
	DB *sql.DB
}

type pageResponse struct {
	Project struct {
		Slug        string `json:"slug"`
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"project"`
	TemplateConfig models.TemplateConfig `json:"template_config"`
	DesignConfig   models.DesignConfig   `json:"design_config"`
}

func (h *PageHandler) Get(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	project, err := models.GetProjectBySlug(h.DB, slug)
	if err != nil {
		if err == sql.ErrNoRows {
			jsonError(w, "not found", http.StatusNotFound)
			return
		}
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if project.Status != models.StatusActive {
		jsonError(w, "not found", http.StatusNotFound)
		return
	}

	var resp pageResponse
	resp.Project.Slug = project.Slug
	resp.Project.Title = project.Title
	resp.Project.Description = project.Description

	pc, err := models.GetActivePageConfig(h.DB, project.ID)
	if err != nil && err != sql.ErrNoRows {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if pc != nil {
		resp.TemplateConfig = pc.TemplateConfig
		resp.DesignConfig = pc.DesignConfig
	}

	writeJSON(w, http.StatusOK, resp)
}
