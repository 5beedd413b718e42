package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"licensehub.dev/internal/auth"
	"licensehub.dev/internal/license"
)

type createProjectRequest struct {
	ProjectName       string `json:"project_name" validate:"required,max=255"`
	ProjectIdentifier string `json:"project_identifier" validate:"required,max=255"`
	ClientIPAddress   string `json:"client_ip_address" validate:"max=255"`
	Notes             string `json:"notes" validate:"max=4000"`
}

type updateProjectRequest struct {
	ProjectName       *string `json:"project_name" validate:"omitempty,max=255"`
	ProjectIdentifier *string `json:"project_identifier" validate:"omitempty,max=255"`
	ClientIPAddress   *string `json:"client_ip_address" validate:"omitempty,max=255"`
	Notes             *string `json:"notes" validate:"omitempty,max=4000"`
}

type setStatusRequest struct {
	LicenseStatus string `json:"license_status"`
}

type checkStatusResponse struct {
	Status license.Status `json:"status"`
}

func actorFrom(p auth.Principal) license.Actor {
	return license.Actor{ID: p.ID, Username: p.Username}
}

func (a *API) handleCheckStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	ident := strings.TrimSpace(r.URL.Query().Get("project_identifier"))
	if ident == "" {
		writeError(w, r, http.StatusBadRequest, "project identifier is required")
		return
	}
	status, err := a.registry.CheckStatus(r.Context(), ident)
	if err != nil {
		if errors.Is(err, license.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "project not found or not registered")
			return
		}
		handleError(w, r, err, "error checking license status")
		return
	}
	writeJSON(w, http.StatusOK, checkStatusResponse{Status: status})
}

func (a *API) handleProjectsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listProjects(w, r)
	case http.MethodPost:
		a.createProject(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleProjectResource routes /api/projects/summary, /api/projects/{id} and
// /api/projects/{id}/status.
func (a *API) handleProjectResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/projects/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	switch {
	case len(parts) == 1 && parts[0] == "summary":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.projectSummary(w, r)
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			a.getProject(w, r, parts[0])
		case http.MethodPut:
			a.updateProject(w, r, parts[0])
		case http.MethodDelete:
			a.deleteProject(w, r, parts[0])
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
		}
	case len(parts) == 2 && parts[1] == "status":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		a.setProjectStatus(w, r, parts[0])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := a.registry.ListProjects(r.Context())
	if err != nil {
		handleError(w, r, err, "error fetching projects")
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (a *API) projectSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := a.registry.Summary(r.Context())
	if err != nil {
		handleError(w, r, err, "error fetching project summary")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (a *API) getProject(w http.ResponseWriter, r *http.Request, id string) {
	p, err := a.registry.GetProject(r.Context(), id)
	if err != nil {
		handleError(w, r, err, "error fetching project")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) createProject(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.requireAdministrator(w, r)
	if !ok {
		return
	}
	var req createProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateRequest(req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.registry.CreateProject(r.Context(), actorFrom(principal), license.NewProject{
		Name:       req.ProjectName,
		Identifier: req.ProjectIdentifier,
		Address:    req.ClientIPAddress,
		Notes:      req.Notes,
	})
	if err != nil {
		handleError(w, r, err, "error creating project")
		return
	}
	w.Header().Set("Location", "/api/projects/"+p.ID)
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) updateProject(w http.ResponseWriter, r *http.Request, id string) {
	principal, ok := a.requireAdministrator(w, r)
	if !ok {
		return
	}
	var req updateProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateRequest(req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.registry.UpdateDetails(r.Context(), actorFrom(principal), id, license.ProjectPatch{
		Name:       req.ProjectName,
		Identifier: req.ProjectIdentifier,
		Address:    req.ClientIPAddress,
		Notes:      req.Notes,
	})
	if err != nil {
		handleError(w, r, err, "error updating project")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) setProjectStatus(w http.ResponseWriter, r *http.Request, id string) {
	principal, ok := a.requireAdministrator(w, r)
	if !ok {
		return
	}
	var req setStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	status, err := license.ParseStatus(req.LicenseStatus)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid license status, must be one of NOT_PAID, PARTIALLY_PAID, FULLY_PAID")
		return
	}
	p, err := a.registry.SetStatus(r.Context(), actorFrom(principal), id, status)
	if err != nil {
		handleError(w, r, err, "error updating license status")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) deleteProject(w http.ResponseWriter, r *http.Request, id string) {
	principal, ok := a.requireAdministrator(w, r)
	if !ok {
		return
	}
	if err := a.registry.DeleteProject(r.Context(), actorFrom(principal), id); err != nil {
		handleError(w, r, err, "error deleting project")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
