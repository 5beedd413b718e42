package httpapi

import (
	"net/http"
	"strings"

	"licensehub.dev/internal/audit"
	"licensehub.dev/internal/auth"
)

type createAdminRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"omitempty,oneof=administrator viewer"`
}

type updateAdminRequest struct {
	Username *string `json:"username" validate:"omitempty,max=64"`
	Role     *string `json:"role" validate:"omitempty,oneof=administrator viewer"`
}

type setPasswordRequest struct {
	Password string `json:"password" validate:"required,min=6"`
}

func (a *API) handleAdminsCollection(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireAdministrator(w, r); !ok {
		return
	}
	if a.auth == nil {
		writeError(w, r, http.StatusServiceUnavailable, "authentication disabled")
		return
	}
	switch r.Method {
	case http.MethodGet:
		admins, err := a.auth.ListAdmins(r.Context())
		if err != nil {
			handleError(w, r, err, "error fetching admins")
			return
		}
		writeJSON(w, http.StatusOK, admins)
	case http.MethodPost:
		a.createAdmin(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleAdminResource routes /api/admins/{id} and /api/admins/{id}/password.
func (a *API) handleAdminResource(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.requireAdministrator(w, r)
	if !ok {
		return
	}
	if a.auth == nil {
		writeError(w, r, http.StatusServiceUnavailable, "authentication disabled")
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/admins/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	id := parts[0]
	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			admin, err := a.auth.GetAdmin(r.Context(), id)
			if err != nil {
				handleError(w, r, err, "error fetching admin")
				return
			}
			writeJSON(w, http.StatusOK, admin)
		case http.MethodPut:
			a.updateAdmin(w, r, principal, id)
		case http.MethodDelete:
			if err := a.auth.DeleteAdmin(r.Context(), principal, id); err != nil {
				handleError(w, r, err, "error deleting admin")
				return
			}
			_ = audit.LogEvent(r.Context(), "admin.delete", map[string]any{"admin_id": id})
			w.WriteHeader(http.StatusNoContent)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
		}
	case len(parts) == 2 && parts[1] == "password":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		a.setAdminPassword(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) createAdmin(w http.ResponseWriter, r *http.Request) {
	var req createAdminRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateRequest(req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	admin, err := a.auth.CreateAdmin(r.Context(), auth.NewAdmin{
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		handleError(w, r, err, "error creating admin")
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.create", map[string]any{
		"admin_id": admin.ID,
		"role":     admin.Role,
	})
	w.Header().Set("Location", "/api/admins/"+admin.ID)
	writeJSON(w, http.StatusCreated, admin)
}

func (a *API) updateAdmin(w http.ResponseWriter, r *http.Request, actor auth.Principal, id string) {
	var req updateAdminRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateRequest(req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	admin, err := a.auth.UpdateAdmin(r.Context(), actor, id, auth.AdminUpdate{
		Username: req.Username,
		Role:     req.Role,
	})
	if err != nil {
		handleError(w, r, err, "error updating admin")
		return
	}
	writeJSON(w, http.StatusOK, admin)
}

func (a *API) setAdminPassword(w http.ResponseWriter, r *http.Request, id string) {
	var req setPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateRequest(req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.auth.SetPassword(r.Context(), id, req.Password); err != nil {
		handleError(w, r, err, "error updating password")
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.password.reset", map[string]any{"admin_id": id})
	w.WriteHeader(http.StatusNoContent)
}
