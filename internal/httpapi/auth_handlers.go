package httpapi

import (
	"net/http"
	"time"

	"licensehub.dev/internal/audit"
	"licensehub.dev/internal/auth"
)

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	User      auth.Principal `json:"user"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.auth == nil {
		writeError(w, r, http.StatusServiceUnavailable, "authentication disabled")
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateRequest(req); err != nil {
		writeError(w, r, http.StatusBadRequest, "username and password are required")
		return
	}

	res, err := a.auth.Login(r.Context(), auth.LoginRequest{
		Username:   req.Username,
		Password:   req.Password,
		RemoteAddr: clientIP(r),
	})
	if err != nil {
		handleError(w, r, err, "server error during login")
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"admin_id": res.Admin.ID,
		"username": res.Admin.Username,
	})
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User: auth.Principal{
			ID:       res.Admin.ID,
			Username: res.Admin.Username,
			Role:     res.Admin.Role,
		},
	})
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	principal, ok := a.requireRole(w, r, auth.RoleAdministrator, auth.RoleViewer)
	if !ok {
		return
	}
	if a.auth == nil {
		writeError(w, r, http.StatusServiceUnavailable, "authentication disabled")
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	err := a.auth.ChangePassword(r.Context(), principal, auth.PasswordChange{
		Current:    req.CurrentPassword,
		New:        req.NewPassword,
		Confirm:    req.ConfirmPassword,
		RemoteAddr: clientIP(r),
	})
	if err != nil {
		handleError(w, r, err, "server error during password change")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully."})
}
