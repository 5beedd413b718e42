package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"licensehub.dev/internal/notify"
)

func (a *API) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.notify == nil {
		writeError(w, r, http.StatusServiceUnavailable, "notifications disabled")
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	page, err := a.notify.List(r.Context(), filter)
	if err != nil {
		handleError(w, r, err, "error fetching notifications")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleNotificationResource routes /read-all, /stream and /{id}/read.
func (a *API) handleNotificationResource(w http.ResponseWriter, r *http.Request) {
	if a.notify == nil {
		writeError(w, r, http.StatusServiceUnavailable, "notifications disabled")
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/notifications/"), "/")
	parts := strings.Split(path, "/")
	switch {
	case len(parts) == 1 && parts[0] == "read-all":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		n, err := a.notify.MarkAllRead(r.Context())
		if err != nil {
			handleError(w, r, err, "error updating notifications")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "All notifications marked as read",
			"count":   n,
		})
	case len(parts) == 1 && parts[0] == "stream":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.Stream(w, r)
	case len(parts) == 2 && parts[0] != "" && parts[1] == "read":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		n, err := a.notify.MarkRead(r.Context(), parts[0])
		if err != nil {
			handleError(w, r, err, "error updating notification")
			return
		}
		writeJSON(w, http.StatusOK, n)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func parseFilter(r *http.Request) (notify.Filter, error) {
	q := r.URL.Query()
	var f notify.Filter
	var err error
	if f.Limit, err = parseInt(q.Get("limit"), notify.DefaultLimit, 1, notify.MaxLimit, "limit"); err != nil {
		return notify.Filter{}, err
	}
	if f.Offset, err = parseInt(q.Get("offset"), 0, 0, 1<<31-1, "offset"); err != nil {
		return notify.Filter{}, err
	}
	if raw := strings.TrimSpace(q.Get("unreadOnly")); raw != "" {
		if f.UnreadOnly, err = strconv.ParseBool(raw); err != nil {
			return notify.Filter{}, errInvalidParam("unreadOnly must be true or false")
		}
	}
	return f, nil
}

type errInvalidParam string

func (e errInvalidParam) Error() string { return string(e) }

func parseInt(raw string, def, min, max int, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errInvalidParam(name + " must be an integer")
	}
	if v < min || v > max {
		return 0, errInvalidParam(name + " must be between " + strconv.Itoa(min) + " and " + strconv.Itoa(max))
	}
	return v, nil
}
