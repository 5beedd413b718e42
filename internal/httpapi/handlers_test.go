package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"licensehub.dev/internal/auth"
	"licensehub.dev/internal/license"
	"licensehub.dev/internal/notify"
	"licensehub.dev/internal/obs"
	"licensehub.dev/internal/stream"
)

const (
	rootUser     = "root"
	rootPassword = "root-password"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
	admins  *auth.Service
}

func newTestAPI(t *testing.T, opts ...Option) *apiClient {
	t.Helper()
	t.Cleanup(obs.SetOutput(io.Discard))

	notifications := notify.NewService(notify.NewInMemory(), notify.WithBroker(stream.New[notify.Notification](8)))
	tokens, err := auth.NewTokenIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("token issuer: %v", err)
	}
	admins, err := auth.NewService(auth.NewInMemory(), tokens, auth.WithRecorder(notifications))
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	if _, err := admins.Bootstrap(context.Background(), rootUser, rootPassword); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	registry := license.NewRegistry(license.NewInMemory(), license.WithListener(notifications))

	opts = append([]Option{WithCheckRateLimit(1000, 1000), WithVersion("test")}, opts...)
	api := New(registry, admins, notifications, opts...)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{baseURL: srv.URL, client: srv.Client(), t: t, admins: admins}
}

func (c *apiClient) do(method, path, token string, body any) *http.Response {
	c.t.Helper()
	var payload io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			b, err := json.Marshal(body)
			if err != nil {
				c.t.Fatalf("marshal body: %v", err)
			}
			raw = string(b)
		}
		payload = bytes.NewBufferString(raw)
	}
	req, err := http.NewRequest(method, c.baseURL+path, payload)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func (c *apiClient) login(username, password string) string {
	c.t.Helper()
	resp := c.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	expectStatus(c.t, resp, http.StatusOK)
	payload := decode[loginResponse](c.t, resp)
	if payload.Token == "" || payload.User.Username != username {
		c.t.Fatalf("unexpected login response: %+v", payload)
	}
	return payload.Token
}

func (c *apiClient) viewerToken() string {
	c.t.Helper()
	if _, err := c.admins.CreateAdmin(context.Background(), auth.NewAdmin{
		Username: "auditor",
		Password: "viewer-password",
		Role:     auth.RoleViewer,
	}); err != nil {
		c.t.Fatalf("create viewer: %v", err)
	}
	return c.login("auditor", "viewer-password")
}

func (c *apiClient) createProject(token, name, ident string) license.Project {
	c.t.Helper()
	resp := c.do(http.MethodPost, "/api/projects", token, map[string]string{
		"project_name":       name,
		"project_identifier": ident,
	})
	expectStatus(c.t, resp, http.StatusCreated)
	return decode[license.Project](c.t, resp)
}

func (c *apiClient) checkStatus(ident string) *http.Response {
	c.t.Helper()
	return c.do(http.MethodGet, "/api/license/check_status?project_identifier="+url.QueryEscape(ident), "", nil)
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("expected %d, got %d: %s", want, resp.StatusCode, body)
	}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestCheckStatusFlow(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(rootUser, rootPassword)
	p := api.createProject(token, "GreenCooling", "green-cooling-001")

	resp := api.checkStatus("green-cooling-001")
	expectStatus(t, resp, http.StatusOK)
	if got := decode[checkStatusResponse](t, resp); got.Status != license.StatusNotPaid {
		t.Fatalf("initial status = %s", got.Status)
	}

	resp = api.do(http.MethodPut, "/api/projects/"+p.ID+"/status", token, map[string]string{"license_status": "FULLY_PAID"})
	expectStatus(t, resp, http.StatusOK)
	if got := decode[license.Project](t, resp); got.Status != license.StatusFullyPaid {
		t.Fatalf("status after update = %s", got.Status)
	}

	resp = api.checkStatus("green-cooling-001")
	expectStatus(t, resp, http.StatusOK)
	if got := decode[checkStatusResponse](t, resp); got.Status != license.StatusFullyPaid {
		t.Fatalf("check after update = %s", got.Status)
	}
}

func TestCheckStatusErrors(t *testing.T) {
	api := newTestAPI(t)

	resp := api.checkStatus("nope")
	expectStatus(t, resp, http.StatusNotFound)
	body := decode[map[string]any](t, resp)
	if body["error"] == "" || body["request_id"] == "" {
		t.Fatalf("unexpected error body: %v", body)
	}

	resp = api.do(http.MethodGet, "/api/license/check_status", "", nil)
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = api.do(http.MethodPost, "/api/license/check_status?project_identifier=x", "", nil)
	expectStatus(t, resp, http.StatusMethodNotAllowed)
	resp.Body.Close()
}

func TestCheckStatusRateLimited(t *testing.T) {
	api := newTestAPI(t, WithCheckRateLimit(0.01, 1))
	resp := api.checkStatus("x")
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	resp = api.checkStatus("x")
	expectStatus(t, resp, http.StatusTooManyRequests)
	if resp.Header.Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
	resp.Body.Close()
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)
	for _, path := range []string{"/api/projects", "/api/notifications", "/api/admins"} {
		resp := api.do(http.MethodGet, path, "", nil)
		expectStatus(t, resp, http.StatusUnauthorized)
		if resp.Header.Get("WWW-Authenticate") == "" {
			t.Fatalf("%s: expected WWW-Authenticate header", path)
		}
		resp.Body.Close()
	}

	resp := api.do(http.MethodGet, "/api/projects", "not-a-jwt", nil)
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()
}

func TestViewerCannotMutate(t *testing.T) {
	api := newTestAPI(t)
	admin := api.login(rootUser, rootPassword)
	p := api.createProject(admin, "a", "a")
	viewer := api.viewerToken()

	resp := api.do(http.MethodGet, "/api/projects/"+p.ID, viewer, nil)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	cases := []struct {
		method, path string
		body         any
	}{
		{http.MethodPost, "/api/projects", map[string]string{"project_name": "b", "project_identifier": "b"}},
		{http.MethodPut, "/api/projects/" + p.ID + "/status", map[string]string{"license_status": "FULLY_PAID"}},
		{http.MethodPut, "/api/projects/" + p.ID, map[string]string{"notes": "x"}},
		{http.MethodDelete, "/api/projects/" + p.ID, nil},
		{http.MethodGet, "/api/admins", nil},
	}
	for _, tc := range cases {
		resp := api.do(tc.method, tc.path, viewer, tc.body)
		expectStatus(t, resp, http.StatusForbidden)
		resp.Body.Close()
	}
}

func TestCreateProjectValidationAndConflict(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(rootUser, rootPassword)
	api.createProject(token, "Acme", "acme")

	resp := api.do(http.MethodPost, "/api/projects", token, map[string]string{"project_name": "Other", "project_identifier": "acme"})
	expectStatus(t, resp, http.StatusConflict)
	resp.Body.Close()

	resp = api.do(http.MethodPost, "/api/projects", token, map[string]string{"project_name": "NoIdent"})
	expectStatus(t, resp, http.StatusBadRequest)
	if body := decode[map[string]string](t, resp); body["error"] != "project_identifier is required" {
		t.Fatalf("unexpected message: %q", body["error"])
	}

	resp = api.do(http.MethodPost, "/api/projects", token, `{"project_name":"x","project_identifier":"y","unknown":1}`)
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestUpdateProjectPartial(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(rootUser, rootPassword)
	p := api.createProject(token, "Acme", "acme")

	resp := api.do(http.MethodPut, "/api/projects/"+p.ID, token, map[string]string{"notes": "renewal in March"})
	expectStatus(t, resp, http.StatusOK)
	got := decode[license.Project](t, resp)
	if got.Name != "Acme" || got.Identifier != "acme" || got.Notes == nil || *got.Notes != "renewal in March" {
		t.Fatalf("unexpected project: %+v", got)
	}

	resp = api.do(http.MethodPut, "/api/projects/"+p.ID, token, map[string]string{})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = api.do(http.MethodPut, "/api/projects/"+p.ID+"/status", token, map[string]string{"license_status": "PAID"})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestDeleteProject(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(rootUser, rootPassword)
	p := api.createProject(token, "Acme", "acme")

	resp := api.do(http.MethodDelete, "/api/projects/"+p.ID, token, nil)
	expectStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	resp = api.do(http.MethodGet, "/api/projects/"+p.ID, token, nil)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	resp = api.checkStatus("acme")
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestListProjectsAndSummary(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(rootUser, rootPassword)
	api.createProject(token, "old", "old")
	api.createProject(token, "new", "new")

	resp := api.do(http.MethodGet, "/api/projects", token, nil)
	expectStatus(t, resp, http.StatusOK)
	list := decode[[]license.Project](t, resp)
	if len(list) != 2 || list[0].Name != "new" {
		t.Fatalf("unexpected list: %+v", list)
	}

	resp = api.do(http.MethodGet, "/api/projects/summary", token, nil)
	expectStatus(t, resp, http.StatusOK)
	sum := decode[license.Summary](t, resp)
	if sum.Total != 2 || sum.ByStatus[license.StatusNotPaid] != 2 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestNotificationsLifecycle(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(rootUser, rootPassword)
	p := api.createProject(token, "Acme", "acme")
	resp := api.do(http.MethodPut, "/api/projects/"+p.ID+"/status", token, map[string]string{"license_status": "PARTIALLY_PAID"})
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = api.do(http.MethodGet, "/api/notifications?limit=2", token, nil)
	expectStatus(t, resp, http.StatusOK)
	page := decode[notify.Page](t, resp)
	if page.TotalCount != 3 || len(page.Notifications) != 2 || page.Limit != 2 {
		t.Fatalf("unexpected page: %+v", page)
	}
	newest := page.Notifications[0]
	if newest.EventType != string(license.EventStatusChanged) {
		t.Fatalf("newest event = %s", newest.EventType)
	}

	resp = api.do(http.MethodPut, "/api/notifications/"+newest.ID+"/read", token, nil)
	expectStatus(t, resp, http.StatusOK)
	if n := decode[notify.Notification](t, resp); !n.IsRead {
		t.Fatal("notification not marked read")
	}

	resp = api.do(http.MethodGet, "/api/notifications?unreadOnly=true", token, nil)
	expectStatus(t, resp, http.StatusOK)
	if page := decode[notify.Page](t, resp); page.TotalCount != 2 {
		t.Fatalf("unread count = %d", page.TotalCount)
	}

	resp = api.do(http.MethodPut, "/api/notifications/read-all", token, nil)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = api.do(http.MethodGet, "/api/notifications?unreadOnly=true", token, nil)
	expectStatus(t, resp, http.StatusOK)
	if page := decode[notify.Page](t, resp); page.TotalCount != 0 {
		t.Fatalf("unread after read-all = %d", page.TotalCount)
	}

	resp = api.do(http.MethodPut, "/api/notifications/01HZZZZZZZZZZZZZZZZZZZZZZZ/read", token, nil)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	resp = api.do(http.MethodGet, "/api/notifications?limit=abc", token, nil)
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestLoginFailureIsRecorded(t *testing.T) {
	api := newTestAPI(t)
	resp := api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": rootUser, "password": "wrong"})
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()

	resp = api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": rootUser})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	token := api.login(rootUser, rootPassword)
	resp = api.do(http.MethodGet, "/api/notifications", token, nil)
	expectStatus(t, resp, http.StatusOK)
	page := decode[notify.Page](t, resp)
	var failures int
	for _, n := range page.Notifications {
		if n.EventType == auth.EventLoginFailure {
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("expected one login failure notification, got %d", failures)
	}
}

func TestChangePassword(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(rootUser, rootPassword)

	resp := api.do(http.MethodPut, "/api/auth/change-password", token, map[string]string{
		"currentPassword": "wrong-password",
		"newPassword":     "new-password",
		"confirmPassword": "new-password",
	})
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()

	resp = api.do(http.MethodPut, "/api/auth/change-password", token, map[string]string{
		"currentPassword": rootPassword,
		"newPassword":     "new-password",
		"confirmPassword": "different",
	})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = api.do(http.MethodPut, "/api/auth/change-password", token, map[string]string{
		"currentPassword": rootPassword,
		"newPassword":     "new-password",
		"confirmPassword": "new-password",
	})
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	api.login(rootUser, "new-password")
}

func TestAdminManagement(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(rootUser, rootPassword)

	resp := api.do(http.MethodPost, "/api/admins", token, map[string]string{
		"username": "ops",
		"password": "ops-password",
		"role":     "viewer",
	})
	expectStatus(t, resp, http.StatusCreated)
	ops := decode[map[string]any](t, resp)
	if _, leaked := ops["password_hash"]; leaked {
		t.Fatal("password hash must not be serialized")
	}
	id, _ := ops["id"].(string)

	resp = api.do(http.MethodPost, "/api/admins", token, map[string]string{"username": "ops", "password": "ops-password"})
	expectStatus(t, resp, http.StatusConflict)
	resp.Body.Close()

	resp = api.do(http.MethodPost, "/api/admins", token, map[string]string{"username": "x", "password": "123"})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = api.do(http.MethodPut, "/api/admins/"+id, token, map[string]string{"role": "administrator"})
	expectStatus(t, resp, http.StatusOK)
	if got := decode[auth.Admin](t, resp); got.Role != auth.RoleAdministrator {
		t.Fatalf("role = %s", got.Role)
	}

	resp = api.do(http.MethodPut, "/api/admins/"+id+"/password", token, map[string]string{"password": "reset-password"})
	expectStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()
	resp = api.do(http.MethodGet, "/api/admins", token, nil)
	expectStatus(t, resp, http.StatusOK)
	if list := decode[[]auth.Admin](t, resp); len(list) != 2 {
		t.Fatalf("admins = %d", len(list))
	}

	opsToken := api.login("ops", "reset-password")
	resp = api.do(http.MethodDelete, "/api/admins/"+id, token, nil)
	expectStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	resp = api.do(http.MethodGet, "/api/projects", opsToken, nil)
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()
}

func TestAdminCannotDeleteSelf(t *testing.T) {
	api := newTestAPI(t)
	resp := api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": rootUser, "password": rootPassword})
	expectStatus(t, resp, http.StatusOK)
	login := decode[loginResponse](t, resp)

	resp = api.do(http.MethodDelete, "/api/admins/"+login.User.ID, login.Token, nil)
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestHealthEndpoints(t *testing.T) {
	api := newTestAPI(t)
	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		resp := api.do(http.MethodGet, path, "", nil)
		expectStatus(t, resp, http.StatusOK)
		resp.Body.Close()
	}
	resp := api.do(http.MethodGet, "/", "", nil)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

type failingProbe struct{}

func (failingProbe) Check(context.Context) error { return io.ErrUnexpectedEOF }

func TestReadyReportsProbeFailure(t *testing.T) {
	api := newTestAPI(t, WithReadyProbe(failingProbe{}))
	resp := api.do(http.MethodGet, "/readyz", "", nil)
	expectStatus(t, resp, http.StatusServiceUnavailable)
	resp.Body.Close()
}
