// Command smoke runs an end-to-end check against a running registry.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"licensehub.dev/internal/ids"
	"licensehub.dev/internal/license"
	"licensehub.dev/internal/monitor"
)

type client struct {
	base  string
	token string
	http  *http.Client
}

func (c *client) call(ctx context.Context, method, path string, body, out any) (int, error) {
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return 0, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, &payload)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func main() {
	var (
		baseURL  = flag.String("url", envOr("LICENSE_SERVER_URL", "http://localhost:4000"), "registry base URL")
		username = flag.String("username", os.Getenv("LICENSEHUB_ADMIN_USERNAME"), "administrator username")
		password = flag.String("password", os.Getenv("LICENSEHUB_ADMIN_PASSWORD"), "administrator password")
	)
	flag.Parse()
	if *username == "" || *password == "" {
		log.Fatal("administrator credentials are required (-username/-password)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c := &client{base: strings.TrimRight(*baseURL, "/"), http: &http.Client{Timeout: 5 * time.Second}}
	checker, err := monitor.NewHTTPChecker(c.base, c.http)
	if err != nil {
		log.Fatal(err)
	}

	var login struct {
		Token string `json:"token"`
	}
	if code, err := c.call(ctx, http.MethodPost, "/api/auth/login", map[string]string{"username": *username, "password": *password}, &login); err != nil || code != http.StatusOK {
		log.Fatalf("login: status=%d err=%v", code, err)
	}
	c.token = login.Token

	ident := "smoke-" + strings.ToLower(ids.New())
	var project license.Project
	if code, err := c.call(ctx, http.MethodPost, "/api/projects", map[string]string{
		"project_name":       ident,
		"project_identifier": ident,
	}, &project); err != nil || code != http.StatusCreated {
		log.Fatalf("create project: status=%d err=%v", code, err)
	}

	expect := func(want license.Status) {
		got, err := checker.Check(ctx, ident)
		if err != nil {
			log.Fatalf("check status: %v", err)
		}
		if got != want {
			log.Fatalf("check status = %s, want %s", got, want)
		}
	}
	expect(project.Status)

	for _, s := range []license.Status{license.StatusPartiallyPaid, license.StatusFullyPaid, license.StatusNotPaid} {
		if code, err := c.call(ctx, http.MethodPut, "/api/projects/"+project.ID+"/status", map[string]string{"license_status": string(s)}, nil); err != nil || code != http.StatusOK {
			log.Fatalf("set status %s: status=%d err=%v", s, code, err)
		}
		expect(s)
	}

	if code, err := c.call(ctx, http.MethodDelete, "/api/projects/"+project.ID, nil, nil); err != nil || code != http.StatusNoContent {
		log.Fatalf("delete project: status=%d err=%v", code, err)
	}
	if _, err := checker.Check(ctx, ident); !errors.Is(err, monitor.ErrNotRegistered) {
		log.Fatalf("check after delete: expected not registered, got %v", err)
	}

	fmt.Printf("✅ registry smoke test passed: project=%s\n", ident)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
