package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"licensehub.dev/internal/license"
)

var (
	// ErrNotRegistered means the registry has no project with the identifier.
	ErrNotRegistered = errors.New("project not registered")
	// ErrUnexpectedStatus is any non-200 answer other than 404.
	ErrUnexpectedStatus = errors.New("unexpected response status")
	// ErrMalformedResponse covers undecodable bodies and unknown status values.
	ErrMalformedResponse = errors.New("malformed response")
)

// CheckPath is the registry's public status endpoint.
const CheckPath = "/api/license/check_status"

const maxResponseBytes = 64 << 10

// Checker fetches the registry status for a project identifier.
type Checker interface {
	Check(ctx context.Context, identifier string) (license.Status, error)
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, identifier string) (license.Status, error)

func (f CheckerFunc) Check(ctx context.Context, identifier string) (license.Status, error) {
	return f(ctx, identifier)
}

// HTTPChecker queries a registry over HTTP.
type HTTPChecker struct {
	endpoint string
	client   *http.Client
}

// NewHTTPChecker targets the registry at baseURL. A nil client uses
// http.DefaultClient; deadlines come from the caller's context.
func NewHTTPChecker(baseURL string, client *http.Client) (*HTTPChecker, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid registry url %q", baseURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPChecker{endpoint: u.String() + CheckPath, client: client}, nil
}

func (c *HTTPChecker) Check(ctx context.Context, identifier string) (license.Status, error) {
	q := url.Values{"project_identifier": {identifier}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("check status: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", ErrNotRegistered
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	status, err := license.ParseStatus(payload.Status)
	if err != nil {
		return "", fmt.Errorf("%w: status %q", ErrMalformedResponse, payload.Status)
	}
	return status, nil
}
