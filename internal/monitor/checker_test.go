package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licensehub.dev/internal/license"
)

func registry(t *testing.T, code int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != CheckPath || r.URL.Query().Get("project_identifier") != "acme" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPCheckerStatus(t *testing.T) {
	srv := registry(t, http.StatusOK, `{"status":"PARTIALLY_PAID"}`)
	c, err := NewHTTPChecker(srv.URL+"/", nil)
	require.NoError(t, err)

	got, err := c.Check(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, license.StatusPartiallyPaid, got)
}

func TestHTTPCheckerErrors(t *testing.T) {
	cases := []struct {
		name string
		code int
		body string
		want error
	}{
		{"not registered", http.StatusNotFound, `{"error":"project not found"}`, ErrNotRegistered},
		{"server error", http.StatusInternalServerError, `{}`, ErrUnexpectedStatus},
		{"rate limited", http.StatusTooManyRequests, `{}`, ErrUnexpectedStatus},
		{"not json", http.StatusOK, `<html>`, ErrMalformedResponse},
		{"unknown enum", http.StatusOK, `{"status":"PAID"}`, ErrMalformedResponse},
		{"missing field", http.StatusOK, `{}`, ErrMalformedResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := registry(t, tc.code, tc.body)
			c, err := NewHTTPChecker(srv.URL, srv.Client())
			require.NoError(t, err)
			_, err = c.Check(context.Background(), "acme")
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestHTTPCheckerTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c, err := NewHTTPChecker(srv.URL, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Check(ctx, "acme")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewHTTPCheckerRejectsRelativeURL(t *testing.T) {
	_, err := NewHTTPChecker("localhost:4000", nil)
	assert.Error(t, err)
}
