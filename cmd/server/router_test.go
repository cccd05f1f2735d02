package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	jwttoken "leasecover/internal/jwt_token"
	"leasecover/internal/platform/config"
	policyhandler "leasecover/internal/policy/handler"
	"leasecover/pkg/testutil"
)

func TestRouter(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := jwttoken.NewJWTService("test-signing-key", "leasecover", "leasecover-api")
	handler := policyhandler.New(nil, jwttoken.NewJWTServiceAdapter(tokens), log)
	var redisErr error
	checks := map[string]readinessCheck{
		"redis": func(context.Context) error { return redisErr },
	}
	router := newRouter(config.Server{RequestTimeout: 5 * time.Second}, log, handler, checks)

	testutil.Given(t, "the assembled router", func(t *testing.T) {
		testutil.When(t, "calling GET /health", func(t *testing.T) {
			rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/health"))

			testutil.Then(t, "it reports ok", func(t *testing.T) {
				testutil.AssertStatusOK(t, rec)
				testutil.AssertJSONContains(t, rec, "status", "ok")
			})
			testutil.And(t, "a request id is assigned", func(t *testing.T) {
				assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
			})
		})

		testutil.When(t, "calling GET /policies without a token", func(t *testing.T) {
			rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/policies"))

			testutil.Then(t, "it is rejected before reaching the service", func(t *testing.T) {
				testutil.AssertStatus(t, rec, http.StatusUnauthorized)
			})
		})

		testutil.When(t, "calling GET /ready with healthy dependencies", func(t *testing.T) {
			rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/ready"))

			testutil.Then(t, "it reports ready", func(t *testing.T) {
				testutil.AssertStatusOK(t, rec)
				testutil.AssertJSONContains(t, rec, "status", "ready")
			})
		})

		testutil.When(t, "calling GET /ready while redis is down", func(t *testing.T) {
			redisErr = errors.New("dial tcp: connection refused")
			defer func() { redisErr = nil }()
			rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/ready"))

			testutil.Then(t, "it names the failing dependency", func(t *testing.T) {
				testutil.AssertStatus(t, rec, http.StatusServiceUnavailable)
				testutil.AssertJSONContains(t, rec, "status", "unavailable")
				assert.Contains(t, rec.Body.String(), "connection refused")
			})
		})

		testutil.When(t, "scraping /metrics", func(t *testing.T) {
			rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))

			testutil.Then(t, "http metrics are exposed", func(t *testing.T) {
				testutil.AssertStatusOK(t, rec)
				assert.Contains(t, rec.Body.String(), "leasecover_http_requests_total")
			})
		})
	})
}
