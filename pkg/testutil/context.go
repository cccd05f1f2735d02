package testutil

import (
	"net/http"

	"leasecover/internal/access"
)

// WithPrincipal attaches p to the request context, simulating what the
// auth middleware does for authenticated requests.
func WithPrincipal(req *http.Request, p access.Principal) *http.Request {
	return req.WithContext(access.WithPrincipal(req.Context(), p))
}
