package handler

import (
	"net/url"
	"strconv"
	"strings"

	"leasecover/internal/policy/models"
	dErrors "leasecover/pkg/domain-errors"
	strutil "leasecover/pkg/platform/strings"
)

// ResolveTokenRequest exchanges an invitation token for the actor's record.
type ResolveTokenRequest struct {
	Token string `json:"token"`
}

func (r *ResolveTokenRequest) Normalize() {
	r.Token = strings.TrimSpace(r.Token)
}

func (r *ResolveTokenRequest) Validate() error {
	if r.Token == "" {
		return dErrors.New(dErrors.CodeValidation, "token is required")
	}
	return nil
}

// parsePolicyFilter reads ?status=A,B&limit=&offset=.
func parsePolicyFilter(q url.Values) (models.PolicyFilter, error) {
	var filter models.PolicyFilter
	for _, raw := range strutil.DedupeAndTrim(strings.Split(strings.ToUpper(q.Get("status")), ",")) {
		status, err := models.ParseStatus(raw)
		if err != nil {
			return filter, err
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	var err error
	if filter.Limit, err = queryInt(q, "limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = queryInt(q, "offset"); err != nil {
		return filter, err
	}
	return filter, nil
}

func queryInt(q url.Values, key string) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, dErrors.Newf(dErrors.CodeBadRequest, "%s must be a non-negative integer", key)
	}
	return n, nil
}
