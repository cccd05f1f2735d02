// Package gateway is the payment-gateway collaborator. Only checkout session
// creation is outbound; settlement arrives as webhook events.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	id "leasecover/pkg/domain"
)

// SessionRequest describes the amount to collect.
type SessionRequest struct {
	PaymentID   id.PaymentID
	PolicyID    id.PolicyID
	Amount      decimal.Decimal
	Currency    string
	Description string
}

// Session is a hosted checkout page.
type Session struct {
	ID          string
	CheckoutURL string
}

type SessionCreator interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
}

// Fake issues sessions without network calls. Used in local runs and tests.
type Fake struct {
	baseURL string

	mu       sync.Mutex
	sessions map[string]SessionRequest
	fail     error
}

func NewFake(baseURL string) *Fake {
	return &Fake{baseURL: strings.TrimRight(baseURL, "/"), sessions: make(map[string]SessionRequest)}
}

// Fail makes subsequent calls return err; nil restores success.
func (f *Fake) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

func (f *Fake) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	if !req.Amount.IsPositive() {
		return Session{}, errors.New("session amount must be positive")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return Session{}, f.fail
	}
	sessionID := "cs_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	f.sessions[sessionID] = req
	return Session{ID: sessionID, CheckoutURL: fmt.Sprintf("%s/checkout/%s", f.baseURL, sessionID)}, nil
}

// Lookup returns the request a session was created for.
func (f *Fake) Lookup(sessionID string) (SessionRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.sessions[sessionID]
	return req, ok
}
