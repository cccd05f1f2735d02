package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "leasecover/pkg/domain"
	dErrors "leasecover/pkg/domain-errors"
)

// Claims represents the JWT claims for staff bearer tokens and actor
// invitation tokens. Actor tokens carry ActorID and PolicyID; staff tokens
// carry UserID.
type Claims struct {
	Role     string `json:"role"`
	UserID   string `json:"user_id,omitempty"`
	ActorID  string `json:"actor_id,omitempty"`
	PolicyID string `json:"policy_id,omitempty"`
	jwt.RegisteredClaims
}

// IssuedToken is a signed token plus the identifiers the caller persists.
type IssuedToken struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// JWTService handles JWT creation and validation
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	now        func() time.Time
}

func NewJWTService(signingKey string, issuer string, audience string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		now:        time.Now,
	}
}

// GenerateStaffToken signs a bearer token for an ADMIN, STAFF or BROKER user.
func (s *JWTService) GenerateStaffToken(userID id.UserID, role string, expiresIn time.Duration) (IssuedToken, error) {
	return s.sign(Claims{
		Role:   role,
		UserID: userID.String(),
	}, expiresIn)
}

// IssueActorToken signs the scoped access token embedded in an invitation.
// The returned ID is stored on the actor record; re-issuing replaces it.
func (s *JWTService) IssueActorToken(actorID id.ActorID, policyID id.PolicyID, expiresIn time.Duration) (IssuedToken, error) {
	return s.sign(Claims{
		Role:     "ACTOR",
		ActorID:  actorID.String(),
		PolicyID: policyID.String(),
	}, expiresIn)
}

func (s *JWTService) sign(claims Claims, expiresIn time.Duration) (IssuedToken, error) {
	now := s.now()
	expiresAt := now.Add(expiresIn)
	jti := uuid.NewString()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    s.issuer,
		Audience:  []string{s.audience},
		ID:        jti,
	}

	signedToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return IssuedToken{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return IssuedToken{Token: signedToken, ID: jti, ExpiresAt: expiresAt}, nil
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.ID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	return claims, nil
}
