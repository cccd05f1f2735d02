package jwttoken

import (
	"leasecover/internal/access"
	id "leasecover/pkg/domain"
	dErrors "leasecover/pkg/domain-errors"
)

// ToPrincipal maps validated claims onto an access.Principal. Actor tokens
// must name both their actor and policy; other roles must name a user.
func ToPrincipal(claims *Claims) (access.Principal, error) {
	role, err := access.ParseRole(claims.Role)
	if err != nil {
		return access.Principal{}, err
	}

	p := access.Principal{Role: role, TokenID: claims.ID}
	if role == access.RoleActor {
		if p.ActorID, err = id.ParseActorID(claims.ActorID); err != nil {
			return access.Principal{}, dErrors.New(dErrors.CodeUnauthorized, "actor token has no actor")
		}
		if p.PolicyID, err = id.ParsePolicyID(claims.PolicyID); err != nil {
			return access.Principal{}, dErrors.New(dErrors.CodeUnauthorized, "actor token has no policy")
		}
		return p, nil
	}

	if p.UserID, err = id.ParseUserID(claims.UserID); err != nil {
		return access.Principal{}, dErrors.New(dErrors.CodeUnauthorized, "token has no user")
	}
	return p, nil
}

// JWTServiceAdapter lets the auth middleware resolve bearer tokens into
// principals without knowing about JWT claims.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidatePrincipal(tokenString string) (access.Principal, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return access.Principal{}, err
	}
	return ToPrincipal(claims)
}
