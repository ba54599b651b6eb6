package auth

import (
	"context"
	"time"

	"github.com/avasiliev/accountkeeper/internal/common"
	"github.com/avasiliev/accountkeeper/internal/server/models"
	"github.com/avasiliev/accountkeeper/internal/server/repositories/users"
)

// Gate composes the token verifier and the credential store to answer
// "who is making this request". Every protected operation goes through it.
type Gate struct {
	issuer  *Issuer
	repo    users.Repository
	timeout time.Duration
}

func NewGate(issuer *Issuer, repo users.Repository, timeout time.Duration) *Gate {
	return &Gate{issuer: issuer, repo: repo, timeout: timeout}
}

// ResolveCurrentUser verifies the bearer token and loads the user it is
// bound to.
//
// The checks run in a fixed order so failures stay distinguishable:
//  1. token verification (signature, expiry, subject) - token errors;
//  2. user lookup - common.ErrorNotFound covers a user deleted after the
//     token was issued;
//  3. activity - common.ErrorInactiveUser for suspended accounts.
func (g *Gate) ResolveCurrentUser(ctx context.Context, token string) (*models.User, error) {
	userID, err := g.issuer.Verify(token)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	user, err := g.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !user.IsActive {
		return nil, common.ErrorInactiveUser
	}

	return user, nil
}
