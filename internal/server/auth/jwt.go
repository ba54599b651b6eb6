// Package auth implements the token issuer/verifier and the gate that
// resolves a bearer token to an active user.
package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/avasiliev/accountkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Issuer mints and validates signed, expiring bearer tokens. The subject of
// every token is the user id. Issuer holds its key and default lifetime
// explicitly; there is no process-global signing state.
type Issuer struct {
	secretKey  []byte
	defaultTTL time.Duration
}

func NewIssuer(secretKey []byte, defaultTTL time.Duration) *Issuer {
	return &Issuer{secretKey: secretKey, defaultTTL: defaultTTL}
}

// Issue signs a token for the given user id with the default lifetime.
func (i *Issuer) Issue(userID int64) (string, error) {
	return i.IssueFor(userID, i.defaultTTL)
}

// IssueFor signs a token for the given user id with an explicit lifetime.
func (i *Issuer) IssueFor(userID int64, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
	})

	tokenString, err := token.SignedString(i.secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// Verify checks the signature and expiry of tokenString and returns the user
// id from its subject claim.
//
// Failure modes:
//   - expired token:                common.ErrTokenExpired
//   - bad signature / malformed:    common.ErrInvalidToken
//   - missing or non-integer sub:   common.ErrNoSubject
//
// All of them must deny access upstream; the split only exists so callers
// can report them apart.
func (i *Issuer) Verify(tokenString string) (int64, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, common.ErrTokenExpired
		}
		return 0, common.ErrInvalidToken
	}

	if !token.Valid {
		return 0, common.ErrInvalidToken
	}

	if claims.Subject == "" {
		return 0, common.ErrNoSubject
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, common.ErrNoSubject
	}

	return userID, nil
}
