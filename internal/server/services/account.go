// Package services contains server-side business logic. AccountService
// orchestrates registration, authentication, token issuance, and profile
// CRUD on top of the credential store and codec.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avasiliev/accountkeeper/internal/common"
	"github.com/avasiliev/accountkeeper/internal/cryptox"
	"github.com/avasiliev/accountkeeper/internal/logging"
	"github.com/avasiliev/accountkeeper/internal/server/auth"
	"github.com/avasiliev/accountkeeper/internal/server/models"
	"github.com/avasiliev/accountkeeper/internal/server/repositories/users"
)

// ProfileUpdate is the service-level partial update. Password is plaintext
// and gets sealed before it reaches the store.
type ProfileUpdate struct {
	Username *string
	Email    *string
	Password *string
	IsActive *bool
}

type AccountService struct {
	repo    users.Repository
	codec   *cryptox.Codec
	issuer  *auth.Issuer
	timeout time.Duration
	logger  logging.Logger
}

func NewAccountService(repo users.Repository, codec *cryptox.Codec, issuer *auth.Issuer, timeout time.Duration, logger logging.Logger) *AccountService {
	return &AccountService{
		repo:    repo,
		codec:   codec,
		issuer:  issuer,
		timeout: timeout,
		logger:  logger.With("module", "accounts"),
	}
}

// Register creates a new account. The email check runs before the username
// check so an email collision wins when both collide. The store's unique
// constraints remain the source of truth against concurrent registrations;
// the whole check-then-insert runs in one transaction.
func (s *AccountService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	var created *models.User
	err := s.repo.WithTx(ctx, func(r users.Repository) error {
		if _, err := r.GetByEmail(ctx, email); err == nil {
			return &common.ConflictError{Field: "email"}
		} else if !errors.Is(err, common.ErrorNotFound) {
			return err
		}

		if _, err := r.GetByUsername(ctx, username); err == nil {
			return &common.ConflictError{Field: "username"}
		} else if !errors.Is(err, common.ErrorNotFound) {
			return err
		}

		sealed, err := s.codec.Seal(password)
		if err != nil {
			return fmt.Errorf("sealing secret: %w", err)
		}

		created, err = r.Create(ctx, &models.User{
			Username:        username,
			Email:           email,
			EncryptedSecret: sealed,
			IsActive:        true,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user registered", "user_id", created.ID, "username", created.Username)
	return created, nil
}

// Authenticate checks a username/password pair. A missing user and a wrong
// password both collapse into ErrorInvalidCredentials so usernames cannot
// be enumerated through login. Activity is deliberately not checked here;
// Login reports inactive accounts separately.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorInvalidCredentials
		}
		return nil, err
	}

	if !s.codec.Verify(ctx, password, user.EncryptedSecret) {
		return nil, common.ErrorInvalidCredentials
	}

	return user, nil
}

// Login authenticates and, for active accounts, issues an access token.
func (s *AccountService) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return "", nil, err
	}

	if !user.IsActive {
		return "", nil, common.ErrorInactiveUser
	}

	token, err := s.issuer.Issue(user.ID)
	if err != nil {
		s.logger.Error(ctx, "token issuance failed", "error", err.Error())
		return "", nil, common.ErrorInternal
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID)
	return token, user, nil
}

func (s *AccountService) Get(ctx context.Context, id int64) (*models.User, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.repo.Get(ctx, id)
}

func (s *AccountService) List(ctx context.Context, offset, limit int) ([]*models.User, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.repo.List(ctx, offset, limit)
}

// UpdateProfile applies a partial update, sealing a new password when one is
// supplied. Uniqueness of a changed username/email is re-validated by the
// store constraint.
func (s *AccountService) UpdateProfile(ctx context.Context, id int64, upd *ProfileUpdate) (*models.User, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	stored := &models.UserUpdate{
		Username: upd.Username,
		Email:    upd.Email,
		IsActive: upd.IsActive,
	}
	if upd.Password != nil {
		sealed, err := s.codec.Seal(*upd.Password)
		if err != nil {
			return nil, fmt.Errorf("sealing secret: %w", err)
		}
		stored.EncryptedSecret = &sealed
	}

	user, err := s.repo.Update(ctx, id, stored)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user updated", "user_id", id)
	return user, nil
}

// DeleteAccount removes the record and returns it (hard delete).
func (s *AccountService) DeleteAccount(ctx context.Context, id int64) (*models.User, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user deleted", "user_id", id)
	return user, nil
}

// storeCtx bounds a store-touching call with the configured timeout.
func (s *AccountService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}
