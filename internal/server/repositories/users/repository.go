// Package users implements the credential store: persistence of user
// identities and their sealed secrets.
package users

import (
	"context"

	"github.com/avasiliev/accountkeeper/internal/server/models"
)

// Repository is the credential-store contract. Lookup misses return
// common.ErrorNotFound; uniqueness violations return *common.ConflictError;
// transient store failures return common.ErrorUnavailable.
type Repository interface {
	Get(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, offset, limit int) ([]*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// Update applies the non-nil fields of upd and returns the updated
	// record. Uniqueness of username/email is re-validated by the store.
	Update(ctx context.Context, id int64, upd *models.UserUpdate) (*models.User, error)

	// Delete removes the record and returns it (hard delete).
	Delete(ctx context.Context, id int64) (*models.User, error)

	// WithTx runs fn against a transactional view of the repository,
	// committing on nil and rolling back on error. Calls on the view are
	// atomic relative to concurrent writers.
	WithTx(ctx context.Context, fn func(Repository) error) error
}
