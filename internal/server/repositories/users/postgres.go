package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/avasiliev/accountkeeper/internal/common"
	"github.com/avasiliev/accountkeeper/internal/dbx"
	"github.com/avasiliev/accountkeeper/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const userColumns = "id, username, email, encrypted_secret, is_active, created_at, updated_at"

type PostgresRepository struct {
	db *sql.DB
	q  dbx.DBTX
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, q: db}
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.q.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return r.scanUser(r.q.QueryRowContext(ctx, query, username))
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(r.q.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) List(ctx context.Context, offset, limit int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id OFFSET $1 LIMIT $2`

	rows, err := r.q.QueryContext(ctx, query, offset, limit)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close()

	result := []*models.User{}
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.EncryptedSecret,
			&user.IsActive, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, mapDBError(err)
		}
		result = append(result, user)
	}
	if err := rows.Err(); err != nil {
		return nil, mapDBError(err)
	}

	return result, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (username, email, encrypted_secret, is_active)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at
		 `

	err := r.q.QueryRowContext(ctx, query,
		user.Username, user.Email, user.EncryptedSecret, user.IsActive).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}

	return user, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id int64, upd *models.UserUpdate) (*models.User, error) {
	// COALESCE keeps untouched columns as they are; the unique constraints
	// re-validate username/email atomically with the write.
	query :=
		`UPDATE users
		 SET username = COALESCE($2, username),
		     email = COALESCE($3, email),
		     encrypted_secret = COALESCE($4, encrypted_secret),
		     is_active = COALESCE($5, is_active),
		     updated_at = now()
		 WHERE id = $1
		 RETURNING ` + userColumns

	return r.scanUser(r.q.QueryRowContext(ctx, query,
		id, upd.Username, upd.Email, upd.EncryptedSecret, upd.IsActive))
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) (*models.User, error) {
	query := `DELETE FROM users WHERE id = $1 RETURNING ` + userColumns
	return r.scanUser(r.q.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) WithTx(ctx context.Context, fn func(Repository) error) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(&PostgresRepository{db: r.db, q: tx})
	})
}

func (r *PostgresRepository) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.EncryptedSecret,
		&user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	return user, nil
}

// mapDBError translates driver errors into the shared taxonomy: row misses
// to ErrorNotFound, unique violations to ConflictError, and timeouts or
// connection loss to the retryable ErrorUnavailable.
func mapDBError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrorNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return common.ErrorUnavailable
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return &common.ConflictError{Field: conflictField(pgErr.ConstraintName)}
		case strings.HasPrefix(pgErr.Code, "08"): // connection exceptions
			return common.ErrorUnavailable
		}
	}
	if pgconn.Timeout(err) {
		return common.ErrorUnavailable
	}

	return fmt.Errorf("db error: %w", err)
}

func conflictField(constraint string) string {
	if strings.Contains(constraint, "email") {
		return "email"
	}
	return "username"
}
