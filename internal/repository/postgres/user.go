package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sakif/articles-api/internal/apperror"
	"github.com/sakif/articles-api/internal/model"
)

const createUser = `-- name: CreateUser
INSERT INTO users (username, password)
VALUES ($1, $2)
RETURNING id, username, password, created_at, updated_at
`

func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	rows, _ := db.db.Query(ctx, createUser, user.Username, user.PasswordHash)
	created, err := pgx.CollectOneRow(rows, rowToUser)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("postgres: inserting user %q: %w", user.Username, err)
	}

	*user = created
	return nil
}

const getUserByID = `-- name: GetUserByID
SELECT id, username, password, created_at, updated_at FROM users
WHERE id = $1
`

func (db *DB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	rows, _ := db.db.Query(ctx, getUserByID, id)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return &user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return nil, apperror.NotFound("user", id)
	default:
		return nil, fmt.Errorf("postgres: getting user %d: %w", id, err)
	}
}

const getUserByUsername = `-- name: GetUserByUsername
SELECT id, username, password, created_at, updated_at FROM users
WHERE username = $1
`

func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	rows, _ := db.db.Query(ctx, getUserByUsername, username)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return &user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return nil, apperror.NotFound("user", username)
	default:
		return nil, fmt.Errorf("postgres: getting user %q: %w", username, err)
	}
}

func (db *DB) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := db.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`,
		username,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: checking username %q: %w", username, err)
	}
	return exists, nil
}

func rowToUser(row pgx.CollectableRow) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, err
}
