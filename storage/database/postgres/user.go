package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/enrollgsrp/gsrp-enroll/core/user"
)

const userColumns = "id, name, email, password_hash, confirmation_token, is_confirmed, is_admin, created_at, last_login"

type userRow struct {
	ID                string         `db:"id"`
	Name              string         `db:"name"`
	Email             string         `db:"email"`
	PasswordHash      []byte         `db:"password_hash"`
	ConfirmationToken sql.NullString `db:"confirmation_token"`
	IsConfirmed       bool           `db:"is_confirmed"`
	IsAdmin           bool           `db:"is_admin"`
	CreatedAt         time.Time      `db:"created_at"`
	LastLogin         sql.NullTime   `db:"last_login"`
}

func (row userRow) user() user.User {
	usr := user.User{
		ID:                row.ID,
		Name:              row.Name,
		Email:             row.Email,
		PasswordHash:      row.PasswordHash,
		ConfirmationToken: row.ConfirmationToken.String,
		IsConfirmed:       row.IsConfirmed,
		IsAdmin:           row.IsAdmin,
		CreatedAt:         row.CreatedAt.UTC(),
	}
	if row.LastLogin.Valid {
		lastLogin := row.LastLogin.Time.UTC()
		usr.LastLogin = &lastLogin
	}
	return usr
}

const tokenIndex = "users_confirmation_token_key"

// userConflict maps a unique violation to the user field that caused it.
func userConflict(err error) error {
	if violatedConstraint(err) == tokenIndex {
		return user.ErrTokenTaken
	}
	return user.ErrUserExists
}

func nullToken(token string) sql.NullString {
	return sql.NullString{String: token, Valid: token != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.NewString()
	usr.CreatedAt = usr.CreatedAt.UTC()
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		usr.ID, usr.Name, usr.Email, usr.PasswordHash, nullToken(usr.ConfirmationToken),
		usr.IsConfirmed, usr.IsAdmin, usr.CreatedAt, nullTime(usr.LastLogin),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, userConflict(err)
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var (
		q   string
		arg interface{}
	)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		q, arg = "SELECT "+userColumns+" FROM users WHERE id = $1", filter.ID
	case filter.Email != "":
		q, arg = "SELECT "+userColumns+" FROM users WHERE email = $1", filter.Email
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := repo.db.GetContext(ctx, &row, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "selecting user")
	}
	return row.user(), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter) ([]user.User, error) {
	var w where
	if filter != nil {
		if filter.Search != "" {
			pattern := likePattern(filter.Search)
			w.add("(name ILIKE ? OR email ILIKE ?)", pattern, pattern)
		}
		if filter.Email != "" {
			w.add("email = ?", filter.Email)
		}
		if filter.IsConfirmed != nil {
			w.add("is_confirmed = ?", *filter.IsConfirmed)
		}
		if filter.IsAdmin != nil {
			w.add("is_admin = ?", *filter.IsAdmin)
		}
	}

	var rows []userRow
	q := "SELECT " + userColumns + " FROM users" + w.String() + " ORDER BY created_at DESC, id"
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.user())
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if _, err := uuid.Parse(usr.ID); err != nil {
		return user.User{}, user.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx,
		`UPDATE users SET name = $2, email = $3, password_hash = $4, confirmation_token = $5,
		is_confirmed = $6, is_admin = $7, last_login = $8 WHERE id = $1`,
		usr.ID, usr.Name, usr.Email, usr.PasswordHash, nullToken(usr.ConfirmationToken),
		usr.IsConfirmed, usr.IsAdmin, nullTime(usr.LastLogin),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, userConflict(err)
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo *userRepository) ConfirmUser(ctx context.Context, token string) (user.User, error) {
	if token == "" {
		return user.User{}, user.ErrNotFound
	}
	var row userRow
	err := repo.db.GetContext(ctx, &row,
		"UPDATE users SET is_confirmed = TRUE WHERE confirmation_token = $1 RETURNING "+userColumns,
		token,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "confirming user")
	}
	return row.user(), nil
}

func (repo *userRepository) returning(ctx context.Context, q string, args ...interface{}) (user.User, error) {
	if _, err := uuid.Parse(args[0].(string)); err != nil {
		return user.User{}, user.ErrNotFound
	}
	var row userRow
	if err := repo.db.GetContext(ctx, &row, q+" RETURNING "+userColumns, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		if isUniqueViolation(err) {
			return user.User{}, userConflict(err)
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return row.user(), nil
}

func (repo *userRepository) SetLastLogin(ctx context.Context, id string, t time.Time) (user.User, error) {
	return repo.returning(ctx, "UPDATE users SET last_login = $2 WHERE id = $1", id, t.UTC())
}

func (repo *userRepository) SetConfirmationToken(ctx context.Context, id, token string) (user.User, error) {
	return repo.returning(ctx,
		"UPDATE users SET confirmation_token = COALESCE(NULLIF(confirmation_token, ''), $2) WHERE id = $1",
		id, token,
	)
}
