package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/eventhub/internal/model"
)

const userColumns = "id,email,password_hash,role,provider,status,name,username,avatar_url,created_at,updated_at,last_login_at"

// UserRepo is the MySQL identity store backed by the `users` table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// FindByEmail fetches a user by normalized email.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
	return scanUser(row)
}

// FindByID fetches a user by id.
func (r *UserRepo) FindByID(ctx context.Context, id string) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return scanUser(row)
}

// FindAll returns every user ordered by creation time.
func (r *UserRepo) FindAll(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY created_at, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Save inserts u when it has no ID yet (assigning one) and otherwise
// overwrites the stored row. A duplicate email is reported as
// ErrEmailExists; the unique index makes that check atomic.
func (r *UserRepo) Save(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.ID == "" {
		id := uuid.NewString()
		_, err := r.DB.ExecContext(ctx,
			"INSERT INTO users ("+userColumns+") VALUES (?,?,?,?,?,?,?,?,?,?,?,?)",
			id, u.Email, u.PasswordHash, u.Role, u.Provider, u.Status,
			u.Name, u.Username, u.AvatarURL, u.CreatedAt, u.UpdatedAt, u.LastLoginAt)
		if err != nil {
			if isDuplicateKey(err) {
				return ErrEmailExists
			}
			return fmt.Errorf("insert user: %w", err)
		}
		u.ID = id
		return nil
	}

	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET email=?, password_hash=?, role=?, provider=?, status=?, name=?, username=?,
		 avatar_url=?, updated_at=?, last_login_at=? WHERE id=?`,
		u.Email, u.PasswordHash, u.Role, u.Provider, u.Status, u.Name, u.Username,
		u.AvatarURL, u.UpdatedAt, u.LastLoginAt, u.ID)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("update user: %w", err)
	}
	// The DSN sets clientFoundRows, so zero means no row matched the id.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLogin stamps last_login_at and updated_at on an ACTIVE user without
// rewriting the rest of the row. ErrNotFound covers a missing user and one
// that was disabled in the meantime.
func (r *UserRepo) TouchLogin(ctx context.Context, id string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET last_login_at=?, updated_at=? WHERE id=? AND status=?",
		at, at, id, model.StatusActive)
	if err != nil {
		return fmt.Errorf("touch login: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByID removes the user row. Refresh token records are kept.
func (r *UserRepo) DeleteByID(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var (
		u                            model.User
		role, provider, status       string
		passwordHash, name, username sql.NullString
		avatarURL                    sql.NullString
		lastLoginAt                  sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &passwordHash, &role, &provider, &status,
		&name, &username, &avatarURL, &u.CreatedAt, &u.UpdatedAt, &lastLoginAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, err
	}
	if u.Role, err = model.ParseRole(role); err != nil {
		return model.User{}, fmt.Errorf("users.role: %w", err)
	}
	if u.Provider, err = model.ParseProvider(provider); err != nil {
		return model.User{}, fmt.Errorf("users.provider: %w", err)
	}
	if u.Status, err = model.ParseStatus(status); err != nil {
		return model.User{}, fmt.Errorf("users.status: %w", err)
	}
	u.PasswordHash = nullString(passwordHash)
	u.Name = nullString(name)
	u.Username = nullString(username)
	u.AvatarURL = nullString(avatarURL)
	u.LastLoginAt = nullTime(lastLoginAt)
	return u, nil
}
