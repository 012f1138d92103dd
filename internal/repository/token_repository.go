package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/eventhub/internal/model"
)

const tokenColumns = "id,user_id,token_hash,token_family_id,device_id,device_name,issued_at,expires_at,last_used_at,revoked_at,replaced_by_token_id"

// TokenRepo is the MySQL session ledger backed by `refresh_tokens`.
//
// Every state change is a single conditional UPDATE guarded by
// `revoked_at IS NULL`, so concurrent callers cannot both observe success
// for the same record.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// FindByTokenHash returns the record stored under hash.
func (r *TokenRepo) FindByTokenHash(ctx context.Context, hash string) (model.RefreshToken, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+tokenColumns+" FROM refresh_tokens WHERE token_hash=? LIMIT 1", hash)
	return scanToken(row)
}

// FindByID returns the record with the given id.
func (r *TokenRepo) FindByID(ctx context.Context, id string) (model.RefreshToken, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+tokenColumns+" FROM refresh_tokens WHERE id=? LIMIT 1", id)
	return scanToken(row)
}

// ListByUserID returns all of a user's records, newest first.
func (r *TokenRepo) ListByUserID(ctx context.Context, userID string) ([]model.RefreshToken, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+tokenColumns+" FROM refresh_tokens WHERE user_id=? ORDER BY issued_at DESC, id", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RefreshToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Save inserts t or fully overwrites the row with the same id.
func (r *TokenRepo) Save(ctx context.Context, t *model.RefreshToken) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO refresh_tokens (`+tokenColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)
		 ON DUPLICATE KEY UPDATE user_id=VALUES(user_id), token_hash=VALUES(token_hash),
		 token_family_id=VALUES(token_family_id), device_id=VALUES(device_id), device_name=VALUES(device_name),
		 issued_at=VALUES(issued_at), expires_at=VALUES(expires_at), last_used_at=VALUES(last_used_at),
		 revoked_at=VALUES(revoked_at), replaced_by_token_id=VALUES(replaced_by_token_id)`,
		t.ID, t.UserID, t.TokenHash, t.FamilyID, t.DeviceID, t.DeviceName,
		t.IssuedAt, t.ExpiresAt, t.LastUsedAt, t.RevokedAt, t.ReplacedByTokenID)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// Rotate moves an ACTIVE record to ROTATED. It reports false when the record
// was no longer active, i.e. another caller already consumed it.
func (r *TokenRepo) Rotate(ctx context.Context, id string, at time.Time, replacedByID string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at=?, last_used_at=?, replaced_by_token_id=?
		 WHERE id=? AND revoked_at IS NULL`,
		at, at, replacedByID, id)
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RevokeByID marks one active record revoked.
func (r *TokenRepo) RevokeByID(ctx context.Context, id string, at time.Time) (int64, error) {
	return r.revoke(ctx, "id", id, at)
}

// RevokeByFamilyID revokes every active record of a login family.
func (r *TokenRepo) RevokeByFamilyID(ctx context.Context, familyID string, at time.Time) (int64, error) {
	return r.revoke(ctx, "token_family_id", familyID, at)
}

// RevokeByUserID revokes all of a user's active records across families.
func (r *TokenRepo) RevokeByUserID(ctx context.Context, userID string, at time.Time) (int64, error) {
	return r.revoke(ctx, "user_id", userID, at)
}

// revoke runs the shared conditional update. column is one of the fixed
// identifiers above, never caller input.
func (r *TokenRepo) revoke(ctx context.Context, column, value string, at time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE "+column+"=? AND revoked_at IS NULL", at, value)
	if err != nil {
		return 0, fmt.Errorf("revoke refresh tokens by %s: %w", column, err)
	}
	return res.RowsAffected()
}

func scanToken(row rowScanner) (model.RefreshToken, error) {
	var (
		t                   model.RefreshToken
		lastUsedAt, revoked sql.NullTime
		replacedBy          sql.NullString
	)
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.FamilyID, &t.DeviceID, &t.DeviceName,
		&t.IssuedAt, &t.ExpiresAt, &lastUsedAt, &revoked, &replacedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RefreshToken{}, ErrNotFound
		}
		return model.RefreshToken{}, err
	}
	t.LastUsedAt = nullTime(lastUsedAt)
	t.RevokedAt = nullTime(revoked)
	t.ReplacedByTokenID = nullString(replacedBy)
	return t, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
