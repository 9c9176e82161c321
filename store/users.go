package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Account is a users row as the auth layer sees it.
type Account struct {
	ID       int64
	Username string
	Password string
	Role     string
	Points   int
	Level    int
	Avatar   string
	Name     string
}

// AccountByUsername looks up one user for login. Returns ErrUserNotFound
// when no row matches.
func (s *Store) AccountByUsername(ctx context.Context, username string) (Account, error) {
	var a Account
	var password, role, avatar, name sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password, role, points, level, avatar, name
		 FROM users WHERE username = ?`, username).
		Scan(&a.ID, &a.Username, &password, &role, &a.Points, &a.Level, &avatar, &name)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrUserNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("store: account by username: %w", err)
	}
	a.Password = password.String
	a.Role = role.String
	a.Avatar = avatar.String
	a.Name = name.String
	return a, nil
}

// UpdatePassword replaces the stored credential of one user. Used by the
// lazy bcrypt rehash after a successful legacy login.
func (s *Store) UpdatePassword(ctx context.Context, userID int64, hash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password = ? WHERE id = ?`, hash, userID)
	if err != nil {
		return fmt.Errorf("store: update password: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// TouchLastSeen stamps a user's last_seen on authenticated activity.
func (s *Store) TouchLastSeen(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_seen = CURRENT_TIMESTAMP WHERE id = ?`, userID)
	if err != nil {
		return fmt.Errorf("store: touch last seen: %w", err)
	}
	return nil
}
