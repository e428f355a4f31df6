package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/neuropharmdb-server/internal/domain"
)

const userColumns = `user_id, name, email, role, age, medical_history`

func scanUser(s scanner) (*domain.User, error) {
	u := &domain.User{}
	var role string
	var age sql.NullInt64
	var history sql.NullString
	if err := s.Scan(&u.UserID, &u.Name, &u.Email, &role, &age, &history); err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	if age.Valid {
		v := int(age.Int64)
		u.Age = &v
	}
	u.MedicalHistory = stringPtr(history)
	return u, nil
}

// CreateUser inserts a new user.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	var age sql.NullInt64
	if user.Age != nil {
		age = sql.NullInt64{Int64: int64(*user.Age), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		user.UserID, user.Name, user.Email, string(user.Role), age, nullString(user.MedicalHistory),
	)
	if err != nil {
		s.logger.WithFields(logrus.Fields{"user_id": user.UserID, "error": err}).Error("Failed to create user")
		return fmt.Errorf("creating user: %w", translate(err))
	}
	return nil
}

// GetUser returns a user by id.
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = ?`, userID)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("getting user %s: %w", userID, translate(err))
	}
	return u, nil
}

// ListUsers returns all users ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]*domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var result []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

// DeleteUser removes a user. Timeline entries, alerts and suggestions
// cascade through foreign keys.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("deleting user %s: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting user %s: %w", userID, err)
	}
	if n == 0 {
		return fmt.Errorf("deleting user %s: %w", userID, domain.ErrNotFound)
	}
	s.logger.WithField("user_id", userID).Info("User deleted")
	return nil
}
