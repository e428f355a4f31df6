package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/neuropharmdb-server/internal/domain"
)

const userColumns = `user_id, name, email, role, age, medical_history`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var role string
	if err := row.Scan(&u.UserID, &u.Name, &u.Email, &role, &u.Age, &u.MedicalHistory); err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	return &u, nil
}

// CreateUser inserts a new user
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		user.UserID, user.Name, user.Email, string(user.Role), user.Age, user.MedicalHistory,
	)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"user_id": user.UserID,
			"error":   err,
		}).Error("Failed to create user")
		return fmt.Errorf("creating user: %w", translate(err))
	}
	return nil
}

// GetUser retrieves a user by id
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, userID))
	if err != nil {
		return nil, fmt.Errorf("getting user %s: %w", userID, translate(err))
	}
	return u, nil
}

// ListUsers returns all users ordered by id
func (s *Store) ListUsers(ctx context.Context) ([]*domain.User, error) {
	rows, err := s.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// DeleteUser removes a user; dependent rows cascade
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM users WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("deleting user %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deleting user %s: %w", userID, domain.ErrNotFound)
	}

	s.log.WithField("user_id", userID).Info("User deleted")
	return nil
}
