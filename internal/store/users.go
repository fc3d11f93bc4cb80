package store

import (
	"time"

	"example.com/microblog/internal/models"
	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

// --- Identity operations ---

// CreateUser registers a new account. Email uniqueness is serialized with a
// CAS insert on users_by_email, so the loser of a concurrent registration
// race gets ErrDuplicateEmail and the original row is untouched.
func (s *Store) CreateUser(email, passwordHash string) (models.User, error) {
	user := models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		Created:      time.Now().UTC(),
	}

	result := make(map[string]interface{})
	applied, err := s.Session.Query(`
		INSERT INTO users_by_email (email, user_id)
		VALUES (?, ?) IF NOT EXISTS`,
		email, user.ID,
	).MapScanCAS(result)
	if err != nil {
		logg.Error("store", "Failed to reserve email", err)
		return models.User{}, err
	}
	if !applied {
		return models.User{}, ErrDuplicateEmail
	}

	if err := s.Session.Query(`
		INSERT INTO users (user_id, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)`,
		user.ID, user.Email, user.PasswordHash, user.Created,
	).Exec(); err != nil {
		logg.Error("store", "Failed to create user in main table", err)
		return models.User{}, err
	}

	logg.Info("store", "User created successfully (email anonymized)")
	return user, nil
}

// GetUserByEmail resolves the email index and loads the user row.
func (s *Store) GetUserByEmail(email string) (models.User, error) {
	var id string
	err := s.Session.Query(
		`SELECT user_id FROM users_by_email WHERE email = ?`,
		email,
	).Scan(&id)
	if err != nil {
		if err == gocql.ErrNotFound {
			return models.User{}, ErrNotFound
		}
		logg.Error("store", "Failed to query user by email", err)
		return models.User{}, err
	}
	return s.GetUserByID(id)
}

func (s *Store) GetUserByID(id string) (models.User, error) {
	var user models.User
	err := s.Session.Query(
		`SELECT user_id, email, password_hash, created_at FROM users WHERE user_id = ?`,
		id,
	).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Created)
	if err != nil {
		if err == gocql.ErrNotFound {
			return models.User{}, ErrNotFound
		}
		logg.Error("store", "Failed to query user by id", err)
		return models.User{}, err
	}
	return user, nil
}
