package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"identity-gate/internal/db"

	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyRegistered  = errors.New("credentials already exist")
)

// Service registers and authenticates email + password users.
type Service struct {
	db *db.DB
}

func NewService(db *db.DB) *Service {
	return &Service{db: db}
}

// Register creates a new user with a password and returns its subject.
// An email that already belongs to a user is refused.
func (s *Service) Register(
	ctx context.Context,
	email string,
	password string,
) (string, error) {

	// 1. Hash password
	hash, version, err := HashPassword(password)
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("credentials: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// 2. Refuse known emails
	var exists bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM users WHERE LOWER(email) = LOWER($1)
		)
	`, email).Scan(&exists)
	if err != nil {
		return "", fmt.Errorf("credentials: lookup user: %w", err)
	}
	if exists {
		return "", ErrAlreadyRegistered
	}

	// 3. Create user
	var userID uuid.UUID
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (email, email_verified)
		VALUES ($1, false)
		RETURNING id
	`, email).Scan(&userID)
	if err != nil {
		return "", fmt.Errorf("credentials: create user: %w", err)
	}

	// 4. Store credentials
	_, err = tx.ExecContext(ctx, `
		INSERT INTO credentials (user_id, password_hash, hash_version)
		VALUES ($1, $2, $3)
	`, userID, hash, version)
	if err != nil {
		return "", fmt.Errorf("credentials: store: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("credentials: commit: %w", err)
	}

	return userID.String(), nil
}

// Authenticate verifies the password and returns the stored credential.
// Unknown emails and wrong passwords are indistinguishable.
func (s *Service) Authenticate(
	ctx context.Context,
	email string,
	password string,
) (*Credential, error) {

	var (
		userID uuid.UUID
		c      Credential
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.email, c.password_hash, c.hash_version
		FROM users u
		JOIN credentials c ON c.user_id = u.id
		WHERE LOWER(u.email) = LOWER($1)
	`, email).Scan(&userID, &c.Email, &c.PasswordHash, &c.HashVersion)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("credentials: lookup: %w", err)
	}

	if err := VerifyPassword(c, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	c.UserID = userID.String()
	return &c, nil
}
