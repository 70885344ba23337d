package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"identity-gate/internal/db"
	"identity-gate/internal/logger"
)

type PostgresStore struct {
	db *db.DB
}

// NewPostgresStore creates a profile store over the profiles table.
func NewPostgresStore(db *db.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, subject string) (*Profile, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT document
		FROM profiles
		WHERE subject = $1
	`, subject).Scan(&raw)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("profile: query %s: %w", subject, err)
	}

	p, err := Decode(subject, raw)
	if err != nil {
		// malformed documents read as "no profile"
		logger.Warn("profile document rejected", map[string]any{
			"subject": subject,
			"error":   err,
		})
		return nil, nil
	}
	return p, nil
}

func (s *PostgresStore) Create(ctx context.Context, p Profile) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}

	doc, err := Encode(p)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (subject, document)
		VALUES ($1, $2)
		ON CONFLICT (subject) DO NOTHING
	`, p.Subject, doc)
	if err != nil {
		return false, fmt.Errorf("profile: insert %s: %w", p.Subject, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("profile: insert %s: %w", p.Subject, err)
	}
	return n == 1, nil
}
