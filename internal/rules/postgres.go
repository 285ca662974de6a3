package rules

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "email-dispatcher/internal/common/errors"
)

// PostgresStore persists routing rules in PostgreSQL via a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to PostgreSQL and migrates the rule schema.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS routing_rules (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			source_address TEXT NOT NULL,
			destination_url TEXT NOT NULL,
			destination_method TEXT NOT NULL DEFAULT 'POST',
			priority INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'active',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (source_address, destination_url)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_routing_rules_source ON routing_rules(source_address)`,
		`CREATE INDEX IF NOT EXISTS idx_routing_rules_status ON routing_rules(status)`,
	}

	for _, query := range queries {
		if _, err := s.pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute migration query: %w", err)
		}
	}

	return nil
}

const pgRuleColumns = `id, name, source_address, destination_url, destination_method, priority, status, created_at, updated_at`

func scanPgRule(row pgx.Row) (*Rule, error) {
	rule := &Rule{}
	err := row.Scan(&rule.ID, &rule.Name, &rule.SourceAddress, &rule.DestinationURL,
		&rule.DestinationMethod, &rule.Priority, &rule.Status, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// FetchActiveRules returns all active rules.
func (s *PostgresStore) FetchActiveRules(ctx context.Context) ([]Rule, error) {
	query := `SELECT ` + pgRuleColumns + ` FROM routing_rules WHERE status = $1`

	rows, err := s.pool.Query(ctx, query, StatusActive)
	if err != nil {
		return nil, apperrors.StoreUnavailableError("failed to fetch active rules", err)
	}
	defer rows.Close()

	var result []Rule
	for rows.Next() {
		rule, err := scanPgRule(rows)
		if err != nil {
			return nil, apperrors.StoreUnavailableError("failed to scan rule", err)
		}
		result = append(result, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.StoreUnavailableError("failed to read rule rows", err)
	}

	return result, nil
}

// CreateRule inserts a rule, defaulting a zero priority to the rule id.
func (s *PostgresStore) CreateRule(ctx context.Context, rule *Rule) error {
	if rule.DestinationMethod == "" {
		rule.DestinationMethod = "POST"
	}
	if rule.Status == "" {
		rule.Status = StatusActive
	}

	query := `INSERT INTO routing_rules (name, source_address, destination_url, destination_method, priority, status)
			  VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`

	err := s.pool.QueryRow(ctx, query, rule.Name, strings.ToLower(rule.SourceAddress),
		rule.DestinationURL, rule.DestinationMethod, rule.Priority, rule.Status).Scan(&rule.ID)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}

	if rule.Priority == 0 {
		rule.Priority = int(rule.ID)
		if _, err := s.pool.Exec(ctx, `UPDATE routing_rules SET priority = $1 WHERE id = $2`, rule.Priority, rule.ID); err != nil {
			return fmt.Errorf("failed to set default priority: %w", err)
		}
	}

	return nil
}

// GetRule returns one rule by id.
func (s *PostgresStore) GetRule(ctx context.Context, id int64) (*Rule, error) {
	query := `SELECT ` + pgRuleColumns + ` FROM routing_rules WHERE id = $1`

	rule, err := scanPgRule(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFoundError("rule")
		}
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	return rule, nil
}

// ListRules returns all rules ordered by priority, then id.
func (s *PostgresStore) ListRules(ctx context.Context) ([]Rule, error) {
	query := `SELECT ` + pgRuleColumns + ` FROM routing_rules ORDER BY priority ASC, id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var result []Rule
	for rows.Next() {
		rule, err := scanPgRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		result = append(result, *rule)
	}

	return result, rows.Err()
}

// UpdateRule updates an existing rule by id.
func (s *PostgresStore) UpdateRule(ctx context.Context, rule *Rule) error {
	query := `UPDATE routing_rules SET name = $1, source_address = $2, destination_url = $3,
			  destination_method = $4, priority = $5, status = $6, updated_at = now()
			  WHERE id = $7`

	tag, err := s.pool.Exec(ctx, query, rule.Name, strings.ToLower(rule.SourceAddress),
		rule.DestinationURL, rule.DestinationMethod, rule.Priority, rule.Status, rule.ID)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFoundError("rule")
	}

	return nil
}

// DeleteRule removes a rule by id.
func (s *PostgresStore) DeleteRule(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM routing_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFoundError("rule")
	}

	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
