package rules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	apperrors "email-dispatcher/internal/common/errors"
)

// SQLiteStore persists routing rules in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) a SQLite-backed rule store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS routing_rules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			source_address TEXT NOT NULL,
			destination_url TEXT NOT NULL,
			destination_method TEXT NOT NULL DEFAULT 'POST',
			priority INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'active',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (source_address, destination_url)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_routing_rules_source ON routing_rules(source_address)`,
		`CREATE INDEX IF NOT EXISTS idx_routing_rules_status ON routing_rules(status)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration query: %w", err)
		}
	}

	return nil
}

const sqliteRuleColumns = `id, name, source_address, destination_url, destination_method, priority, status, created_at, updated_at`

func scanRule(row interface{ Scan(...interface{}) error }) (*Rule, error) {
	rule := &Rule{}
	err := row.Scan(&rule.ID, &rule.Name, &rule.SourceAddress, &rule.DestinationURL,
		&rule.DestinationMethod, &rule.Priority, &rule.Status, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// FetchActiveRules returns all active rules. The caller sorts; the store
// just filters on status.
func (s *SQLiteStore) FetchActiveRules(ctx context.Context) ([]Rule, error) {
	query := `SELECT ` + sqliteRuleColumns + ` FROM routing_rules WHERE status = ?`

	rows, err := s.db.QueryContext(ctx, query, StatusActive)
	if err != nil {
		return nil, apperrors.StoreUnavailableError("failed to fetch active rules", err)
	}
	defer rows.Close()

	var result []Rule
	for rows.Next() {
		rule, err := scanRule(rows)
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

// CreateRule inserts a rule. A zero priority defaults to the assigned
// rule id, giving insertion-order tie-break.
func (s *SQLiteStore) CreateRule(ctx context.Context, rule *Rule) error {
	if rule.DestinationMethod == "" {
		rule.DestinationMethod = "POST"
	}
	if rule.Status == "" {
		rule.Status = StatusActive
	}

	query := `INSERT INTO routing_rules (name, source_address, destination_url, destination_method, priority, status)
			  VALUES (?, ?, ?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query, rule.Name, strings.ToLower(rule.SourceAddress),
		rule.DestinationURL, rule.DestinationMethod, rule.Priority, rule.Status)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	rule.ID = id

	if rule.Priority == 0 {
		rule.Priority = int(id)
		if _, err := s.db.ExecContext(ctx, `UPDATE routing_rules SET priority = ? WHERE id = ?`, rule.Priority, id); err != nil {
			return fmt.Errorf("failed to set default priority: %w", err)
		}
	}

	return nil
}

// GetRule returns one rule by id.
func (s *SQLiteStore) GetRule(ctx context.Context, id int64) (*Rule, error) {
	query := `SELECT ` + sqliteRuleColumns + ` FROM routing_rules WHERE id = ?`

	rule, err := scanRule(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundError("rule")
		}
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	return rule, nil
}

// ListRules returns all rules ordered by priority, then id.
func (s *SQLiteStore) ListRules(ctx context.Context) ([]Rule, error) {
	query := `SELECT ` + sqliteRuleColumns + ` FROM routing_rules ORDER BY priority ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var result []Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		result = append(result, *rule)
	}

	return result, rows.Err()
}

// UpdateRule updates an existing rule by id.
func (s *SQLiteStore) UpdateRule(ctx context.Context, rule *Rule) error {
	query := `UPDATE routing_rules SET name = ?, source_address = ?, destination_url = ?,
			  destination_method = ?, priority = ?, status = ?, updated_at = CURRENT_TIMESTAMP
			  WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, rule.Name, strings.ToLower(rule.SourceAddress),
		rule.DestinationURL, rule.DestinationMethod, rule.Priority, rule.Status, rule.ID)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return apperrors.NotFoundError("rule")
	}

	return nil
}

// DeleteRule removes a rule by id.
func (s *SQLiteStore) DeleteRule(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM routing_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return apperrors.NotFoundError("rule")
	}

	return nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
