package rules

import (
	"context"
	"fmt"

	"email-dispatcher/internal/config"
)

// Store is the persistence contract for routing rules.
//
// FetchActiveRules is the single read the routing table depends on; it
// must return a store-unavailable error on connectivity problems rather
// than panicking, so the table can keep its previous snapshot. The CRUD
// operations back the management API.
type Store interface {
	// FetchActiveRules returns all rules with status "active".
	FetchActiveRules(ctx context.Context) ([]Rule, error)

	CreateRule(ctx context.Context, rule *Rule) error
	GetRule(ctx context.Context, id int64) (*Rule, error)
	ListRules(ctx context.Context) ([]Rule, error)
	UpdateRule(ctx context.Context, rule *Rule) error
	DeleteRule(ctx context.Context, id int64) error

	Close() error
}

// NewStore creates a rule store for the configured database backend.
func NewStore(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.DatabaseType {
	case "sqlite":
		return NewSQLiteStore(cfg.DatabasePath)
	case "postgres", "postgresql":
		return NewPostgresStore(ctx, cfg.PostgresDSN())
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.DatabaseType)
	}
}
