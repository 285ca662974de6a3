// Package app wires the dispatch pipeline together and runs it.
package app

import (
	"context"

	"email-dispatcher/internal/common/logging"
	"email-dispatcher/internal/config"
	"email-dispatcher/internal/dispatch"
	"email-dispatcher/internal/handlers"
	"email-dispatcher/internal/pipeline"
	"email-dispatcher/internal/routing"
	"email-dispatcher/internal/rules"
)

// App holds the wired application components.
type App struct {
	Config       *config.Config
	Store        rules.Store
	Table        *routing.Table
	Queue        *dispatch.Queue
	Orchestrator *pipeline.Orchestrator
	Handlers     *handlers.Handlers
}

// New builds the application from configuration: rule store, routing
// table, dispatch queue and orchestrator.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	store, err := rules.NewStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger := logging.GetGlobalLogger()

	table := routing.NewTable(store, cfg.RuleRefreshInterval, logger)

	executor := dispatch.NewHTTPExecutor(cfg.DeliveryTimeout)

	var orchestrator *pipeline.Orchestrator
	queue := dispatch.NewQueue(dispatch.QueueConfig{
		Workers:     cfg.DispatchWorkers,
		MaxRetries:  cfg.MaxRetries,
		BackoffUnit: cfg.BackoffUnit,
		OnOutcome: func(outcome *dispatch.Outcome) {
			orchestrator.OnOutcome(outcome)
		},
	}, executor, logger)

	orchestrator = pipeline.NewOrchestrator(table, queue, cfg.DedupeDeliveries, logger)

	return &App{
		Config:       cfg,
		Store:        store,
		Table:        table,
		Queue:        queue,
		Orchestrator: orchestrator,
		Handlers:     handlers.New(store, orchestrator, table, queue),
	}, nil
}

// Start performs the synchronous startup refresh, begins periodic
// refreshes and launches the dispatch workers. A failed initial refresh
// is non-fatal: the table stays empty until a refresh succeeds.
func (a *App) Start(ctx context.Context) error {
	if err := a.Table.Refresh(ctx); err != nil {
		logging.Warn("Initial routing table refresh failed, starting with empty table",
			logging.Err(err),
		)
	}

	if err := a.Table.Start(ctx); err != nil {
		return err
	}

	a.Queue.Start(ctx)
	return nil
}

// Shutdown stops the refresh schedule and drains the dispatch queue.
func (a *App) Shutdown(ctx context.Context) error {
	a.Table.Stop()
	a.Queue.Stop()
	return a.Store.Close()
}
