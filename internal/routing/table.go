// Package routing maintains the live routing table and matches inbound
// email against it.
//
// The table is a publish-once-read-many structure: refreshes build a new
// immutable Snapshot and install it with an atomic pointer swap, so the
// matcher never blocks and never observes a partially built table. A
// failed refresh keeps the last known good snapshot.
package routing

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"email-dispatcher/internal/common/logging"
	"email-dispatcher/internal/rules"
)

// Snapshot is an immutable view of the active routing rules, sorted by
// (priority, id). It is never mutated after Build.
type Snapshot struct {
	Rules   []rules.Rule
	BuiltAt time.Time
}

// BuildSnapshot sorts the given rules by priority ascending, ties broken
// by id ascending, and stamps the result.
func BuildSnapshot(active []rules.Rule, now time.Time) *Snapshot {
	sorted := make([]rules.Rule, len(active))
	copy(sorted, active)

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		return sorted[i].ID < sorted[j].ID
	})

	return &Snapshot{Rules: sorted, BuiltAt: now}
}

// Table holds the published snapshot and refreshes it from the rule
// store on a fixed period.
type Table struct {
	store    rules.Store
	current  atomic.Pointer[Snapshot]
	interval time.Duration
	logger   logging.Logger
	cron     *cron.Cron

	refreshSuccesses atomic.Int64
	refreshFailures  atomic.Int64
}

// NewTable creates a routing table seeded with an empty snapshot. The
// table matches nothing until the first successful Refresh.
func NewTable(store rules.Store, interval time.Duration, logger logging.Logger) *Table {
	t := &Table{
		store:    store,
		interval: interval,
		logger:   logger,
	}
	t.current.Store(&Snapshot{BuiltAt: time.Now()})
	return t
}

// Current returns the published snapshot. It is O(1), never blocks and
// never returns nil.
func (t *Table) Current() *Snapshot {
	return t.current.Load()
}

// Refresh reads the full active rule set from the store and atomically
// installs a new snapshot. On store failure the previous snapshot stays
// published and the error is returned for observability; callers treat
// it as non-fatal.
func (t *Table) Refresh(ctx context.Context) error {
	active, err := t.store.FetchActiveRules(ctx)
	if err != nil {
		t.refreshFailures.Add(1)
		t.logger.Warn("Routing table refresh failed, keeping previous snapshot",
			logging.Err(err),
			logging.Int("rules", len(t.Current().Rules)),
		)
		return err
	}

	snapshot := BuildSnapshot(active, time.Now())
	t.current.Store(snapshot)
	t.refreshSuccesses.Add(1)

	t.logger.Debug("Routing table refreshed",
		logging.Int("rules", len(snapshot.Rules)),
		logging.Time("built_at", snapshot.BuiltAt),
	)
	return nil
}

// Start schedules periodic refreshes. Refresh errors are swallowed here;
// they are already counted and logged by Refresh.
func (t *Table) Start(ctx context.Context) error {
	t.cron = cron.New()
	_, err := t.cron.AddFunc("@every "+t.interval.String(), func() {
		_ = t.Refresh(ctx)
	})
	if err != nil {
		return err
	}
	t.cron.Start()
	return nil
}

// Stop halts the periodic refresh. A refresh already in flight finishes.
func (t *Table) Stop() {
	if t.cron != nil {
		t.cron.Stop()
	}
}

// Stats reports refresh counters and the size of the current snapshot.
func (t *Table) Stats() TableStats {
	snapshot := t.Current()
	return TableStats{
		Rules:            len(snapshot.Rules),
		SnapshotBuiltAt:  snapshot.BuiltAt,
		RefreshSuccesses: t.refreshSuccesses.Load(),
		RefreshFailures:  t.refreshFailures.Load(),
	}
}

// TableStats is the observability view of the routing table.
type TableStats struct {
	Rules            int       `json:"rules"`
	SnapshotBuiltAt  time.Time `json:"snapshot_built_at"`
	RefreshSuccesses int64     `json:"refresh_successes"`
	RefreshFailures  int64     `json:"refresh_failures"`
}
