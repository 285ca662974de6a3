// Package rules defines routing rule records and the store that persists
// them. The store is the mutable source of truth; the routing table reads
// it periodically and everything else goes through CRUD.
package rules

import "time"

// Rule statuses. Only active rules are eligible for matching.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Rule maps one source email address to one destination webhook.
type Rule struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	SourceAddress     string    `json:"source_address"`
	DestinationURL    string    `json:"destination_url"`
	DestinationMethod string    `json:"destination_method"`
	Priority          int       `json:"priority"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Active reports whether the rule is eligible for matching.
func (r *Rule) Active() bool {
	return r.Status == StatusActive
}
