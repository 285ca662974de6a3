package routing

import (
	"strings"

	"email-dispatcher/internal/email"
)

// Destination is one webhook target resolved from a matched rule. Two
// rules pointing at the same URL produce two destinations; the consuming
// webhook may depend on the rule identity.
type Destination struct {
	RuleID   int64  `json:"rule_id"`
	RuleName string `json:"rule_name"`
	URL      string `json:"url"`
	Method   string `json:"method"`
	Priority int    `json:"priority"`
}

// Match resolves an inbound email to its webhook destinations.
//
// Every recipient in the email's To list is compared against each rule's
// source address (case-insensitive, exact match). Matches are returned in
// snapshot order, which is (priority, id) order, with duplicate
// (rule id, URL) pairs removed. With dedupeURLs set, deliveries to the
// same URL via different rules are also collapsed, first rule wins.
//
// An empty result is not an error; the caller decides what a job with no
// destinations means.
func Match(msg *email.ParsedEmail, snapshot *Snapshot, dedupeURLs bool) []Destination {
	if msg == nil || snapshot == nil || len(snapshot.Rules) == 0 || len(msg.To) == 0 {
		return nil
	}

	seenURLs := make(map[string]bool)
	var matched []Destination

	// Outer loop over rules keeps the result in snapshot (priority)
	// order and yields each rule at most once even when the same
	// address appears twice in To.
	for i := range snapshot.Rules {
		rule := &snapshot.Rules[i]
		if !rule.Active() {
			continue
		}

		if !matchesAnyRecipient(rule.SourceAddress, msg.To) {
			continue
		}

		if dedupeURLs && seenURLs[rule.DestinationURL] {
			continue
		}
		seenURLs[rule.DestinationURL] = true

		method := rule.DestinationMethod
		if method == "" {
			method = "POST"
		}

		matched = append(matched, Destination{
			RuleID:   rule.ID,
			RuleName: rule.Name,
			URL:      rule.DestinationURL,
			Method:   method,
			Priority: rule.Priority,
		})
	}

	return matched
}

func matchesAnyRecipient(sourceAddress string, recipients []string) bool {
	for _, recipient := range recipients {
		if strings.EqualFold(sourceAddress, strings.TrimSpace(recipient)) {
			return true
		}
	}
	return false
}
