// Package classify maps a contact's CRM labels to a sync outcome.
//
// The decision is a strict priority chain expressed as an ordered rule table;
// only the first matching rule fires. A contact can carry both a stale "cold"
// label and a new "active" label during the window between sale and lead
// cleanup, so active status must always win.
package classify

import "strings"

// Outcome is the classification result for a label set.
type Outcome string

const (
	ActiveClient    Outcome = "active-client"
	GenericCustomer Outcome = "generic-customer"
	ColdLead        Outcome = "cold-lead"
	Excluded        Outcome = "excluded"
)

// Config holds the label rule tables. Active labels match exactly;
// customer and cold families match by substring. All matching is
// case-insensitive.
type Config struct {
	ActiveLabels       []string
	CustomerSubstrings []string
	ColdSubstrings     []string
}

type rule struct {
	match   func(labels []string) bool
	outcome Outcome
}

// Classifier classifies label sets against configured rule tables.
type Classifier struct {
	rules []rule
}

// New builds a classifier from the given rule configuration.
func New(cfg Config) *Classifier {
	active := lowerAll(cfg.ActiveLabels)
	customer := lowerAll(cfg.CustomerSubstrings)
	cold := lowerAll(cfg.ColdSubstrings)

	// Priority order: active > customer > cold. Keep this a flat table so
	// the ordering stays auditable.
	return &Classifier{rules: []rule{
		{matchExact(active), ActiveClient},
		{matchSubstring(customer), GenericCustomer},
		{matchSubstring(cold), ColdLead},
	}}
}

// Classify returns the outcome for the given label set. Labels with no
// recognized marker yield Excluded.
func (c *Classifier) Classify(labels []string) Outcome {
	normalized := make([]string, 0, len(labels))
	for _, l := range labels {
		normalized = append(normalized, strings.ToLower(strings.TrimSpace(l)))
	}
	for _, r := range c.rules {
		if r.match(normalized) {
			return r.outcome
		}
	}
	return Excluded
}

func matchExact(set []string) func([]string) bool {
	members := make(map[string]struct{}, len(set))
	for _, s := range set {
		members[s] = struct{}{}
	}
	return func(labels []string) bool {
		for _, l := range labels {
			if _, ok := members[l]; ok {
				return true
			}
		}
		return false
	}
}

func matchSubstring(subs []string) func([]string) bool {
	return func(labels []string) bool {
		for _, l := range labels {
			for _, sub := range subs {
				if strings.Contains(l, sub) {
					return true
				}
			}
		}
		return false
	}
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
