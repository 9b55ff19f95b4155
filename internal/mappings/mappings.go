package mappings

import (
	"fmt"

	"k8s.io/apimachinery/pkg/util/sets"
)

// TypeRule maps a single source label to a Jira issue type.
type TypeRule struct {
	Label string `yaml:"label"`
	Type  string `yaml:"type"`
}

// TypeTable resolves a label set to a Jira issue type. Rules are ordered and the
// first rule whose label is present in the set wins; inputs matching no rule
// resolve to the default.
type TypeTable struct {
	Rules   []TypeRule `yaml:"rules"`
	Default string     `yaml:"default"`
}

// Validate rejects tables without a default. A missing default is a
// configuration error and must be caught before any record is processed.
func (t TypeTable) Validate() error {
	if t.Default == "" {
		return fmt.Errorf("issue type mapping has no default")
	}
	for i, rule := range t.Rules {
		if rule.Label == "" || rule.Type == "" {
			return fmt.Errorf("issue type mapping rule %d is incomplete", i)
		}
	}
	return nil
}

// Resolve returns the issue type for the given label set.
func (t TypeTable) Resolve(labels sets.Set[string]) string {
	for _, rule := range t.Rules {
		if labels.Has(rule.Label) {
			return rule.Type
		}
	}
	return t.Default
}

// StatusRule maps a single board status value to a Jira status name.
type StatusRule struct {
	Value  string `yaml:"value"`
	Status string `yaml:"status"`
}

// StatusTable resolves a board status value to a Jira status. Matching is exact
// and case-sensitive; unmatched values resolve to the default.
type StatusTable struct {
	Rules   []StatusRule `yaml:"rules"`
	Default string       `yaml:"default"`
}

// Validate rejects tables without a default.
func (t StatusTable) Validate() error {
	if t.Default == "" {
		return fmt.Errorf("status mapping has no default")
	}
	for i, rule := range t.Rules {
		if rule.Value == "" || rule.Status == "" {
			return fmt.Errorf("status mapping rule %d is incomplete", i)
		}
	}
	return nil
}

// Resolve returns the Jira status for the given board status value. An empty
// value (record not on the board) resolves to the default.
func (t StatusTable) Resolve(value string) string {
	for _, rule := range t.Rules {
		if rule.Value == value {
			return rule.Status
		}
	}
	return t.Default
}
