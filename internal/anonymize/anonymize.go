// Package anonymize rewrites configured fields of a record before it is
// persisted. Replacement values are templates evaluated against the record
// itself, so a rule can copy one field into another (PatientName ← PatientID).
package anonymize

import (
	"fmt"
	"sort"
	"strings"

	"dicomsort/internal/failure"
	"dicomsort/internal/metadata"
	"dicomsort/internal/template"
)

// Rules maps a field name to its replacement template.
type Rules map[string]string

// ParseRules converts a loosely typed mapping into Rules. Every value must be
// a string holding a well-formed template.
func ParseRules(raw map[string]any) (Rules, error) {
	if raw == nil {
		return nil, nil
	}
	rules := make(Rules, len(raw))
	for field, value := range raw {
		field = strings.TrimSpace(field)
		if field == "" {
			return nil, fmt.Errorf("%w: anonymization: empty field name", failure.ErrConfiguration)
		}
		tmpl, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: anonymization.%s: expected string template, got %T", failure.ErrConfiguration, field, value)
		}
		if err := template.Validate(tmpl); err != nil {
			return nil, fmt.Errorf("anonymization.%s: %w", field, err)
		}
		rules[field] = tmpl
	}
	return rules, nil
}

// Anonymizer applies a fixed rule set. It holds no per-record state and is
// safe for concurrent use.
type Anonymizer struct {
	rules  Rules
	fields []string
}

// New copies rules so later changes by the caller have no effect.
func New(rules Rules) *Anonymizer {
	a := &Anonymizer{rules: make(Rules, len(rules))}
	for field, tmpl := range rules {
		a.rules[field] = tmpl
		a.fields = append(a.fields, field)
	}
	sort.Strings(a.fields)
	return a
}

// Enabled reports whether any rule is configured.
func (a *Anonymizer) Enabled() bool {
	return a != nil && len(a.rules) > 0
}

// Fields returns the configured field names in sorted order.
func (a *Anonymizer) Fields() []string {
	if a == nil {
		return nil
	}
	return append([]string(nil), a.fields...)
}

// Apply rewrites every configured field present on the record and returns the
// names it changed. Fields absent from the record are skipped. All
// replacements are evaluated against the record as it was before any rule ran,
// so results do not depend on rule order.
func (a *Anonymizer) Apply(acc *metadata.Accessor) ([]string, error) {
	if !a.Enabled() {
		return nil, nil
	}
	rec := acc.Record()
	type replacement struct {
		field string
		value string
	}
	pending := make([]replacement, 0, len(a.fields))
	for _, field := range a.fields {
		if !rec.Has(field) {
			continue
		}
		value, err := template.Expand(a.rules[field], acc)
		if err != nil {
			return nil, failure.Wrap(failure.ErrAnonymization, "anonymize", field, "Replacement template could not be resolved", err)
		}
		pending = append(pending, replacement{field: field, value: value})
	}
	changed := make([]string, 0, len(pending))
	for _, r := range pending {
		if rec.Set(r.field, r.value) {
			changed = append(changed, r.field)
		}
	}
	return changed, nil
}
