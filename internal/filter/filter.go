// Package filter decides whether a record should be sorted based on
// configured field matches.
//
// Two modes exist. An include spec ("ignore all except") accepts a record only
// when every configured field matches; a field matches when its value contains
// the expected text case-insensitively, or, for a list of expectations, when it
// contains any of them. An exclude spec ("ignore") rejects a record as soon as
// one configured field equals its expected value exactly. When an include spec
// is configured the exclude spec is not consulted.
package filter

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"dicomsort/internal/failure"
	"dicomsort/internal/record"
)

// Match holds the expected value(s) for one field.
type Match struct {
	Values []string
	// List is true when the configuration supplied a list rather than a
	// single string.
	List bool
}

// Spec maps field names to expectations.
type Spec map[string]Match

// Lookup resolves record fields for matching.
type Lookup interface {
	Lookup(field string) (any, error)
}

// ParseSpec converts a loosely typed mapping (as decoded from TOML or YAML)
// into a Spec. Each value must be a string or a list of strings.
func ParseSpec(name string, raw map[string]any) (Spec, error) {
	if raw == nil {
		return nil, nil
	}
	spec := make(Spec, len(raw))
	for field, value := range raw {
		field = strings.TrimSpace(field)
		if field == "" {
			return nil, fmt.Errorf("%w: %s: empty field name", failure.ErrConfiguration, name)
		}
		switch v := value.(type) {
		case string:
			spec[field] = Match{Values: []string{v}}
		case []string:
			spec[field] = Match{Values: append([]string(nil), v...), List: true}
		case []any:
			values := make([]string, 0, len(v))
			for i, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("%w: %s.%s[%d]: expected string, got %T", failure.ErrConfiguration, name, field, i, item)
				}
				values = append(values, s)
			}
			spec[field] = Match{Values: values, List: true}
		default:
			return nil, fmt.Errorf("%w: %s.%s: expected string or list of strings, got %T", failure.ErrConfiguration, name, field, value)
		}
	}
	return spec, nil
}

// Decision explains the outcome of Evaluate.
type Decision struct {
	Accept bool
	Field  string
	Reason string
}

// Policy evaluates include/exclude specs. A Policy is immutable and safe for
// concurrent use.
type Policy struct {
	include Spec
	exclude Spec
	fields  []string
}

// NewPolicy builds a policy. Either spec may be nil.
func NewPolicy(include, exclude Spec) *Policy {
	p := &Policy{include: copySpec(include), exclude: copySpec(exclude)}
	active := p.include
	if len(active) == 0 {
		active = p.exclude
	}
	for field := range active {
		p.fields = append(p.fields, field)
	}
	sort.Strings(p.fields)
	return p
}

// ShouldProcess reports whether the record passes the policy.
func (p *Policy) ShouldProcess(src Lookup) bool {
	return p.Evaluate(src).Accept
}

// Evaluate applies the policy and describes the first deciding field.
func (p *Policy) Evaluate(src Lookup) Decision {
	if p == nil {
		return Decision{Accept: true}
	}
	if len(p.include) > 0 {
		for _, field := range p.fields {
			match := p.include[field]
			value, err := src.Lookup(field)
			if err != nil {
				return Decision{Field: field, Reason: "field missing"}
			}
			if !containsAny(record.Format(value), match.Values) {
				return Decision{Field: field, Reason: "no expected value matched"}
			}
		}
		return Decision{Accept: true}
	}
	for _, field := range p.fields {
		match := p.exclude[field]
		value, err := src.Lookup(field)
		if err != nil {
			continue
		}
		text := record.Format(value)
		for _, want := range match.Values {
			if text == want {
				return Decision{Field: field, Reason: fmt.Sprintf("value %q excluded", want)}
			}
		}
	}
	return Decision{Accept: true}
}

// containsAny reports whether value contains any candidate after Unicode
// case folding.
func containsAny(value string, candidates []string) bool {
	folded := cases.Fold().String(value)
	for _, c := range candidates {
		if strings.Contains(folded, cases.Fold().String(c)) {
			return true
		}
	}
	return false
}

func copySpec(in Spec) Spec {
	if len(in) == 0 {
		return nil
	}
	out := make(Spec, len(in))
	for k, v := range in {
		out[k] = Match{Values: append([]string(nil), v.Values...), List: v.List}
	}
	return out
}
