// Package record holds the decoded metadata of one source file.
package record

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MultiValueSeparator joins multi-valued fields when rendered as text.
const MultiValueSeparator = `\`

// Record is an ordered mapping from field name to value for a single file.
// Values are strings, integers, floats, dates (time.Time) or lists of those.
//
// A Record is owned by exactly one worker; it is not safe for concurrent use.
type Record struct {
	Path string

	names    []string
	values   map[string]any
	modified map[string]struct{}
	handle   any
}

// New returns an empty record for the file at path.
func New(path string) *Record {
	return &Record{
		Path:     path,
		values:   make(map[string]any),
		modified: make(map[string]struct{}),
	}
}

// Add appends a decoded field. Re-adding a name replaces the value in place
// without marking it modified.
func (r *Record) Add(name string, value any) {
	if _, ok := r.values[name]; !ok {
		r.names = append(r.names, name)
	}
	r.values[name] = value
}

// Get returns the raw value stored for name.
func (r *Record) Get(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Has reports whether the record carries the named field.
func (r *Record) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// Set overwrites an existing field and marks it modified. Fields the record
// does not carry are left alone and Set reports false.
func (r *Record) Set(name string, value any) bool {
	if _, ok := r.values[name]; !ok {
		return false
	}
	r.values[name] = value
	r.modified[name] = struct{}{}
	return true
}

// Put sets a field whether or not it exists and marks it modified.
func (r *Record) Put(name string, value any) {
	r.Add(name, value)
	r.modified[name] = struct{}{}
}

// Names returns field names in decode order.
func (r *Record) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Modified returns the names of fields overwritten through Set, in decode order.
func (r *Record) Modified() []string {
	if len(r.modified) == 0 {
		return nil
	}
	out := make([]string, 0, len(r.modified))
	for _, name := range r.names {
		if _, ok := r.modified[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// IsModified reports whether any field was overwritten.
func (r *Record) IsModified() bool {
	return len(r.modified) > 0
}

// Handle returns the codec-specific payload attached at decode time.
func (r *Record) Handle() any {
	return r.handle
}

// SetHandle attaches a codec-specific payload (for example the parsed dataset)
// so the same codec can re-encode the record later.
func (r *Record) SetHandle(h any) {
	r.handle = h
}

// Clone returns a private copy. Slice values are copied; the handle is shared.
func (r *Record) Clone() *Record {
	out := New(r.Path)
	for _, name := range r.names {
		out.Add(name, cloneValue(r.values[name]))
	}
	for name := range r.modified {
		out.modified[name] = struct{}{}
	}
	out.handle = r.handle
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case []string:
		return append([]string(nil), val...)
	case []int:
		return append([]int(nil), val...)
	case []float64:
		return append([]float64(nil), val...)
	default:
		return v
	}
}

// Format renders a field value as text. Lists are joined with the
// multi-value separator and dates use the compact YYYYMMDD form.
func Format(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return strings.Join(val, MultiValueSeparator)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint16:
		return strconv.FormatUint(uint64(val), 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case []int:
		parts := make([]string, len(val))
		for i, n := range val {
			parts[i] = strconv.Itoa(n)
		}
		return strings.Join(parts, MultiValueSeparator)
	case []float64:
		parts := make([]string, len(val))
		for i, f := range val {
			parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		return strings.Join(parts, MultiValueSeparator)
	case time.Time:
		return val.Format("20060102")
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(v)
	}
}

// Strings returns the elements of a multi-valued field. Single strings are
// split on the multi-value separator.
func Strings(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case []string:
		return append([]string(nil), val...)
	case string:
		if val == "" {
			return nil
		}
		return strings.Split(val, MultiValueSeparator)
	default:
		text := Format(v)
		if text == "" {
			return nil
		}
		return strings.Split(text, MultiValueSeparator)
	}
}

// Int converts a numeric or numeric-text value to an int.
func Int(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case uint16:
		return int(val), true
	case uint32:
		return int(val), true
	case float64:
		return int(val), true
	case []int:
		if len(val) == 0 {
			return 0, false
		}
		return val[0], true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			f, ferr := strconv.ParseFloat(strings.TrimSpace(val), 64)
			if ferr != nil {
				return 0, false
			}
			return int(f), true
		}
		return n, true
	case []string:
		if len(val) == 0 {
			return 0, false
		}
		return Int(val[0])
	default:
		return 0, false
	}
}

// Float converts a numeric or numeric-text value to a float64.
func Float(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case []float64:
		if len(val) == 0 {
			return 0, false
		}
		return val[0], true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	case []string:
		if len(val) == 0 {
			return 0, false
		}
		return Float(val[0])
	default:
		n, ok := Int(v)
		return float64(n), ok
	}
}
