package metadata

import (
	"fmt"
	"sort"

	"dicomsort/internal/failure"
	"dicomsort/internal/record"
)

// Options tunes derived-field computation.
type Options struct {
	// SeriesFirst renders the series label as Series0003_Description.
	SeriesFirst bool
	// DefaultExtension is used when the source file name has no suffix.
	DefaultExtension string
}

// DefaultExtension is the file extension reported for files without one.
const DefaultExtension = ".dcm"

type derivedFunc func(a *Accessor) (any, error)

var derived = map[string]derivedFunc{
	FieldImageType:         (*Accessor).imageType,
	FieldFileExtension:     (*Accessor).fileExtension,
	FieldSeriesDescription: (*Accessor).seriesLabel,
	FieldPatientAge:        (*Accessor).patientAge,
}

// Accessor resolves field names against one record.
type Accessor struct {
	rec  *record.Record
	opts Options
}

// New wraps rec. The accessor may mutate rec when a derived computation has a
// documented side effect (see ImageType).
func New(rec *record.Record, opts Options) *Accessor {
	if opts.DefaultExtension == "" {
		opts.DefaultExtension = DefaultExtension
	}
	return &Accessor{rec: rec, opts: opts}
}

// Record returns the wrapped record.
func (a *Accessor) Record() *record.Record {
	return a.rec
}

// Get returns the derived value when field names a derived field, otherwise
// the raw value. Missing fields yield an error matching failure.ErrNotFound.
func (a *Accessor) Get(field string) (any, error) {
	if fn, ok := derived[field]; ok {
		return fn(a)
	}
	return a.Raw(field)
}

// Lookup prefers the raw value and falls back to a derived one. Matching
// policies use it so that configured values compare against what is stored
// in the file.
func (a *Accessor) Lookup(field string) (any, error) {
	if v, ok := a.rec.Get(field); ok {
		return v, nil
	}
	if fn, ok := derived[field]; ok {
		return fn(a)
	}
	return nil, notFound(field)
}

// Raw returns a field stored in the record, ignoring derived fields.
func (a *Accessor) Raw(field string) (any, error) {
	v, ok := a.rec.Get(field)
	if !ok {
		return nil, notFound(field)
	}
	return v, nil
}

// GetString is Get rendered as text.
func (a *Accessor) GetString(field string) (string, error) {
	v, err := a.Get(field)
	if err != nil {
		return "", err
	}
	return record.Format(v), nil
}

// IsDerived reports whether name is computed rather than read from the record.
func IsDerived(name string) bool {
	_, ok := derived[name]
	return ok
}

// DerivedFields lists derived field names in sorted order.
func DerivedFields() []string {
	names := make([]string, 0, len(derived))
	for name := range derived {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func notFound(field string) error {
	return fmt.Errorf("%w: %s", failure.ErrNotFound, field)
}
