package destination

import (
	"path/filepath"
	"strings"

	"dicomsort/internal/metadata"
	"dicomsort/internal/template"
	"dicomsort/internal/textutil"
)

const (
	DefaultPlaceholder      = "UNKNOWN"
	DefaultCollisionSuffix  = ".copy"
	DefaultFilenameTemplate = "%(ImageType)s (%(InstanceNumber)04d)%(FileExtension)s"
)

// Options configures a Builder.
type Options struct {
	Root string
	// SortOrder lists field names or templates, outermost directory first.
	// An empty order mirrors each file's path relative to its source root.
	SortOrder []string
	// FilenameTemplate names the file; empty keeps the source base name.
	FilenameTemplate string
	Placeholder      string
	CollisionSuffix  string
}

// Builder computes destination paths. It is safe for concurrent use.
type Builder struct {
	root        string
	segments    []string
	filename    string
	placeholder string
	suffix      string
	res         *Reservations
}

// NewBuilder normalizes opts. res may be shared across builders; nil creates
// a private set.
func NewBuilder(opts Options, res *Reservations) *Builder {
	if res == nil {
		res = NewReservations()
	}
	placeholder := strings.TrimSpace(opts.Placeholder)
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	suffix := opts.CollisionSuffix
	if suffix == "" {
		suffix = DefaultCollisionSuffix
	}
	order := NormalizeSortOrder(opts.SortOrder)
	segments := make([]string, len(order))
	for i, entry := range order {
		segments[i] = SegmentTemplate(entry)
	}
	return &Builder{
		root:        opts.Root,
		segments:    segments,
		filename:    strings.TrimSpace(opts.FilenameTemplate),
		placeholder: placeholder,
		suffix:      suffix,
		res:         res,
	}
}

// NormalizeSortOrder drops blank entries and moves the series label, if
// present anywhere, to the last position.
func NormalizeSortOrder(order []string) []string {
	out := make([]string, 0, len(order))
	var series []string
	for _, entry := range order {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if isSeriesLabel(entry) {
			series = append(series, entry)
			continue
		}
		out = append(out, entry)
	}
	return append(out, series...)
}

func isSeriesLabel(entry string) bool {
	return entry == metadata.FieldSeriesDescription ||
		entry == "%("+metadata.FieldSeriesDescription+")s"
}

// SegmentTemplate turns a bare sort_order field name into a string token and
// returns templates unchanged.
func SegmentTemplate(entry string) string {
	if strings.Contains(entry, "%") {
		return entry
	}
	return "%(" + entry + ")s"
}

// Mirror reports whether the builder reproduces source-relative layout.
func (b *Builder) Mirror() bool {
	return len(b.segments) == 0
}

// Directory resolves the destination directory for a record.
func (b *Builder) Directory(acc *metadata.Accessor) string {
	parts := make([]string, 0, len(b.segments)+1)
	parts = append(parts, b.root)
	for _, seg := range b.segments {
		parts = append(parts, b.segment(seg, acc))
	}
	return filepath.Join(parts...)
}

func (b *Builder) segment(tmpl string, acc *metadata.Accessor) string {
	resolved, err := template.Resolve(tmpl, acc)
	if err != nil {
		return b.placeholder
	}
	clean := textutil.SanitizeFileName(resolved)
	if clean == "" {
		return b.placeholder
	}
	return clean
}

// Filename resolves the destination base name for a record.
func (b *Builder) Filename(acc *metadata.Accessor) string {
	original := filepath.Base(acc.Record().Path)
	if b.filename == "" {
		return original
	}
	resolved, err := template.Resolve(b.filename, acc)
	if err != nil {
		return original
	}
	clean := textutil.SanitizeFileName(resolved)
	if clean == "" {
		return original
	}
	return clean
}

// Plan returns the unclaimed destination for a record. relative is the
// source path relative to its source root and is used only in mirror mode.
func (b *Builder) Plan(acc *metadata.Accessor, relative string) string {
	if b.Mirror() {
		rel := filepath.Clean(relative)
		if rel == "." || rel == "" || filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			rel = filepath.Base(acc.Record().Path)
		}
		return filepath.Join(b.root, rel)
	}
	return filepath.Join(b.Directory(acc), b.Filename(acc))
}

// Build plans and claims a destination that does not collide with an
// existing file or another worker's claim.
func (b *Builder) Build(acc *metadata.Accessor, relative string) (string, error) {
	return b.res.Claim(b.Plan(acc, relative), b.suffix)
}

// Release gives up a claim, for example after a failed write.
func (b *Builder) Release(path string) {
	b.res.Release(path)
}
