package sorter

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"dicomsort/internal/failure"
	"dicomsort/internal/metadata"
)

// AvailableFields returns the field names usable in templates, taken from the
// first recognized file under roots plus every derived field. It fails with
// failure.ErrNotFound when no file is recognized.
func AvailableFields(ctx context.Context, decoder Decoder, roots []string) ([]string, error) {
	entries, _, err := Enumerate(roots)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := decoder.Decode(ctx, entry.Path)
		if err != nil {
			if errors.Is(err, failure.ErrNotRecognized) {
				continue
			}
			return nil, err
		}
		seen := make(map[string]struct{})
		var names []string
		for _, name := range append(rec.Names(), metadata.DerivedFields()...) {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
		sort.Strings(names)
		return names, nil
	}
	return nil, fmt.Errorf("%w: no recognized file under %v", failure.ErrNotFound, roots)
}
