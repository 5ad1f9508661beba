package sorter

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"dicomsort/internal/failure"
)

// Entry is one enumerated source file.
type Entry struct {
	// Root is the source root the file was found under.
	Root string
	Path string
	// Relative is Path relative to Root.
	Relative string
}

// Unreadable is a path the walk could not read. Nothing below it is
// enumerated. Err carries failure.ErrUnreadable.
type Unreadable struct {
	Path string
	Err  error
}

var walkDir = filepath.WalkDir

// Enumerate walks every root and returns all regular files, sorted by path
// within each root. Directories listed in skip (and everything below them)
// are not descended into, which keeps a target nested inside a source from
// being re-sorted. A root that is itself a file yields that file.
//
// Paths that cannot be read during the walk are returned as Unreadable and
// the walk continues with their siblings. Only a root that cannot be
// resolved at all is an error.
func Enumerate(roots []string, skip ...string) ([]Entry, []Unreadable, error) {
	skipped := make(map[string]struct{}, len(skip))
	for _, dir := range skip {
		if dir = strings.TrimSpace(dir); dir != "" {
			skipped[filepath.Clean(dir)] = struct{}{}
		}
	}

	var (
		entries    []Entry
		unreadable []Unreadable
	)
	seen := make(map[string]struct{})
	for _, root := range roots {
		root = filepath.Clean(root)
		info, err := os.Stat(root)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: source %s: %w", failure.ErrConfiguration, root, err)
		}
		if !info.IsDir() {
			if _, dup := seen[root]; !dup {
				seen[root] = struct{}{}
				entries = append(entries, Entry{Root: filepath.Dir(root), Path: root, Relative: filepath.Base(root)})
			}
			continue
		}
		var found []Entry
		err = walkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				unreadable = append(unreadable, Unreadable{
					Path: path,
					Err:  failure.Wrap(failure.ErrUnreadable, "enumerate", "read", path, walkErr),
				})
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if _, ok := skipped[path]; ok && path != root {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			if _, dup := seen[path]; dup {
				return nil
			}
			seen[path] = struct{}{}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			found = append(found, Entry{Root: root, Path: path, Relative: rel})
			return nil
		})
		if err != nil {
			return nil, nil, fmt.Errorf("walk %s: %w", root, err)
		}
		sort.Slice(found, func(i, j int) bool { return found[i].Path < found[j].Path })
		entries = append(entries, found...)
	}
	return entries, unreadable, nil
}
