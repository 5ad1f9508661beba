// Package persist places sorted files on the local filesystem.
package persist

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"dicomsort/internal/failure"
	"dicomsort/internal/fileutil"
	"dicomsort/internal/record"
)

// Encoder serializes a (possibly rewritten) record.
type Encoder interface {
	Encode(w io.Writer, rec *record.Record) error
}

// Local writes through internal/fileutil. Every create is exclusive: an
// existing destination is reported as an error, never replaced.
type Local struct {
	encoder  Encoder
	dirMode  os.FileMode
	fileMode os.FileMode
}

// NewLocal returns a persister that encodes rewritten records with enc.
func NewLocal(enc Encoder) *Local {
	return &Local{encoder: enc, dirMode: 0o755, fileMode: 0o644}
}

// MakeDirectories creates path and any missing parents.
func (l *Local) MakeDirectories(path string) error {
	if err := os.MkdirAll(path, l.dirMode); err != nil {
		return failure.Wrap(failure.ErrPersistence, "persist", "create directory", path, err)
	}
	return nil
}

// WriteRecord encodes rec into a new file at dst.
func (l *Local) WriteRecord(rec *record.Record, dst string) error {
	if l.encoder == nil {
		return failure.Wrap(failure.ErrPersistence, "persist", "write record", "no encoder configured", nil)
	}
	err := fileutil.WriteFileExclusive(dst, l.fileMode, func(w io.Writer) error {
		return l.encoder.Encode(w, rec)
	})
	if err != nil {
		return failure.Wrap(failure.ErrPersistence, "persist", "write record", dst, err)
	}
	return nil
}

// CopyFile duplicates src at dst.
func (l *Local) CopyFile(src, dst string) error {
	if err := fileutil.CopyFile(src, dst); err != nil {
		return failure.Wrap(failure.ErrPersistence, "persist", "copy", fmt.Sprintf("%s -> %s", src, dst), err)
	}
	return nil
}

// MoveFile relocates src to dst.
func (l *Local) MoveFile(src, dst string) error {
	if err := fileutil.MoveFile(src, dst); err != nil {
		return failure.Wrap(failure.ErrPersistence, "persist", "move", fmt.Sprintf("%s -> %s", src, dst), err)
	}
	return nil
}

// RemoveFile deletes path.
func (l *Local) RemoveFile(path string) error {
	if err := os.Remove(path); err != nil {
		return failure.Wrap(failure.ErrPersistence, "persist", "remove", path, err)
	}
	return nil
}

// Quarantine copies a failed source to dst with integrity verification,
// creating parent directories as needed.
func (l *Local) Quarantine(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), l.dirMode); err != nil {
		return failure.Wrap(failure.ErrPersistence, "quarantine", "create directory", dst, err)
	}
	if err := fileutil.CopyFileVerified(src, dst); err != nil {
		return failure.Wrap(failure.ErrPersistence, "quarantine", "copy", dst, err)
	}
	return nil
}
