package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// CopyFile streams src to dst. dst must not exist; the source permissions are
// carried over.
func CopyFile(src, dst string) error {
	_, _, err := copyExclusive(src, dst, nil)
	return err
}

// CopyFileVerified copies like CopyFile and checks SHA256 + size afterwards.
// Removes dst on mismatch.
func CopyFileVerified(src, dst string) error {
	srcHasher := sha256.New()
	dstHasher := sha256.New()
	written, srcSize, err := copyExclusive(src, dst, &hashPair{src: srcHasher, dst: dstHasher})
	if err != nil {
		return err
	}
	if written != srcSize {
		_ = os.Remove(dst)
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcSize, written)
	}
	if !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
		_ = os.Remove(dst)
		return fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}
	return nil
}

type hashPair struct {
	src io.Writer
	dst io.Writer
}

func copyExclusive(src, dst string, hashes *hashPair) (int64, int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, 0, err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, 0, fmt.Errorf("stat source: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return 0, 0, err
	}

	var reader io.Reader = in
	var writer io.Writer = out
	if hashes != nil {
		reader = io.TeeReader(in, hashes.src)
		writer = io.MultiWriter(out, hashes.dst)
	}
	written, err := io.Copy(writer, reader)
	if err == nil {
		err = out.Sync()
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dst)
		return 0, 0, err
	}
	return written, info.Size(), nil
}

// MoveFile relocates src to dst without ever replacing an existing dst. It
// hard-links then unlinks the source, falling back to an exclusive copy when
// the paths are on different devices or the filesystem refuses links.
func MoveFile(src, dst string) error {
	if err := os.Link(src, dst); err != nil {
		if !crossDevice(err) {
			return fmt.Errorf("move file: %w", err)
		}
		if err := CopyFile(src, dst); err != nil {
			return fmt.Errorf("copy file across devices: %w", err)
		}
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove source after move: %w", err)
	}
	return nil
}

func crossDevice(err error) bool {
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		return false
	}
	return errors.Is(linkErr.Err, syscall.EXDEV) || errors.Is(linkErr.Err, syscall.EPERM) || errors.Is(linkErr.Err, syscall.ENOTSUP)
}

// WriteFileExclusive fills a temp file beside dst through write and then
// publishes it under dst only if dst does not exist yet. Readers never see a
// partial file and an existing file is never replaced.
func WriteFileExclusive(dst string, perm os.FileMode, write func(io.Writer) error) error {
	dir := filepath.Dir(dst)
	tmp, err := os.CreateTemp(dir, ".dicomsort-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Link(tmpName, dst); err != nil {
		if !crossDevice(err) {
			return fmt.Errorf("publish temp file: %w", err)
		}
		// Filesystems without hard links: exclusive copy of the finished temp.
		if err := CopyFile(tmpName, dst); err != nil {
			return fmt.Errorf("publish temp file: %w", err)
		}
	}
	return nil
}
