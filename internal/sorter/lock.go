package sorter

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"dicomsort/internal/failure"
	"dicomsort/internal/textutil"
)

// targetLock serializes runs that write into the same target root, across
// processes.
type targetLock struct {
	path string
	lock *flock.Flock
}

func lockPath(dir, target string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(target)))
	name := textutil.SanitizeToken(filepath.Base(target)) + "-" + hex.EncodeToString(sum[:6]) + ".lock"
	return filepath.Join(dir, name)
}

func acquireTargetLock(dir, target string) (*targetLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	path := lockPath(dir, target)
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: another sort is writing to %s (lock %s)", failure.ErrConfiguration, target, path)
	}
	return &targetLock{path: path, lock: lock}, nil
}

func (l *targetLock) release() error {
	if l == nil {
		return nil
	}
	return l.lock.Unlock()
}
