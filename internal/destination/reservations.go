package destination

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"dicomsort/internal/failure"
)

const maxCollisionAttempts = 10000

// Reservations tracks destinations claimed during a run.
type Reservations struct {
	mu      sync.Mutex
	claimed map[string]struct{}
	stat    func(string) (os.FileInfo, error)
}

// NewReservations returns an empty set that checks the local filesystem.
func NewReservations() *Reservations {
	return &Reservations{claimed: make(map[string]struct{}), stat: os.Lstat}
}

// Claim returns path, or path with suffix appended as many times as needed,
// such that the result is neither on disk nor already claimed. The result is
// recorded as claimed before the lock is released.
func (r *Reservations) Claim(path, suffix string) (string, error) {
	if suffix == "" {
		suffix = DefaultCollisionSuffix
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	candidate := path
	for attempt := 0; attempt < maxCollisionAttempts; attempt++ {
		if _, taken := r.claimed[candidate]; !taken {
			_, err := r.stat(candidate)
			if errors.Is(err, fs.ErrNotExist) {
				r.claimed[candidate] = struct{}{}
				return candidate, nil
			}
			if err != nil {
				return "", failure.Wrap(failure.ErrPersistence, "destination", "check existing", candidate, err)
			}
		}
		candidate += suffix
	}
	return "", fmt.Errorf("%w: exhausted collision suffixes for %s", failure.ErrDestinationInvalid, path)
}

// Release forgets a claim.
func (r *Reservations) Release(path string) {
	r.mu.Lock()
	delete(r.claimed, path)
	r.mu.Unlock()
}

// Len reports how many destinations are claimed.
func (r *Reservations) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.claimed)
}
