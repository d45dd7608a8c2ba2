package fs

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const guardRetryInterval = 5 * time.Millisecond

// acquireGuard takes a short-lived cross-process mutex by exclusively creating
// path. It blocks until the guard is free or ctx is done. A guard older than
// staleAfter is assumed to belong to a crashed process and is broken.
//
// Each holder writes a unique token into the guard. Breaking and releasing
// only remove a guard that still carries the expected token, so a breaker
// never deletes a fresh guard and a holder that was broken as stale never
// deletes its successor's.
//
// The returned function releases the guard.
func acquireGuard(ctx context.Context, path string, staleAfter time.Duration) (func(), error) {
	token := strconv.Itoa(os.Getpid()) + "-" + uuid.NewString()
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			_, werr := f.WriteString(token)
			if cerr := f.Close(); werr == nil {
				werr = cerr
			}
			if werr != nil {
				os.Remove(path)
				return nil, fmt.Errorf("failed to write guard %s: %w", path, werr)
			}
			return func() {
				removeGuard(path, token)
			}, nil
		}

		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to acquire guard %s: %w", path, err)
		}

		if held, ok := staleGuard(path, staleAfter); ok {
			removeGuard(path, held)
			continue
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for guard %s: %w", path, ctx.Err())
		case <-time.After(guardRetryInterval):
		}
	}
}

// staleGuard returns the token of the guard at path when it is older than
// staleAfter.
func staleGuard(path string, staleAfter time.Duration) (string, bool) {
	if staleAfter <= 0 {
		return "", false
	}
	info, err := os.Stat(path)
	if err != nil || time.Since(info.ModTime()) <= staleAfter {
		return "", false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// removeGuard deletes the guard at path if it carries token. The guard is
// first renamed to a unique tombstone, so of several concurrent removers only
// one gets the file; a tombstone with another token is linked back in place.
func removeGuard(path, token string) bool {
	tomb := path + "." + uuid.NewString() + guardExt
	if err := os.Rename(path, tomb); err != nil {
		return false
	}
	defer os.Remove(tomb)

	data, err := os.ReadFile(tomb)
	if err == nil && string(data) == token {
		return true
	}
	// Link fails when a new guard already took the path; that holder owns it.
	_ = os.Link(tomb, path)
	return false
}
