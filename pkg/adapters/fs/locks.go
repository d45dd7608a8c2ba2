package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/tidwall/jsonc"

	"github.com/aretw0/tandem/pkg/core"
)

const (
	lockExt   = ".lock"
	guardExt  = ".guard"
	lockGlob  = "*" + lockExt
	lockPerms = 0644
)

// lockFile is the on-disk lock shape shared with other tools. Times are epoch
// milliseconds.
type lockFile struct {
	SessionID string `json:"sessionId"`
	Timestamp int64  `json:"timestamp"`
	Expires   int64  `json:"expires"`
}

func (f lockFile) lock(t core.ContextType) core.Lock {
	return core.Lock{
		ContextType: t,
		SessionID:   f.SessionID,
		Timestamp:   time.UnixMilli(f.Timestamp).UTC(),
		Expires:     time.UnixMilli(f.Expires).UTC(),
	}
}

// Locks implements core.LockManager with one JSON file per context type.
//
// The read-decide-write sequence of every operation runs under a per-type
// guard file created with O_EXCL, so two processes can never both observe a
// free lock and claim it.
type Locks struct {
	dir    string
	config Config
}

// NewLocks creates a lock manager under <root>/locks.
func NewLocks(config Config) *Locks {
	config = config.withDefaults()
	return &Locks{
		dir:    filepath.Join(config.Root, LocksDir),
		config: config,
	}
}

var _ core.LockManager = (*Locks)(nil)

func (l *Locks) path(t core.ContextType) string {
	return filepath.Join(l.dir, string(t)+lockExt)
}

func (l *Locks) guard(ctx context.Context, t core.ContextType) (func(), error) {
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return nil, core.IOError(t, l.dir, err)
	}
	release, err := acquireGuard(ctx, l.path(t)+guardExt, l.config.GuardStaleAfter)
	if err != nil {
		return nil, core.IOError(t, l.path(t), err)
	}
	return release, nil
}

// read returns the stored lock of t. A missing file reports ok=false. An
// unreadable body is treated as absent so a corrupt lock cannot wedge a type.
func (l *Locks) read(t core.ContextType) (lockFile, bool, error) {
	var f lockFile
	data, err := os.ReadFile(l.path(t))
	if err != nil {
		if os.IsNotExist(err) {
			return f, false, nil
		}
		return f, false, core.IOError(t, l.path(t), err)
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &f); err != nil {
		l.config.Logger.Warn("ignoring corrupt lock file", "type", t, "error", err)
		return f, false, nil
	}
	return f, true, nil
}

func (l *Locks) write(t core.ContextType, f lockFile) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode lock: %w", err)
	}
	if err := writeFileAtomic(l.path(t), data, lockPerms); err != nil {
		return core.IOError(t, l.path(t), err)
	}
	return nil
}

// Acquire claims t for sessionID for ttl. A live lock held by another session
// yields Acquired=false; the owner refreshing its own lock keeps the original
// timestamp and extends the expiry.
func (l *Locks) Acquire(ctx context.Context, t core.ContextType, sessionID string, ttl time.Duration) (core.LockResult, error) {
	if ttl <= 0 {
		ttl = core.DefaultLockTTL
	}
	if ttl < core.MinLockTTL {
		ttl = core.MinLockTTL
	}
	release, err := l.guard(ctx, t)
	if err != nil {
		return core.LockResult{}, err
	}
	defer release()

	current, exists, err := l.read(t)
	if err != nil {
		return core.LockResult{}, err
	}

	now := l.config.Clock().UTC()
	next := lockFile{
		SessionID: sessionID,
		Timestamp: now.UnixMilli(),
		Expires:   now.Add(ttl).UnixMilli(),
	}
	if next.Expires <= next.Timestamp {
		next.Expires = next.Timestamp + 1
	}
	if exists && current.lock(t).Live(now) {
		if current.SessionID != sessionID {
			held := current.lock(t)
			l.config.Logger.Debug("lock held by another session", "type", t, "owner", held.SessionID, "expires", held.Expires)
			return core.LockResult{
				Acquired:  false,
				Lock:      held,
				LockedBy:  held.SessionID,
				ExpiresAt: held.Expires,
			}, nil
		}
		next.Timestamp = current.Timestamp
	}

	if err := l.write(t, next); err != nil {
		return core.LockResult{}, err
	}
	lock := next.lock(t)
	l.config.Logger.Debug("lock acquired", "type", t, "session", sessionID, "expires", lock.Expires)
	return core.LockResult{
		Acquired:  true,
		Lock:      lock,
		LockedBy:  sessionID,
		ExpiresAt: lock.Expires,
	}, nil
}

// Release removes the lock of t when sessionID owns it. Any other caller gets
// false and the file is left untouched.
func (l *Locks) Release(ctx context.Context, t core.ContextType, sessionID string) (bool, error) {
	release, err := l.guard(ctx, t)
	if err != nil {
		return false, err
	}
	defer release()

	current, exists, err := l.read(t)
	if err != nil || !exists {
		return false, err
	}
	if current.SessionID != sessionID {
		return false, nil
	}
	if err := os.Remove(l.path(t)); err != nil && !os.IsNotExist(err) {
		return false, core.IOError(t, l.path(t), err)
	}
	l.config.Logger.Debug("lock released", "type", t, "session", sessionID)
	return true, nil
}

// Inspect returns the stored lock of t, live or not.
func (l *Locks) Inspect(ctx context.Context, t core.ContextType) (core.Lock, bool, error) {
	current, exists, err := l.read(t)
	if err != nil || !exists {
		return core.Lock{}, false, err
	}
	return current.lock(t), true, nil
}

// Held lists every stored lock, expired ones included.
func (l *Locks) Held(ctx context.Context) ([]core.Lock, error) {
	types, err := l.types()
	if err != nil {
		return nil, err
	}
	locks := make([]core.Lock, 0, len(types))
	for _, t := range types {
		lock, ok, err := l.Inspect(ctx, t)
		if err != nil {
			return nil, err
		}
		if ok {
			locks = append(locks, lock)
		}
	}
	return locks, nil
}

func (l *Locks) types() ([]core.ContextType, error) {
	if _, err := os.Stat(l.dir); os.IsNotExist(err) {
		return nil, nil
	}
	matches, err := doublestar.Glob(os.DirFS(l.dir), lockGlob)
	if err != nil {
		return nil, core.IOError("", l.dir, err)
	}
	types := make([]core.ContextType, 0, len(matches))
	for _, m := range matches {
		types = append(types, core.ContextType(strings.TrimSuffix(m, lockExt)))
	}
	return types, nil
}

// CleanupExpired deletes every lock whose expiry has passed and returns how
// many were removed.
func (l *Locks) CleanupExpired(ctx context.Context) (int, error) {
	types, err := l.types()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, t := range types {
		ok, err := l.sweep(ctx, t)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	if removed > 0 {
		l.config.Logger.Info("expired locks removed", "count", removed)
	}
	return removed, nil
}

func (l *Locks) sweep(ctx context.Context, t core.ContextType) (bool, error) {
	release, err := l.guard(ctx, t)
	if err != nil {
		return false, err
	}
	defer release()

	current, exists, err := l.read(t)
	if err != nil || !exists {
		return false, err
	}
	if current.lock(t).Live(l.config.Clock().UTC()) {
		return false, nil
	}
	if err := os.Remove(l.path(t)); err != nil && !os.IsNotExist(err) {
		return false, core.IOError(t, l.path(t), err)
	}
	return true, nil
}
