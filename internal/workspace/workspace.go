package workspace

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	derrors "git.home.luguber.info/inful/docrun/internal/errors"
	"git.home.luguber.info/inful/docrun/internal/logfields"
)

// lockFilePrefix names run lock files. They live in the system temp directory,
// never in the root.
const lockFilePrefix = "docrun-"

// Manager handles filesystem operations relative to a fixed root.
type Manager struct {
	root        string
	lockTimeout time.Duration
}

// NewManager creates a workspace manager rooted at root (made absolute).
func NewManager(root string) (*Manager, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, derrors.InternalError("failed to resolve root path", err)
	}
	st, err := os.Stat(abs)
	if err != nil || !st.IsDir() {
		return nil, derrors.ValidationFailed("root", fmt.Sprintf("not a directory: %s", abs))
	}
	return &Manager{root: abs}, nil
}

// WithLockTimeout makes Lock wait up to d for a held lock instead of failing immediately.
func (m *Manager) WithLockTimeout(d time.Duration) *Manager {
	m.lockTimeout = d
	return m
}

// Root returns the absolute root path.
func (m *Manager) Root() string {
	return m.root
}

// Resolve joins rel onto the root. Absolute paths are returned unchanged.
func (m *Manager) Resolve(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(m.root, rel)
}

// LockPath returns the run lock file for this root: a file in the system temp
// directory keyed by a hash of the absolute root. The file is not removed on
// release so two openers always lock the same inode.
func (m *Manager) LockPath() string {
	sum := sha256.Sum256([]byte(m.root))
	return filepath.Join(os.TempDir(), lockFilePrefix+hex.EncodeToString(sum[:8])+".lock")
}

// Lock acquires the cross-process run lock. The returned function releases it.
func (m *Manager) Lock(ctx context.Context) (func(), error) {
	path := m.LockPath()
	fl := flock.New(path)

	var (
		locked bool
		err    error
	)
	if m.lockTimeout > 0 {
		lockCtx, cancel := context.WithTimeout(ctx, m.lockTimeout)
		defer cancel()
		locked, err = fl.TryLockContext(lockCtx, 100*time.Millisecond)
		if err != nil && lockCtx.Err() != nil && ctx.Err() == nil {
			// timed out waiting on another run
			err = nil
		}
	} else {
		locked, err = fl.TryLock()
	}
	if err != nil {
		return nil, derrors.InternalError("failed to acquire run lock", err).WithContext("path", path)
	}
	if !locked {
		return nil, derrors.LockHeld(path)
	}

	slog.Debug("Acquired run lock", logfields.Path(path))
	return func() {
		if err := fl.Unlock(); err != nil {
			slog.Warn("Failed to release run lock", logfields.Path(path), logfields.Error(err))
		}
	}, nil
}

// CopyFile overwrites dst with the bytes of src, both relative to the root.
// The destination directory must already exist. The write goes through a temp
// file in the destination directory followed by a rename, so readers never see
// a partially written file. The source file mode is preserved.
func (m *Manager) CopyFile(src, dst string) (int64, error) {
	srcPath := m.Resolve(src)
	dstPath := m.Resolve(dst)

	n, err := copyFileAtomic(srcPath, dstPath)
	if err != nil {
		return 0, derrors.CopyFailed(srcPath, dstPath, err)
	}
	return n, nil
}

func copyFileAtomic(srcPath, dstPath string) (int64, error) {
	in, err := os.Open(srcPath)
	if err != nil {
		return 0, err
	}
	defer func() { _ = in.Close() }()

	srcInfo, err := in.Stat()
	if err != nil {
		return 0, err
	}
	if srcInfo.IsDir() {
		return 0, fmt.Errorf("source is a directory: %s", srcPath)
	}

	dir := filepath.Dir(dstPath)
	st, err := os.Stat(dir)
	if err != nil {
		return 0, fmt.Errorf("destination directory: %w", err)
	}
	if !st.IsDir() {
		return 0, fmt.Errorf("destination parent is not a directory: %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".docrun-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("creating temp file for %s: %w", dstPath, err)
	}

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmp.Name())
		}
	}()

	n, err := io.Copy(tmp, in)
	if err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("writing temp file for %s: %w", dstPath, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("syncing temp file for %s: %w", dstPath, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("closing temp file for %s: %w", dstPath, err)
	}
	if err := os.Chmod(tmp.Name(), srcInfo.Mode().Perm()); err != nil {
		return 0, fmt.Errorf("setting permissions on temp file for %s: %w", dstPath, err)
	}
	if err := os.Rename(tmp.Name(), dstPath); err != nil {
		return 0, fmt.Errorf("renaming temp file to %s: %w", dstPath, err)
	}

	success = true
	return n, nil
}
