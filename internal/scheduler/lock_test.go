package scheduler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skymonitor/meteor-go/internal/errors"
)

func TestAcquireLockExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locks", "run.lock")

	lock, err := AcquireLock(path)
	require.NoError(t, err)

	// A second acquisition must fail immediately, not block.
	_, err = AcquireLock(path)
	require.Error(t, err)
	assert.True(t, IsLockHeld(err))
	assert.True(t, errors.HasCategory(err, errors.CategoryLock))

	require.NoError(t, lock.Release())

	// After release the lock is free again.
	again, err := AcquireLock(path)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestAcquireLockWritesPid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.lock")
	lock, err := AcquireLock(path)
	require.NoError(t, err)
	defer lock.Release() //nolint:errcheck // test cleanup

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestReleaseIsIdempotentOnNil(t *testing.T) {
	var lock *FileLock
	assert.NoError(t, lock.Release())

	held, err := AcquireLock(filepath.Join(t.TempDir(), "run.lock"))
	require.NoError(t, err)
	require.NoError(t, held.Release())
	assert.NoError(t, held.Release(), "double release is a no-op")
}
