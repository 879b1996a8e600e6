package reindex

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/spacedb/core"
	"github.com/poiesic/spacedb/storage/badger"
	"github.com/poiesic/spacedb/storage/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyRepository fails Rebuild a fixed number of times before delegating.
type flakyRepository struct {
	*file.Repository
	failures int
	calls    int
}

func (f *flakyRepository) Rebuild(progress func(done int)) (int, error) {
	f.calls++
	if f.calls <= f.failures {
		return 0, errors.New("disk busy")
	}
	return f.Repository.Rebuild(progress)
}

func setupRepository(t *testing.T, n int) (*file.Repository, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := file.OpenRepository(dir)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		_, err := repo.Add(&core.Record{Timestamp: int64(i), Latitude: float64(i), Longitude: 0})
		require.NoError(t, err)
	}
	return repo, dir
}

func TestReindexer_RunBadger(t *testing.T) {
	repo, backend, err := badger.NewMemoryRepository(nil)
	require.NoError(t, err)
	defer backend.Close()
	defer repo.Close()

	for i := 0; i < 5; i++ {
		_, err := repo.Add(&core.Record{Timestamp: int64(i), Latitude: float64(i)})
		require.NoError(t, err)
	}

	var out bytes.Buffer
	r, err := NewReindexer(repo, &Config{ReportInterval: 2, MaxAttempts: 1}, &out, nil)
	require.NoError(t, err)

	n, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Contains(t, out.String(), "Indexed 5 of 5 records")

	records, err := repo.FindByLocation(4, 0, 1, 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestNewReindexer_NilRepository(t *testing.T) {
	_, err := NewReindexer(nil, nil, nil, nil)
	assert.ErrorIs(t, err, ErrRepositoryRequired)
}

func TestReindexer_Run(t *testing.T) {
	_, dir := setupRepository(t, 25)
	require.NoError(t, os.Remove(filepath.Join(dir, file.DefaultTimeIndexFile)))
	require.NoError(t, os.Remove(filepath.Join(dir, file.DefaultSpatialIndexFile)))

	repo, err := file.OpenRepository(dir)
	require.NoError(t, err)

	var out bytes.Buffer
	r, err := NewReindexer(repo, &Config{ReportInterval: 10, MaxAttempts: 1}, &out, nil)
	require.NoError(t, err)

	n, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	output := out.String()
	assert.Contains(t, output, "Starting reindex of 25 records")
	assert.Contains(t, output, "25/25")
	assert.Contains(t, output, "Reindex complete. Indexed 25 of 25 records")

	for _, name := range []string{file.DefaultTimeIndexFile, file.DefaultSpatialIndexFile} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	records, err := repo.FindByTime(0, 24, 0)
	require.NoError(t, err)
	assert.Len(t, records, 25)
}

func TestReindexer_RunEmpty(t *testing.T) {
	repo, _ := setupRepository(t, 0)

	var out bytes.Buffer
	r, err := NewReindexer(repo, nil, &out, nil)
	require.NoError(t, err)

	n, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Contains(t, out.String(), "No records found")
}

func TestReindexer_RetriesRebuild(t *testing.T) {
	repo, _ := setupRepository(t, 3)
	flaky := &flakyRepository{Repository: repo, failures: 2}

	r, err := NewReindexer(flaky, &Config{ReportInterval: 1, MaxAttempts: 3, RetryDelay: time.Millisecond}, nil, nil)
	require.NoError(t, err)

	n, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, flaky.calls)
}

func TestReindexer_GivesUp(t *testing.T) {
	repo, _ := setupRepository(t, 3)
	flaky := &flakyRepository{Repository: repo, failures: 10}

	r, err := NewReindexer(flaky, &Config{ReportInterval: 1, MaxAttempts: 2, RetryDelay: time.Millisecond}, nil, nil)
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk busy")
	assert.Equal(t, 2, flaky.calls)
}

func TestReindexer_CanceledContext(t *testing.T) {
	repo, _ := setupRepository(t, 1)
	r, err := NewReindexer(repo, nil, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
