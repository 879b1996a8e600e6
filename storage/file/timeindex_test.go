package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/spacedb/core"
	"github.com/poiesic/spacedb/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeIndex_Lookup(t *testing.T) {
	ti := NewTimeIndex(filepath.Join(t.TempDir(), DefaultTimeIndexFile), nil)

	require.NoError(t, ti.Add(30, 300))
	require.NoError(t, ti.Add(10, 100))
	require.NoError(t, ti.Add(20, 200))
	require.NoError(t, ti.Add(10, 101))
	assert.Equal(t, 4, ti.Len())

	tests := []struct {
		name       string
		start, end int64
		limit      int
		want       []core.Offset
	}{
		{"everything", 0, 100, 10, []core.Offset{100, 101, 200, 300}},
		{"inclusive bounds", 10, 20, 10, []core.Offset{100, 101, 200}},
		{"single key", 30, 30, 10, []core.Offset{300}},
		{"empty range", 11, 19, 10, nil},
		{"inverted range", 30, 10, 10, nil},
		{"limit cuts within a key", 0, 100, 1, []core.Offset{100}},
		{"zero limit means max", 0, 100, 0, []core.Offset{100, 101, 200, 300}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ti.Lookup(tt.start, tt.end, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimeIndex_Hydrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultTimeIndexFile)

	ti := NewTimeIndex(path, nil)
	require.NoError(t, ti.Add(5, 50))
	require.NoError(t, ti.Add(1, 10))

	reopened := NewTimeIndex(path, nil)
	assert.Equal(t, 0, reopened.Len())

	got, err := reopened.Lookup(0, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, []core.Offset{10, 50}, got)
	assert.Equal(t, 2, reopened.Len())

	require.NoError(t, reopened.Add(3, 30))
	got, err = reopened.Lookup(0, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, []core.Offset{10, 30, 50}, got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(3*timeEntrySize), info.Size())
}

func TestTimeIndex_LimitClamp(t *testing.T) {
	ti := NewTimeIndex(filepath.Join(t.TempDir(), DefaultTimeIndexFile), nil)
	for i := 0; i < storage.MaxLimit+10; i++ {
		ti.insert(int64(i), core.Offset(i))
	}
	ti.hydrated = true

	got, err := ti.Lookup(0, int64(storage.MaxLimit+10), storage.MaxLimit*2)
	require.NoError(t, err)
	assert.Len(t, got, storage.MaxLimit)
}

func TestTimeIndex_PartialEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultTimeIndexFile)
	require.NoError(t, os.WriteFile(path, make([]byte, timeEntrySize+3), 0o644))

	ti := NewTimeIndex(path, nil)
	_, err := ti.Lookup(0, 10, 10)
	assert.ErrorIs(t, err, storage.ErrCorrupt)
	assert.Equal(t, 0, ti.Len())
}

func TestTimeIndex_Reset(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultTimeIndexFile)
	ti := NewTimeIndex(path, nil)
	require.NoError(t, ti.Add(1, 1))

	require.NoError(t, ti.Reset())
	assert.Equal(t, 0, ti.Len())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, ti.Reset())
}

func TestTimeIndex_Replace(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultTimeIndexFile)
	ti := NewTimeIndex(path, nil)
	require.NoError(t, ti.Add(99, 999))

	require.NoError(t, ti.replace([]timeEntry{{ts: 20, off: 0}, {ts: 10, off: 16}, {ts: 20, off: 32}}))
	assert.Equal(t, 3, ti.Len())

	reopened := NewTimeIndex(path, nil)
	got, err := reopened.Lookup(0, 100, 10)
	require.NoError(t, err)
	assert.Equal(t, []core.Offset{16, 0, 32}, got)
}
