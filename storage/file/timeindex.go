package file

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"

	"github.com/poiesic/spacedb/core"
	"github.com/poiesic/spacedb/storage"
)

const timeEntrySize = 16

type timeEntry struct {
	ts  int64
	off core.Offset
}

// TimeIndex maps timestamps to offsets. On disk it is a sequence of
// little-endian (int64 timestamp, int64 offset) pairs, appended in insertion order.
type TimeIndex struct {
	path     string
	logger   *slog.Logger
	keys     []int64
	entries  map[int64][]core.Offset
	count    int
	hydrated bool
}

var _ storage.TimeIndex = (*TimeIndex)(nil)

// NewTimeIndex returns an index backed by path. Nothing is read until first use.
func NewTimeIndex(path string, logger *slog.Logger) *TimeIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &TimeIndex{
		path:    path,
		logger:  logger,
		entries: make(map[int64][]core.Offset),
	}
}

// Add persists the pair and then records it in memory.
func (ti *TimeIndex) Add(ts int64, off core.Offset) error {
	if err := ti.ensureHydrated(); err != nil {
		return err
	}

	f, err := os.OpenFile(ti.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open time index: %w", err)
	}
	defer f.Close()

	var buf [timeEntrySize]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(ts))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(off))
	if _, err := f.Write(buf[:]); err != nil {
		return fmt.Errorf("append time index entry: %w", err)
	}

	ti.insert(ts, off)
	return nil
}

// Lookup returns offsets for keys in [start, end] in ascending key order.
func (ti *TimeIndex) Lookup(start, end int64, limit int) ([]core.Offset, error) {
	if err := ti.ensureHydrated(); err != nil {
		return nil, err
	}
	limit = storage.ClampLimit(limit)

	var result []core.Offset
	if start > end {
		return result, nil
	}
	i, _ := slices.BinarySearch(ti.keys, start)
	for ; i < len(ti.keys) && ti.keys[i] <= end; i++ {
		for _, off := range ti.entries[ti.keys[i]] {
			result = append(result, off)
			if len(result) >= limit {
				return result, nil
			}
		}
	}
	return result, nil
}

// Len returns the number of offsets held in memory.
func (ti *TimeIndex) Len() int {
	return ti.count
}

// Reset deletes the index file and clears memory.
func (ti *TimeIndex) Reset() error {
	if err := os.Remove(ti.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove time index: %w", err)
	}
	ti.clear()
	ti.hydrated = true
	return nil
}

// replace rebuilds the index from entries in insertion order and writes
// the file once.
func (ti *TimeIndex) replace(entries []timeEntry) error {
	err := writeFileAtomic(ti.path, func(w *bufio.Writer) error {
		var buf [timeEntrySize]byte
		for _, e := range entries {
			binary.LittleEndian.PutUint64(buf[0:8], uint64(e.ts))
			binary.LittleEndian.PutUint64(buf[8:16], uint64(e.off))
			if _, err := w.Write(buf[:]); err != nil {
				return err
			}
		}
		return nil
	})
	ti.clear()
	if err != nil {
		ti.hydrated = false
		return err
	}
	for _, e := range entries {
		ti.insert(e.ts, e.off)
	}
	ti.hydrated = true
	return nil
}

func (ti *TimeIndex) insert(ts int64, off core.Offset) {
	offs, ok := ti.entries[ts]
	if !ok {
		i, _ := slices.BinarySearch(ti.keys, ts)
		ti.keys = slices.Insert(ti.keys, i, ts)
	}
	ti.entries[ts] = append(offs, off)
	ti.count++
}

func (ti *TimeIndex) clear() {
	ti.keys = nil
	ti.entries = make(map[int64][]core.Offset)
	ti.count = 0
}

func (ti *TimeIndex) ensureHydrated() error {
	if ti.hydrated {
		return nil
	}

	f, err := os.Open(ti.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			ti.hydrated = true
			return nil
		}
		return fmt.Errorf("open time index: %w", err)
	}
	defer f.Close()

	ti.clear()
	r := bufio.NewReader(f)
	var buf [timeEntrySize]byte
	for {
		_, err := io.ReadFull(r, buf[:])
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			ti.clear()
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return fmt.Errorf("%w: partial entry in time index %s", storage.ErrCorrupt, ti.path)
			}
			return fmt.Errorf("read time index: %w", err)
		}
		ts := int64(binary.LittleEndian.Uint64(buf[0:8]))
		off := core.Offset(binary.LittleEndian.Uint64(buf[8:16]))
		ti.insert(ts, off)
	}

	ti.hydrated = true
	ti.logger.Debug("time index hydrated", "path", ti.path, "entries", ti.count, "keys", len(ti.keys))
	return nil
}
