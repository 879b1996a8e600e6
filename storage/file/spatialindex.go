package file

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"

	"github.com/poiesic/spacedb/core"
	"github.com/poiesic/spacedb/storage"
)

const (
	spatialHeaderSize = 4
	spatialEntrySize  = 24
)

type spatialEntry struct {
	key core.Coordinate
	off core.Offset
}

// SpatialIndex maps exact coordinates to the latest offset stored there.
// On disk it is a little-endian int32 count followed by count
// (float64 lat, float64 lon, int64 offset) triples. Every change rewrites
// the whole file.
type SpatialIndex struct {
	path     string
	logger   *slog.Logger
	order    []core.Coordinate
	entries  map[core.Coordinate]core.Offset
	hydrated bool
}

var _ storage.SpatialIndex = (*SpatialIndex)(nil)

// NewSpatialIndex returns an index backed by path. Nothing is read until first use.
func NewSpatialIndex(path string, logger *slog.Logger) *SpatialIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &SpatialIndex{
		path:    path,
		logger:  logger,
		entries: make(map[core.Coordinate]core.Offset),
	}
}

// Add points the coordinate at off. Re-adding the current offset is a no-op.
func (si *SpatialIndex) Add(lat, lon float64, off core.Offset) error {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return fmt.Errorf("%w: (%v, %v) cannot be an index key", core.ErrInvalidCoordinate, lat, lon)
	}
	if err := si.ensureHydrated(); err != nil {
		return err
	}

	key := core.Coordinate{Latitude: lat, Longitude: lon}
	prior, exists := si.entries[key]
	if exists && prior == off {
		return nil
	}

	if exists {
		onDisk, err := si.readFile()
		if err != nil {
			return err
		}
		idx := -1
		for i, e := range onDisk {
			if e.key == key && e.off == prior {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: no entry for (%v, %v) at offset %d", storage.ErrReplaceConflict, lat, lon, prior)
		}
		onDisk[idx].off = off
		if err := si.writeFile(onDisk); err != nil {
			return err
		}
		si.entries[key] = off
		return nil
	}

	next := append(si.snapshot(), spatialEntry{key: key, off: off})
	if err := si.writeFile(next); err != nil {
		return err
	}
	si.entries[key] = off
	si.order = append(si.order, key)
	return nil
}

// Lookup returns offsets for coordinates within rangeMeters of (lat, lon),
// in first-insertion order of the coordinate.
func (si *SpatialIndex) Lookup(lat, lon, rangeMeters float64, limit int) ([]core.Offset, error) {
	if err := si.ensureHydrated(); err != nil {
		return nil, err
	}
	limit = storage.ClampLimit(limit)

	var result []core.Offset
	for _, key := range si.order {
		if !(core.HaversineDistance(lat, lon, key.Latitude, key.Longitude) <= rangeMeters) {
			continue
		}
		result = append(result, si.entries[key])
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

// Len returns the number of coordinates held in memory.
func (si *SpatialIndex) Len() int {
	return len(si.order)
}

// Reset deletes the index file and clears memory.
func (si *SpatialIndex) Reset() error {
	if err := os.Remove(si.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove spatial index: %w", err)
	}
	si.clear()
	si.hydrated = true
	return nil
}

// replace rebuilds the index from entries in log order, keeping the latest
// offset per coordinate, and writes the file once.
func (si *SpatialIndex) replace(entries []spatialEntry) error {
	si.clear()
	for _, e := range entries {
		if _, ok := si.entries[e.key]; !ok {
			si.order = append(si.order, e.key)
		}
		si.entries[e.key] = e.off
	}
	if err := si.writeFile(si.snapshot()); err != nil {
		si.clear()
		si.hydrated = false
		return err
	}
	si.hydrated = true
	return nil
}

func (si *SpatialIndex) clear() {
	si.order = nil
	si.entries = make(map[core.Coordinate]core.Offset)
}

func (si *SpatialIndex) snapshot() []spatialEntry {
	out := make([]spatialEntry, 0, len(si.order)+1)
	for _, key := range si.order {
		out = append(out, spatialEntry{key: key, off: si.entries[key]})
	}
	return out
}

func (si *SpatialIndex) ensureHydrated() error {
	if si.hydrated {
		return nil
	}

	onDisk, err := si.readFile()
	if err != nil {
		return err
	}
	si.clear()
	for _, e := range onDisk {
		if _, ok := si.entries[e.key]; !ok {
			si.order = append(si.order, e.key)
		}
		si.entries[e.key] = e.off
	}
	si.hydrated = true
	si.logger.Debug("spatial index hydrated", "path", si.path, "entries", len(si.order))
	return nil
}

// readFile returns the entries on disk, or none if the file does not exist.
func (si *SpatialIndex) readFile() ([]spatialEntry, error) {
	f, err := os.Open(si.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open spatial index: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var header [spatialHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: spatial index header: %w", storage.ErrCorrupt, err)
	}
	count := int32(binary.LittleEndian.Uint32(header[:]))
	if count < 0 {
		return nil, fmt.Errorf("%w: negative spatial index count %d", storage.ErrCorrupt, count)
	}

	entries := make([]spatialEntry, 0, min(int(count), 1<<16))
	var buf [spatialEntrySize]byte
	for i := int32(0); i < count; i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("%w: spatial index holds %d of %d entries", storage.ErrCorrupt, i, count)
			}
			return nil, fmt.Errorf("read spatial index: %w", err)
		}
		entries = append(entries, spatialEntry{
			key: core.Coordinate{
				Latitude:  math.Float64frombits(binary.LittleEndian.Uint64(buf[0:8])),
				Longitude: math.Float64frombits(binary.LittleEndian.Uint64(buf[8:16])),
			},
			off: core.Offset(binary.LittleEndian.Uint64(buf[16:24])),
		})
	}
	return entries, nil
}

// writeFile replaces the index file with entries through a temp file and rename.
func (si *SpatialIndex) writeFile(entries []spatialEntry) error {
	if len(entries) > math.MaxInt32 {
		return fmt.Errorf("spatial index too large: %d entries", len(entries))
	}

	return writeFileAtomic(si.path, func(w *bufio.Writer) error {
		var header [spatialHeaderSize]byte
		binary.LittleEndian.PutUint32(header[:], uint32(len(entries)))
		if _, err := w.Write(header[:]); err != nil {
			return err
		}
		var buf [spatialEntrySize]byte
		for _, e := range entries {
			binary.LittleEndian.PutUint64(buf[0:8], math.Float64bits(e.key.Latitude))
			binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(e.key.Longitude))
			binary.LittleEndian.PutUint64(buf[16:24], uint64(e.off))
			if _, err := w.Write(buf[:]); err != nil {
				return err
			}
		}
		return nil
	})
}
