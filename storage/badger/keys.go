package badger

import (
	"encoding/binary"
	"math"

	"github.com/poiesic/spacedb/core"
)

// Key prefixes for different data types
const (
	recordPrefix         = "rec:"
	recordTimePrefix     = "rect:"
	recordLocationPrefix = "recl:"
	recordIDSeq          = "recseq"
)

// makeRecordKey generates a key for a record by sequence number.
// Format: prefix:seq
func makeRecordKey(seq core.Offset) []byte {
	buf := make([]byte, len(recordPrefix)+8)
	n := copy(buf, recordPrefix)
	binary.BigEndian.PutUint64(buf[n:], uint64(seq))
	return buf
}

// recordKeySeq extracts the sequence number from a record key.
func recordKeySeq(key []byte) core.Offset {
	return core.Offset(binary.BigEndian.Uint64(key[len(recordPrefix):]))
}

// orderedTimestamp flips the sign bit so negative timestamps sort before
// positive ones under byte comparison.
func orderedTimestamp(ts int64) uint64 {
	return uint64(ts) ^ (1 << 63)
}

// makeTimeKey generates a composite key for the time index.
// Format: prefix:timestamp:seq
func makeTimeKey(ts int64, seq core.Offset) []byte {
	buf := make([]byte, len(recordTimePrefix)+16)
	n := copy(buf, recordTimePrefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[n:], orderedTimestamp(ts))
	binary.BigEndian.PutUint64(buf[n+8:], uint64(seq))
	return buf
}

// makePartialTimeKey generates a partial key for time range queries.
// Format: prefix:timestamp
func makePartialTimeKey(ts int64) []byte {
	buf := make([]byte, len(recordTimePrefix)+8)
	n := copy(buf, recordTimePrefix)
	binary.BigEndian.PutUint64(buf[n:], orderedTimestamp(ts))
	return buf
}

// timeKeySeq extracts the sequence number from a time index key.
func timeKeySeq(key []byte) core.Offset {
	return core.Offset(binary.BigEndian.Uint64(key[len(recordTimePrefix)+8:]))
}

// makeLocationKey generates a key for the location index.
// Format: prefix:latbits:lonbits
func makeLocationKey(lat, lon float64) []byte {
	// Fold -0 into +0 so both map to one coordinate.
	if lat == 0 {
		lat = 0
	}
	if lon == 0 {
		lon = 0
	}
	buf := make([]byte, len(recordLocationPrefix)+16)
	n := copy(buf, recordLocationPrefix)
	binary.BigEndian.PutUint64(buf[n:], math.Float64bits(lat))
	binary.BigEndian.PutUint64(buf[n+8:], math.Float64bits(lon))
	return buf
}

// locationKeyCoordinate decodes the coordinate held in a location key.
func locationKeyCoordinate(key []byte) core.Coordinate {
	n := len(recordLocationPrefix)
	return core.Coordinate{
		Latitude:  math.Float64frombits(binary.BigEndian.Uint64(key[n:])),
		Longitude: math.Float64frombits(binary.BigEndian.Uint64(key[n+8:])),
	}
}

// marshalSeq encodes a sequence number for use as an index value.
func marshalSeq(seq core.Offset) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(seq))
	return buf
}

// unmarshalSeq decodes an index value written by marshalSeq.
func unmarshalSeq(val []byte) (core.Offset, error) {
	if len(val) != 8 {
		return 0, errMalformedSeq
	}
	return core.Offset(binary.BigEndian.Uint64(val)), nil
}
