package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content-derived identifier for a stored record.
type ID uint64

// IDFromContent generates a deterministic ID from raw bytes using BLAKE2b hashing.
// Identical frames produce identical IDs.
func IDFromContent(content []byte) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write(content)
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Offset is the byte position of a frame's first byte in the record log.
type Offset int64

// Coordinate is an exact latitude/longitude pair in degrees.
// It is comparable and is used as the spatial index key.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// Record is the unit of storage.
// Timestamp, Latitude and Longitude are indexed; Kind and Payload are carried
// through untouched.
type Record struct {
	Timestamp int64   // Milliseconds since the Unix epoch
	Latitude  float64 // Degrees
	Longitude float64 // Degrees
	Kind      string  // Logical payload type, empty for untyped records
	Payload   []byte  // Opaque content
}

// Coordinate returns the record's spatial key.
func (r *Record) Coordinate() Coordinate {
	return Coordinate{Latitude: r.Latitude, Longitude: r.Longitude}
}

// Time returns the record timestamp as a UTC time.Time.
func (r *Record) Time() time.Time {
	return time.UnixMilli(r.Timestamp).UTC()
}

// TimestampFromTime converts t to the millisecond timestamps stored in records.
func TimestampFromTime(t time.Time) int64 {
	return t.UnixMilli()
}
