package core

import (
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// RecordMUS is the mus serializer for Record.
//
// Field layout, in order:
//
//	Timestamp  varint int64
//	Latitude   raw float64
//	Longitude  raw float64
//	Kind       length-prefixed string
//	Payload    length-prefixed bytes
var RecordMUS = recordMUS{}

type recordMUS struct{}

func (s recordMUS) Marshal(v Record, bs []byte) (n int) {
	n = varint.Int64.Marshal(v.Timestamp, bs)
	n += raw.Float64.Marshal(v.Latitude, bs[n:])
	n += raw.Float64.Marshal(v.Longitude, bs[n:])
	n += ord.String.Marshal(v.Kind, bs[n:])
	return n + ord.ByteSlice.Marshal(v.Payload, bs[n:])
}

func (s recordMUS) Unmarshal(bs []byte) (v Record, n int, err error) {
	v.Timestamp, n, err = varint.Int64.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.Latitude, n1, err = raw.Float64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Longitude, n1, err = raw.Float64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Kind, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Payload, n1, err = ord.ByteSlice.Unmarshal(bs[n:])
	n += n1
	return
}

func (s recordMUS) Size(v Record) (size int) {
	size = varint.Int64.Size(v.Timestamp)
	size += raw.Float64.Size(v.Latitude)
	size += raw.Float64.Size(v.Longitude)
	size += ord.String.Size(v.Kind)
	return size + ord.ByteSlice.Size(v.Payload)
}

func (s recordMUS) Skip(bs []byte) (n int, err error) {
	n, err = varint.Int64.Skip(bs)
	if err != nil {
		return
	}
	var n1 int
	n1, err = raw.Float64.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = raw.Float64.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = ord.ByteSlice.Skip(bs[n:])
	n += n1
	return
}
