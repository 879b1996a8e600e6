package storage

import (
	"errors"
	"math"
	"testing"

	"github.com/poiesic/spacedb/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRecord(t *testing.T) {
	tests := []struct {
		name   string
		record *core.Record
	}{
		{"zero record", &core.Record{}},
		{"san francisco", &core.Record{Timestamp: 1700000000000, Latitude: 37.7749, Longitude: -122.4194}},
		{"negative timestamp", &core.Record{Timestamp: -86400000, Latitude: -33.8688, Longitude: 151.2093}},
		{"with kind and payload", &core.Record{
			Timestamp: 1700000000001,
			Latitude:  51.5074,
			Longitude: -0.1278,
			Kind:      "city",
			Payload:   []byte(`{"name":"London"}`),
		}},
		{"binary payload", &core.Record{Payload: []byte{0x00, 0x01, 0xff}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeRecord(tt.record)
			require.NoError(t, err)
			require.NotEmpty(t, data)

			decoded, err := DecodeRecord(data)
			require.NoError(t, err)
			assert.Equal(t, tt.record, decoded)
		})
	}
}

func TestEncodeRecord_Nil(t *testing.T) {
	_, err := EncodeRecord(nil)
	assert.ErrorIs(t, err, core.ErrNullRecord)
}

func TestDecodeRecord_Invalid(t *testing.T) {
	valid, err := EncodeRecord(&core.Record{Timestamp: 42, Latitude: 1, Longitude: 2, Kind: "k", Payload: []byte("p")})
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"truncated floats", valid[:5]},
		{"truncated payload", valid[:len(valid)-1]},
		{"trailing garbage", append(append([]byte{}, valid...), 0x01, 0x02)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := DecodeRecord(tt.data)
			assert.Nil(t, record)
			assert.True(t, errors.Is(err, ErrMalformedRecord), "got %v", err)
		})
	}
}

func TestRecordID(t *testing.T) {
	a := &core.Record{Timestamp: 1, Latitude: 2, Longitude: 3}
	b := &core.Record{Timestamp: 1, Latitude: 2, Longitude: 3}
	c := &core.Record{Timestamp: 2, Latitude: 2, Longitude: 3}

	idA, err := RecordID(a)
	require.NoError(t, err)
	idB, err := RecordID(b)
	require.NoError(t, err)
	idC, err := RecordID(c)
	require.NoError(t, err)

	assert.Equal(t, idA, idB)
	assert.NotEqual(t, idA, idC)

	_, err = RecordID(nil)
	assert.ErrorIs(t, err, core.ErrNullRecord)
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		limit int
		want  int
	}{
		{-1, MaxLimit},
		{0, MaxLimit},
		{1, 1},
		{10, 10},
		{MaxLimit, MaxLimit},
		{MaxLimit + 1, MaxLimit},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampLimit(tt.limit), "limit %d", tt.limit)
	}
}

func TestNormalizeRange(t *testing.T) {
	assert.Equal(t, DefaultRangeMeters, NormalizeRange(-1))
	assert.Equal(t, 0.0, NormalizeRange(0))
	assert.Equal(t, 50000.0, NormalizeRange(50000))
	assert.Equal(t, DefaultRangeMeters, NormalizeRange(math.NaN()))
}

func TestEncodeRecord_NonFiniteCoordinate(t *testing.T) {
	_, err := EncodeRecord(&core.Record{Latitude: math.NaN()})
	assert.ErrorIs(t, err, core.ErrInvalidCoordinate)

	_, err = EncodeRecord(&core.Record{Longitude: math.Inf(1)})
	assert.ErrorIs(t, err, core.ErrInvalidLongitude)
}
