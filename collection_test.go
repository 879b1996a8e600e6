package spacedb

import (
	"context"
	"testing"

	"github.com/poiesic/spacedb/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type city struct {
	Name       string `json:"name"`
	Population int    `json:"population"`
}

type sensor struct {
	Serial string  `json:"serial"`
	Value  float64 `json:"value"`
}

const t0 = int64(1700000000000)

func setupTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewCollection_RequiresKind(t *testing.T) {
	db := setupTestDatabase(t)
	_, err := NewCollection[city](db, "")
	assert.ErrorIs(t, err, ErrKindRequired)
}

func TestCollection_AddFind(t *testing.T) {
	db := setupTestDatabase(t)
	cities, err := NewCollection[city](db, "city")
	require.NoError(t, err)
	assert.Equal(t, "city", cities.Kind())

	sf := Entry[city]{Timestamp: t0, Latitude: 37.7749, Longitude: -122.4194, Value: city{Name: "San Francisco", Population: 808437}}
	la := Entry[city]{Timestamp: t0 + 1, Latitude: 34.0522, Longitude: -118.2437, Value: city{Name: "Los Angeles", Population: 3898747}}

	_, err = cities.Add(sf)
	require.NoError(t, err)
	_, err = cities.Add(la)
	require.NoError(t, err)

	near, err := cities.FindByLocation(37.7586889, -122.317707, 50000, 10)
	require.NoError(t, err)
	assert.Equal(t, []Entry[city]{sf}, near)

	byTime, err := cities.FindByTime(t0, t0+1, 10)
	require.NoError(t, err)
	assert.Equal(t, []Entry[city]{sf, la}, byTime)
}

func TestCollection_FiltersOtherKinds(t *testing.T) {
	db := setupTestDatabase(t)
	cities, err := NewCollection[city](db, "city")
	require.NoError(t, err)
	sensors, err := NewCollection[sensor](db, "sensor")
	require.NoError(t, err)

	_, err = cities.Add(Entry[city]{Timestamp: t0, Latitude: 1, Longitude: 1, Value: city{Name: "A"}})
	require.NoError(t, err)
	_, err = sensors.Add(Entry[sensor]{Timestamp: t0, Latitude: 1.00001, Longitude: 1, Value: sensor{Serial: "s-1", Value: 21.5}})
	require.NoError(t, err)

	gotCities, err := cities.FindByTime(t0, t0, 0)
	require.NoError(t, err)
	require.Len(t, gotCities, 1)
	assert.Equal(t, "A", gotCities[0].Value.Name)

	gotSensors, err := sensors.FindByLocation(1, 1, 100, 0)
	require.NoError(t, err)
	require.Len(t, gotSensors, 1)
	assert.Equal(t, "s-1", gotSensors[0].Value.Serial)

	all, err := db.Repository().FindByTime(t0, t0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCollection_SkipsUndecodablePayloads(t *testing.T) {
	db := setupTestDatabase(t)
	cities, err := NewCollection[city](db, "city")
	require.NoError(t, err)

	_, err = db.Repository().Add(&core.Record{Timestamp: t0, Kind: "city", Payload: []byte("{not json")})
	require.NoError(t, err)
	_, err = cities.Add(Entry[city]{Timestamp: t0 + 1, Value: city{Name: "B"}})
	require.NoError(t, err)

	got, err := cities.FindByTime(t0, t0+1, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "B", got[0].Value.Name)
}

func TestCollection_NewRecordThroughPipeline(t *testing.T) {
	db := setupTestDatabase(t)
	cities, err := NewCollection[city](db, "city")
	require.NoError(t, err)

	record, err := cities.NewRecord(Entry[city]{Timestamp: t0, Latitude: 51.5074, Longitude: -0.1278, Value: city{Name: "London"}})
	require.NoError(t, err)
	assert.Equal(t, "city", record.Kind)
	assert.JSONEq(t, `{"name":"London","population":0}`, string(record.Payload))

	pipeline, err := db.NewIngestionPipeline()
	require.NoError(t, err)
	defer pipeline.Release()

	_, err = pipeline.Ingest(context.Background(), record)
	require.NoError(t, err)

	got, err := cities.FindByLocation(51.5074, -0.1278, -1, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "London", got[0].Value.Name)
}
