package main

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/poiesic/spacedb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCitiesFromCSV(t *testing.T) {
	input := strings.Join([]string{
		"San Francisco, 37.7749, -122.4194",
		"bad row",
		"Nowhere, 200, 0",
		"Sydney,-33.8688,151.2093",
	}, "\n")

	got := slices.Collect(citiesFromCSV(strings.NewReader(input)))
	assert.Equal(t, []seedCity{
		{"San Francisco", 37.7749, -122.4194},
		{"Sydney", -33.8688, 151.2093},
	}, got)
}

func TestParseCity(t *testing.T) {
	tests := []struct {
		name    string
		row     []string
		wantErr bool
	}{
		{"valid", []string{"London", "51.5074", "-0.1278"}, false},
		{"missing field", []string{"London", "51.5074"}, true},
		{"bad latitude", []string{"London", "north", "-0.1278"}, true},
		{"bad longitude", []string{"London", "51.5074", "west"}, true},
		{"out of range", []string{"London", "51.5074", "181"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseCity(tt.row)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIngestBatched(t *testing.T) {
	db, err := spacedb.NewDatabase(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	collection, err := spacedb.NewCollection[City](db, "city")
	require.NoError(t, err)

	pipeline, err := db.NewIngestionPipeline()
	require.NoError(t, err)
	defer pipeline.Release()

	const base = int64(1700000000000)
	n, err := ingestBatched(context.Background(), pipeline, collection, citiesFromSlice(cities), base, 5)
	require.NoError(t, err)
	assert.Equal(t, len(cities), n)

	all, err := collection.FindByTime(base, base+int64(len(cities)), 0)
	require.NoError(t, err)
	require.Len(t, all, len(cities))
	assert.Equal(t, "San Francisco", all[0].Value.Name)

	near, err := collection.FindByLocation(37.7586889, -122.317707, 50000, 0)
	require.NoError(t, err)
	var names []string
	for _, e := range near {
		names = append(names, e.Value.Name)
	}
	assert.ElementsMatch(t, []string{"San Francisco", "Oakland"}, names)
}
