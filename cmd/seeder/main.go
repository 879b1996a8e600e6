package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/spacedb"
	"github.com/poiesic/spacedb/core"
	"github.com/poiesic/spacedb/ingestion"
)

// City is the value stored in the "city" collection.
type City struct {
	Name string `json:"name"`
}

type seedCity struct {
	name string
	lat  float64
	lon  float64
}

var cities = []seedCity{
	{"San Francisco", 37.7749, -122.4194},
	{"Los Angeles", 34.0522, -118.2437},
	{"New York", 40.7128, -74.0060},
	{"Chicago", 41.8781, -87.6298},
	{"London", 51.5074, -0.1278},
	{"Sydney", -33.8688, 151.2093},
	{"Tokyo", 35.6762, 139.6503},
	{"Paris", 48.8566, 2.3522},
	{"Berlin", 52.5200, 13.4050},
	{"Sao Paulo", -23.5505, -46.6333},
	{"Cairo", 30.0444, 31.2357},
	{"Mumbai", 19.0760, 72.8777},
	{"Oakland", 37.8044, -122.2712},
	{"San Jose", 37.3382, -121.8863},
}

var (
	seedFileName = flag.String("src", "", "CSV file of name,lat,lon rows")
	dbPath       = flag.String("db", "./spacedb_data", "database directory")
)

// citiesFromCSV returns an iterator over name,lat,lon rows.
// Rows that do not parse are logged and skipped.
func citiesFromCSV(r io.Reader) iter.Seq[seedCity] {
	return func(yield func(seedCity) bool) {
		reader := csv.NewReader(r)
		reader.FieldsPerRecord = -1
		reader.TrimLeadingSpace = true
		line := 0
		for {
			row, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			line++
			if err != nil {
				slog.Warn("skipping unreadable row", "line", line, "err", err)
				continue
			}
			c, err := parseCity(row)
			if err != nil {
				slog.Warn("skipping row", "line", line, "err", err)
				continue
			}
			if !yield(c) {
				return
			}
		}
	}
}

func parseCity(row []string) (seedCity, error) {
	if len(row) != 3 {
		return seedCity{}, fmt.Errorf("want 3 fields, got %d", len(row))
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
	if err != nil {
		return seedCity{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
	if err != nil {
		return seedCity{}, fmt.Errorf("longitude: %w", err)
	}
	if err := core.ValidateCoordinate(lat, lon); err != nil {
		return seedCity{}, err
	}
	return seedCity{name: strings.TrimSpace(row[0]), lat: lat, lon: lon}, nil
}

// citiesFromSlice returns an iterator over a slice of cities.
func citiesFromSlice(list []seedCity) iter.Seq[seedCity] {
	return func(yield func(seedCity) bool) {
		for _, c := range list {
			if !yield(c) {
				return
			}
		}
	}
}

// ingestBatched converts cities to collection records and ingests them in batches.
// Timestamps start at base and advance one millisecond per city.
func ingestBatched(ctx context.Context, pipeline *ingestion.Pipeline, collection *spacedb.Collection[City],
	source iter.Seq[seedCity], base int64, batchSize int) (int, error) {
	batch := make([]*core.Record, 0, batchSize)
	total := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := pipeline.Ingest(ctx, batch...); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	i := int64(0)
	for c := range source {
		record, err := collection.NewRecord(spacedb.Entry[City]{
			Timestamp: base + i,
			Latitude:  c.lat,
			Longitude: c.lon,
			Value:     City{Name: c.name},
		})
		if err != nil {
			return total, err
		}
		i++
		batch = append(batch, record)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}

	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

func main() {
	flag.Parse()
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))

	db, err := spacedb.NewDatabase(*dbPath)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	collection, err := spacedb.NewCollection[City](db, "city")
	if err != nil {
		panic(err)
	}

	ingester, err := db.NewIngestionPipeline()
	if err != nil {
		panic(err)
	}
	defer ingester.Release()

	ctx := context.Background()

	// Determine source of seed data
	source := citiesFromSlice(cities)
	if *seedFileName != "" {
		f, err := os.Open(*seedFileName)
		if err != nil {
			panic(err)
		}
		defer f.Close()
		source = citiesFromCSV(f)
	}

	n, err := ingestBatched(ctx, ingester, collection, source, core.TimestampFromTime(time.Now()), 5)
	if err != nil {
		panic(err)
	}
	slog.Info("seeded cities", "count", n, "db", *dbPath)
}
