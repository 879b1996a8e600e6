// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/poiesic/spacedb"
	"github.com/poiesic/spacedb/config"
	"github.com/poiesic/spacedb/core"
	"github.com/poiesic/spacedb/reindex"
	"github.com/poiesic/spacedb/storage"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func dbFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "db",
		Aliases: []string{"d"},
		Usage:   "Path to database directory (overrides the config file)",
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "spacedb",
		Usage: "Embedded store for geo-tagged, time-stamped records",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
			},
			&cli.StringFlag{
				Name:    "backend",
				Aliases: []string{"b"},
				Usage:   "Storage backend (file, badger, memory); overrides the config file",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "add",
				Usage:  "Add one record",
				Action: addCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.Float64Flag{
						Name:     "lat",
						Usage:    "Latitude in degrees",
						Required: true,
					},
					&cli.Float64Flag{
						Name:     "lon",
						Usage:    "Longitude in degrees",
						Required: true,
					},
					&cli.Int64Flag{
						Name:  "timestamp",
						Usage: "Milliseconds since the Unix epoch (defaults to now)",
					},
					&cli.StringFlag{
						Name:  "kind",
						Usage: "Payload kind tag",
					},
					&cli.StringFlag{
						Name:  "payload",
						Usage: "Payload contents",
					},
				},
			},
			{
				Name:   "find-time",
				Usage:  "Find records in a time range",
				Action: findTimeCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.Int64Flag{
						Name:     "start",
						Usage:    "Range start, milliseconds since the Unix epoch (inclusive)",
						Required: true,
					},
					&cli.Int64Flag{
						Name:     "end",
						Usage:    "Range end, milliseconds since the Unix epoch (inclusive)",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of records",
						Value: 100,
					},
				},
			},
			{
				Name:   "find-near",
				Usage:  "Find the latest record at each coordinate near a point",
				Action: findNearCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.Float64Flag{
						Name:     "lat",
						Usage:    "Latitude in degrees",
						Required: true,
					},
					&cli.Float64Flag{
						Name:     "lon",
						Usage:    "Longitude in degrees",
						Required: true,
					},
					&cli.Float64Flag{
						Name:  "range",
						Usage: "Search radius in meters (negative means the default of 10)",
						Value: storage.DefaultRangeMeters,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of records",
						Value: 100,
					},
				},
			},
			{
				Name:   "reindex",
				Usage:  "Rebuild the time and spatial indices from the record log",
				Action: reindexCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N records",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-attempts",
						Usage: "Maximum rebuild attempts",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
		},
	}
}

// recordView is the JSON shape printed for each record.
type recordView struct {
	Timestamp int64           `json:"timestamp"`
	Time      string          `json:"time"`
	Latitude  float64         `json:"latitude"`
	Longitude float64         `json:"longitude"`
	Kind      string          `json:"kind,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Raw       string          `json:"raw,omitempty"`
}

func newRecordView(r *core.Record) recordView {
	v := recordView{
		Timestamp: r.Timestamp,
		Time:      r.Time().Format(time.RFC3339Nano),
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Kind:      r.Kind,
	}
	if len(r.Payload) > 0 {
		if json.Valid(r.Payload) {
			v.Payload = json.RawMessage(r.Payload)
		} else {
			v.Raw = string(r.Payload)
		}
	}
	return v
}

func openDatabase(c *cli.Context) (*spacedb.Database, error) {
	cfg := config.DefaultConfig()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if backend := c.String("backend"); backend != "" {
		cfg.Backend = backend
	}

	dbPath := c.String("db")
	if dbPath == "" && cfg.Dir == "" && cfg.Backend != config.BackendMemory {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := spacedb.NewDatabase(dbPath, spacedb.WithConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func addCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	lat, lon := c.Float64("lat"), c.Float64("lon")
	if err := core.ValidateCoordinate(lat, lon); err != nil {
		return err
	}

	timestamp := c.Int64("timestamp")
	if !c.IsSet("timestamp") {
		timestamp = core.TimestampFromTime(time.Now())
	}

	record := &core.Record{
		Timestamp: timestamp,
		Latitude:  lat,
		Longitude: lon,
		Kind:      c.String("kind"),
	}
	if payload := c.String("payload"); payload != "" {
		record.Payload = []byte(payload)
	}

	off, err := db.Repository().Add(record)
	if err != nil {
		return fmt.Errorf("failed to add record: %w", err)
	}
	id, err := storage.RecordID(record)
	if err != nil {
		return err
	}

	return json.NewEncoder(c.App.Writer).Encode(struct {
		Offset core.Offset `json:"offset"`
		ID     string      `json:"id"`
	}{
		Offset: off,
		ID:     fmt.Sprintf("%016x", uint64(id)),
	})
}

func findTimeCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := db.Repository().FindByTime(c.Int64("start"), c.Int64("end"), c.Int("limit"))
	if err != nil {
		return fmt.Errorf("time query failed: %w", err)
	}
	return printRecords(c, records)
}

func findNearCommand(c *cli.Context) error {
	lat, lon := c.Float64("lat"), c.Float64("lon")
	if err := core.ValidateCoordinate(lat, lon); err != nil {
		return err
	}
	rangeMeters := c.Float64("range")
	if math.IsNaN(rangeMeters) || math.IsInf(rangeMeters, 0) {
		return fmt.Errorf("range must be a finite number of meters, got %v", rangeMeters)
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := db.Repository().FindByLocation(lat, lon, rangeMeters, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("location query failed: %w", err)
	}
	return printRecords(c, records)
}

func reindexCommand(c *cli.Context) error {
	ctx := context.Background()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	reindexConfig := &reindex.Config{
		ReportInterval: c.Int("report-interval"),
		MaxAttempts:    c.Int("max-attempts"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if reindexConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reindexConfig.MaxAttempts <= 0 {
		return fmt.Errorf("max-attempts must be greater than 0")
	}

	reindexer, err := db.NewReindexer(reindexConfig, c.App.ErrWriter)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.ErrWriter, "Database: %s\n", db.Config().Dir)
	fmt.Fprintln(c.App.ErrWriter)

	if _, err := reindexer.Run(ctx); err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}
	return nil
}

func printRecords(c *cli.Context, records []*core.Record) error {
	enc := json.NewEncoder(c.App.Writer)
	for _, r := range records {
		if err := enc.Encode(newRecordView(r)); err != nil {
			return err
		}
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
