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

// Package storage defines the storage abstraction layer for spacedb.
//
// The package declares the Repository, RecordLog, TimeIndex and SpatialIndex
// interfaces, the record codec shared by every backend, and the sentinel
// errors callers match with errors.Is. The file-backed implementation lives
// in the storage/file subpackage; storage/badger keeps the same records in
// BadgerDB, on disk or in memory.
//
// # Record Codec
//
// Each record is stored as one frame body produced by EncodeRecord:
//
//	body, err := storage.EncodeRecord(record)
//	record, err := storage.DecodeRecord(body)
//
// DecodeRecord never panics. Any body it cannot parse is reported as
// ErrMalformedRecord.
//
// # Usage
//
// Open a repository on a directory:
//
//	repo, err := file.OpenRepository("/path/to/db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	off, err := repo.Add(&core.Record{Timestamp: ts, Latitude: 37.77, Longitude: -122.42})
//
// Or on BadgerDB:
//
//	backend, err := badger.OpenBackend("/path/to/db", false, logger)
//	repo, err := badger.NewRepository(backend)
//	defer backend.Close()
//	defer repo.Close()
//
// # Query Limits
//
// Every query is capped at MaxLimit results. A limit of zero or less, or one
// above MaxLimit, is treated as MaxLimit. See ClampLimit.
//
// # Thread Safety
//
// Repository implementations must be safe for concurrent use. Indices and
// logs are not; the Repository serializes access to them.
package storage
