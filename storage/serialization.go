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

package storage

import (
	"fmt"

	"github.com/poiesic/spacedb/core"
)

// EncodeRecord serializes a record into a frame body.
func EncodeRecord(record *core.Record) ([]byte, error) {
	if err := core.ValidateRecord(record); err != nil {
		return nil, err
	}
	buf := make([]byte, core.RecordMUS.Size(*record))
	core.RecordMUS.Marshal(*record, buf)
	return buf, nil
}

// DecodeRecord deserializes a frame body.
// Any failure, including trailing bytes, is reported as ErrMalformedRecord.
func DecodeRecord(data []byte) (record *core.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			record = nil
			err = fmt.Errorf("%w: %v", ErrMalformedRecord, r)
		}
	}()

	decoded, n, err := core.RecordMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedRecord, len(data)-n)
	}
	if len(decoded.Payload) == 0 {
		decoded.Payload = nil
	}
	return &decoded, nil
}

// RecordID returns the content ID of a record's encoded form.
func RecordID(record *core.Record) (core.ID, error) {
	body, err := EncodeRecord(record)
	if err != nil {
		return 0, err
	}
	return core.IDFromContent(body), nil
}
