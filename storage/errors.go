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

import "errors"

var (
	// ErrNotFound indicates that the requested offset or backing file does not exist.
	ErrNotFound = errors.New("not found")

	// ErrCorrupt indicates a truncated or malformed frame or index file.
	ErrCorrupt = errors.New("corrupt data")

	// ErrMalformedRecord indicates a frame body that does not decode to a record.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrReplaceConflict indicates the spatial index file disagrees with memory
	// about the entry being replaced.
	ErrReplaceConflict = errors.New("spatial index replace conflict")

	// ErrFrameTooLarge indicates a frame body longer than a 32-bit length prefix can describe.
	ErrFrameTooLarge = errors.New("frame too large")
)
