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


package core

import (
	"fmt"
	"math"
)

// ValidateRecord validates a Record before it is written.
//
// Validation rules:
//   - record must not be nil
//   - Latitude and Longitude must be finite (NaN never equals itself, so it
//     cannot be an exact key or be measured against a radius)
//
// NOT validated (storage never inspects them):
//   - Kind and Payload
//   - Coordinate ranges (any finite pair is a valid exact key)
func ValidateRecord(record *Record) error {
	if record == nil {
		return ErrNullRecord
	}
	if !isFinite(record.Latitude) {
		return fmt.Errorf("%w: %w: %v", ErrInvalidCoordinate, ErrInvalidLatitude, record.Latitude)
	}
	if !isFinite(record.Longitude) {
		return fmt.Errorf("%w: %w: %v", ErrInvalidCoordinate, ErrInvalidLongitude, record.Longitude)
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ValidateCoordinate checks that lat/lon are finite and within geographic bounds.
// Used for user-supplied query and input values, not by the storage layer.
func ValidateCoordinate(latitude, longitude float64) error {
	if math.IsNaN(latitude) || latitude < -90 || latitude > 90 {
		return fmt.Errorf("%w: %w: %v", ErrInvalidCoordinate, ErrInvalidLatitude, latitude)
	}
	if math.IsNaN(longitude) || longitude < -180 || longitude > 180 {
		return fmt.Errorf("%w: %w: %v", ErrInvalidCoordinate, ErrInvalidLongitude, longitude)
	}
	return nil
}
