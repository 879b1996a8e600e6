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

import "errors"

// Domain validation errors
var (
	// ErrNullRecord indicates a nil record was passed where one is required.
	ErrNullRecord = errors.New("record is nil")

	// ErrInvalidCoordinate indicates a latitude or longitude outside its valid range.
	ErrInvalidCoordinate = errors.New("invalid coordinate")

	// ErrInvalidLatitude indicates a latitude outside [-90, 90] or NaN.
	ErrInvalidLatitude = errors.New("latitude must be within [-90, 90]")

	// ErrInvalidLongitude indicates a longitude outside [-180, 180] or NaN.
	ErrInvalidLongitude = errors.New("longitude must be within [-180, 180]")
)
