package core

import (
	"errors"
	"math"
	"testing"
)

func TestValidateRecord(t *testing.T) {
	tests := []struct {
		name    string
		record  *Record
		wantErr error
	}{
		{
			name:    "nil record",
			record:  nil,
			wantErr: ErrNullRecord,
		},
		{
			name:    "zero record",
			record:  &Record{},
			wantErr: nil,
		},
		{
			name: "record with payload",
			record: &Record{
				Timestamp: 1700000000000,
				Latitude:  37.7749,
				Longitude: -122.4194,
				Kind:      "city",
				Payload:   []byte(`{"name":"San Francisco"}`),
			},
			wantErr: nil,
		},
		{
			name:    "out of range coordinates are still storable",
			record:  &Record{Latitude: 200, Longitude: -500},
			wantErr: nil,
		},
		{
			name:    "NaN latitude",
			record:  &Record{Latitude: math.NaN()},
			wantErr: ErrInvalidLatitude,
		},
		{
			name:    "infinite longitude",
			record:  &Record{Longitude: math.Inf(-1)},
			wantErr: ErrInvalidLongitude,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecord(tt.record)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateRecord() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateRecord() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCoordinate(t *testing.T) {
	tests := []struct {
		name      string
		latitude  float64
		longitude float64
		wantErr   error
	}{
		{"origin", 0, 0, nil},
		{"san francisco", 37.7749, -122.4194, nil},
		{"north pole", 90, 0, nil},
		{"antimeridian", 0, 180, nil},
		{"latitude too large", 90.0001, 0, ErrInvalidLatitude},
		{"latitude too small", -91, 0, ErrInvalidLatitude},
		{"latitude NaN", math.NaN(), 0, ErrInvalidLatitude},
		{"longitude too large", 0, 180.5, ErrInvalidLongitude},
		{"longitude NaN", 0, math.NaN(), ErrInvalidLongitude},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCoordinate(tt.latitude, tt.longitude)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateCoordinate() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateCoordinate() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidCoordinate) {
				t.Errorf("ValidateCoordinate() error = %v, want wrapped %v", err, ErrInvalidCoordinate)
			}
		})
	}
}
