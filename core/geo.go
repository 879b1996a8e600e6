package core

import "math"

// EarthRadiusMeters is the mean Earth radius of the spherical model used for distances.
const EarthRadiusMeters = 6371000.0

// HaversineDistance returns the great-circle distance in meters between two
// points given in degrees.
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := DegreesToRadians(lat2 - lat1)
	dLon := DegreesToRadians(lon2 - lon1)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)

	a := sinLat*sinLat +
		math.Cos(DegreesToRadians(lat1))*math.Cos(DegreesToRadians(lat2))*sinLon*sinLon

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// Distance returns the Haversine distance in meters from c to other.
func (c Coordinate) Distance(other Coordinate) float64 {
	return HaversineDistance(c.Latitude, c.Longitude, other.Latitude, other.Longitude)
}

// DegreesToRadians converts an angle in degrees to radians.
func DegreesToRadians(degrees float64) float64 {
	return degrees * (math.Pi / 180)
}
