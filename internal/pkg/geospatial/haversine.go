package geospatial

import (
	"fmt"
	"math"

	"github.com/halalway/halalway/internal/core/domain"
)

const earthRadiusKm = 6371.0

// DistanceKm calculates the great-circle distance in kilometres between two points.
// Both points must be finite WGS 84 coordinates; anything else is rejected with
// domain.ErrInvalidCoordinate rather than producing a misleading number.
func DistanceKm(a, b domain.GeoPoint) (float64, error) {
	if !a.Valid() {
		return 0, fmt.Errorf("%w: %v,%v", domain.ErrInvalidCoordinate, a.Lat, a.Lon)
	}
	if !b.Valid() {
		return 0, fmt.Errorf("%w: %v,%v", domain.ErrInvalidCoordinate, b.Lat, b.Lon)
	}
	return haversine(a.Lat, a.Lon, b.Lat, b.Lon), nil
}

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// BoundingBox returns a box around a point with the given radius in kilometres.
func BoundingBox(center domain.GeoPoint, radiusKm float64) domain.Bounds {
	latDelta := radiusKm / 111.32
	lonDelta := radiusKm / (111.32 * math.Cos(toRad(center.Lat)))

	return domain.Bounds{
		MinLat: center.Lat - latDelta,
		MinLon: center.Lon - lonDelta,
		MaxLat: center.Lat + latDelta,
		MaxLon: center.Lon + lonDelta,
	}
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
