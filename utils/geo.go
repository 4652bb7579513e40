package utils

import "math"

// EarthRadiusMeters is the mean Earth radius used for great-circle distances
const EarthRadiusMeters = 6371000.0

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

// HaversineDistance returns the great-circle distance in meters between two lat/lon points given in degrees.
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// BoundingBox is a lat/lon rectangle used to prefilter candidates before the exact distance check.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// WrapsAntimeridian reports whether the box crosses the ±180° meridian, in which case
// MinLon > MaxLon and a point matches when lon >= MinLon OR lon <= MaxLon.
func (b BoundingBox) WrapsAntimeridian() bool {
	return b.MinLon > b.MaxLon
}

// Contains reports whether a point lies inside the box.
func (b BoundingBox) Contains(lat, lon float64) bool {
	if lat < b.MinLat || lat > b.MaxLat {
		return false
	}
	if b.WrapsAntimeridian() {
		return lon >= b.MinLon || lon <= b.MaxLon
	}
	return lon >= b.MinLon && lon <= b.MaxLon
}

// BoundingBoxAround returns a box that contains every point within radiusMeters of (lat, lon).
// Near the poles the box widens to cover all longitudes.
func BoundingBoxAround(lat, lon, radiusMeters float64) BoundingBox {
	dLat := radiusMeters / EarthRadiusMeters * 180 / math.Pi
	box := BoundingBox{
		MinLat: math.Max(lat-dLat, -90),
		MaxLat: math.Min(lat+dLat, 90),
		MinLon: -180,
		MaxLon: 180,
	}
	if box.MinLat <= -90 || box.MaxLat >= 90 {
		return box
	}

	// the widest longitude span is at the latitude farthest from the equator
	maxAbsLat := math.Max(math.Abs(box.MinLat), math.Abs(box.MaxLat))
	cosLat := math.Cos(toRad(maxAbsLat))
	if cosLat <= 0 {
		return box
	}
	dLon := dLat / cosLat
	if dLon >= 180 {
		return box
	}

	box.MinLon = lon - dLon
	box.MaxLon = lon + dLon
	if box.MinLon < -180 {
		box.MinLon += 360
	}
	if box.MaxLon > 180 {
		box.MaxLon -= 360
	}
	return box
}

// RSSI distance model defaults: txPower is the expected RSSI at one meter,
// pathLossExponent is 2 for free space.
const (
	DefaultTxPower          = 0.0
	DefaultPathLossExponent = 2.0
	MinRSSIDistanceMeters   = 0.1
	MaxRSSIDistanceMeters   = 100.0
)

// EstimateRSSIDistance derives a rough distance in meters from a signal strength reading
// using the log-distance path loss model, clamped to [0.1, 100].
func EstimateRSSIDistance(rssi, txPower, pathLossExponent float64) float64 {
	if pathLossExponent <= 0 {
		pathLossExponent = DefaultPathLossExponent
	}
	d := math.Pow(10, (txPower-rssi)/(10*pathLossExponent))
	return math.Min(math.Max(d, MinRSSIDistanceMeters), MaxRSSIDistanceMeters)
}
