package types

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	earthRadiusKm = 6378.1
	earthRadiusMi = 3963.2
)

// DistanceUnit selects the unit of radii and distances in geo queries.
type DistanceUnit string

const (
	UnitMiles      DistanceUnit = "mi"
	UnitKilometers DistanceUnit = "km"
)

// ParseDistanceUnit accepts "mi" or "km".
func ParseDistanceUnit(value string) (DistanceUnit, error) {
	switch DistanceUnit(strings.ToLower(strings.TrimSpace(value))) {
	case UnitMiles:
		return UnitMiles, nil
	case UnitKilometers:
		return UnitKilometers, nil
	}
	return "", fmt.Errorf("invalid distance unit %q", value)
}

// EarthRadius returns the sphere radius expressed in the unit.
func (u DistanceUnit) EarthRadius() float64 {
	if u == UnitMiles {
		return earthRadiusMi
	}
	return earthRadiusKm
}

// FromMeters converts a distance in meters into the unit.
func (u DistanceUnit) FromMeters(m float64) float64 {
	if u == UnitMiles {
		return m * 0.000621371
	}
	return m * 0.001
}

// GeoPoint is a GeoJSON point with the descriptive fields used for tour
// locations. Coordinates are ordered [lng, lat].
type GeoPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
	Address     string     `json:"address,omitempty"`
	Description string     `json:"description,omitempty"`
	Day         int        `json:"day,omitempty"`
}

func (p GeoPoint) Lng() float64 { return p.Coordinates[0] }
func (p GeoPoint) Lat() float64 { return p.Coordinates[1] }

// Validate checks the GeoJSON type and coordinate ranges.
func (p GeoPoint) Validate() error {
	if p.Type != "" && p.Type != "Point" {
		return fmt.Errorf("location type must be Point")
	}
	if p.Lat() < -90 || p.Lat() > 90 || p.Lng() < -180 || p.Lng() > 180 {
		return fmt.Errorf("location coordinates out of range")
	}
	return nil
}

// Value stores the point as JSON.
func (p GeoPoint) Value() (driver.Value, error) {
	if p.Type == "" {
		p.Type = "Point"
	}
	return marshalColumn(p)
}

func (p *GeoPoint) Scan(value any) error {
	return scanColumn(value, p, "geo point")
}

// Waypoints is the embedded list of tour stops.
type Waypoints []GeoPoint

func (w Waypoints) Value() (driver.Value, error) {
	if w == nil {
		return "[]", nil
	}
	return marshalColumn(w)
}

func (w *Waypoints) Scan(value any) error {
	return scanColumn(value, w, "waypoints")
}

// Coordinate is a lat/lng pair supplied by clients as "lat,lng".
type Coordinate struct {
	Lat float64
	Lng float64
}

var errCoordinateFormat = errors.New("coordinate must be in the format lat,lng")

// ParseCoordinate parses "lat,lng".
func ParseCoordinate(raw string) (Coordinate, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return Coordinate{}, errCoordinateFormat
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Coordinate{}, errCoordinateFormat
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Coordinate{}, errCoordinateFormat
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return Coordinate{}, errCoordinateFormat
	}
	return Coordinate{Lat: lat, Lng: lng}, nil
}

// CentralAngle is the haversine angle in radians between two coordinates.
func CentralAngle(a, b Coordinate) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * math.Asin(math.Min(1, math.Sqrt(h)))
}

// HaversineMeters returns the great-circle distance between two coordinates.
func HaversineMeters(a, b Coordinate) float64 {
	return CentralAngle(a, b) * earthRadiusKm * 1000
}

// WithinRadius reports whether b lies inside the spherical cap of the given
// radius around a.
func WithinRadius(a, b Coordinate, radius float64, unit DistanceUnit) bool {
	return CentralAngle(a, b) <= radius/unit.EarthRadius()
}

// BoundingBox returns the lat/lng window that contains every point within
// radius of center. The longitude half-width is taken at the cap's widest
// latitude, which lies poleward of center.
func BoundingBox(center Coordinate, radius float64, unit DistanceUnit) (minLat, maxLat, minLng, maxLng float64) {
	angle := radius / unit.EarthRadius()
	dLat := toDegrees(angle)
	minLat = math.Max(-90, center.Lat-dLat)
	maxLat = math.Min(90, center.Lat+dLat)
	if minLat == -90 || maxLat == 90 {
		return minLat, maxLat, -180, 180
	}

	sinAngle := math.Sin(angle)
	cosLat := math.Cos(toRadians(center.Lat))
	if sinAngle >= cosLat {
		return minLat, maxLat, -180, 180
	}
	dLng := toDegrees(math.Asin(sinAngle / cosLat))
	minLng, maxLng = center.Lng-dLng, center.Lng+dLng
	if minLng < -180 || maxLng > 180 {
		return minLat, maxLat, -180, 180
	}
	return minLat, maxLat, minLng, maxLng
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
