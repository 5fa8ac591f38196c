package tours

import (
	"context"
	"sort"
	"strconv"

	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const coordinateFormatMessage = "Please provide latitude and longitude in the format lat,lng."

// TourDistance is one tour's distance from a point.
type TourDistance struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Distance float64   `json:"distance"`
}

// ParseCenter parses the "lat,lng" path segment of geo queries.
func ParseCenter(raw string) (types.Coordinate, error) {
	c, err := types.ParseCoordinate(raw)
	if err != nil {
		return types.Coordinate{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, coordinateFormatMessage).
			WithDetails([]string{coordinateFormatMessage})
	}
	return c, nil
}

// ParseUnit parses the unit path segment of geo queries.
func ParseUnit(raw string) (types.DistanceUnit, error) {
	u, err := types.ParseDistanceUnit(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Unit must be either mi or km").
			WithDetails([]string{"unit must be mi or km"})
	}
	return u, nil
}

// ParseDistance parses the radius path segment of geo queries.
func ParseDistance(raw string) (float64, error) {
	d, err := strconv.ParseFloat(raw, 64)
	if err != nil || d <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "Please provide a positive distance").
			WithDetails([]string{"distance must be a positive number"})
	}
	return d, nil
}

// Within returns the tours whose start location lies inside the radius
// around center. A lat/lng window narrows the rows read; the great-circle
// test decides membership.
func (s *Service) Within(ctx context.Context, radius float64, center types.Coordinate, unit types.DistanceUnit) ([]models.Tour, error) {
	minLat, maxLat, minLng, maxLng := types.BoundingBox(center, radius, unit)
	candidates, err := s.crud.Find(ctx, func(db *gorm.DB) *gorm.DB {
		return db.
			Where("start_lat BETWEEN ? AND ?", minLat, maxLat).
			Where("start_lng BETWEEN ? AND ?", minLng, maxLng).
			Order("created_at DESC")
	})
	if err != nil {
		return nil, err
	}

	out := candidates[:0]
	for _, t := range candidates {
		if types.WithinRadius(center, t.StartCoordinate(), radius, unit) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Distances returns every tour's distance from center, nearest first.
func (s *Service) Distances(ctx context.Context, center types.Coordinate, unit types.DistanceUnit) ([]TourDistance, error) {
	var rows []models.Tour
	err := s.db.WithContext(ctx).
		Select("id", "name", "start_lat", "start_lng").
		Where(PublicScope).
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "tour distances")
	}

	out := make([]TourDistance, 0, len(rows))
	for _, t := range rows {
		meters := types.HaversineMeters(center, t.StartCoordinate())
		out = append(out, TourDistance{ID: t.ID, Name: t.Name, Distance: unit.FromMeters(meters)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out, nil
}
