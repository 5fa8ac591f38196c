package tours

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
)

// statsRatingFloor limits tour stats to well rated tours.
const statsRatingFloor = 4.5

// DifficultyStats summarizes the well rated tours of one difficulty.
type DifficultyStats struct {
	Difficulty string  `json:"difficulty"`
	NumTours   int     `json:"numTours"`
	NumRatings int     `json:"numRatings"`
	AvgRating  float64 `json:"avgRating"`
	AvgPrice   float64 `json:"avgPrice"`
	MinPrice   float64 `json:"minPrice"`
	MaxPrice   float64 `json:"maxPrice"`
}

// MonthPlan lists the tours starting in one month.
type MonthPlan struct {
	Month    int      `json:"month"`
	NumTours int      `json:"numTours"`
	Tours    []string `json:"tours"`
}

// Stats groups tours rated at least 4.5 by difficulty, best rated first.
func (s *Service) Stats(ctx context.Context) ([]DifficultyStats, error) {
	var out []DifficultyStats
	err := s.db.WithContext(ctx).
		Model(&models.Tour{}).
		Select(`UPPER(difficulty) AS difficulty,
			COUNT(*) AS num_tours,
			COALESCE(SUM(ratings_quantity), 0) AS num_ratings,
			AVG(ratings_average) AS avg_rating,
			AVG(price) AS avg_price,
			MIN(price) AS min_price,
			MAX(price) AS max_price`).
		Where(PublicScope).
		Where("ratings_average >= ?", statsRatingFloor).
		Group("UPPER(difficulty)").
		Order("avg_rating DESC").
		Order("min_price ASC").
		Scan(&out).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "tour stats")
	}
	return out, nil
}

// ParseYear validates the year of a monthly plan request.
func ParseYear(raw string) (int, error) {
	year, err := strconv.Atoi(raw)
	if err != nil || year < 1 || year > 9999 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "Please provide a valid year").
			WithDetails([]string{"year must be a four digit number"})
	}
	return year, nil
}

// MonthlyPlan counts tour start dates per month of year, busiest month first.
func (s *Service) MonthlyPlan(ctx context.Context, year int) ([]MonthPlan, error) {
	var rows []models.Tour
	err := s.db.WithContext(ctx).
		Select("id", "name", "start_dates").
		Where(PublicScope).
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "monthly plan")
	}
	return planMonths(rows, year), nil
}

func planMonths(rows []models.Tour, year int) []MonthPlan {
	byMonth := map[time.Month]*MonthPlan{}
	for _, t := range rows {
		for _, start := range t.StartDates {
			start = start.UTC()
			if start.Year() != year {
				continue
			}
			plan, ok := byMonth[start.Month()]
			if !ok {
				plan = &MonthPlan{Month: int(start.Month()), Tours: []string{}}
				byMonth[start.Month()] = plan
			}
			plan.NumTours++
			plan.Tours = append(plan.Tours, t.Name)
		}
	}

	out := make([]MonthPlan, 0, len(byMonth))
	for _, plan := range byMonth {
		out = append(out, *plan)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NumTours != out[j].NumTours {
			return out[i].NumTours > out[j].NumTours
		}
		return out[i].Month < out[j].Month
	})
	return out
}

