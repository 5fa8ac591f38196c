package reviews

import (
	"context"

	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RatingAggregator keeps a tour's ratingsAverage and ratingsQuantity in
// line with its reviews.
type RatingAggregator struct{}

// Summary is the derived rating state of one tour.
type Summary struct {
	Quantity int
	Average  float64
}

// Summarize computes the summary for tourID from the reviews visible to tx.
func (RatingAggregator) Summarize(ctx context.Context, tx *gorm.DB, tourID uuid.UUID) (Summary, error) {
	var row struct {
		Count int64
		Total float64
	}
	err := tx.WithContext(ctx).
		Model(&models.Review{}).
		Select("COUNT(*) AS count, COALESCE(SUM(rating), 0) AS total").
		Where("tour_id = ?", tourID).
		Scan(&row).Error
	if err != nil {
		return Summary{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "aggregate ratings")
	}
	if row.Count == 0 {
		return Summary{Quantity: 0, Average: models.DefaultRatingsAverage}, nil
	}
	avg, _ := decimal.NewFromFloat(row.Total).
		DivRound(decimal.NewFromInt(row.Count), 8).
		Round(1).
		Float64()
	return Summary{Quantity: int(row.Count), Average: avg}, nil
}

// Recalculate writes the current summary onto the tour. It must run in the
// same transaction as the review write that triggered it.
func (a RatingAggregator) Recalculate(ctx context.Context, tx *gorm.DB, tourID uuid.UUID) error {
	summary, err := a.Summarize(ctx, tx, tourID)
	if err != nil {
		return err
	}
	err = tx.WithContext(ctx).
		Model(&models.Tour{}).
		Where("id = ?", tourID).
		UpdateColumns(map[string]any{
			"ratings_quantity": summary.Quantity,
			"ratings_average":  summary.Average,
		}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store ratings")
	}
	return nil
}
