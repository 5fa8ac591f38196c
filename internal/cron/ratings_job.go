package cron

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourbook-backend/internal/reviews"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
)

type ratingsRecalculator interface {
	Summarize(ctx context.Context, tx *gorm.DB, tourID uuid.UUID) (reviews.Summary, error)
	Recalculate(ctx context.Context, tx *gorm.DB, tourID uuid.UUID) error
}

type RatingsReconcileJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Aggregator ratingsRecalculator
}

// NewRatingsReconcileJob rewrites tour rating summaries that drifted from
// their reviews, for example after a bulk import or a manual delete.
func NewRatingsReconcileJob(params RatingsReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.DB == nil {
		return nil, errors.New("db runner required")
	}
	agg := params.Aggregator
	if agg == nil {
		agg = reviews.RatingAggregator{}
	}
	return &ratingsReconcileJob{logg: params.Logger, db: params.DB, agg: agg}, nil
}

type ratingsReconcileJob struct {
	logg *logger.Logger
	db   txRunner
	agg  ratingsRecalculator
}

func (j *ratingsReconcileJob) Name() string { return "ratings-reconcile" }

func (j *ratingsReconcileJob) Run(ctx context.Context) error {
	var checked, fixed int
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var tours []models.Tour
		if err := tx.WithContext(ctx).
			Select("id", "ratings_quantity", "ratings_average").
			Find(&tours).Error; err != nil {
			return fmt.Errorf("list tours: %w", err)
		}
		for _, tour := range tours {
			checked++
			summary, err := j.agg.Summarize(ctx, tx, tour.ID)
			if err != nil {
				return err
			}
			if summary.Quantity == tour.RatingsQuantity && summary.Average == tour.RatingsAverage {
				continue
			}
			if err := j.agg.Recalculate(ctx, tx, tour.ID); err != nil {
				return err
			}
			fixed++
		}
		return nil
	})
	if err != nil {
		return err
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"tours_checked": checked,
		"tours_fixed":   fixed,
	}), "ratings reconcile complete")
	return nil
}
