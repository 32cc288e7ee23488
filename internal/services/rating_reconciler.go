package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/places/domain"
	"github.com/fastygo/places/repository"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// ReconcilerConfig controls how often place ratings are recomputed.
type ReconcilerConfig struct {
	Interval time.Duration
}

// Report summarizes one reconciliation pass.
type Report struct {
	Checked   int  `json:"checked" yaml:"checked"`
	Corrected int  `json:"corrected" yaml:"corrected"`
	Failed    int  `json:"failed" yaml:"failed"`
	Skipped   bool `json:"skipped" yaml:"skipped"`
}

// RatingReconciler recomputes each place's rating and review count from its
// reviews and writes back the ones that drifted.
type RatingReconciler struct {
	places  repository.PlaceRepository
	reviews repository.ReviewRepository
	monitor ConnectionHealth
	logger  *zap.Logger
	cron    *cron.Cron
	cfg     ReconcilerConfig
}

func NewRatingReconciler(
	places repository.PlaceRepository,
	reviews repository.ReviewRepository,
	monitor ConnectionHealth,
	logger *zap.Logger,
	cfg ReconcilerConfig,
) (*RatingReconciler, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Interval < time.Second {
		cfg.Interval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rr := &RatingReconciler{
		places:  places,
		reviews: reviews,
		monitor: monitor,
		logger:  logger,
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %s", cfg.Interval.Truncate(time.Second))
	if _, err := rr.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if _, err := rr.Reconcile(ctx); err != nil {
			rr.logger.Error("rating reconciliation failed", zap.Error(err))
		}
	}); err != nil {
		return nil, err
	}

	return rr, nil
}

// Start launches the cron scheduler.
func (rr *RatingReconciler) Start() {
	if rr == nil || rr.cron == nil {
		return
	}
	rr.cron.Start()
	rr.logger.Info("rating reconciler started", zap.Duration("interval", rr.cfg.Interval))
}

// Stop gracefully stops the scheduler.
func (rr *RatingReconciler) Stop(ctx context.Context) {
	if rr == nil || rr.cron == nil {
		return
	}
	stopCtx := rr.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	rr.logger.Info("rating reconciler stopped")
}

// Reconcile runs one pass synchronously. Per-place failures are counted and
// logged; only failing to list places is returned as an error.
func (rr *RatingReconciler) Reconcile(ctx context.Context) (Report, error) {
	var report Report
	if rr.monitor != nil && !rr.monitor.IsOnline() {
		rr.logger.Debug("skipping rating reconciliation (offline)")
		report.Skipped = true
		return report, nil
	}

	places, err := rr.places.List(ctx)
	if err != nil {
		return report, err
	}

	for _, place := range places {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++

		ratings, err := rr.reviews.RatingsByPlace(ctx, place.ID.String())
		if err != nil {
			report.Failed++
			rr.logger.Warn("failed to read ratings", zap.String("place_id", place.ID.String()), zap.Error(err))
			continue
		}

		want := domain.AverageRating(ratings)
		if !drifted(place, want) {
			continue
		}
		if err := rr.places.UpdateRating(ctx, place.ID.String(), want); err != nil {
			report.Failed++
			rr.logger.Warn("failed to correct rating", zap.String("place_id", place.ID.String()), zap.Error(err))
			continue
		}
		report.Corrected++
		rr.logger.Info("place rating corrected",
			zap.String("place_id", place.ID.String()),
			zap.Float64("from", place.Rating),
			zap.Float64("to", want.Rating),
			zap.Int("ratings_count", want.RatingsCount))
	}
	return report, nil
}

func drifted(place domain.Place, want domain.RatingUpdate) bool {
	return place.RatingsCount != want.RatingsCount || math.Abs(place.Rating-want.Rating) >= 0.05
}
