// Package ingest accepts raw traffic snapshots, registers services on
// first sight, and answers history, rollup, and retention questions over
// the stored series.
package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/storage"
)

const (
	defaultHistoryHours  = 24
	defaultHistoryLimit  = 1000
	defaultWindowMinutes = 60
)

// Store is the persistence surface ingestion needs.
type Store interface {
	EnsureService(ctx context.Context, name string) (*models.Service, error)
	ServiceByID(ctx context.Context, id int64) (*models.Service, error)
	InsertMetrics(ctx context.Context, rows []models.Metric) (int, error)
	MetricsSince(ctx context.Context, serviceID int64, since time.Time, limit int) ([]models.Metric, error)
	LatestMetric(ctx context.Context, serviceID int64) (*models.Metric, error)
	AggregateMetrics(ctx context.Context, serviceID int64, from, to time.Time) (*storage.MetricAggregates, error)
	DeleteMetricsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Ingester persists metric snapshots and serves read queries over them.
// Safe for concurrent use.
type Ingester struct {
	store         Store
	retentionDays int
	logger        *zap.Logger
	now           func() time.Time
}

// NewIngester constructs an ingester. retentionDays bounds Cleanup when
// the caller does not pass an explicit retention.
func NewIngester(store Store, retentionDays int, logger *zap.Logger) *Ingester {
	return &Ingester{
		store:         store,
		retentionDays: retentionDays,
		logger:        logger.Named("ingest"),
		now:           time.Now,
	}
}

// Ingest persists a batch of snapshots. Services are created on first
// sight. Malformed items are counted and skipped without failing the
// batch; a storage failure fails the whole call.
func (i *Ingester) Ingest(ctx context.Context, snapshots []models.MetricSnapshot) (*models.IngestResult, error) {
	result := &models.IngestResult{}
	now := i.now().UTC()

	// Batches from the simulator repeat the same handful of services;
	// resolve each name once.
	services := map[string]*models.Service{}
	rows := make([]models.Metric, 0, len(snapshots))

	for idx := range snapshots {
		snap := &snapshots[idx]
		if err := validateSnapshot(snap); err != nil {
			result.Errors++
			i.logger.Warn("Skipping malformed metric snapshot",
				zap.String("service", snap.Service),
				zap.Error(err))
			continue
		}

		svc, ok := services[snap.Service]
		if !ok {
			var err error
			svc, err = i.store.EnsureService(ctx, snap.Service)
			if err != nil {
				result.Errors++
				i.logger.Warn("Failed to resolve service for metric snapshot",
					zap.String("service", snap.Service),
					zap.Error(err))
				continue
			}
			services[snap.Service] = svc
		}

		ts := snap.Timestamp
		if ts.IsZero() {
			ts = now
		}
		rows = append(rows, models.Metric{
			ServiceID:     svc.ID,
			Timestamp:     ts,
			TotalRequests: snap.TotalRequests,
			ErrorCount:    snap.ErrorCount,
			LatencyP50:    snap.LatencyP50,
			LatencyP95:    snap.LatencyP95,
			LatencyP99:    snap.LatencyP99,
			SuccessRate:   successRate(snap.TotalRequests, snap.ErrorCount),
		})
	}

	processed, err := i.store.InsertMetrics(ctx, rows)
	if err != nil {
		return nil, models.Internal("", err)
	}
	result.Processed = processed

	i.logger.Info("Ingested metric batch",
		zap.Int("processed", result.Processed),
		zap.Int("errors", result.Errors))
	return result, nil
}

// History returns snapshots for a service over the trailing hours, newest
// first. Zero or negative arguments fall back to 24 h and 1000 rows.
func (i *Ingester) History(ctx context.Context, serviceID int64, hours, limit int) ([]models.Metric, error) {
	if _, err := i.store.ServiceByID(ctx, serviceID); err != nil {
		return nil, err
	}
	if hours <= 0 {
		hours = defaultHistoryHours
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	since := i.now().UTC().Add(-time.Duration(hours) * time.Hour)
	return i.store.MetricsSince(ctx, serviceID, since, limit)
}

// Latest returns the newest snapshot for a service.
func (i *Ingester) Latest(ctx context.Context, serviceID int64) (*models.Metric, error) {
	if _, err := i.store.ServiceByID(ctx, serviceID); err != nil {
		return nil, err
	}
	return i.store.LatestMetric(ctx, serviceID)
}

// Aggregated rolls the trailing window up into totals, availability, and
// a mean p99. Availability is null when the window saw no traffic.
func (i *Ingester) Aggregated(ctx context.Context, serviceID int64, windowMinutes int) (*models.AggregatedMetrics, error) {
	if _, err := i.store.ServiceByID(ctx, serviceID); err != nil {
		return nil, err
	}
	if windowMinutes <= 0 {
		windowMinutes = defaultWindowMinutes
	}

	end := i.now().UTC()
	start := end.Add(-time.Duration(windowMinutes) * time.Minute)
	agg, err := i.store.AggregateMetrics(ctx, serviceID, start, end)
	if err != nil {
		return nil, err
	}

	out := &models.AggregatedMetrics{
		TotalRequests: agg.TotalRequests,
		ErrorCount:    agg.ErrorCount,
		AvgLatencyP99: agg.AvgLatencyP99,
		WindowMinutes: windowMinutes,
		DataPoints:    int(agg.DataPoints),
	}
	if agg.TotalRequests > 0 {
		avail := float64(agg.TotalRequests-agg.ErrorCount) / float64(agg.TotalRequests) * 100
		out.Availability = &avail
	}
	return out, nil
}

// Cleanup prunes snapshots older than the retention period and reports
// how many rows were removed. Non-positive days use the configured
// default.
func (i *Ingester) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = i.retentionDays
	}
	cutoff := i.now().UTC().AddDate(0, 0, -retentionDays)

	deleted, err := i.store.DeleteMetricsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		i.logger.Info("Pruned old metrics",
			zap.Int64("deleted", deleted),
			zap.Int("retention_days", retentionDays))
	}
	return deleted, nil
}

func validateSnapshot(snap *models.MetricSnapshot) error {
	switch {
	case snap.Service == "":
		return models.InvalidInput("metric snapshot is missing a service name")
	case snap.TotalRequests < 0:
		return models.InvalidInput("total_requests must be non-negative, got %d", snap.TotalRequests)
	case snap.ErrorCount < 0:
		return models.InvalidInput("error_count must be non-negative, got %d", snap.ErrorCount)
	case snap.ErrorCount > snap.TotalRequests:
		return models.InvalidInput("error_count %d exceeds total_requests %d", snap.ErrorCount, snap.TotalRequests)
	}
	return nil
}

// successRate mirrors the stored success_rate column: percentage of
// non-error requests, null when the snapshot saw no traffic.
func successRate(total, errs int64) *float64 {
	if total <= 0 {
		return nil
	}
	rate := float64(total-errs) / float64(total) * 100
	return &rate
}
