package burnrate

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/config"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/storage"
)

type windowTotals struct {
	requests int64
	errors   int64
}

// fakeStore satisfies the engine's Store interface in memory. Metric totals
// are keyed by the window length the engine asked for.
type fakeStore struct {
	services map[int64]*models.Service
	targets  map[int64]*models.SLOTarget
	totals   map[int]windowTotals
	history  []models.BurnHistory
	agg      *storage.BurnAggregates
	inserted []*models.BurnHistory
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		services: map[int64]*models.Service{},
		targets:  map[int64]*models.SLOTarget{},
		totals:   map[int]windowTotals{},
	}
}

func (f *fakeStore) ServiceByID(_ context.Context, id int64) (*models.Service, error) {
	svc, ok := f.services[id]
	if !ok {
		return nil, models.UnknownServiceByID(id)
	}
	return svc, nil
}

func (f *fakeStore) ServiceByName(_ context.Context, name string) (*models.Service, error) {
	for _, svc := range f.services {
		if svc.Name == name {
			return svc, nil
		}
	}
	return nil, models.UnknownServiceByName(name)
}

func (f *fakeStore) ActiveSLOTarget(_ context.Context, serviceID int64, _ string) (*models.SLOTarget, error) {
	t, ok := f.targets[serviceID]
	if !ok {
		return nil, &models.Error{Kind: models.ErrKindNotFound, Message: "no target"}
	}
	return t, nil
}

func (f *fakeStore) MetricTotals(_ context.Context, _ int64, from, to time.Time) (int64, int64, error) {
	minutes := int(to.Sub(from).Minutes())
	t := f.totals[minutes]
	return t.requests, t.errors, nil
}

func (f *fakeStore) InsertBurnHistory(_ context.Context, h *models.BurnHistory) error {
	h.ID = int64(len(f.inserted) + 1)
	f.inserted = append(f.inserted, h)
	return nil
}

func (f *fakeStore) BurnHistory(_ context.Context, _ storage.BurnHistoryQuery) ([]models.BurnHistory, error) {
	return f.history, nil
}

func (f *fakeStore) BurnAggregatesSince(_ context.Context, _ int64, _ time.Time) (*storage.BurnAggregates, error) {
	if f.agg == nil {
		return &storage.BurnAggregates{}, nil
	}
	return f.agg, nil
}

func ptr[T any](v T) *T { return &v }

var _ = Describe("Engine", func() {
	var (
		store   *fakeStore
		engine  *Engine
		ctx     context.Context
		service *models.Service
	)

	BeforeEach(func() {
		store = newFakeStore()
		service = &models.Service{ID: 1, Name: "payments-api", Tier: 1, IsActive: true}
		store.services[1] = service
		store.targets[1] = &models.SLOTarget{
			ID: 10, ServiceID: 1, Name: models.SLOAvailability,
			TargetValue: 99.9, WindowDays: 30,
			BurnRateThreshold: 1.0, CriticalBurnRate: 2.0,
			ErrorBudgetPolicy: 100, IsActive: true,
		}

		engine = NewEngine(store, config.NewRuntime(config.Default()), 30, zap.NewNop())
		engine.now = func() time.Time {
			return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		}
		ctx = context.Background()
	})

	Describe("Compute", func() {
		It("evaluates a healthy service as safe", func() {
			store.totals[60] = windowTotals{requests: 600000, errors: 120}

			c, err := engine.Compute(ctx, 1, 60)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.CurrentErrorRate).To(Equal(0.0002))
			Expect(c.AllowedErrorRate).To(Equal(0.001))
			Expect(c.BurnRate).To(Equal(0.2))
			Expect(c.ErrorBudgetConsumed).To(Equal(20.0))
			Expect(c.ErrorBudgetRemaining).To(Equal(80.0))
			Expect(c.RiskLevel).To(Equal(models.RiskSafe))
			Expect(c.RiskColor).To(Equal("#22c55e"))
			Expect(c.RiskAction).To(Equal("Normal operations"))
		})

		It("freezes a service that blew through its window budget", func() {
			store.totals[60] = windowTotals{requests: 600000, errors: 1200}

			c, err := engine.Compute(ctx, 1, 60)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.BurnRate).To(Equal(2.0))
			Expect(c.ErrorBudgetConsumed).To(Equal(100.0))
			Expect(c.ErrorBudgetRemaining).To(BeZero())
			Expect(c.RiskLevel).To(Equal(models.RiskFreeze))
		})

		It("treats an empty window as perfect availability", func() {
			c, err := engine.Compute(ctx, 1, 60)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.BurnRate).To(BeZero())
			Expect(c.CurrentErrorRate).To(BeZero())
			Expect(c.ErrorBudgetConsumed).To(BeZero())
			Expect(c.ErrorBudgetRemaining).To(Equal(100.0))
			Expect(c.RiskLevel).To(Equal(models.RiskSafe))
		})

		It("defines burn rate as zero when the target allows no errors", func() {
			store.targets[1].TargetValue = 100
			store.totals[60] = windowTotals{requests: 1000, errors: 5}

			c, err := engine.Compute(ctx, 1, 60)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.AllowedErrorRate).To(BeZero())
			Expect(c.BurnRate).To(BeZero())
			Expect(c.ErrorBudgetConsumed).To(BeZero())
		})

		It("falls back to the stock 99.9 target when none is registered", func() {
			delete(store.targets, 1)
			store.totals[60] = windowTotals{requests: 10000, errors: 10}

			c, err := engine.Compute(ctx, 1, 60)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.AllowedErrorRate).To(Equal(0.001))
			Expect(c.BurnRate).To(Equal(1.0))
		})

		It("propagates unknown services", func() {
			_, err := engine.Compute(ctx, 404, 60)
			Expect(models.IsUnknownService(err)).To(BeTrue())
		})
	})

	DescribeTable("Classify",
		func(burn, budget float64, expected models.RiskLevel) {
			Expect(Classify(burn, budget, config.Default().Thresholds)).To(Equal(expected))
		},
		Entry("idle service is safe", 0.0, 0.0, models.RiskSafe),
		Entry("just below observe stays safe", 1.49, 69.9, models.RiskSafe),
		Entry("observe cutoff is inclusive", 1.5, 0.0, models.RiskObserve),
		Entry("budget alone can reach observe", 0.0, 70.0, models.RiskObserve),
		Entry("danger cutoff is inclusive", 2.0, 0.0, models.RiskDanger),
		Entry("budget alone can reach danger", 0.0, 85.0, models.RiskDanger),
		Entry("freeze cutoff is inclusive", 3.0, 0.0, models.RiskFreeze),
		Entry("budget alone can reach freeze", 0.0, 95.0, models.RiskFreeze),
		Entry("most severe dimension wins", 1.6, 96.0, models.RiskFreeze),
	)

	Describe("WeightedForService", func() {
		It("combines windows by canonical weight and takes the worst risk", func() {
			// Burn rates per window: 5m spike at 3.0, 1h at 2.0, 24h at 1.0.
			store.totals[5] = windowTotals{requests: 100000, errors: 300}
			store.totals[60] = windowTotals{requests: 600000, errors: 1200}
			store.totals[1440] = windowTotals{requests: 9000000, errors: 9000}

			w, err := engine.WeightedForService(ctx, service)
			Expect(err).NotTo(HaveOccurred())
			Expect(w.Windows).To(HaveLen(3))
			// 0.3*3.0 + 0.4*2.0 + 0.3*1.0 = 2.0
			Expect(w.BurnRate).To(Equal(2.0))
			Expect(w.CompositeRisk).To(Equal(models.RiskFreeze))
		})

		It("stays safe for a quiet fleet member", func() {
			w, err := engine.Weighted(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(w.BurnRate).To(BeZero())
			Expect(w.CompositeRisk).To(Equal(models.RiskSafe))
		})
	})

	Describe("StoreComputation", func() {
		It("persists the computation without an exhaustion projection", func() {
			store.totals[60] = windowTotals{requests: 600000, errors: 120}
			c, err := engine.Compute(ctx, 1, 60)
			Expect(err).NotTo(HaveOccurred())

			h, err := engine.StoreComputation(ctx, c)
			Expect(err).NotTo(HaveOccurred())
			Expect(h.ID).NotTo(BeZero())
			Expect(h.BurnRate).To(Equal(0.2))
			Expect(h.WindowMinutes).To(Equal(60))
			Expect(h.RiskLevel).To(Equal(models.RiskSafe))
			Expect(h.TimeToExhaustionHours).To(BeNil())
			Expect(store.inserted).To(HaveLen(1))
		})
	})

	Describe("HistoryReport", func() {
		It("summarizes persisted history newest-first", func() {
			store.history = []models.BurnHistory{
				{BurnRate: 1.8, RiskLevel: models.RiskObserve},
				{BurnRate: 1.2, RiskLevel: models.RiskSafe},
				{BurnRate: 0.6, RiskLevel: models.RiskSafe},
			}

			report, err := engine.HistoryReport(ctx, 1, 24)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.ServiceName).To(Equal("payments-api"))
			Expect(report.CurrentBurnRate).To(Equal(1.8))
			Expect(report.PeakBurnRate24h).To(Equal(1.8))
			Expect(report.AverageBurnRate24h).To(Equal(1.2))
		})

		It("returns an empty report when nothing is stored", func() {
			report, err := engine.HistoryReport(ctx, 1, 24)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.History).To(BeEmpty())
			Expect(report.CurrentBurnRate).To(BeZero())
		})
	})

	Describe("Statistics", func() {
		It("rounds the aggregate rollups", func() {
			store.agg = &storage.BurnAggregates{
				AverageBurnRate:       ptr(1.23456),
				PeakBurnRate:          ptr(2.99999),
				MinBurnRate:           ptr(0.10001),
				AverageBudgetConsumed: ptr(45.678),
				Samples:               12,
			}

			stats, err := engine.Statistics(ctx, 1, 24)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.AverageBurnRate).To(Equal(1.235))
			Expect(stats.PeakBurnRate).To(Equal(3.0))
			Expect(stats.MinBurnRate).To(Equal(0.1))
			Expect(stats.AverageBudgetConsumed).To(Equal(45.68))
			Expect(stats.Hours).To(Equal(24))
		})

		It("returns zeros when no history exists", func() {
			stats, err := engine.Statistics(ctx, 1, 24)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.AverageBurnRate).To(BeZero())
			Expect(stats.Hours).To(Equal(24))
		})
	})
})
