package dashboard

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/storage"
)

func TestDashboard(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Dashboard Suite")
}

func historyKey(serviceID int64, at time.Time) string {
	return fmt.Sprintf("%d@%s", serviceID, at.Format(time.RFC3339))
}

type fakeStore struct {
	services    []models.Service
	servicesErr error

	breakdown    *storage.AlertBreakdown
	breakdownErr error

	// history maps service@timestamp to the stored risk level.
	history map[string]models.RiskLevel

	recentAvg, priorAvg *float64
	avgErr              error
	avgCalls            int
}

func (f *fakeStore) ActiveServices(_ context.Context) ([]models.Service, error) {
	if f.servicesErr != nil {
		return nil, f.servicesErr
	}
	return f.services, nil
}

func (f *fakeStore) AlertBreakdownSince(_ context.Context, _ time.Time) (*storage.AlertBreakdown, error) {
	if f.breakdownErr != nil {
		return nil, f.breakdownErr
	}
	return f.breakdown, nil
}

func (f *fakeStore) NearestBurnHistory(_ context.Context, serviceID int64, at time.Time, _ time.Duration) (*models.BurnHistory, error) {
	if risk, ok := f.history[historyKey(serviceID, at)]; ok {
		return &models.BurnHistory{ServiceID: serviceID, Timestamp: at, RiskLevel: risk}, nil
	}
	return nil, &models.Error{Kind: models.ErrKindNotFound, Message: "no burn history"}
}

func (f *fakeStore) FleetBurnAverage(_ context.Context, _ int, _, _ time.Time) (*float64, error) {
	f.avgCalls++
	if f.avgErr != nil {
		return nil, f.avgErr
	}
	// First call covers the recent span, second the prior one.
	if f.avgCalls%2 == 1 {
		return f.recentAvg, nil
	}
	return f.priorAvg, nil
}

type fakeSLO struct {
	compliance *models.GlobalCompliance
	err        error
}

func (f *fakeSLO) GlobalCompliance(_ context.Context) (*models.GlobalCompliance, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.compliance, nil
}

type burnResult struct {
	risk      models.RiskLevel
	remaining float64
	err       error
}

type fakeBurn struct {
	results map[int64]burnResult
}

func (f *fakeBurn) ComputeForService(_ context.Context, svc *models.Service, windowMinutes int) (*models.BurnRateComputation, error) {
	r, ok := f.results[svc.ID]
	if !ok || r.err != nil {
		if r.err != nil {
			return nil, r.err
		}
		return nil, errors.New("no result configured")
	}
	return &models.BurnRateComputation{
		ServiceID:            svc.ID,
		ServiceName:          svc.Name,
		WindowMinutes:        windowMinutes,
		RiskLevel:            r.risk,
		ErrorBudgetRemaining: r.remaining,
		ErrorBudgetConsumed:  100 - r.remaining,
	}, nil
}

type fakeForecast struct {
	nearest *models.NearestExhaustion
	err     error
}

func (f *fakeForecast) NearestExhaustion(_ context.Context) (*models.NearestExhaustion, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.nearest, nil
}

var _ = Describe("Assembler", func() {
	var (
		store     *fakeStore
		slo       *fakeSLO
		burn      *fakeBurn
		forecast  *fakeForecast
		assembler *Assembler
		ctx       context.Context
		now       time.Time
	)

	BeforeEach(func() {
		now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		store = &fakeStore{
			services: []models.Service{
				{ID: 1, Name: "api-gateway", IsActive: true},
				{ID: 2, Name: "payment-service", IsActive: true},
				{ID: 3, Name: "user-service", IsActive: true},
			},
			breakdown: &storage.AlertBreakdown{
				Total:          7,
				Unacknowledged: 4,
				BySeverity:     map[string]int64{"warning": 3, "critical": 3, "emergency": 1},
			},
			history: map[string]models.RiskLevel{},
		}
		slo = &fakeSLO{compliance: &models.GlobalCompliance{
			TotalServices:      3,
			ServicesMeetingSLO: 2,
			GlobalCompliance:   96.5,
			ServicesAtRisk:     []string{"api-gateway"},
		}}
		burn = &fakeBurn{results: map[int64]burnResult{
			1: {risk: models.RiskDanger, remaining: 15.2},
			2: {risk: models.RiskSafe, remaining: 80.0},
			3: {risk: models.RiskSafe, remaining: 64.8},
		}}
		forecast = &fakeForecast{nearest: &models.NearestExhaustion{
			ServiceName:           "api-gateway",
			TimeToExhaustionHours: 4.2,
		}}
		assembler = New(store, slo, burn, forecast, nil, zap.NewNop())
		assembler.now = func() time.Time { return now }
		ctx = context.Background()
	})

	Describe("RefreshOverview", func() {
		It("assembles the fleet view", func() {
			o, err := assembler.RefreshOverview(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(o.TotalServices).To(Equal(3))
			Expect(o.ServicesMeetingSLO).To(Equal(2))
			Expect(o.ServicesAtRisk).To(Equal(1))
			Expect(o.GlobalCompliance).To(Equal(96.5))

			Expect(o.RiskDistribution).To(Equal(map[string]int{
				"safe": 2, "observe": 0, "danger": 1, "freeze": 0,
			}))
			Expect(o.AverageBudgetRemaining).To(Equal(53.33))
			Expect(*o.LowestBudgetService).To(Equal("api-gateway"))
			Expect(*o.LowestBudgetPercentage).To(Equal(15.2))

			Expect(o.NearestExhaustion.ServiceName).To(Equal("api-gateway"))
			Expect(o.ActiveAlerts).To(Equal(int64(7)))
			Expect(o.CriticalAlerts).To(Equal(int64(4)))
		})

		It("skips services whose computation fails", func() {
			burn.results[2] = burnResult{err: errors.New("metrics gone")}

			o, err := assembler.RefreshOverview(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(o.RiskDistribution["safe"]).To(Equal(1))
			Expect(o.AverageBudgetRemaining).To(Equal(40.0))
		})

		It("reads a silent fleet as fully budgeted", func() {
			store.services = nil
			slo.compliance = &models.GlobalCompliance{GlobalCompliance: 100}

			o, err := assembler.RefreshOverview(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(o.AverageBudgetRemaining).To(Equal(100.0))
			Expect(o.LowestBudgetService).To(BeNil())
			Expect(o.RiskDistribution["safe"]).To(BeZero())
		})

		It("leaves the exhaustion panel empty when the forecast fails", func() {
			forecast.err = errors.New("fit failed")

			o, err := assembler.RefreshOverview(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(o.NearestExhaustion).To(BeNil())
		})

		It("fails when the compliance rollup fails", func() {
			slo.err = errors.New("db down")

			_, err := assembler.RefreshOverview(ctx)
			Expect(err).To(MatchError("db down"))
		})

		DescribeTable("compliance trend",
			func(recent, prior *float64, expected string) {
				store.recentAvg = recent
				store.priorAvg = prior

				o, err := assembler.RefreshOverview(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(o.ComplianceTrend24h).To(Equal(expected))
			},
			Entry("burn falling", ptr(0.8), ptr(1.2), "improving"),
			Entry("burn climbing", ptr(1.5), ptr(0.9), "degrading"),
			Entry("within noise", ptr(1.02), ptr(1.0), "stable"),
			Entry("no recent history", nil, ptr(1.0), "stable"),
			Entry("no history at all", nil, nil, "stable"),
		)

		It("reads a trend query failure as stable", func() {
			store.avgErr = errors.New("timeout")

			o, err := assembler.RefreshOverview(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(o.ComplianceTrend24h).To(Equal("stable"))
		})
	})

	Describe("Overview caching", func() {
		var (
			mr    *miniredis.Miniredis
			cache *storage.SnapshotCache
		)

		BeforeEach(func() {
			var err error
			mr, err = miniredis.Run()
			Expect(err).NotTo(HaveOccurred())
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			cache = storage.NewSnapshotCacheWithClient(client, time.Minute, zap.NewNop())

			assembler = New(store, slo, burn, forecast, cache, zap.NewNop())
			assembler.now = func() time.Time { return now }
		})

		AfterEach(func() {
			cache.Close()
			mr.Close()
		})

		It("serves the cached overview until it expires", func() {
			first, err := assembler.Overview(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.ActiveAlerts).To(Equal(int64(7)))

			// Fresh alerts do not show until the snapshot turns over.
			store.breakdown.Total = 9
			second, err := assembler.Overview(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.ActiveAlerts).To(Equal(int64(7)))

			mr.FastForward(2 * time.Minute)
			third, err := assembler.Overview(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(third.ActiveAlerts).To(Equal(int64(9)))
		})

		It("always rebuilds on RefreshOverview", func() {
			_, err := assembler.Overview(ctx)
			Expect(err).NotTo(HaveOccurred())

			store.breakdown.Total = 12
			refreshed, err := assembler.RefreshOverview(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(refreshed.ActiveAlerts).To(Equal(int64(12)))

			cached, err := assembler.Overview(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(cached.ActiveAlerts).To(Equal(int64(12)))
		})
	})

	Describe("Heatmap", func() {
		It("resolves each bucket to the nearest stored risk", func() {
			store.services = store.services[:2]
			store.history[historyKey(1, now)] = models.RiskDanger
			store.history[historyKey(1, now.Add(-time.Hour))] = models.RiskObserve
			store.history[historyKey(2, now)] = models.RiskSafe

			h, err := assembler.Heatmap(ctx, 2, 1)
			Expect(err).NotTo(HaveOccurred())

			Expect(h.Services).To(Equal([]string{"api-gateway", "payment-service"}))
			Expect(h.Timestamps).To(Equal([]time.Time{
				now.Add(-2 * time.Hour), now.Add(-time.Hour), now,
			}))
			Expect(h.RiskMatrix).To(Equal([][]string{
				{"safe", "observe", "danger"},
				{"safe", "safe", "safe"},
			}))
		})

		It("defaults to a day of hourly buckets", func() {
			h, err := assembler.Heatmap(ctx, 0, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(h.Timestamps).To(HaveLen(25))
			Expect(h.Timestamps[0]).To(Equal(now.Add(-24 * time.Hour)))
			Expect(h.Timestamps[24]).To(Equal(now))
		})

		It("returns an empty matrix for an empty fleet", func() {
			store.services = nil

			h, err := assembler.Heatmap(ctx, 24, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(h.Services).To(BeEmpty())
			Expect(h.Timestamps).To(BeEmpty())
			Expect(h.RiskMatrix).To(BeEmpty())
		})
	})
})

func ptr[T any](v T) *T { return &v }
