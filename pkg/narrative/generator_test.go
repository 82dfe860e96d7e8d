package narrative

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/storage"
)

func TestNarrative(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Narrative Suite")
}

type fakeStore struct {
	services map[int64]*models.Service

	alerts     []models.AlertWithService
	lastFilter storage.AlertFilter
}

func newFakeStore() *fakeStore {
	return &fakeStore{services: map[int64]*models.Service{}}
}

func (f *fakeStore) ServiceByID(_ context.Context, id int64) (*models.Service, error) {
	svc, ok := f.services[id]
	if !ok {
		return nil, models.UnknownServiceByID(id)
	}
	return svc, nil
}

func (f *fakeStore) ActiveServices(_ context.Context) ([]models.Service, error) {
	out := []models.Service{}
	for _, svc := range f.services {
		out = append(out, *svc)
	}
	return out, nil
}

func (f *fakeStore) Alerts(_ context.Context, filter storage.AlertFilter) ([]models.AlertWithService, error) {
	f.lastFilter = filter
	return f.alerts, nil
}

type fakeBurn struct {
	computations map[int64]*models.BurnRateComputation
	weighted     map[int64]*models.WeightedBurnRate
	errFor       map[int64]error
}

func newFakeBurn() *fakeBurn {
	return &fakeBurn{
		computations: map[int64]*models.BurnRateComputation{},
		weighted:     map[int64]*models.WeightedBurnRate{},
		errFor:       map[int64]error{},
	}
}

func (f *fakeBurn) ComputeForService(_ context.Context, svc *models.Service, windowMinutes int) (*models.BurnRateComputation, error) {
	if err := f.errFor[svc.ID]; err != nil {
		return nil, err
	}
	c := *f.computations[svc.ID]
	c.ServiceID = svc.ID
	c.ServiceName = svc.Name
	c.WindowMinutes = windowMinutes
	return &c, nil
}

func (f *fakeBurn) WeightedForService(_ context.Context, svc *models.Service) (*models.WeightedBurnRate, error) {
	return f.weighted[svc.ID], nil
}

type fakeForecaster struct {
	forecasts map[int64]*models.Forecast
	nearest   *models.NearestExhaustion
}

func newFakeForecaster() *fakeForecaster {
	return &fakeForecaster{forecasts: map[int64]*models.Forecast{}}
}

func (f *fakeForecaster) Forecast(_ context.Context, serviceID int64) (*models.Forecast, error) {
	return f.forecasts[serviceID], nil
}

func (f *fakeForecaster) NearestExhaustion(_ context.Context) (*models.NearestExhaustion, error) {
	return f.nearest, nil
}

var _ = Describe("Generator", func() {
	var (
		ctx       context.Context
		store     *fakeStore
		burn      *fakeBurn
		forecasts *fakeForecaster
		gen       *Generator
		now       time.Time
	)

	addService := func(id int64, name string, burnRate, remaining float64, risk models.RiskLevel, trend models.TrendDirection) {
		store.services[id] = &models.Service{ID: id, Name: name, Tier: 2, IsActive: true}
		burn.computations[id] = &models.BurnRateComputation{
			BurnRate:             burnRate,
			ErrorBudgetRemaining: remaining,
			ErrorBudgetConsumed:  100 - remaining,
			RiskLevel:            risk,
		}
		burn.weighted[id] = &models.WeightedBurnRate{
			ServiceID:     id,
			ServiceName:   name,
			BurnRate:      burnRate,
			CompositeRisk: risk,
		}
		forecasts.forecasts[id] = &models.Forecast{
			ServiceID:     id,
			ServiceName:   name,
			BurnRateTrend: trend,
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = newFakeStore()
		burn = newFakeBurn()
		forecasts = newFakeForecaster()
		now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

		gen = NewGenerator(store, burn, forecasts, zap.NewNop())
		gen.now = func() time.Time { return now }
	})

	Describe("ServiceSummary", func() {
		DescribeTable("health scoring",
			func(burnRate, remaining float64, trend models.TrendDirection, want float64) {
				addService(1, "api-gateway", burnRate, remaining, models.RiskSafe, trend)

				narrative, err := gen.ServiceSummary(ctx, 1)
				Expect(err).NotTo(HaveOccurred())
				Expect(narrative.HealthScore).To(BeNumerically("==", want))
			},
			Entry("healthy service keeps a perfect score", 0.5, 80.0, models.TrendStable, 100.0),
			Entry("exhausted budget", 5.0, 0.0, models.TrendStable, 50.0),
			Entry("critical burn", 3.2, 40.0, models.TrendStable, 60.0),
			Entry("elevated burn", 1.8, 40.0, models.TrendStable, 80.0),
			Entry("elevated burn with a low budget", 1.8, 10.0, models.TrendStable, 65.0),
			Entry("critical burn, low budget, degrading", 3.5, 10.0, models.TrendIncreasing, 40.0),
			Entry("exhausted and degrading", 5.0, 0.0, models.TrendIncreasing, 45.0),
		)

		It("describes a healthy service with a single status insight", func() {
			addService(1, "api-gateway", 0.5, 80, models.RiskSafe, models.TrendStable)

			narrative, err := gen.ServiceSummary(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(narrative.ServiceName).To(Equal("api-gateway"))
			Expect(narrative.GeneratedAt).To(Equal(now))
			Expect(narrative.Insights).To(HaveLen(1))
			Expect(narrative.Insights[0].Severity).To(Equal("info"))
			Expect(narrative.Insights[0].Message).To(Equal(
				"api-gateway is operating within error budget parameters. Current burn rate: 0.50×."))
		})

		It("flags an exhausted budget as critical", func() {
			addService(1, "checkout", 5.0, 0, models.RiskFreeze, models.TrendStable)

			narrative, err := gen.ServiceSummary(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(narrative.Insights[0].Severity).To(Equal("critical"))
			Expect(narrative.Insights[0].Message).To(ContainSubstring("EXHAUSTED"))
		})

		It("stacks the low-budget warning on top of the burn insight", func() {
			addService(1, "checkout", 1.8, 10, models.RiskDanger, models.TrendStable)

			narrative, err := gen.ServiceSummary(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(narrative.Insights).To(HaveLen(2))
			Expect(narrative.Insights[1].Message).To(ContainSubstring("critically low at 10.0%"))
		})

		It("degrades to a neutral score when analysis fails", func() {
			store.services[1] = &models.Service{ID: 1, Name: "api-gateway", IsActive: true}
			burn.errFor[1] = errors.New("no traffic in window")

			narrative, err := gen.ServiceSummary(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(narrative.HealthScore).To(BeNumerically("==", 100))
			Expect(narrative.Insights).To(HaveLen(1))
			Expect(narrative.Insights[0].Severity).To(Equal("info"))
			Expect(narrative.Insights[0].Message).To(ContainSubstring("Unable to analyze api-gateway"))
		})

		It("rejects an unknown service", func() {
			_, err := gen.ServiceSummary(ctx, 99)
			Expect(models.IsUnknownService(err)).To(BeTrue())
		})
	})

	Describe("Summary", func() {
		It("reports a quiet fleet as healthy", func() {
			addService(1, "api-gateway", 0.5, 80, models.RiskSafe, models.TrendStable)
			addService(2, "user-service", 0.8, 75, models.RiskSafe, models.TrendStable)

			report, err := gen.Summary(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.OverallScore).To(BeNumerically("==", 100))
			Expect(report.OverallHealth).To(Equal("healthy"))
			Expect(report.ServicesAtRisk).To(BeEmpty())
			Expect(report.ExecutiveSummary).To(ContainSubstring("excellent"))
			Expect(report.ActionItems).To(ConsistOf(
				"Continue monitoring - all systems operating normally"))
		})

		It("averages the fleet and escalates the wording", func() {
			addService(1, "api-gateway", 0.5, 80, models.RiskSafe, models.TrendStable)
			addService(2, "checkout", 5.0, 0, models.RiskFreeze, models.TrendStable)
			forecasts.nearest = &models.NearestExhaustion{
				ServiceName:           "checkout",
				TimeToExhaustionHours: 3.5,
			}

			report, err := gen.Summary(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.OverallScore).To(BeNumerically("==", 75))
			Expect(report.OverallHealth).To(Equal("degraded"))
			Expect(report.ServicesAtRisk).To(ConsistOf("checkout"))
			Expect(report.NearestBudgetExhaustion).To(Equal(forecasts.nearest))
			Expect(report.ExecutiveSummary).To(ContainSubstring(
				"Nearest budget exhaustion: checkout in ~3.5 hours."))
			Expect(report.ActionItems[0]).To(Equal(
				"URGENT: Investigate critical issues in checkout"))
			Expect(report.ActionItems).To(ContainElement(
				"Review error budget status and consider deployment freeze for affected services"))
		})

		It("keeps unanalyzable services out of the at-risk list", func() {
			store.services[1] = &models.Service{ID: 1, Name: "api-gateway", IsActive: true}
			burn.errFor[1] = errors.New("no traffic in window")

			report, err := gen.Summary(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.OverallScore).To(BeNumerically("==", 100))
			Expect(report.ServicesAtRisk).To(BeEmpty())
			Expect(report.Insights).To(HaveLen(1))
			Expect(report.Insights[0].Message).To(ContainSubstring("Unable to analyze"))
		})

		It("treats an empty fleet as healthy", func() {
			report, err := gen.Summary(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.OverallScore).To(BeNumerically("==", 100))
			Expect(report.OverallHealth).To(Equal("healthy"))
			Expect(report.Insights).To(BeEmpty())
		})
	})

	Describe("Report", func() {
		hours := func(h float64) *float64 { return &h }

		BeforeEach(func() {
			addService(7, "payments-api", 2.5, 12, models.RiskDanger, models.TrendIncreasing)
			burn.weighted[7].Windows = []models.BurnRateComputation{
				{WindowMinutes: 5, BurnRate: 3.1, ErrorBudgetConsumed: 88, RiskLevel: models.RiskFreeze},
				{WindowMinutes: 60, BurnRate: 2.5, ErrorBudgetConsumed: 88, RiskLevel: models.RiskDanger},
				{WindowMinutes: 1440, BurnRate: 1.2, ErrorBudgetConsumed: 88, RiskLevel: models.RiskObserve},
			}
			forecasts.forecasts[7].TimeToExhaustionHours = hours(6.0)
			forecasts.forecasts[7].ForecastMessage = "Budget exhaustion projected in 6.0 hours"
		})

		It("renders the full markdown report", func() {
			store.alerts = []models.AlertWithService{{
				Alert: models.Alert{
					Title:     "[WARNING] High Burn Rate: payments-api",
					Timestamp: now.Add(-2 * time.Hour),
				},
				ServiceName: "payments-api",
			}}

			report, err := gen.Report(ctx, 7)
			Expect(err).NotTo(HaveOccurred())

			Expect(report).To(HavePrefix("## payments-api Reliability Report"))
			Expect(report).To(ContainSubstring("**Risk Level:** DANGER"))
			Expect(report).To(ContainSubstring("**Burn Rate:** 2.50×"))
			Expect(report).To(ContainSubstring("**Error Budget:** 12.0% remaining"))
			Expect(report).To(ContainSubstring("| 5m | 3.10× | 88.00% | freeze |"))
			Expect(report).To(ContainSubstring("| 1h | 2.50× | 88.00% | danger |"))
			Expect(report).To(ContainSubstring("| 24h | 1.20× | 88.00% | observe |"))
			Expect(report).To(ContainSubstring("**Forecast:** Budget exhaustion in ~6.0 hours"))
			Expect(report).To(ContainSubstring("**Trend:** Increasing"))
			Expect(report).To(ContainSubstring("- [WARNING] High Burn Rate: payments-api (2025-06-01 10:00 UTC)"))
			Expect(report).To(ContainSubstring("- Limit non-critical changes"))
			Expect(report).To(ContainSubstring("- Review error budget status and consider deployment freeze for affected services"))
			Expect(report).To(ContainSubstring("- Monitor trending services and prepare incident response"))
		})

		It("asks the store for the trailing day of alerts", func() {
			_, err := gen.Report(ctx, 7)
			Expect(err).NotTo(HaveOccurred())
			Expect(store.lastFilter.ServiceID).To(HaveValue(Equal(int64(7))))
			Expect(store.lastFilter.Since).To(Equal(now.Add(-24 * time.Hour)))
			Expect(store.lastFilter.Limit).To(Equal(5))
		})

		It("says so when the day was quiet", func() {
			report, err := gen.Report(ctx, 7)
			Expect(err).NotTo(HaveOccurred())
			Expect(report).To(ContainSubstring("No alerts in the last 24 hours."))
		})
	})
})
