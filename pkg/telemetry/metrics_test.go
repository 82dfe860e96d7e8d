package telemetry

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	dto "github.com/prometheus/client_model/go"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
)

func TestTelemetry(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Telemetry Suite")
}

func findFamily(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

var _ = Describe("Metrics", func() {
	var m *Metrics

	BeforeEach(func() {
		m = New()
	})

	It("counts computation outcomes separately", func() {
		m.ObserveComputation(nil)
		m.ObserveComputation(nil)
		m.ObserveComputation(assertableError{})

		families, err := m.Gatherer().Gather()
		Expect(err).NotTo(HaveOccurred())

		family := findFamily(families, "reliability_burn_computations_total")
		Expect(family).NotTo(BeNil())

		byOutcome := map[string]float64{}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "outcome" {
					byOutcome[label.GetValue()] = metric.GetCounter().GetValue()
				}
			}
		}
		Expect(byOutcome).To(HaveKeyWithValue("success", 2.0))
		Expect(byOutcome).To(HaveKeyWithValue("error", 1.0))
	})

	It("tracks tick failures alongside totals", func() {
		m.ObserveTick(50*time.Millisecond, false)
		m.ObserveTick(80*time.Millisecond, true)

		families, err := m.Gatherer().Gather()
		Expect(err).NotTo(HaveOccurred())

		ticks := findFamily(families, "reliability_coordinator_ticks_total")
		Expect(ticks.GetMetric()[0].GetCounter().GetValue()).To(Equal(2.0))

		errors := findFamily(families, "reliability_coordinator_tick_errors_total")
		Expect(errors.GetMetric()[0].GetCounter().GetValue()).To(Equal(1.0))

		duration := findFamily(families, "reliability_coordinator_tick_duration_seconds")
		Expect(duration.GetMetric()[0].GetHistogram().GetSampleCount()).To(Equal(uint64(2)))
	})

	It("publishes per-service gauges from a weighted computation", func() {
		m.RecordServiceState(&models.WeightedBurnRate{
			ServiceName:   "payments-api",
			CompositeRisk: models.RiskDanger,
			Windows: []models.BurnRateComputation{
				{WindowMinutes: 5, BurnRate: 2.4},
				{WindowMinutes: 60, BurnRate: 2.0},
				{WindowMinutes: 1440, BurnRate: 1.1, ErrorBudgetRemaining: 42.5},
			},
		})

		families, err := m.Gatherer().Gather()
		Expect(err).NotTo(HaveOccurred())

		risk := findFamily(families, "reliability_risk_level")
		Expect(risk.GetMetric()[0].GetGauge().GetValue()).To(Equal(2.0))

		budget := findFamily(families, "reliability_error_budget_remaining_percent")
		Expect(budget.GetMetric()[0].GetGauge().GetValue()).To(Equal(42.5))

		burn := findFamily(families, "reliability_burn_rate")
		Expect(burn.GetMetric()).To(HaveLen(3))
	})

	It("forgets gauges for deactivated services", func() {
		m.RecordServiceState(&models.WeightedBurnRate{
			ServiceName:   "checkout",
			CompositeRisk: models.RiskSafe,
			Windows: []models.BurnRateComputation{
				{WindowMinutes: 1440, BurnRate: 0.2, ErrorBudgetRemaining: 99.0},
			},
		})
		m.ForgetService("checkout")

		families, err := m.Gatherer().Gather()
		Expect(err).NotTo(HaveOccurred())
		Expect(findFamily(families, "reliability_risk_level")).To(BeNil())
	})
})

type assertableError struct{}

func (assertableError) Error() string { return "boom" }
