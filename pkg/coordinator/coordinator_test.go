package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/storage"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/telemetry"
)

func TestCoordinator(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Coordinator Suite")
}

type fakeStore struct {
	services []models.Service
	err      error
}

func (f *fakeStore) ActiveServices(_ context.Context) ([]models.Service, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.services, nil
}

type computeCall struct {
	serviceID     int64
	windowMinutes int
}

// fakeBurn hands back computations with a per-service burn rate and risk,
// identical across windows. Mutated from the loop goroutine in lifecycle
// specs, hence the lock.
type fakeBurn struct {
	mu      sync.Mutex
	rate    map[int64]float64
	risk    map[int64]models.RiskLevel
	failFor map[int64]error

	computed []computeCall
	stored   []models.BurnRateComputation
}

func (f *fakeBurn) ComputeForService(_ context.Context, svc *models.Service, windowMinutes int) (*models.BurnRateComputation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failFor[svc.ID]; err != nil {
		return nil, err
	}
	f.computed = append(f.computed, computeCall{svc.ID, windowMinutes})

	risk := f.risk[svc.ID]
	if risk == "" {
		risk = models.RiskSafe
	}
	return &models.BurnRateComputation{
		ServiceID:     svc.ID,
		ServiceName:   svc.Name,
		WindowMinutes: windowMinutes,
		BurnRate:      f.rate[svc.ID],
		RiskLevel:     risk,
	}, nil
}

func (f *fakeBurn) StoreComputation(_ context.Context, c *models.BurnRateComputation) (*models.BurnHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = append(f.stored, *c)
	return &models.BurnHistory{ServiceID: c.ServiceID, WindowMinutes: c.WindowMinutes}, nil
}

func (f *fakeBurn) calls() []computeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]computeCall(nil), f.computed...)
}

func (f *fakeBurn) storedRows() []models.BurnRateComputation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.BurnRateComputation(nil), f.stored...)
}

func (f *fakeBurn) setRisk(serviceID int64, risk models.RiskLevel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.risk[serviceID] = risk
}

type transition struct {
	serviceID int64
	from, to  models.RiskLevel
}

type fakeAlerts struct {
	mu        sync.Mutex
	evalErr   error
	evaluated []models.BurnRateComputation
	escalated []transition
	recovered []transition
}

func (f *fakeAlerts) Evaluate(_ context.Context, _ *models.Service, burn *models.BurnRateComputation) ([]models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evaluated = append(f.evaluated, *burn)
	return nil, f.evalErr
}

func (f *fakeAlerts) RiskEscalated(_ context.Context, svc *models.Service, from, to models.RiskLevel) (*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.escalated = append(f.escalated, transition{svc.ID, from, to})
	return &models.Alert{}, nil
}

func (f *fakeAlerts) Recovered(_ context.Context, svc *models.Service, to models.RiskLevel) (*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recovered = append(f.recovered, transition{serviceID: svc.ID, to: to})
	return &models.Alert{}, nil
}

type fakeOverview struct {
	mu        sync.Mutex
	refreshes int
	err       error
}

func (f *fakeOverview) RefreshOverview(_ context.Context) (*models.DashboardOverview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return &models.DashboardOverview{}, f.err
}

func (f *fakeOverview) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

var _ = Describe("Coordinator", func() {
	var (
		store    *fakeStore
		burn     *fakeBurn
		alerts   *fakeAlerts
		overview *fakeOverview
		coord    *Coordinator
		ctx      context.Context
	)

	BeforeEach(func() {
		store = &fakeStore{services: []models.Service{
			{ID: 1, Name: "api-gateway", IsActive: true},
			{ID: 2, Name: "user-service", IsActive: true},
		}}
		burn = &fakeBurn{
			rate:    map[int64]float64{},
			risk:    map[int64]models.RiskLevel{},
			failFor: map[int64]error{},
		}
		alerts = &fakeAlerts{}
		overview = &fakeOverview{}
		coord = New(store, burn, alerts, overview, nil, telemetry.New(), time.Hour, zap.NewNop())
		ctx = context.Background()
	})

	Describe("Tick", func() {
		It("computes and persists every canonical window per service, shortest first", func() {
			coord.Tick(ctx)

			Expect(burn.calls()).To(Equal([]computeCall{
				{1, 5}, {1, 60}, {1, 1440},
				{2, 5}, {2, 60}, {2, 1440},
			}))
			Expect(burn.storedRows()).To(HaveLen(6))
		})

		It("feeds the hourly window to alert evaluation", func() {
			coord.Tick(ctx)

			Expect(alerts.evaluated).To(HaveLen(2))
			for _, c := range alerts.evaluated {
				Expect(c.WindowMinutes).To(Equal(60))
			}
		})

		It("continues past a failing service", func() {
			burn.failFor[1] = errors.New("metrics unavailable")

			coord.Tick(ctx)

			Expect(burn.storedRows()).To(HaveLen(3))
			for _, c := range burn.storedRows() {
				Expect(c.ServiceID).To(Equal(int64(2)))
			}
			Expect(alerts.evaluated).To(HaveLen(1))
		})

		It("keeps alert failures from failing the computation", func() {
			alerts.evalErr = errors.New("alert store down")

			coord.Tick(ctx)

			Expect(burn.storedRows()).To(HaveLen(6))
			Expect(overview.count()).To(Equal(1))
		})

		It("refreshes the dashboard overview once per cycle", func() {
			coord.Tick(ctx)
			coord.Tick(ctx)

			Expect(overview.count()).To(Equal(2))
		})

		It("tolerates a failing overview refresh", func() {
			overview.err = errors.New("db gone")

			coord.Tick(ctx)

			Expect(burn.storedRows()).To(HaveLen(6))
		})

		It("skips the cycle when the service list cannot be loaded", func() {
			store.err = errors.New("connection refused")

			coord.Tick(ctx)

			Expect(burn.calls()).To(BeEmpty())
			Expect(overview.count()).To(BeZero())
		})

		It("stops between services once cancelled", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			coord.Tick(cancelled)

			Expect(burn.calls()).To(BeEmpty())
			Expect(overview.count()).To(BeZero())
		})

		It("writes the freshest composite through to the cache", func() {
			mr, err := miniredis.Run()
			Expect(err).NotTo(HaveOccurred())
			defer mr.Close()

			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			cache := storage.NewSnapshotCacheWithClient(client, time.Minute, zap.NewNop())
			defer cache.Close()

			burn.rate[1] = 2.5
			burn.risk[1] = models.RiskDanger
			coord = New(store, burn, alerts, overview, cache, telemetry.New(), time.Hour, zap.NewNop())

			coord.Tick(ctx)

			got := cache.LatestBurn(ctx, 1)
			Expect(got).NotTo(BeNil())
			Expect(got.ServiceName).To(Equal("api-gateway"))
			Expect(got.BurnRate).To(Equal(2.5))
			Expect(got.CompositeRisk).To(Equal(models.RiskDanger))
			Expect(got.Windows).To(HaveLen(3))
		})
	})

	Describe("risk transitions", func() {
		It("does not escalate on the first observation", func() {
			burn.setRisk(1, models.RiskDanger)

			coord.Tick(ctx)

			Expect(alerts.escalated).To(BeEmpty())
		})

		It("raises an escalation when a service crosses into danger", func() {
			coord.Tick(ctx)

			burn.setRisk(1, models.RiskDanger)
			coord.Tick(ctx)

			Expect(alerts.escalated).To(Equal([]transition{
				{serviceID: 1, from: models.RiskSafe, to: models.RiskDanger},
			}))
		})

		It("stays quiet below danger", func() {
			coord.Tick(ctx)

			burn.setRisk(1, models.RiskObserve)
			coord.Tick(ctx)

			Expect(alerts.escalated).To(BeEmpty())
		})

		It("raises a recovery when a service returns to safe", func() {
			burn.setRisk(1, models.RiskFreeze)
			coord.Tick(ctx)

			burn.setRisk(1, models.RiskSafe)
			coord.Tick(ctx)

			Expect(alerts.recovered).To(Equal([]transition{
				{serviceID: 1, to: models.RiskSafe},
			}))
		})

		It("does not repeat alerts while the level holds", func() {
			coord.Tick(ctx)

			burn.setRisk(1, models.RiskFreeze)
			coord.Tick(ctx)
			coord.Tick(ctx)

			Expect(alerts.escalated).To(HaveLen(1))
		})
	})

	Describe("lifecycle", func() {
		It("runs an immediate cycle and stops on demand", func() {
			coord.Start(ctx)

			Eventually(func() int { return len(burn.calls()) }).Should(Equal(6))

			coord.Stop()
			calls := len(burn.calls())
			Consistently(func() int { return len(burn.calls()) }, "100ms").Should(Equal(calls))
		})

		It("treats Stop without Start as a no-op", func() {
			Expect(func() { coord.Stop() }).NotTo(Panic())
		})
	})
})
