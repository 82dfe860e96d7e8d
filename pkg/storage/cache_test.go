package storage

import (
	"context"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
)

var _ = Describe("SnapshotCache", func() {
	var (
		mr    *miniredis.Miniredis
		cache *SnapshotCache
		ctx   context.Context
	)

	BeforeEach(func() {
		var err error
		mr, err = miniredis.Run()
		Expect(err).NotTo(HaveOccurred())
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		cache = NewSnapshotCacheWithClient(client, time.Minute, zap.NewNop())
		ctx = context.Background()
	})

	AfterEach(func() {
		cache.Close()
		mr.Close()
	})

	It("round-trips a weighted burn snapshot", func() {
		snapshot := &models.WeightedBurnRate{
			ServiceID:     42,
			BurnRate:      1.85,
			CompositeRisk: models.RiskDanger,
		}
		cache.SetLatestBurn(ctx, 42, snapshot)

		got := cache.LatestBurn(ctx, 42)
		Expect(got).NotTo(BeNil())
		Expect(got.BurnRate).To(Equal(1.85))
		Expect(got.CompositeRisk).To(Equal(models.RiskDanger))
	})

	It("expires burn snapshots after twice the computation interval", func() {
		cache.SetLatestBurn(ctx, 42, &models.WeightedBurnRate{ServiceID: 42})
		Expect(mr.TTL("burn:latest:42")).To(Equal(2 * time.Minute))

		mr.FastForward(2*time.Minute + time.Second)
		Expect(cache.LatestBurn(ctx, 42)).To(BeNil())
	})

	It("misses cleanly for unknown services", func() {
		Expect(cache.LatestBurn(ctx, 999)).To(BeNil())
	})

	It("stores and invalidates the dashboard overview", func() {
		cache.SetOverview(ctx, &models.DashboardOverview{TotalServices: 5})
		Expect(mr.TTL("dashboard:overview")).To(Equal(time.Minute))

		got := cache.Overview(ctx)
		Expect(got).NotTo(BeNil())
		Expect(got.TotalServices).To(Equal(5))

		cache.InvalidateOverview(ctx)
		Expect(cache.Overview(ctx)).To(BeNil())
	})

	It("treats a nil cache as a permanent miss", func() {
		var disabled *SnapshotCache
		disabled.SetLatestBurn(ctx, 1, &models.WeightedBurnRate{})
		Expect(disabled.LatestBurn(ctx, 1)).To(BeNil())
		Expect(disabled.Ping(ctx)).To(Succeed())
		Expect(disabled.Close()).To(Succeed())
	})
})
