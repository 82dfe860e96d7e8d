package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
)

var _ = Describe("Store", func() {
	var (
		mock  sqlmock.Sqlmock
		store *Store
		raw   *sql.DB
		ctx   context.Context
	)

	BeforeEach(func() {
		var err error
		raw, mock, err = sqlmock.New()
		Expect(err).NotTo(HaveOccurred())
		store = NewWithDB(sqlx.NewDb(raw, "sqlmock"), zap.NewNop(), 5*time.Second)
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
		raw.Close()
	})

	Describe("CreateService", func() {
		It("backfills generated columns from the insert", func() {
			now := time.Now()
			mock.ExpectQuery(`INSERT INTO services`).
				WithArgs("payments-api", nil, nil, 1).
				WillReturnRows(sqlmock.NewRows(
					[]string{"id", "is_active", "created_at", "updated_at"}).
					AddRow(int64(7), true, now, now))

			svc := &models.Service{Name: "payments-api", Tier: 1}
			Expect(store.CreateService(ctx, svc)).To(Succeed())
			Expect(svc.ID).To(Equal(int64(7)))
			Expect(svc.IsActive).To(BeTrue())
		})

		It("maps a unique violation to a conflict error", func() {
			mock.ExpectQuery(`INSERT INTO services`).
				WithArgs("payments-api", nil, nil, 2).
				WillReturnError(&pgconn.PgError{Code: "23505"})

			err := store.CreateService(ctx, &models.Service{Name: "payments-api", Tier: 2})
			Expect(err).To(HaveOccurred())
			Expect(models.KindOf(err)).To(Equal(models.ErrKindConflict))
			Expect(err.Error()).To(ContainSubstring("already exists"))
		})
	})

	Describe("ServiceByName", func() {
		It("returns an unknown-service error when no row matches", func() {
			mock.ExpectQuery(`SELECT .+ FROM services WHERE name`).
				WithArgs("ghost").
				WillReturnError(sql.ErrNoRows)

			_, err := store.ServiceByName(ctx, "ghost")
			Expect(models.IsUnknownService(err)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("Service 'ghost' not found"))
		})
	})

	Describe("MetricTotals", func() {
		It("sums requests and errors over the window", func() {
			from := time.Now().Add(-time.Hour)
			to := time.Now()
			mock.ExpectQuery(`SELECT COALESCE\(SUM\(total_requests\), 0\)`).
				WithArgs(int64(1), from, to).
				WillReturnRows(sqlmock.NewRows([]string{"total", "errors"}).
					AddRow(int64(600000), int64(120)))

			total, errCount, err := store.MetricTotals(ctx, 1, from, to)
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(int64(600000)))
			Expect(errCount).To(Equal(int64(120)))
		})
	})

	Describe("BurnAggregatesSince", func() {
		It("carries nulls through when no rows exist", func() {
			since := time.Now().Add(-24 * time.Hour)
			mock.ExpectQuery(`SELECT AVG\(burn_rate\)`).
				WithArgs(int64(3), since).
				WillReturnRows(sqlmock.NewRows(
					[]string{"avg_burn_rate", "peak_burn_rate", "min_burn_rate", "avg_budget_consumed", "samples"}).
					AddRow(nil, nil, nil, nil, int64(0)))

			agg, err := store.BurnAggregatesSince(ctx, 3, since)
			Expect(err).NotTo(HaveOccurred())
			Expect(agg.AverageBurnRate).To(BeNil())
			Expect(agg.Samples).To(BeZero())
		})
	})

	Describe("FleetBurnAverage", func() {
		It("returns nil when the span holds no rows", func() {
			from := time.Now().Add(-24 * time.Hour)
			to := time.Now().Add(-12 * time.Hour)
			mock.ExpectQuery(`SELECT AVG\(burn_rate\) FROM burn_history`).
				WithArgs(60, from, to).
				WillReturnRows(sqlmock.NewRows([]string{"avg"}).AddRow(nil))

			avg, err := store.FleetBurnAverage(ctx, 60, from, to)
			Expect(err).NotTo(HaveOccurred())
			Expect(avg).To(BeNil())
		})

		It("averages across the fleet", func() {
			from := time.Now().Add(-12 * time.Hour)
			to := time.Now()
			mock.ExpectQuery(`SELECT AVG\(burn_rate\) FROM burn_history`).
				WithArgs(60, from, to).
				WillReturnRows(sqlmock.NewRows([]string{"avg"}).AddRow(1.42))

			avg, err := store.FleetBurnAverage(ctx, 60, from, to)
			Expect(err).NotTo(HaveOccurred())
			Expect(*avg).To(BeNumerically("~", 1.42, 1e-9))
		})
	})

	Describe("AcknowledgeAlerts", func() {
		It("sends the id batch as a postgres array", func() {
			mock.ExpectExec(`UPDATE alerts`).
				WithArgs(pq.Array([]int64{4, 5, 6}), "sre-oncall").
				WillReturnResult(sqlmock.NewResult(0, 2))

			n, err := store.AcknowledgeAlerts(ctx, []int64{4, 5, 6}, "sre-oncall")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(2)))
		})

		It("short-circuits on an empty batch", func() {
			n, err := store.AcknowledgeAlerts(ctx, nil, "sre-oncall")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())
		})
	})

	Describe("GateAggregatesSince", func() {
		It("splits totals by risk level at request time", func() {
			since := time.Now().Add(-7 * 24 * time.Hour)
			mock.ExpectQuery(`SELECT risk_level_at_request`).
				WithArgs(since).
				WillReturnRows(sqlmock.NewRows([]string{"risk_level_at_request", "total", "blocked"}).
					AddRow("safe", int64(8), int64(0)).
					AddRow("freeze", int64(2), int64(2)))

			agg, err := store.GateAggregatesSince(ctx, since)
			Expect(err).NotTo(HaveOccurred())
			Expect(agg.Total).To(Equal(int64(10)))
			Expect(agg.Blocked).To(Equal(int64(2)))
			Expect(agg.RiskDistribution).To(HaveKeyWithValue("freeze", int64(2)))
		})
	})

	Describe("HasRecentAlert", func() {
		It("reports an existing alert inside the cooldown window", func() {
			since := time.Now().Add(-15 * time.Minute)
			mock.ExpectQuery(`SELECT EXISTS`).
				WithArgs(int64(2), "burn_rate_high", since).
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

			found, err := store.HasRecentAlert(ctx, 2, "burn_rate_high", since)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
		})
	})
})
