package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/Togather-Foundation/gatherings/internal/domain/events"
	"github.com/Togather-Foundation/gatherings/internal/domain/reviews"
	"github.com/Togather-Foundation/gatherings/internal/domain/rsvps"
	"github.com/Togather-Foundation/gatherings/internal/domain/users"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DBQueryDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Repository operation duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBErrors = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_errors_total",
			Help:      "Repository operation failures by cause",
		},
		[]string{"operation", "error_type"},
	)
)

// PoolStats is satisfied by the postgres repository.
type PoolStats interface {
	Stats() *pgxpool.Stat
}

// PoolCollector reads connection pool statistics at scrape time.
type PoolCollector struct {
	pool PoolStats

	open     *prometheus.Desc
	inUse    *prometheus.Desc
	idle     *prometheus.Desc
	maxOpen  *prometheus.Desc
	acquires *prometheus.Desc
	waits    *prometheus.Desc
	waitTime *prometheus.Desc
}

func NewPoolCollector(pool PoolStats) *PoolCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "db", name), help, nil, nil)
	}
	return &PoolCollector{
		pool:     pool,
		open:     desc("connections_open", "Open database connections"),
		inUse:    desc("connections_in_use", "Database connections currently acquired"),
		idle:     desc("connections_idle", "Idle database connections"),
		maxOpen:  desc("connections_max_open", "Maximum open database connections"),
		acquires: desc("acquires_total", "Connections acquired from the pool"),
		waits:    desc("acquire_waits_total", "Acquires that had to wait for a free connection"),
		waitTime: desc("acquire_seconds_total", "Time spent acquiring connections"),
	}
}

// RegisterPool adds a PoolCollector for pool to Registry.
func RegisterPool(pool PoolStats) error {
	return Registry.Register(NewPoolCollector(pool))
}

func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{c.open, c.inUse, c.idle, c.maxOpen, c.acquires, c.waits, c.waitTime} {
		ch <- d
	}
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	if c.pool == nil {
		return
	}
	stat := c.pool.Stats()
	if stat == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.open, prometheus.GaugeValue, float64(stat.TotalConns()))
	ch <- prometheus.MustNewConstMetric(c.inUse, prometheus.GaugeValue, float64(stat.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(stat.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.maxOpen, prometheus.GaugeValue, float64(stat.MaxConns()))
	ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(stat.AcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.waits, prometheus.CounterValue, float64(stat.EmptyAcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.waitTime, prometheus.CounterValue, stat.AcquireDuration().Seconds())
}

// RecordQuery records the duration and outcome of a repository operation.
// Call it with defer so err holds the final result:
//
//	start := time.Now()
//	defer func() { metrics.RecordQuery("list_events", start, err) }()
func RecordQuery(operation string, start time.Time, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err == nil {
		return
	}
	if errorType := classifyDBError(err); errorType != "" {
		DBErrors.WithLabelValues(operation, errorType).Inc()
	}
}

// classifyDBError labels err for DBErrors. Missing rows are an ordinary
// outcome and return "".
func classifyDBError(err error) string {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, pgx.ErrNoRows), errors.Is(err, events.ErrNotFound), errors.Is(err, rsvps.ErrNotFound),
		errors.Is(err, reviews.ErrNotFound), errors.Is(err, users.ErrUserNotFound):
		return ""
	case errors.Is(err, users.ErrUsernameTaken):
		return "unique_violation"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &pgErr) && pgErr.Code == "23505":
		return "unique_violation"
	case errors.As(err, &pgErr) && pgErr.Code == "23503":
		return "foreign_key_violation"
	default:
		return "query_error"
	}
}
