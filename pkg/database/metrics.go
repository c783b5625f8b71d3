package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// StatSource is anything that reports pgxpool statistics.
type StatSource interface {
	Stat() *pgxpool.Stat
}

type poolMetric struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(*pgxpool.Stat) float64
}

// PoolStatsCollector exports pgxpool statistics as Prometheus metrics.
type PoolStatsCollector struct {
	pool    StatSource
	service string
	metrics []poolMetric
}

func newPoolMetric(name, help string, kind prometheus.ValueType, value func(*pgxpool.Stat) float64) poolMetric {
	return poolMetric{
		desc:  prometheus.NewDesc(name, help, []string{"service"}, nil),
		kind:  kind,
		value: value,
	}
}

// NewPoolStatsCollector builds a collector for the given pool.
func NewPoolStatsCollector(pool StatSource, service string) *PoolStatsCollector {
	gauge, counter := prometheus.GaugeValue, prometheus.CounterValue
	return &PoolStatsCollector{
		pool:    pool,
		service: service,
		metrics: []poolMetric{
			newPoolMetric("db_pool_acquired_connections", "Connections currently checked out.", gauge,
				func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }),
			newPoolMetric("db_pool_idle_connections", "Connections currently idle.", gauge,
				func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }),
			newPoolMetric("db_pool_total_connections", "Connections currently open.", gauge,
				func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }),
			newPoolMetric("db_pool_max_connections", "Configured connection ceiling.", gauge,
				func(s *pgxpool.Stat) float64 { return float64(s.MaxConns()) }),
			newPoolMetric("db_pool_acquire_count_total", "Successful connection acquires.", counter,
				func(s *pgxpool.Stat) float64 { return float64(s.AcquireCount()) }),
			newPoolMetric("db_pool_acquire_duration_seconds_total", "Time spent waiting to acquire connections.", counter,
				func(s *pgxpool.Stat) float64 { return s.AcquireDuration().Seconds() }),
			newPoolMetric("db_pool_empty_acquire_count_total", "Acquires that had to wait for a free connection.", counter,
				func(s *pgxpool.Stat) float64 { return float64(s.EmptyAcquireCount()) }),
			newPoolMetric("db_pool_canceled_acquire_count_total", "Acquires abandoned by context cancellation.", counter,
				func(s *pgxpool.Stat) float64 { return float64(s.CanceledAcquireCount()) }),
		},
	}
}

// Describe implements prometheus.Collector.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

// Collect implements prometheus.Collector.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stat := c.pool.Stat()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.kind, m.value(stat), c.service)
	}
}

// RegisterPoolMetrics registers a pool collector with reg.
func RegisterPoolMetrics(reg prometheus.Registerer, pool StatSource, service string) error {
	return reg.Register(NewPoolStatsCollector(pool, service))
}
