package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// BudgetSource exposes per-key remaining budgets.
type BudgetSource interface {
	Status() []int
	Quota() int
}

// KeyPoolCollector reports key budgets at scrape time.
type KeyPoolCollector struct {
	src       BudgetSource
	remaining *prometheus.Desc
	quota     *prometheus.Desc
	available *prometheus.Desc
}

// NewKeyPoolCollector creates a collector over src.
func NewKeyPoolCollector(src BudgetSource) *KeyPoolCollector {
	return &KeyPoolCollector{
		src: src,
		remaining: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "key", "budget_remaining"),
			"Remaining quota units per key",
			[]string{"key_index"}, nil,
		),
		quota: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "key", "budget_quota"),
			"Daily quota units restored per key on reset",
			nil, nil,
		),
		available: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "keys", "available"),
			"Keys with a non-zero remaining budget",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *KeyPoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.remaining
	ch <- c.quota
	ch <- c.available
}

// Collect implements prometheus.Collector.
func (c *KeyPoolCollector) Collect(ch chan<- prometheus.Metric) {
	available := 0
	for i, v := range c.src.Status() {
		if v > 0 {
			available++
		}
		ch <- prometheus.MustNewConstMetric(c.remaining, prometheus.GaugeValue, float64(v), strconv.Itoa(i))
	}
	ch <- prometheus.MustNewConstMetric(c.quota, prometheus.GaugeValue, float64(c.src.Quota()))
	ch <- prometheus.MustNewConstMetric(c.available, prometheus.GaugeValue, float64(available))
}
