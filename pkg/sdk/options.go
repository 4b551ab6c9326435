package ytproxy

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	keys     []string
	quota    int
	baseURL  string
	statuses []int
	costs    Costs

	httpClient *http.Client
	proxyURL   string
	noProxy    string
	timeout    time.Duration

	resetHour   int
	resetMinute int

	cacheAddrs    []string
	cachePassword string
	cacheTTL      time.Duration

	logger     *slog.Logger
	zapLogger  *zap.Logger
	metricsReg prometheus.Registerer
}

// Costs are the quota units charged per upstream call.
type Costs struct {
	Search       int
	Single       int
	PlaylistPage int
}

// WithKeys sets the upstream API keys. Required.
func WithKeys(keys ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keys = append(c.keys, keys...)
	})
}

// WithQuota sets the per-key daily budget. Default: 10000.
func WithQuota(units int) Option {
	return optionFunc(func(c *clientConfig) {
		c.quota = units
	})
}

// WithBaseURL points the client at another upstream, e.g. a test server.
func WithBaseURL(u string) Option {
	return optionFunc(func(c *clientConfig) {
		c.baseURL = u
	})
}

// WithQuotaExceededStatuses sets the statuses that expire a key and retry. Default: 429.
func WithQuotaExceededStatuses(statuses ...int) Option {
	return optionFunc(func(c *clientConfig) {
		c.statuses = statuses
	})
}

// WithCosts overrides the per-operation quota costs. Zero fields keep their defaults.
func WithCosts(costs Costs) Option {
	return optionFunc(func(c *clientConfig) {
		c.costs = costs
	})
}

// WithHTTPClient uses hc for upstream calls. Proxy and timeout options are then ignored.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *clientConfig) {
		c.httpClient = hc
	})
}

// WithProxy routes upstream calls through an HTTP(S) proxy. noProxy uses NO_PROXY syntax.
func WithProxy(proxyURL, noProxy string) Option {
	return optionFunc(func(c *clientConfig) {
		c.proxyURL = proxyURL
		c.noProxy = noProxy
	})
}

// WithTimeout bounds connecting to and completing each upstream call. Default: 120s.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.timeout = d
	})
}

// WithResetAt sets the daily UTC time at which budgets are restored. Default: 09:01.
func WithResetAt(hour, minute int) Option {
	return optionFunc(func(c *clientConfig) {
		c.resetHour = hour
		c.resetMinute = minute
	})
}

// WithRedisCache caches single-item lookups in Redis or Valkey for ttl.
func WithRedisCache(addr, password string, ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheAddrs = []string{addr}
		c.cachePassword = password
		c.cacheTTL = ttl
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithZapLogger receives the pool's own events: key expiries, unknown keys,
// drained pools and daily resets. Default: discarded.
func WithZapLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.zapLogger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
