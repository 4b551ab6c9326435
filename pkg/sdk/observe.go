package ytproxy

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Call outcomes, used as the "outcome" metric label and log attribute.
const (
	outcomeOK            = "ok"
	outcomeKeysExhausted = "keys_exhausted"
	outcomeUpstream      = "upstream_error"
	outcomeInvalidInput  = "invalid_input"
	outcomeNotFound      = "not_found"
	outcomeError         = "error"
)

// outcomeOf separates a drained key pool and upstream failures from caller mistakes.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, ErrKeysExhausted):
		return outcomeKeysExhausted
	case errors.Is(err, ErrUpstreamTransport),
		errors.Is(err, ErrUpstreamStatus),
		errors.Is(err, ErrUpstreamDecode):
		return outcomeUpstream
	case errors.Is(err, ErrInvalidInput):
		return outcomeInvalidInput
	case errors.Is(err, ErrNotFound):
		return outcomeNotFound
	default:
		return outcomeError
	}
}

type sdkMetrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ytproxy",
		Subsystem: "sdk",
		Name:      "calls_total",
		Help:      "SDK calls by operation and outcome (ok, keys_exhausted, upstream_error, invalid_input, not_found, error).",
	}, []string{"operation", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ytproxy",
		Subsystem: "sdk",
		Name:      "call_duration_seconds",
		Help:      "SDK call duration including every upstream attempt and key failover.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 120},
	}, []string{"operation"})

	if err := registerOrReuse(reg, &calls); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &duration); err != nil {
		return nil, err
	}
	return &sdkMetrics{calls: calls, duration: duration}, nil
}

// registerOrReuse lets several clients share one registry.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("ytproxy: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("ytproxy: metric already registered with incompatible type: %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

// observer records every public call. Both sinks are optional.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	obs := &observer{logger: logger}
	if reg == nil {
		return obs, nil
	}
	m, err := newSDKMetrics(reg)
	if err != nil {
		return nil, err
	}
	obs.metrics = m
	return obs, nil
}

func (o *observer) observe(op string, start time.Time, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	outcome := outcomeOf(err)

	if o.metrics != nil {
		o.metrics.calls.WithLabelValues(op, outcome).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
	}

	if o.logger == nil {
		return
	}
	attrs := []any{"op", op, "outcome", outcome, "duration", dur}
	switch outcome {
	case outcomeOK:
		o.logger.Debug("call completed", attrs...)
	case outcomeInvalidInput, outcomeNotFound:
		o.logger.Debug("call rejected", append(attrs, "error", err)...)
	case outcomeKeysExhausted:
		o.logger.Error("no key has budget left until the next reset", append(attrs, "error", err)...)
	default:
		o.logger.Warn("call failed", append(attrs, "error", err)...)
	}
}
