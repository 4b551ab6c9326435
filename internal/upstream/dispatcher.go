// Package upstream executes requests against the quota-limited upstream API.
//
// Every attempt reserves a key from the pool, charging the operation's cost up front.
// When the upstream rejects a key as over quota the key is expired and the request is
// retried with another key; the caller never sees that failure. The number of attempts
// is bounded by the pool size, so the loop ends with KeysExhausted at the latest.
package upstream

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ytproxy/internal/domain"
	"github.com/kailas-cloud/ytproxy/internal/keypool"
	logpkg "github.com/kailas-cloud/ytproxy/internal/logger"
	"github.com/kailas-cloud/ytproxy/internal/metrics"
	"github.com/kailas-cloud/ytproxy/internal/version"
)

const (
	maxBodyBytes = 16 << 20
	logBodyBytes = 512
)

// KeyPool hands out keys with enough budget and takes back rejected ones.
type KeyPool interface {
	Reserve(cost int) (string, bool)
	Expire(key string)
	Size() int
}

// Cache stores raw upstream bodies of successful requests. Implementations
// treat their own failures as misses.
type Cache interface {
	Lookup(ctx context.Context, key string) ([]byte, bool)
	Store(ctx context.Context, key string, body []byte, ttl time.Duration)
	Evict(ctx context.Context, key string)
}

// Request describes one logical upstream operation.
type Request struct {
	// Name labels the operation in errors, logs and metrics.
	Name string
	Cost int
	// Path is relative to the base URL, e.g. "search" or "playlistItems".
	Path   string
	Params url.Values
	// CacheTTL > 0 allows serving the body from the response cache.
	CacheTTL time.Duration
}

// Decoder turns a successful response body into a typed result.
type Decoder[T any] func(body []byte) (T, error)

// Dispatcher performs upstream GETs on behalf of reserved keys.
type Dispatcher struct {
	pool          KeyPool
	client        *http.Client
	baseURL       string
	quotaStatuses map[int]struct{}
	cache         Cache
	logger        *zap.Logger
}

// NewDispatcher creates a dispatcher. HTTP 429 marks a key as over quota until
// WithQuotaExceededStatuses says otherwise.
func NewDispatcher(pool KeyPool, client *http.Client, baseURL string, logger *zap.Logger) *Dispatcher {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		pool:          pool,
		client:        client,
		baseURL:       strings.TrimRight(baseURL, "/"),
		quotaStatuses: map[int]struct{}{http.StatusTooManyRequests: {}},
		logger:        logger,
	}
}

// WithQuotaExceededStatuses replaces the set of statuses that expire the key and retry.
func (d *Dispatcher) WithQuotaExceededStatuses(statuses ...int) *Dispatcher {
	if len(statuses) == 0 {
		return d
	}
	set := make(map[int]struct{}, len(statuses))
	for _, s := range statuses {
		set[s] = struct{}{}
	}
	d.quotaStatuses = set
	return d
}

// WithCache enables the response cache for requests with a positive CacheTTL.
func (d *Dispatcher) WithCache(c Cache) *Dispatcher {
	d.cache = c
	return d
}

// Do executes req and decodes the body. Only quota-exceeded responses are retried;
// every other failure is returned as is.
func Do[T any](ctx context.Context, d *Dispatcher, req Request, decode Decoder[T]) (T, error) {
	var zero T

	cacheKey := ""
	if d.cache != nil && req.CacheTTL > 0 {
		cacheKey = fingerprint(req)
		if v, ok := lookupCache(ctx, d, cacheKey, decode); ok {
			return v, nil
		}
	}

	body, err := d.execute(ctx, req)
	if err != nil {
		return zero, err
	}

	v, err := decode(body)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(req.Name, "decode_error").Inc()
		logpkg.FromContextOr(ctx, d.logger).Warn("Failed to decode upstream response",
			zap.String("operation", req.Name),
			zap.String("body", truncate(body)),
			zap.Error(err),
		)
		return zero, fmt.Errorf("%w: %s: %w", domain.ErrUpstreamDecode, req.Name, err)
	}

	if cacheKey != "" {
		d.cache.Store(ctx, cacheKey, body, req.CacheTTL)
	}
	return v, nil
}

// lookupCache decodes a cached body. Undecodable entries are evicted and count as misses.
func lookupCache[T any](ctx context.Context, d *Dispatcher, key string, decode Decoder[T]) (T, bool) {
	var zero T

	body, ok := d.cache.Lookup(ctx, key)
	if !ok {
		return zero, false
	}

	v, err := decode(body)
	if err != nil {
		logpkg.FromContextOr(ctx, d.logger).Warn("Dropping undecodable cache entry", zap.String("cache_key", key), zap.Error(err))
		d.cache.Evict(ctx, key)
		return zero, false
	}
	return v, true
}

// execute runs the reserve/GET/expire loop and returns a 2xx body.
func (d *Dispatcher) execute(ctx context.Context, req Request) ([]byte, error) {
	log := logpkg.FromContextOr(ctx, d.logger)

	// One reservation per key plus the final one that proves the pool is drained.
	attempts := d.pool.Size() + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		key, ok := d.pool.Reserve(req.Cost)
		if !ok {
			break
		}
		metrics.UpstreamQuotaChargedTotal.WithLabelValues(req.Name).Add(float64(max(req.Cost, 0)))

		start := time.Now()
		status, body, err := d.get(ctx, req, key)
		metrics.UpstreamRequestDuration.WithLabelValues(req.Name).Observe(time.Since(start).Seconds())

		if err != nil {
			metrics.UpstreamRequestsTotal.WithLabelValues(req.Name, "transport_error").Inc()
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrUpstreamTransport, req.Name, err)
		}

		if _, quota := d.quotaStatuses[status]; quota {
			metrics.UpstreamRequestsTotal.WithLabelValues(req.Name, "quota_exceeded").Inc()
			metrics.KeyExpirationsTotal.Inc()
			log.Warn("Key rejected by upstream, expiring until next reset",
				zap.String("operation", req.Name),
				zap.String("key", keypool.Mask(key)),
				zap.Int("status", status),
				zap.Int("attempt", attempt),
			)
			d.pool.Expire(key)
			continue
		}

		if status < 200 || status > 299 {
			metrics.UpstreamRequestsTotal.WithLabelValues(req.Name, "status_error").Inc()
			log.Warn("Upstream returned an error",
				zap.String("operation", req.Name),
				zap.Int("status", status),
				zap.String("body", truncate(body)),
			)
			return nil, domain.NewUpstreamError(req.Name, status)
		}

		metrics.UpstreamRequestsTotal.WithLabelValues(req.Name, "ok").Inc()
		return body, nil
	}

	metrics.KeysExhaustedTotal.WithLabelValues(req.Name).Inc()
	log.Error("No key with enough budget", zap.String("operation", req.Name), zap.Int("cost", req.Cost))
	return nil, domain.NewKeysExhausted(req.Name)
}

func (d *Dispatcher) get(ctx context.Context, req Request, key string) (int, []byte, error) {
	params := url.Values{}
	for k, v := range req.Params {
		params[k] = v
	}
	params.Set("key", key)

	u := d.baseURL + "/" + strings.TrimLeft(req.Path, "/") + "?" + params.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "ytproxy/"+version.Version)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return 0, nil, stripKey(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, nil
}

// stripKey removes the request URL, which carries the key, from client errors.
func stripKey(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s: %w", uerr.Op, uerr.Err)
	}
	return err
}

// fingerprint identifies a request independently of the key that served it.
func fingerprint(req Request) string {
	params := url.Values{}
	for k, v := range req.Params {
		if k != "key" {
			params[k] = v
		}
	}
	sum := sha256.Sum256([]byte(strings.TrimLeft(req.Path, "/") + "?" + params.Encode()))
	return hex.EncodeToString(sum[:])
}

func truncate(body []byte) string {
	if len(body) <= logBodyBytes {
		return string(body)
	}
	return string(body[:logBodyBytes]) + "..."
}
