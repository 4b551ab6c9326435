package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ytproxy/internal/domain"
	"github.com/kailas-cloud/ytproxy/internal/keypool"
)

// --- Helpers ---

type payload struct {
	Value string `json:"value"`
}

func decodePayload(body []byte) (payload, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return payload{}, err
	}
	return p, nil
}

// fakeUpstream answers by key: statuses[key] or 200 with {"value": key}.
type fakeUpstream struct {
	mu       sync.Mutex
	statuses map[string]int
	keysSeen []string
	lastURL  *url.URL
	hits     atomic.Int32
}

func (f *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.hits.Add(1)
	key := r.URL.Query().Get("key")

	f.mu.Lock()
	f.keysSeen = append(f.keysSeen, key)
	f.lastURL = r.URL
	status, ok := f.statuses[key]
	f.mu.Unlock()

	if ok && status != http.StatusOK {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":{"code":` + http.StatusText(status) + `}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload{Value: key})
}

func (f *fakeUpstream) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.keysSeen...)
}

func newPool(t *testing.T, keys ...string) *keypool.Pool {
	t.Helper()
	p, err := keypool.New(keys, keypool.DefaultQuota, zap.NewNop())
	if err != nil {
		t.Fatalf("keypool.New: %v", err)
	}
	return p
}

func newDispatcher(t *testing.T, pool *keypool.Pool, up http.Handler) *Dispatcher {
	t.Helper()
	srv := httptest.NewServer(up)
	t.Cleanup(srv.Close)
	return NewDispatcher(pool, srv.Client(), srv.URL+"/youtube/v3", zap.NewNop())
}

func searchRequest() Request {
	return Request{
		Name:   "search",
		Cost:   100,
		Path:   "search",
		Params: url.Values{"q": {"golang"}, "part": {"snippet"}},
	}
}

type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	down    bool
	sets    int
	deletes int
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (m *memCache) Lookup(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, false
	}
	v, ok := m.data[key]
	return v, ok
}

func (m *memCache) Store(_ context.Context, key string, body []byte, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = body
	m.sets++
}

func (m *memCache) Evict(_ context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	m.deletes++
}

// --- Tests ---

func TestDo_SuccessChargesCost(t *testing.T) {
	pool := newPool(t, "key1", "key2")
	up := &fakeUpstream{}
	d := newDispatcher(t, pool, up)

	got, err := Do(context.Background(), d, searchRequest(), decodePayload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Value != "key1" {
		t.Errorf("expected response for key1, got %q", got.Value)
	}
	if status := pool.Status(); status[0] != 9900 || status[1] != 10000 {
		t.Errorf("status = %v, want [9900 10000]", status)
	}
}

func TestDo_SendsParamsAndKey(t *testing.T) {
	pool := newPool(t, "key1")
	up := &fakeUpstream{}
	d := newDispatcher(t, pool, up)

	if _, err := Do(context.Background(), d, searchRequest(), decodePayload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if up.lastURL.Path != "/youtube/v3/search" {
		t.Errorf("unexpected path %q", up.lastURL.Path)
	}
	q := up.lastURL.Query()
	if q.Get("q") != "golang" || q.Get("part") != "snippet" || q.Get("key") != "key1" {
		t.Errorf("unexpected query %v", q)
	}
}

func TestDo_QuotaExceededExpiresAndRetries(t *testing.T) {
	pool := newPool(t, "key1", "key2")
	up := &fakeUpstream{statuses: map[string]int{"key1": http.StatusTooManyRequests}}
	d := newDispatcher(t, pool, up)

	got, err := Do(context.Background(), d, searchRequest(), decodePayload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Value != "key2" {
		t.Errorf("expected response served by key2, got %q", got.Value)
	}
	if status := pool.Status(); status[0] != 0 || status[1] != 9900 {
		t.Errorf("status = %v, want [0 9900]", status)
	}
	if seen := up.seen(); len(seen) != 2 || seen[0] != "key1" || seen[1] != "key2" {
		t.Errorf("keys seen = %v, want [key1 key2]", seen)
	}
}

func TestDo_ExpiredKeyNotReused(t *testing.T) {
	pool := newPool(t, "key1", "key2")
	up := &fakeUpstream{statuses: map[string]int{"key1": http.StatusTooManyRequests}}
	d := newDispatcher(t, pool, up)

	for i := 0; i < 3; i++ {
		if _, err := Do(context.Background(), d, searchRequest(), decodePayload); err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
	}
	// key1 rejected once, then only key2 is used.
	if seen := up.seen(); len(seen) != 4 {
		t.Errorf("keys seen = %v, want 4 attempts", seen)
	}
}

func TestDo_AllKeysRejected(t *testing.T) {
	pool := newPool(t, "key1", "key2", "key3")
	up := &fakeUpstream{statuses: map[string]int{
		"key1": http.StatusTooManyRequests,
		"key2": http.StatusTooManyRequests,
		"key3": http.StatusTooManyRequests,
	}}
	d := newDispatcher(t, pool, up)

	_, err := Do(context.Background(), d, searchRequest(), decodePayload)
	if !errors.Is(err, domain.ErrKeysExhausted) {
		t.Fatalf("expected ErrKeysExhausted, got %v", err)
	}
	var ke *domain.KeysExhaustedError
	if !errors.As(err, &ke) || ke.Operation != "search" {
		t.Errorf("expected KeysExhaustedError for search, got %v", err)
	}
	if hits := up.hits.Load(); hits != 3 {
		t.Errorf("upstream hits = %d, want 3", hits)
	}
	for i, v := range pool.Status() {
		if v != 0 {
			t.Errorf("key %d remaining = %d, want 0", i, v)
		}
	}
}

func TestDo_NoKeyAffordsCost(t *testing.T) {
	pool := newPool(t, "key1")
	up := &fakeUpstream{}
	d := newDispatcher(t, pool, up)

	req := searchRequest()
	req.Cost = keypool.DefaultQuota + 1

	_, err := Do(context.Background(), d, req, decodePayload)
	if !errors.Is(err, domain.ErrKeysExhausted) {
		t.Fatalf("expected ErrKeysExhausted, got %v", err)
	}
	if hits := up.hits.Load(); hits != 0 {
		t.Errorf("upstream must not be called, got %d hits", hits)
	}
	if pool.Status()[0] != keypool.DefaultQuota {
		t.Error("budget must not change when no key qualifies")
	}
}

func TestDo_OtherStatusIsTerminal(t *testing.T) {
	pool := newPool(t, "key1", "key2")
	up := &fakeUpstream{statuses: map[string]int{"key1": http.StatusInternalServerError}}
	d := newDispatcher(t, pool, up)

	_, err := Do(context.Background(), d, searchRequest(), decodePayload)
	if !errors.Is(err, domain.ErrUpstreamStatus) {
		t.Fatalf("expected ErrUpstreamStatus, got %v", err)
	}
	var ue *domain.UpstreamError
	if !errors.As(err, &ue) || ue.Status != http.StatusInternalServerError {
		t.Errorf("expected UpstreamError with status 500, got %v", err)
	}
	if hits := up.hits.Load(); hits != 1 {
		t.Errorf("expected no retry, got %d hits", hits)
	}
	if status := pool.Status(); status[0] != 9900 {
		t.Errorf("key must stay charged but not expired, got %v", status)
	}
}

func TestDo_ForbiddenNotRetriedByDefault(t *testing.T) {
	pool := newPool(t, "key1", "key2")
	up := &fakeUpstream{statuses: map[string]int{"key1": http.StatusForbidden}}
	d := newDispatcher(t, pool, up)

	_, err := Do(context.Background(), d, searchRequest(), decodePayload)
	if !errors.Is(err, domain.ErrUpstreamStatus) {
		t.Fatalf("expected ErrUpstreamStatus, got %v", err)
	}
}

func TestDo_CustomQuotaExceededStatuses(t *testing.T) {
	pool := newPool(t, "key1", "key2")
	up := &fakeUpstream{statuses: map[string]int{"key1": http.StatusForbidden}}
	d := newDispatcher(t, pool, up).WithQuotaExceededStatuses(http.StatusForbidden, http.StatusTooManyRequests)

	got, err := Do(context.Background(), d, searchRequest(), decodePayload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Value != "key2" {
		t.Errorf("expected key2, got %q", got.Value)
	}
}

func TestDo_TransportErrorNoRefund(t *testing.T) {
	pool := newPool(t, "secret-key-1", "secret-key-2")
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	d := NewDispatcher(pool, &http.Client{Timeout: time.Second}, baseURL, zap.NewNop())

	_, err := Do(context.Background(), d, searchRequest(), decodePayload)
	if !errors.Is(err, domain.ErrUpstreamTransport) {
		t.Fatalf("expected ErrUpstreamTransport, got %v", err)
	}
	if strings.Contains(err.Error(), "secret-key") {
		t.Errorf("error leaks key: %v", err)
	}
	if status := pool.Status(); status[0] != 9900 || status[1] != 10000 {
		t.Errorf("status = %v, want [9900 10000] (no refund, no retry)", status)
	}
}

func TestDo_ContextCanceled(t *testing.T) {
	pool := newPool(t, "key1")
	d := newDispatcher(t, pool, &fakeUpstream{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, d, searchRequest(), decodePayload)
	if !errors.Is(err, domain.ErrUpstreamTransport) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected transport error wrapping context.Canceled, got %v", err)
	}
}

func TestDo_DecodeError(t *testing.T) {
	pool := newPool(t, "key1")
	d := newDispatcher(t, pool, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))

	_, err := Do(context.Background(), d, searchRequest(), decodePayload)
	if !errors.Is(err, domain.ErrUpstreamDecode) {
		t.Fatalf("expected ErrUpstreamDecode, got %v", err)
	}
}

func TestDo_NilResultIsSuccess(t *testing.T) {
	pool := newPool(t, "key1")
	d := newDispatcher(t, pool, &fakeUpstream{})

	got, err := Do(context.Background(), d, searchRequest(), func([]byte) (*payload, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil result, got %+v", got)
	}
}

func TestDo_CacheHitSkipsReservation(t *testing.T) {
	pool := newPool(t, "key1", "key2")
	up := &fakeUpstream{}
	cache := newMemCache()
	d := newDispatcher(t, pool, up).WithCache(cache)

	req := searchRequest()
	req.CacheTTL = time.Minute

	first, err := Do(context.Background(), d, req, decodePayload)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := Do(context.Background(), d, req, decodePayload)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}

	if first != second {
		t.Errorf("cached result differs: %+v vs %+v", first, second)
	}
	if hits := up.hits.Load(); hits != 1 {
		t.Errorf("upstream hits = %d, want 1", hits)
	}
	if status := pool.Status(); status[0] != 9900 || status[1] != 10000 {
		t.Errorf("cache hit must not charge budget, status = %v", status)
	}
	if cache.sets != 1 {
		t.Errorf("cache sets = %d, want 1", cache.sets)
	}
}

func TestDo_CacheSkippedWithoutTTL(t *testing.T) {
	pool := newPool(t, "key1")
	up := &fakeUpstream{}
	cache := newMemCache()
	d := newDispatcher(t, pool, up).WithCache(cache)

	for i := 0; i < 2; i++ {
		if _, err := Do(context.Background(), d, searchRequest(), decodePayload); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if hits := up.hits.Load(); hits != 2 {
		t.Errorf("upstream hits = %d, want 2", hits)
	}
	if cache.sets != 0 {
		t.Errorf("cache sets = %d, want 0", cache.sets)
	}
}

func TestDo_CacheUnavailableFallsThrough(t *testing.T) {
	pool := newPool(t, "key1")
	up := &fakeUpstream{}
	cache := newMemCache()
	cache.down = true
	d := newDispatcher(t, pool, up).WithCache(cache)

	req := searchRequest()
	req.CacheTTL = time.Minute

	if _, err := Do(context.Background(), d, req, decodePayload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hits := up.hits.Load(); hits != 1 {
		t.Errorf("upstream hits = %d, want 1", hits)
	}
}

func TestDo_UndecodableCacheEntryDropped(t *testing.T) {
	pool := newPool(t, "key1")
	up := &fakeUpstream{}
	cache := newMemCache()
	d := newDispatcher(t, pool, up).WithCache(cache)

	req := searchRequest()
	req.CacheTTL = time.Minute
	cache.data[fingerprint(req)] = []byte("garbage")

	got, err := Do(context.Background(), d, req, decodePayload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Value != "key1" {
		t.Errorf("expected live response, got %+v", got)
	}
	if cache.deletes != 1 {
		t.Errorf("cache deletes = %d, want 1", cache.deletes)
	}
}

func TestDo_FailedRequestNotCached(t *testing.T) {
	pool := newPool(t, "key1")
	up := &fakeUpstream{statuses: map[string]int{"key1": http.StatusBadRequest}}
	cache := newMemCache()
	d := newDispatcher(t, pool, up).WithCache(cache)

	req := searchRequest()
	req.CacheTTL = time.Minute

	if _, err := Do(context.Background(), d, req, decodePayload); err == nil {
		t.Fatal("expected error")
	}
	if cache.sets != 0 {
		t.Errorf("failed response must not be cached, sets = %d", cache.sets)
	}
}

func TestDo_ConcurrentRejectionsStayBounded(t *testing.T) {
	pool := newPool(t, "key1", "key2", "key3", "key4")
	up := &fakeUpstream{statuses: map[string]int{
		"key1": http.StatusTooManyRequests,
		"key3": http.StatusTooManyRequests,
	}}
	d := newDispatcher(t, pool, up)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := Do(context.Background(), d, searchRequest(), decodePayload)
			if err != nil {
				errs <- err
				return
			}
			if v.Value == "key1" || v.Value == "key3" {
				errs <- errors.New("served by rejected key " + v.Value)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	status := pool.Status()
	if status[0] != 0 || status[2] != 0 {
		t.Errorf("rejected keys must be expired, status = %v", status)
	}
}

func TestFingerprint_IgnoresKey(t *testing.T) {
	a := Request{Path: "videos", Params: url.Values{"id": {"x"}, "key": {"k1"}}}
	b := Request{Path: "/videos", Params: url.Values{"key": {"k2"}, "id": {"x"}}}
	c := Request{Path: "videos", Params: url.Values{"id": {"y"}}}

	if fingerprint(a) != fingerprint(b) {
		t.Error("fingerprint must not depend on key or leading slash")
	}
	if fingerprint(a) == fingerprint(c) {
		t.Error("different params must produce different fingerprints")
	}
}

func TestTruncate(t *testing.T) {
	short := []byte("short")
	if truncate(short) != "short" {
		t.Error("short bodies must be kept")
	}
	long := []byte(strings.Repeat("x", logBodyBytes+10))
	if got := truncate(long); len(got) != logBodyBytes+3 {
		t.Errorf("unexpected truncated length %d", len(got))
	}
}
