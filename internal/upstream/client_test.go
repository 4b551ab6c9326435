package upstream

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestProxyFunc_Disabled(t *testing.T) {
	fn, err := proxyFunc("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fn != nil {
		t.Error("expected no proxy function")
	}
}

func TestProxyFunc_Invalid(t *testing.T) {
	if _, err := proxyFunc("://nope", ""); err == nil {
		t.Error("expected error for malformed proxy url")
	}
}

func TestProxyFunc_NoProxyBypass(t *testing.T) {
	fn, err := proxyFunc("http://proxy.internal:3128", "googleapis.com,10.0.0.0/8")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		target  string
		proxied bool
	}{
		{"https://www.googleapis.com/youtube/v3/search", false},
		{"http://10.1.2.3/health", false},
		{"https://example.org/", true},
	}
	for _, tc := range tests {
		t.Run(tc.target, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.target, http.NoBody)
			u, err := fn(req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := u != nil; got != tc.proxied {
				t.Errorf("proxied = %v, want %v (got %v)", got, tc.proxied, u)
			}
			if tc.proxied && u.Host != "proxy.internal:3128" {
				t.Errorf("unexpected proxy host %q", u.Host)
			}
		})
	}
}

func TestNewHTTPClient_RoutesThroughProxy(t *testing.T) {
	var proxied atomic.Int32
	var requestURI atomic.Value
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxied.Add(1)
		requestURI.Store(r.RequestURI)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer proxy.Close()

	client, err := NewHTTPClient(ClientConfig{
		ConnectTimeout: time.Second,
		Timeout:        2 * time.Second,
		ProxyURL:       proxy.URL,
	})
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}

	resp, err := client.Get("http://upstream.test/youtube/v3/videos?id=abc")
	if err != nil {
		t.Fatalf("request via proxy failed: %v", err)
	}
	_ = resp.Body.Close()

	if proxied.Load() != 1 {
		t.Fatalf("expected the proxy to receive the request, got %d", proxied.Load())
	}
	if got := requestURI.Load().(string); got != "http://upstream.test/youtube/v3/videos?id=abc" {
		t.Errorf("proxy saw request URI %q", got)
	}
}

func TestNewHTTPClient_Timeouts(t *testing.T) {
	client, err := NewHTTPClient(ClientConfig{ConnectTimeout: 3 * time.Second, Timeout: 7 * time.Second})
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	if client.Timeout != 7*time.Second {
		t.Errorf("Timeout = %v, want 7s", client.Timeout)
	}
	tr, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("unexpected transport %T", client.Transport)
	}
	if tr.Proxy != nil {
		t.Error("expected no proxy")
	}
	if tr.TLSHandshakeTimeout != 3*time.Second {
		t.Errorf("TLSHandshakeTimeout = %v, want 3s", tr.TLSHandshakeTimeout)
	}
}
