package upstream

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http/httpproxy"
)

// ClientConfig holds outbound HTTP settings for the upstream API.
type ClientConfig struct {
	ConnectTimeout time.Duration
	Timeout        time.Duration
	// ProxyURL routes every upstream call through an HTTP(S) proxy when set.
	ProxyURL string
	// NoProxy lists hosts, domains and CIDRs that bypass ProxyURL (NO_PROXY syntax).
	NoProxy string
}

// NewHTTPClient builds the client used for all upstream calls.
func NewHTTPClient(cfg ClientConfig) (*http.Client, error) {
	proxy, err := proxyFunc(cfg.ProxyURL, cfg.NoProxy)
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		Proxy: proxy,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ExpectContinueTimeout: time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}, nil
}

// proxyFunc returns nil when no proxy is configured.
func proxyFunc(proxyURL, noProxy string) (func(*http.Request) (*url.URL, error), error) {
	if proxyURL == "" {
		return nil, nil
	}
	u, err := url.Parse(proxyURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid proxy url %q", proxyURL)
	}
	if noProxy == "" {
		return http.ProxyURL(u), nil
	}

	cfg := httpproxy.Config{
		HTTPProxy:  u.String(),
		HTTPSProxy: u.String(),
		NoProxy:    noProxy,
	}
	fn := cfg.ProxyFunc()
	return func(req *http.Request) (*url.URL, error) {
		return fn(req.URL)
	}, nil
}
