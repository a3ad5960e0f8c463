package executor

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/router-for-me/claudebridge/internal/config"
	"golang.org/x/net/proxy"
)

// newProxyAwareHTTPClient builds the shared backend client. http and https
// proxies go through the transport's Proxy hook; socks5 proxies dial through
// x/net/proxy. The backend timeout bounds the wait for response headers only;
// the client has no total timeout so long streams are not cut off.
func newProxyAwareHTTPClient(backend config.BackendConfig) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 32
	transport.IdleConnTimeout = 90 * time.Second
	transport.ResponseHeaderTimeout = backend.Timeout()

	if raw := strings.TrimSpace(backend.ProxyURL); raw != "" {
		proxyURL, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("executor: parse proxy url: %w", err)
		}
		switch proxyURL.Scheme {
		case "http", "https":
			transport.Proxy = http.ProxyURL(proxyURL)
		case "socks5", "socks5h":
			dialer, errDialer := proxy.FromURL(proxyURL, &net.Dialer{Timeout: 30 * time.Second})
			if errDialer != nil {
				return nil, fmt.Errorf("executor: socks5 proxy: %w", errDialer)
			}
			transport.Proxy = nil
			if ctxDialer, ok := dialer.(proxy.ContextDialer); ok {
				transport.DialContext = ctxDialer.DialContext
			} else {
				transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
					return dialer.Dial(network, addr)
				}
			}
		default:
			return nil, fmt.Errorf("executor: unsupported proxy scheme %q", proxyURL.Scheme)
		}
	}

	return &http.Client{Transport: transport}, nil
}
