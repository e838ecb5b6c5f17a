package llm

import (
	"net"
	"net/http"
	"time"
)

// newLLMHTTPClient builds an HTTP client tuned for model API calls: a
// breakdown for a ten-file assignment can take well over a minute to
// generate, so the response header timeout is the long pole here.
func newLLMHTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 90 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		MaxConnsPerHost:       10,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Timeout:   3 * time.Minute,
		Transport: transport,
	}
}
