package httpclient

import (
	"crypto/tls"
	"net/http"
	"time"
)

// NewDefaultHTTPClient creates a simple HTTP client with a timeout
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}

// NewHTTPClient creates a client with a timeout. When verifyTLS is false the
// server certificate is not checked, for chat servers behind self-signed
// corporate certificates.
func NewHTTPClient(timeout time.Duration, verifyTLS bool) *http.Client {
	if verifyTLS {
		return NewDefaultHTTPClient(timeout)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via ssl_verify=false

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
