package worker

import (
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// defaultHTTPTimeout is the timeout the tests pass when they build
// dispatchers and client pairs without a config; NewCommandDispatcher
// itself always takes an explicit timeout.
const defaultHTTPTimeout = 30 * time.Second

// clientPair holds the long-lived HTTP/1.1 and HTTP/2-forced clients a
// TaskScheduler dispatches requests through, per spec.md §4.4 step 5:
// "both clients share a TLS connector built from system roots; both are
// long-lived." Grounded on bpowers-hithere/requester.go's runWorkers,
// which builds exactly this kind of split transport pair.
type clientPair struct {
	http1 *http.Client
	http2 *http.Client
}

// newClientPair builds both clients against the system root CA pool, with
// timeout applied to each (internal/config's WorkerConfig.HTTPTimeout).
func newClientPair(timeout time.Duration) *clientPair {
	roots, err := x509.SystemCertPool()
	if err != nil || roots == nil {
		roots = x509.NewCertPool()
	}
	tlsConfig := &tls.Config{RootCAs: roots}

	h1Transport := &http.Transport{
		TLSClientConfig:     tlsConfig,
		MaxIdleConnsPerHost: 100,
		// Disable implicit HTTP/2 upgrade so RequestSpec.version is
		// honored precisely: Http11 requests never silently negotiate h2.
		TLSNextProto: make(map[string]func(string, *tls.Conn) http.RoundTripper),
	}

	// An http2.Transport speaks only HTTP/2 (over TLS), so Http2 requests
	// never fall back to HTTP/1.1; plain http:// URLs fail on this client.
	h2Transport := &http2.Transport{TLSClientConfig: tlsConfig.Clone()}

	return &clientPair{
		http1: &http.Client{Transport: h1Transport, Timeout: timeout},
		http2: &http.Client{Transport: h2Transport, Timeout: timeout},
	}
}
