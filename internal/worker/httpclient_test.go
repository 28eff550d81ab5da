package worker

import "testing"

func TestNewClientPairBuildsBothClients(t *testing.T) {
	pair := newClientPair(defaultHTTPTimeout)
	if pair.http1 == nil {
		t.Error("http1 client is nil")
	}
	if pair.http2 == nil {
		t.Error("http2 client is nil")
	}
	if pair.http1 == pair.http2 {
		t.Error("http1 and http2 clients are the same instance")
	}
}
