package worker

import (
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/tempestgen/tempest/internal/proto"
)

// freshToken returns a fresh 128-bit random token, per spec.md §4.4 steps
// 1 and 3. A uuid.New() value is exactly the 128-bit token the spec asks
// for; formatted without hyphens it reads as a single opaque token.
func freshToken() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// buildRequest constructs the *http.Request for one attempt of spec, per
// spec.md §4.4 steps 1–4: effective URL (with an optional injected
// random_querystring), declared method, static headers, an optional
// random_header, and the body if present.
func buildRequest(spec proto.RequestSpec) (*http.Request, error) {
	effectiveURL, err := effectiveURL(spec)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if spec.Body != nil {
		body = strings.NewReader(*spec.Body)
	} else {
		body = strings.NewReader("")
	}

	req, err := http.NewRequest(string(spec.Method), effectiveURL, body)
	if err != nil {
		return nil, err
	}
	for k, v := range spec.Headers {
		req.Header.Set(k, v)
	}
	if spec.RandomHeader != nil {
		req.Header.Set(*spec.RandomHeader, freshToken())
	}
	return req, nil
}

// effectiveURL appends field=token to spec.URL's query string when
// RandomQuerystring is set, preserving any existing query.
func effectiveURL(spec proto.RequestSpec) (string, error) {
	if spec.RandomQuerystring == nil {
		return spec.URL, nil
	}
	u, err := url.Parse(spec.URL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(*spec.RandomQuerystring, freshToken())
	u.RawQuery = q.Encode()
	return u.String(), nil
}
