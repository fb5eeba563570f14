// Package fetcher provides the rate-limited, retrying HTTP transport used by
// the lexical source clients.
package fetcher

import (
	"context"
	"net/http"
)

// Doer sends a single HTTP request. *http.Client and *HTTPFetcher both
// satisfy it, which lets the dictionary clients in pkg/ run either bare or
// behind the fetcher.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Getter fetches a URL body.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

var (
	_ Doer   = (*HTTPFetcher)(nil)
	_ Getter = (*HTTPFetcher)(nil)
)
