// Package wiktionary is a client for the Wiktionary REST definition endpoint.
package wiktionary

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://en.wiktionary.org/api/rest_v1"

// ErrNotFound is returned when Wiktionary has no page for the word.
var ErrNotFound = eris.New("wiktionary: word not found")

// Client looks up word definitions.
type Client interface {
	Definitions(ctx context.Context, word string) (*DefinitionResponse, error)
}

// DefinitionResponse maps a language code ("en", "fr", ...) to the usages of
// the word in that language.
type DefinitionResponse map[string][]Usage

// Usage is one part-of-speech section of the page.
type Usage struct {
	PartOfSpeech string       `json:"partOfSpeech"`
	Language     string       `json:"language"`
	Definitions  []Definition `json:"definitions"`
}

// Definition is a single sense. Definition and Examples contain HTML.
type Definition struct {
	Definition string   `json:"definition"`
	Examples   []string `json:"examples,omitempty"`
}

// English returns the English usages, if any.
func (r DefinitionResponse) English() []Usage {
	return r["en"]
}

// Doer sends HTTP requests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(d Doer) Option {
	return func(c *httpClient) {
		c.http = d
	}
}

type httpClient struct {
	baseURL string
	http    Doer
}

// NewClient creates a Wiktionary client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Definitions(ctx context.Context, word string) (*DefinitionResponse, error) {
	endpoint := c.baseURL + "/page/definition/" + url.PathEscape(word)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "wiktionary: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "wiktionary: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "wiktionary: read response")
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("wiktionary: unexpected status %d: %s", resp.StatusCode, truncate(body))
	}

	var result DefinitionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "wiktionary: unmarshal response")
	}
	return &result, nil
}

func truncate(b []byte) string {
	if len(b) > 200 {
		b = b[:200]
	}
	return string(b)
}
