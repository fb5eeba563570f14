// Package freedict is a client for the Free Dictionary API (dictionaryapi.dev).
package freedict

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.dictionaryapi.dev/api/v2"

// ErrNotFound is returned when the dictionary has no entry for the word.
var ErrNotFound = eris.New("freedict: no definitions found")

// Client looks up dictionary entries.
type Client interface {
	Entries(ctx context.Context, word string) ([]Entry, error)
}

// Entry is one headword entry.
type Entry struct {
	Word      string     `json:"word"`
	Phonetic  string     `json:"phonetic,omitempty"`
	Phonetics []Phonetic `json:"phonetics,omitempty"`
	Origin    string     `json:"origin,omitempty"`
	Meanings  []Meaning  `json:"meanings"`
}

// Phonetic is a transcription with optional audio.
type Phonetic struct {
	Text  string `json:"text,omitempty"`
	Audio string `json:"audio,omitempty"`
}

// Meaning groups senses under one part of speech.
type Meaning struct {
	PartOfSpeech string       `json:"partOfSpeech"`
	Definitions  []Definition `json:"definitions"`
	Synonyms     []string     `json:"synonyms,omitempty"`
	Antonyms     []string     `json:"antonyms,omitempty"`
}

// Definition is a single sense.
type Definition struct {
	Definition string   `json:"definition"`
	Example    string   `json:"example,omitempty"`
	Synonyms   []string `json:"synonyms,omitempty"`
	Antonyms   []string `json:"antonyms,omitempty"`
}

// BestPhonetic returns Phonetic, or the first non-empty transcription.
func (e Entry) BestPhonetic() string {
	if e.Phonetic != "" {
		return e.Phonetic
	}
	for _, p := range e.Phonetics {
		if p.Text != "" {
			return p.Text
		}
	}
	return ""
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

// NewClient creates a Free Dictionary client.
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

func (c *httpClient) Entries(ctx context.Context, word string) ([]Entry, error) {
	endpoint := c.baseURL + "/entries/en/" + url.PathEscape(word)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "freedict: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "freedict: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "freedict: read response")
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		if len(body) > 200 {
			body = body[:200]
		}
		return nil, eris.Errorf("freedict: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var entries []Entry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, eris.Wrap(err, "freedict: unmarshal response")
	}
	return entries, nil
}
