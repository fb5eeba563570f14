// Package datamuse is a client for the Datamuse word-finding API.
package datamuse

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.datamuse.com"

// Client queries the /words endpoint.
type Client interface {
	Words(ctx context.Context, q Query) ([]Word, error)
}

// Query holds the /words parameters this module uses. Empty fields are omitted.
type Query struct {
	// SpelledLike is the sp= constraint.
	SpelledLike string
	// Synonyms is rel_syn=.
	Synonyms string
	// Rhymes is rel_rhy=.
	Rhymes string
	// Antonyms is rel_ant=.
	Antonyms string
	// Metadata is md= flags: d (definitions), p (parts of speech),
	// r (pronunciation), f (frequency).
	Metadata string
	Max      int
}

// Values encodes q as URL query parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("sp", q.SpelledLike)
	set("rel_syn", q.Synonyms)
	set("rel_rhy", q.Rhymes)
	set("rel_ant", q.Antonyms)
	set("md", q.Metadata)
	if q.Max > 0 {
		v.Set("max", strconv.Itoa(q.Max))
	}
	return v
}

// Word is one result row.
type Word struct {
	Word         string   `json:"word"`
	Score        int      `json:"score"`
	NumSyllables int      `json:"numSyllables,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Defs         []string `json:"defs,omitempty"`
}

// Definition is a parsed "pos\tdefinition" entry from Defs.
type Definition struct {
	PartOfSpeech string
	Text         string
}

// Definitions splits Defs into part of speech and text.
func (w Word) Definitions() []Definition {
	out := make([]Definition, 0, len(w.Defs))
	for _, d := range w.Defs {
		pos, text, ok := strings.Cut(d, "\t")
		if !ok {
			text, pos = pos, ""
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		out = append(out, Definition{PartOfSpeech: ExpandPOS(pos), Text: text})
	}
	return out
}

// PartsOfSpeech returns the expanded part-of-speech tags (n, v, adj, adv).
func (w Word) PartsOfSpeech() []string {
	var out []string
	for _, t := range w.Tags {
		if p := ExpandPOS(t); p != "" && p != t {
			out = append(out, p)
		}
	}
	return out
}

// Pronunciation returns the pron: tag value, if requested with md=r.
func (w Word) Pronunciation() string {
	for _, t := range w.Tags {
		if p, ok := strings.CutPrefix(t, "pron:"); ok {
			return strings.TrimSpace(p)
		}
	}
	return ""
}

// ExpandPOS maps Datamuse part-of-speech abbreviations to full names.
// Unknown values are returned unchanged.
func ExpandPOS(tag string) string {
	switch strings.TrimSpace(tag) {
	case "n":
		return "noun"
	case "v":
		return "verb"
	case "adj":
		return "adjective"
	case "adv":
		return "adverb"
	case "u":
		return ""
	default:
		return tag
	}
}

// Words returns only the Word field of each row.
func Words(rows []Word) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.Word != "" {
			out = append(out, r.Word)
		}
	}
	return out
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

// NewClient creates a Datamuse client.
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

func (c *httpClient) Words(ctx context.Context, q Query) ([]Word, error) {
	endpoint := c.baseURL + "/words?" + q.Values().Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "datamuse: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "datamuse: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "datamuse: read response")
	}
	if resp.StatusCode != http.StatusOK {
		if len(body) > 200 {
			body = body[:200]
		}
		return nil, eris.Errorf("datamuse: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var rows []Word
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, eris.Wrap(err, "datamuse: unmarshal response")
	}
	return rows, nil
}
