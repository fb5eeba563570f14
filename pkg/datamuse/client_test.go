package datamuse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/words", r.URL.Path)
		assert.Equal(t, "run", r.URL.Query().Get("sp"))
		assert.Equal(t, "d,p,r,f", r.URL.Query().Get("md"))
		assert.Equal(t, "1", r.URL.Query().Get("max"))
		w.Write([]byte(`[{"word":"run","score":100,"tags":["v","n","pron:R AH1 N ","f:293.4"],
			"defs":["v\tmove fast by using one's feet","n\ta score in baseball"]}]`))
	}))
	defer srv.Close()

	rows, err := NewClient(WithBaseURL(srv.URL)).Words(context.Background(), Query{
		SpelledLike: "run", Metadata: "d,p,r,f", Max: 1,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	defs := rows[0].Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, Definition{PartOfSpeech: "verb", Text: "move fast by using one's feet"}, defs[0])
	assert.Equal(t, []string{"verb", "noun"}, rows[0].PartsOfSpeech())
	assert.Equal(t, "R AH1 N", rows[0].Pronunciation())
}

func TestWords_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"server_error", http.StatusBadGateway, "bad gateway", "unexpected status 502"},
		{"malformed", http.StatusOK, "{", "unmarshal response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(WithBaseURL(srv.URL)).Words(context.Background(), Query{Synonyms: "run"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestQuery_Values(t *testing.T) {
	v := Query{Rhymes: "run", Max: 5}.Values()
	assert.Equal(t, "run", v.Get("rel_rhy"))
	assert.Equal(t, "5", v.Get("max"))
	assert.False(t, v.Has("sp"))
	assert.False(t, v.Has("md"))
}

func TestDefinitions_WithoutTab(t *testing.T) {
	defs := Word{Defs: []string{"a plain definition", "n\t "}}.Definitions()
	require.Len(t, defs, 1)
	assert.Equal(t, "", defs[0].PartOfSpeech)
	assert.Equal(t, "a plain definition", defs[0].Text)
}

func TestExpandPOS(t *testing.T) {
	assert.Equal(t, "noun", ExpandPOS("n"))
	assert.Equal(t, "adverb", ExpandPOS("adv"))
	assert.Equal(t, "", ExpandPOS("u"))
	assert.Equal(t, "f:12.3", ExpandPOS("f:12.3"))
}

func TestWords_Helper(t *testing.T) {
	assert.Equal(t, []string{"sprint", "dash"}, Words([]Word{{Word: "sprint"}, {}, {Word: "dash"}}))
}
