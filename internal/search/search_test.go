package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerperSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-API-KEY"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload struct {
			Q   string `json:"q"`
			Num int    `json:"num"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "cerave cleanser ingredients list INCI", payload.Q)
		assert.Equal(t, 3, payload.Num)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"organic":[
			{"link":"https://a.example.com/p1"},
			{"link":""},
			{"link":"https://b.example.com/p2"},
			{"link":"https://c.example.com/p3"}
		]}`))
	}))
	defer server.Close()

	engine := NewSerper("test-key", server.URL)
	urls, err := engine.Search(context.Background(), "cerave cleanser ingredients list INCI", 3)

	require.NoError(t, err)
	// Blank links are dropped after the topK window is cut, not backfilled.
	assert.Equal(t, []string{"https://a.example.com/p1", "https://b.example.com/p2"}, urls)
}

func TestSerperWithoutKey(t *testing.T) {
	engine := NewSerper("", "")
	urls, err := engine.Search(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestSerperErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	engine := NewSerper("bad-key", server.URL)
	_, err := engine.Search(context.Background(), "anything", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestSerpAPISearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search.json", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "google", q.Get("engine"))
		assert.Equal(t, "the ordinary niacinamide ingredients", q.Get("q"))
		assert.Equal(t, "sk-123", q.Get("api_key"))
		assert.Equal(t, "3", q.Get("num"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"organic_results":[
			{"link":"https://x.example.com"},
			{"link":"https://y.example.com"}
		]}`))
	}))
	defer server.Close()

	engine := NewSerpAPI("sk-123", server.URL)
	urls, err := engine.Search(context.Background(), "the ordinary niacinamide ingredients", 3)

	require.NoError(t, err)
	assert.Equal(t, []string{"https://x.example.com", "https://y.example.com"}, urls)
}

func TestGoogleCSESearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/customsearch/v1", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "cse-key", q.Get("key"))
		assert.Equal(t, "cx-42", q.Get("cx"))
		assert.Equal(t, "2", q.Get("num"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"link":"https://g.example.com/item"}]}`))
	}))
	defer server.Close()

	engine := NewGoogleCSE("cse-key", "cx-42", server.URL)
	urls, err := engine.Search(context.Background(), "laneige lip mask ingredients", 2)

	require.NoError(t, err)
	assert.Equal(t, []string{"https://g.example.com/item"}, urls)
}

func TestGoogleCSEWithoutCX(t *testing.T) {
	engine := NewGoogleCSE("cse-key", "", "")
	urls, err := engine.Search(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestDuckDuckGoSearch(t *testing.T) {
	page := `<html><body>
		<a href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.sephora.com%2Fproduct%2Fp123&amp;rut=abc">Sephora</a>
		<a href="/html/?q=next">More results</a>
		<a href="https://www.ulta.com/p/x">Ulta</a>
		<a href="https://duckduckgo.com/about">About</a>
		<a href="https://www.ulta.com/p/x">Ulta again</a>
	</body></html>`

	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	}))
	defer server.Close()

	engine := NewDuckDuckGo(server.URL)
	urls, err := engine.Search(context.Background(), "innisfree green tea serum 全成分", 5)

	require.NoError(t, err)
	assert.Equal(t, "innisfree green tea serum 全成分", gotQuery)
	assert.Equal(t, []string{"https://www.sephora.com/product/p123", "https://www.ulta.com/p/x"}, urls)
}

func TestDuckDuckGoRespectsLimit(t *testing.T) {
	page := `<html><body>
		<a href="https://one.example.com">1</a>
		<a href="https://two.example.com">2</a>
		<a href="https://three.example.com">3</a>
	</body></html>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer server.Close()

	engine := NewDuckDuckGo(server.URL)
	urls, err := engine.Search(context.Background(), "anything", 2)

	require.NoError(t, err)
	assert.Equal(t, []string{"https://one.example.com", "https://two.example.com"}, urls)
}

func TestDecodeDDGLink(t *testing.T) {
	decoded := decodeDDGLink("//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fitem&rut=z")
	assert.Equal(t, "https://example.com/item", decoded)

	assert.Equal(t, "", decodeDDGLink("/html/?q=plain"))
}

type stubEngine struct {
	name  string
	urls  []string
	err   error
	calls int
}

func (s *stubEngine) Name() string { return s.name }

func (s *stubEngine) Search(ctx context.Context, query string, topK int) ([]string, error) {
	s.calls++
	return s.urls, s.err
}

func TestChainFallsThrough(t *testing.T) {
	failing := &stubEngine{name: "first", err: errors.New("quota exceeded")}
	empty := &stubEngine{name: "second"}
	hit := &stubEngine{name: "third", urls: []string{"https://found.example.com"}}

	chain := NewChain(nil, failing, empty, hit)
	urls, err := chain.Search(context.Background(), "q", 3)

	require.NoError(t, err)
	assert.Equal(t, []string{"https://found.example.com"}, urls)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, empty.calls)
	assert.Equal(t, 1, hit.calls)
}

func TestChainStopsAtFirstHit(t *testing.T) {
	first := &stubEngine{name: "first", urls: []string{"https://a.example.com"}}
	second := &stubEngine{name: "second", urls: []string{"https://b.example.com"}}

	chain := NewChain(nil, first, second)
	urls, err := chain.Search(context.Background(), "q", 3)

	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com"}, urls)
	assert.Equal(t, 0, second.calls)
}

func TestChainContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := &stubEngine{name: "never"}
	chain := NewChain(nil, engine)
	_, err := chain.Search(ctx, "q", 3)

	require.Error(t, err)
	assert.Equal(t, 0, engine.calls)
}

func TestNoop(t *testing.T) {
	urls, err := Noop{}.Search(context.Background(), "q", 3)
	require.NoError(t, err)
	assert.Empty(t, urls)
}
