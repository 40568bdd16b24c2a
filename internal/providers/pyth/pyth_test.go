package pyth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"AgentKit-Chain/internal/action"
	"AgentKit-Chain/internal/cache"

	"github.com/stretchr/testify/require"
)

const btcFeed = "e62df6c8b4a85fe1a67db44dc12de5db330f7ac66b72dc658afedf0f4a415b43"

func newHermes(t *testing.T, feedCalls *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/price_feeds", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(feedCalls, 1)
		require.Equal(t, "BTC", r.URL.Query().Get("query"))
		require.Equal(t, "crypto", r.URL.Query().Get("asset_type"))
		_, _ = w.Write([]byte(`[
		  {"id":"aaaa","attributes":{"base":"WBTC","quote_currency":"USD"}},
		  {"id":"` + btcFeed + `","attributes":{"base":"BTC","quote_currency":"USD"}}
		]`))
	})
	mux.HandleFunc("/v2/updates/price/latest", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, btcFeed, r.URL.Query().Get("ids[]"))
		_, _ = w.Write([]byte(`{"parsed":[{"id":"` + btcFeed + `","price":{"price":"6712345000000","conf":"1","expo":-8,"publish_time":1}}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func invoke(t *testing.T, p *Provider, name string, args action.Args) string {
	t.Helper()
	for _, a := range p.Actions(nil) {
		if a.Name == Owner+"_"+name {
			out, err := a.Invoke(context.Background(), args)
			require.NoError(t, err)
			return out
		}
	}
	t.Fatalf("missing action %s", name)
	return ""
}

func TestFetchPriceFeedIDUsesCache(t *testing.T) {
	var calls int32
	srv := newHermes(t, &calls)
	p := New(Config{BaseURL: srv.URL, Cache: cache.NewMemory(0), CacheTTL: time.Minute})

	require.Equal(t, btcFeed, invoke(t, p, "fetch_price_feed_id", action.Args{"token_symbol": "btc"}))
	require.Equal(t, btcFeed, invoke(t, p, "fetch_price_feed_id", action.Args{"token_symbol": "BTC"}))
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestFetchPriceScalesByExponent(t *testing.T) {
	var calls int32
	srv := newHermes(t, &calls)
	p := New(Config{BaseURL: srv.URL})

	require.Equal(t, "67123.45", invoke(t, p, "fetch_price", action.Args{"price_feed_id": btcFeed}))
}

func TestUnknownSymbolIsResultText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)

	out := invoke(t, New(Config{BaseURL: srv.URL}), "fetch_price_feed_id", action.Args{"token_symbol": "NOPE"})
	require.Contains(t, out, "Error "+Owner+"_fetch_price_feed_id")
}

func TestScale(t *testing.T) {
	got, err := scale("15", 2)
	require.NoError(t, err)
	require.Equal(t, "1500", got)

	got, err = scale("100000000", -8)
	require.NoError(t, err)
	require.Equal(t, "1", got)

	_, err = scale("x", -2)
	require.Error(t, err)
}
