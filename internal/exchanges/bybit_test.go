package exchanges

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ashmitsharp/tradebook/internal/errs"
)

var bybitAccount = Account{
	Name:      "bybit-main",
	Exchange:  Bybit,
	APIKey:    "by-key",
	SecretKey: "by-secret",
}

// serverSkew is how far the fake Bybit clock runs ahead of fixedNow.
const serverSkew = 5 * time.Second

func writeBybitServerTime(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, fmt.Sprintf(`{"retCode":0,"retMsg":"OK","result":{"timeSecond":"%d","timeNano":"0"}}`,
		fixedNow.Add(serverSkew).Unix()))
}

func requireBybitSigned(t *testing.T, r *http.Request) {
	t.Helper()
	ts := r.Header.Get("X-BAPI-TIMESTAMP")
	require.Equal(t, strconv.FormatInt(fixedNow.Add(serverSkew).UnixMilli(), 10), ts)
	require.Equal(t, "by-key", r.Header.Get("X-BAPI-API-KEY"))
	require.Equal(t, "20000", r.Header.Get("X-BAPI-RECV-WINDOW"))
	require.Equal(t, SignBybit("by-secret", ts, "by-key", "20000", r.URL.RawQuery), r.Header.Get("X-BAPI-SIGN"))
}

func TestBybitFetchesPerDayWithCursor(t *testing.T) {
	var days []string
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v5/market/time" {
			writeBybitServerTime(w)
			return
		}
		require.Equal(t, "/v5/execution/list", r.URL.Path)
		requireBybitSigned(t, r)

		q := r.URL.Query()
		require.Equal(t, "spot", q.Get("category"))
		require.Equal(t, "ETHUSDT", q.Get("symbol"))
		require.Equal(t, "100", q.Get("limit"))
		days = append(days, q.Get("startTime")+"/"+q.Get("cursor"))

		switch {
		case q.Get("startTime") == "1704067200000" && q.Get("cursor") == "":
			writeJSON(w, http.StatusOK, `{"retCode":0,"retMsg":"OK","result":{"nextPageCursor":"page2","list":[
				{"symbol":"ETHUSDT","execId":"e2","orderId":"o2","side":"Sell","execPrice":"2300","execQty":"1","execValue":"2300","execFee":"2.3","feeCurrency":"USDT","execType":"Trade","execTime":"1704090000000","isMaker":false}
			]}}`)
		case q.Get("cursor") == "page2":
			writeJSON(w, http.StatusOK, `{"retCode":0,"retMsg":"OK","result":{"nextPageCursor":"","list":[
				{"symbol":"ETHUSDT","execId":"e1","orderId":"o1","side":"Buy","execPrice":"2200","execQty":"0.5","execFee":"-0.0005","feeCurrency":"ETH","execType":"Trade","execTime":"1704080000000","isMaker":true}
			]}}`)
		default:
			writeJSON(w, http.StatusOK, `{"retCode":0,"retMsg":"OK","result":{"nextPageCursor":"","list":[]}}`)
		}
	})

	client := newTestClient(t, bybitAccount, EndpointTable{Bybit: {Mainnet: []string{srv.URL}}})
	trades, err := client.FetchTradesForWindow(context.Background(), "ethusdt", mustWindow(t, "2024-01-01", "2024-01-02"))
	require.NoError(t, err)

	require.Equal(t, []string{"1704067200000/", "1704067200000/page2", "1704153600000/"}, days)
	require.Len(t, trades, 2)
	require.Equal(t, "e1", trades[0].ID)
	require.True(t, trades[0].IsBuyer)
	require.Equal(t, "1100", trades[0].QuoteQty)
	require.Equal(t, "0.0005", trades[0].Commission)
	require.Equal(t, "e2", trades[1].ID)
	require.False(t, trades[1].IsBuyer)
}

func TestBybitBusinessError(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v5/market/time" {
			writeBybitServerTime(w)
			return
		}
		writeJSON(w, http.StatusOK, `{"retCode":10004,"retMsg":"error sign! origin_string[...]","result":{}}`)
	})

	client := newTestClient(t, bybitAccount, EndpointTable{Bybit: {Mainnet: []string{srv.URL}}})
	_, err := client.FetchTradesForWindow(context.Background(), "BTCUSDT", mustWindow(t, "2024-01-01", "2024-01-01"))
	require.Error(t, err)
	require.Equal(t, errs.CodeAuth, errs.CodeOf(err))
	require.Contains(t, errs.Detail(err), "error sign")
}

func TestBybitRetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v5/market/time" {
			writeBybitServerTime(w)
			return
		}
		if attempts.Add(1) < 3 {
			writeJSON(w, http.StatusServiceUnavailable, `{"retCode":10016,"retMsg":"Service unavailable"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"retCode":0,"retMsg":"OK","result":{"list":[]}}`)
	})

	client := newTestClient(t, bybitAccount, EndpointTable{Bybit: {Mainnet: []string{srv.URL}}}, WithRetryAttempts(3))
	trades, err := client.FetchTradesForWindow(context.Background(), "BTCUSDT", mustWindow(t, "2024-01-01", "2024-01-01"))
	require.NoError(t, err)
	require.Empty(t, trades)
	require.EqualValues(t, 3, attempts.Load())
}

func TestBybitSignsWithLocalClockWhenTimeSyncFails(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v5/market/time" {
			writeJSON(w, http.StatusBadGateway, `bad gateway`)
			return
		}
		require.Equal(t, strconv.FormatInt(fixedNow.UnixMilli(), 10), r.Header.Get("X-BAPI-TIMESTAMP"))
		writeJSON(w, http.StatusOK, `{"retCode":0,"retMsg":"OK","result":{"list":[]}}`)
	})

	client := newTestClient(t, bybitAccount, EndpointTable{Bybit: {Mainnet: []string{srv.URL}}}, WithRetryAttempts(1))
	_, err := client.FetchTradesForWindow(context.Background(), "BTCUSDT", mustWindow(t, "2024-01-01", "2024-01-01"))
	require.NoError(t, err)
}

func TestBybitTestConnection(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v5/market/time":
			writeBybitServerTime(w)
		case "/v5/asset/transfer/query-account-coins-balance":
			requireBybitSigned(t, r)
			require.Equal(t, "UNIFIED", r.URL.Query().Get("accountType"))
			require.Equal(t, "USDT", r.URL.Query().Get("coin"))
			writeJSON(w, http.StatusOK, `{"retCode":0,"retMsg":"success","result":{"accountType":"UNIFIED","balance":[]}}`)
		}
	})

	client := newTestClient(t, bybitAccount, EndpointTable{Bybit: {Mainnet: []string{srv.URL}}})
	require.NoError(t, client.TestConnection(context.Background()))
}
