package exchanges

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ashmitsharp/tradebook/internal/models"
)

func requireConsistent(t *testing.T, trade models.Trade) {
	t.Helper()
	price := decimal.RequireFromString(trade.Price)
	qty := decimal.RequireFromString(trade.Qty)
	quote := decimal.RequireFromString(trade.QuoteQty)
	require.True(t, price.Mul(qty).Sub(quote).Abs().LessThan(decimal.New(1, -8)),
		"quoteQty %s != price %s * qty %s", trade.QuoteQty, trade.Price, trade.Qty)
	require.False(t, decimal.RequireFromString(trade.Commission).IsNegative())
}

func TestNormalizeBinance(t *testing.T) {
	trade := normalizeBinance(binanceTrade{
		Symbol:          "BTCUSDT",
		ID:              28457,
		OrderID:         100234,
		Price:           "4.00000100",
		Qty:             "12.00000000",
		QuoteQty:        "48.000012",
		Commission:      "10.10000000",
		CommissionAsset: "BNB",
		Time:            1499865549590,
		IsBuyer:         true,
		IsMaker:         false,
	})

	requireConsistent(t, trade)
	require.Equal(t, "28457", trade.ID)
	require.Equal(t, "100234", trade.OrderID)
	require.Equal(t, "1499865549590", trade.Time)
	require.Equal(t, "48.000012", trade.QuoteQty)
	require.Equal(t, "10.1", trade.Commission)
	require.True(t, trade.IsBuyer)
}

func TestNormalizeBinanceComputesMissingQuoteQty(t *testing.T) {
	trade := normalizeBinance(binanceTrade{ID: 1, Price: "2.5", Qty: "4", Time: 1})

	require.Equal(t, "10", trade.QuoteQty)
	require.Equal(t, "0", trade.Commission)
	require.Equal(t, "USDT", trade.CommissionAsset)
}

func TestNormalizeOKXFill(t *testing.T) {
	trade := normalizeOKXFill(okxFill{
		InstID:   "BTC-USDT",
		TradeID:  "123",
		OrdID:    "987",
		FillPx:   "42000.5",
		FillSz:   "0.01",
		Side:     "sell",
		ExecType: "M",
		Fee:      "-0.42",
		FeeCcy:   "USDT",
		Ts:       "1704067200123",
	}, "BTCUSDT")

	requireConsistent(t, trade)
	require.Equal(t, "123", trade.ID)
	require.Equal(t, "BTCUSDT", trade.Symbol)
	require.Equal(t, "420.005", trade.QuoteQty)
	require.Equal(t, "0.42", trade.Commission)
	require.False(t, trade.IsBuyer)
	require.True(t, trade.IsMaker)
}

func TestNormalizeOKXFillFallsBackToBillID(t *testing.T) {
	trade := normalizeOKXFill(okxFill{BillID: "b-1", FillPx: "1", FillSz: "1", Side: "BUY"}, "ETHUSDT")

	require.Equal(t, "b-1", trade.ID)
	require.True(t, trade.IsBuyer)
	require.Equal(t, "USDT", trade.CommissionAsset)
}

func TestNormalizeOKXOrder(t *testing.T) {
	trade, ok := normalizeOKXOrder(okxOrder{
		OrdID:     "555",
		OrdType:   "limit",
		State:     "filled",
		Side:      "buy",
		Px:        "100",
		AvgPx:     "99.5",
		AccFillSz: "2",
		Fee:       "-0.199",
		FeeCcy:    "USDT",
		CTime:     "1704067200000",
		UTime:     "1704067300000",
	}, "SOLUSDT")

	require.True(t, ok)
	requireConsistent(t, trade)
	require.Equal(t, "99.5", trade.Price)
	require.Equal(t, "199", trade.QuoteQty)
	require.Equal(t, "0.199", trade.Commission)
	require.Equal(t, "1704067200000", trade.Time)
	require.True(t, trade.IsBuyer)
	require.True(t, trade.IsMaker)
}

func TestNormalizeOKXOrderFallbacks(t *testing.T) {
	trade, ok := normalizeOKXOrder(okxOrder{
		OrdID:   "556",
		OrdType: "market",
		State:   "filled",
		Side:    "sell",
		Px:      "10",
		FillSz:  "3",
		UTime:   "1704067300000",
	}, "SOLUSDT")

	require.True(t, ok)
	require.Equal(t, "10", trade.Price)
	require.Equal(t, "3", trade.Qty)
	require.Equal(t, "1704067300000", trade.Time)
	require.False(t, trade.IsMaker)

	_, ok = normalizeOKXOrder(okxOrder{State: "canceled", AccFillSz: "1"}, "SOLUSDT")
	require.False(t, ok)
	_, ok = normalizeOKXOrder(okxOrder{State: "filled", AccFillSz: "0"}, "SOLUSDT")
	require.False(t, ok)
}

func TestNormalizeBybit(t *testing.T) {
	trade := normalizeBybit(bybitExecution{
		Symbol:      "ETHUSDT",
		ExecID:      "e-1",
		OrderID:     "o-1",
		Side:        "Buy",
		ExecPrice:   "2300.1",
		ExecQty:     "0.5",
		ExecFee:     "0.00005",
		FeeCurrency: "ETH",
		ExecTime:    "1704067200999",
		IsMaker:     false,
	})

	requireConsistent(t, trade)
	require.Equal(t, "1150.05", trade.QuoteQty)
	require.Equal(t, "ETH", trade.CommissionAsset)
	require.True(t, trade.IsBuyer)
}

func TestSortByTimeAndTag(t *testing.T) {
	trades := []models.Trade{
		{ID: "c", Time: "300"},
		{ID: "a", Time: "100"},
		{ID: "b1", Time: "200"},
		{ID: "b2", Time: "200"},
	}
	SortByTime(trades)
	Tag(trades, "main", Bybit)

	ids := make([]string, 0, len(trades))
	for _, tr := range trades {
		ids = append(ids, tr.ID)
		require.Equal(t, "main", tr.AccountName)
		require.Equal(t, "bybit", tr.Exchange)
	}
	require.Equal(t, []string{"a", "b1", "b2", "c"}, ids)
}
