package exchanges

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ashmitsharp/tradebook/internal/models"
)

const defaultFeeAsset = "USDT"

type binanceTrade struct {
	Symbol          string `json:"symbol"`
	ID              int64  `json:"id"`
	OrderID         int64  `json:"orderId"`
	Price           string `json:"price"`
	Qty             string `json:"qty"`
	QuoteQty        string `json:"quoteQty"`
	Commission      string `json:"commission"`
	CommissionAsset string `json:"commissionAsset"`
	Time            int64  `json:"time"`
	IsBuyer         bool   `json:"isBuyer"`
	IsMaker         bool   `json:"isMaker"`
}

type okxFill struct {
	InstID   string `json:"instId"`
	TradeID  string `json:"tradeId"`
	BillID   string `json:"billId"`
	OrdID    string `json:"ordId"`
	FillPx   string `json:"fillPx"`
	FillSz   string `json:"fillSz"`
	Side     string `json:"side"`
	ExecType string `json:"execType"`
	Fee      string `json:"fee"`
	FeeCcy   string `json:"feeCcy"`
	Ts       string `json:"ts"`
}

type okxOrder struct {
	InstID    string `json:"instId"`
	OrdID     string `json:"ordId"`
	OrdType   string `json:"ordType"`
	State     string `json:"state"`
	Side      string `json:"side"`
	Px        string `json:"px"`
	AvgPx     string `json:"avgPx"`
	AccFillSz string `json:"accFillSz"`
	FillSz    string `json:"fillSz"`
	Fee       string `json:"fee"`
	FeeCcy    string `json:"feeCcy"`
	CTime     string `json:"cTime"`
	UTime     string `json:"uTime"`
}

type bybitExecution struct {
	Symbol      string `json:"symbol"`
	ExecID      string `json:"execId"`
	OrderID     string `json:"orderId"`
	Side        string `json:"side"`
	ExecPrice   string `json:"execPrice"`
	ExecQty     string `json:"execQty"`
	ExecValue   string `json:"execValue"`
	ExecFee     string `json:"execFee"`
	FeeCurrency string `json:"feeCurrency"`
	ExecType    string `json:"execType"`
	ExecTime    string `json:"execTime"`
	IsMaker     bool   `json:"isMaker"`
}

func normalizeBinance(raw binanceTrade) models.Trade {
	quote := raw.QuoteQty
	if parseDecimal(quote).IsZero() {
		quote = notional(raw.Price, raw.Qty)
	}
	return models.Trade{
		ID:              strconv.FormatInt(raw.ID, 10),
		OrderID:         strconv.FormatInt(raw.OrderID, 10),
		Symbol:          raw.Symbol,
		Time:            strconv.FormatInt(raw.Time, 10),
		Price:           orZero(raw.Price),
		Qty:             orZero(raw.Qty),
		QuoteQty:        quote,
		Commission:      absDecimal(raw.Commission),
		CommissionAsset: orDefault(raw.CommissionAsset, defaultFeeAsset),
		IsBuyer:         raw.IsBuyer,
		IsMaker:         raw.IsMaker,
	}
}

func normalizeOKXFill(raw okxFill, symbol string) models.Trade {
	return models.Trade{
		ID:              orDefault(raw.TradeID, raw.BillID),
		OrderID:         raw.OrdID,
		Symbol:          symbol,
		Time:            orZero(raw.Ts),
		Price:           orZero(raw.FillPx),
		Qty:             orZero(raw.FillSz),
		QuoteQty:        notional(raw.FillPx, raw.FillSz),
		Commission:      absDecimal(raw.Fee),
		CommissionAsset: orDefault(raw.FeeCcy, defaultFeeAsset),
		IsBuyer:         isBuySide(raw.Side),
		IsMaker:         strings.EqualFold(raw.ExecType, "M"),
	}
}

// normalizeOKXOrder synthesizes one trade from a filled order's aggregate
// fields. Orders that are not filled, or carry no filled size, are skipped.
func normalizeOKXOrder(raw okxOrder, symbol string) (models.Trade, bool) {
	if raw.State != "filled" {
		return models.Trade{}, false
	}
	qty := orDefault(raw.AccFillSz, raw.FillSz)
	if !parseDecimal(qty).IsPositive() {
		return models.Trade{}, false
	}
	price := raw.AvgPx
	if !parseDecimal(price).IsPositive() {
		price = raw.Px
	}
	return models.Trade{
		ID:              raw.OrdID,
		OrderID:         raw.OrdID,
		Symbol:          symbol,
		Time:            orZero(orDefault(raw.CTime, raw.UTime)),
		Price:           orZero(price),
		Qty:             qty,
		QuoteQty:        notional(price, qty),
		Commission:      absDecimal(raw.Fee),
		CommissionAsset: orDefault(raw.FeeCcy, defaultFeeAsset),
		IsBuyer:         isBuySide(raw.Side),
		IsMaker:         raw.OrdType == "limit",
	}, true
}

func normalizeBybit(raw bybitExecution) models.Trade {
	quote := raw.ExecValue
	if parseDecimal(quote).IsZero() {
		quote = notional(raw.ExecPrice, raw.ExecQty)
	}
	return models.Trade{
		ID:              raw.ExecID,
		OrderID:         raw.OrderID,
		Symbol:          raw.Symbol,
		Time:            orZero(raw.ExecTime),
		Price:           orZero(raw.ExecPrice),
		Qty:             orZero(raw.ExecQty),
		QuoteQty:        quote,
		Commission:      absDecimal(raw.ExecFee),
		CommissionAsset: orDefault(raw.FeeCurrency, defaultFeeAsset),
		IsBuyer:         isBuySide(raw.Side),
		IsMaker:         raw.IsMaker,
	}
}

// TimeMillis parses a trade's epoch millisecond timestamp, 0 when malformed.
func TimeMillis(t models.Trade) int64 {
	ms, err := strconv.ParseInt(t.Time, 10, 64)
	if err != nil {
		return 0
	}
	return ms
}

// SortByTime orders trades ascending by time, keeping the input order of ties.
func SortByTime(trades []models.Trade) {
	sort.SliceStable(trades, func(i, j int) bool {
		return TimeMillis(trades[i]) < TimeMillis(trades[j])
	})
}

// Tag stamps the source account and exchange onto every trade.
func Tag(trades []models.Trade, account string, exchange Exchange) {
	for i := range trades {
		trades[i].AccountName = account
		trades[i].Exchange = string(exchange)
	}
}

func isBuySide(side string) bool {
	return strings.EqualFold(strings.TrimSpace(side), "buy")
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func notional(price, qty string) string {
	return parseDecimal(price).Mul(parseDecimal(qty)).String()
}

func absDecimal(s string) string {
	return parseDecimal(s).Abs().String()
}

func orZero(s string) string {
	if strings.TrimSpace(s) == "" {
		return "0"
	}
	return s
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
