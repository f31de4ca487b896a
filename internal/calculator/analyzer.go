package calculator

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ashmitsharp/tradebook/internal/models"
)

// ErrNoTrades is returned when Analyze is called with an empty selection.
var ErrNoTrades = errors.New("no trades selected for analysis")

// Analyzer computes volume-weighted statistics over a selection of trades.
type Analyzer struct {
	logger *zap.Logger
}

// NewAnalyzer creates a new trade analyzer
func NewAnalyzer(logger *zap.Logger) *Analyzer {
	return &Analyzer{
		logger: logger,
	}
}

// SideStats summarizes one side (buys or sells) of the selection.
type SideStats struct {
	Count             int                `json:"count"`
	AvgPrice          float64            `json:"avg_price"`
	TotalQty          float64            `json:"total_qty"`
	TotalAmount       float64            `json:"total_amount"`
	CommissionByAsset map[string]float64 `json:"commission_by_asset"`
}

// ProfitStats is a matched-volume estimate: the average price difference
// applied to the smaller of the bought and sold quantities. It does not
// match individual lots (no FIFO or LIFO), so it differs from realized PnL
// whenever the sides are unbalanced or prices drift within a side.
type ProfitStats struct {
	PriceDiff        float64 `json:"price_diff"`
	TotalProfit      float64 `json:"total_profit"`
	ProfitPercentage float64 `json:"profit_percentage"`
	MinQty           float64 `json:"min_qty"`
}

// TradeAnalysis is the result of analyzing a trade selection.
type TradeAnalysis struct {
	Accounts               []string           `json:"accounts"`
	Exchanges              []string           `json:"exchanges"`
	TotalCount             int                `json:"total_count"`
	BuyCount               int                `json:"buy_count"`
	SellCount              int                `json:"sell_count"`
	BuyStats               *SideStats         `json:"buy_stats,omitempty"`
	SellStats              *SideStats         `json:"sell_stats,omitempty"`
	ProfitStats            *ProfitStats       `json:"profit_stats,omitempty"`
	TotalCommissionByAsset map[string]float64 `json:"total_commission_by_asset"`
}

// side accumulates exact sums before conversion to SideStats.
type side struct {
	count       int
	notional    decimal.Decimal
	qty         decimal.Decimal
	amount      decimal.Decimal
	commissions map[string]decimal.Decimal
}

func newSide() *side {
	return &side{commissions: make(map[string]decimal.Decimal)}
}

func (s *side) add(t models.Trade, price, qty decimal.Decimal) {
	s.count++
	s.notional = s.notional.Add(price.Mul(qty))
	s.qty = s.qty.Add(qty)
	s.amount = s.amount.Add(parseDecimal(t.QuoteQty))
	addCommission(s.commissions, t)
}

func (s *side) avgPrice() decimal.Decimal {
	if !s.qty.IsPositive() {
		return decimal.Zero
	}
	return s.notional.Div(s.qty)
}

func (s *side) stats() *SideStats {
	if s.count == 0 {
		return nil
	}
	return &SideStats{
		Count:             s.count,
		AvgPrice:          s.avgPrice().InexactFloat64(),
		TotalQty:          s.qty.InexactFloat64(),
		TotalAmount:       s.amount.InexactFloat64(),
		CommissionByAsset: toFloats(s.commissions),
	}
}

// Analyze partitions trades by side and computes per-side VWAP, totals and
// commissions, plus a profit estimate when both sides are present.
func (a *Analyzer) Analyze(trades []models.Trade) (*TradeAnalysis, error) {
	if len(trades) == 0 {
		return nil, ErrNoTrades
	}

	buys, sells := newSide(), newSide()
	total := make(map[string]decimal.Decimal)
	accounts := newOrderedSet()
	venues := newOrderedSet()

	for _, t := range trades {
		price := parseDecimal(t.Price)
		qty := parseDecimal(t.Qty)
		if t.IsBuyer {
			buys.add(t, price, qty)
		} else {
			sells.add(t, price, qty)
		}
		addCommission(total, t)
		accounts.add(t.AccountName)
		venues.add(t.Exchange)
	}

	result := &TradeAnalysis{
		Accounts:               accounts.items,
		Exchanges:              venues.items,
		TotalCount:             len(trades),
		BuyCount:               buys.count,
		SellCount:              sells.count,
		BuyStats:               buys.stats(),
		SellStats:              sells.stats(),
		TotalCommissionByAsset: toFloats(total),
	}

	if buys.count > 0 && sells.count > 0 {
		result.ProfitStats = profit(buys, sells)
	}

	a.logger.Debug("Trades analyzed",
		zap.Int("trades", result.TotalCount),
		zap.Int("buys", result.BuyCount),
		zap.Int("sells", result.SellCount),
		zap.Strings("accounts", result.Accounts))

	return result, nil
}

func profit(buys, sells *side) *ProfitStats {
	buyAvg := buys.avgPrice()
	diff := sells.avgPrice().Sub(buyAvg)
	minQty := decimal.Min(buys.qty, sells.qty)

	pct := decimal.Zero
	if buyAvg.IsPositive() {
		pct = diff.Div(buyAvg).Mul(decimal.NewFromInt(100))
	}
	return &ProfitStats{
		PriceDiff:        diff.InexactFloat64(),
		TotalProfit:      diff.Mul(minQty).InexactFloat64(),
		ProfitPercentage: pct.InexactFloat64(),
		MinQty:           minQty.InexactFloat64(),
	}
}

func addCommission(into map[string]decimal.Decimal, t models.Trade) {
	into[t.CommissionAsset] = into[t.CommissionAsset].Add(parseDecimal(t.Commission))
}

func toFloats(m map[string]decimal.Decimal) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v.InexactFloat64()
	}
	return out
}

// parseDecimal treats malformed numbers as zero, matching the normalizer.
func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

type orderedSet struct {
	seen  map[string]bool
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]bool), items: []string{}}
}

func (s *orderedSet) add(v string) {
	if v == "" || s.seen[v] {
		return
	}
	s.seen[v] = true
	s.items = append(s.items, v)
}
