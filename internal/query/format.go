package query

import (
	"time"

	"github.com/ashmitsharp/tradebook/internal/exchanges"
	"github.com/ashmitsharp/tradebook/internal/models"
)

const displayTimeLayout = "2006-01-02 15:04:05"

const (
	DirectionBuy  = "BUY"
	DirectionSell = "SELL"
)

// Format builds display rows for merged trades. Indices follow slice order.
func Format(trades []models.Trade, loc *time.Location) []models.FormattedTrade {
	if loc == nil {
		loc = time.Local
	}
	out := make([]models.FormattedTrade, 0, len(trades))
	for i, t := range trades {
		out = append(out, models.FormattedTrade{
			Index:           i,
			ID:              t.ID,
			Account:         t.AccountName,
			Exchange:        t.Exchange,
			Time:            FormatTime(t, loc),
			Direction:       Direction(t),
			Price:           t.Price,
			Qty:             t.Qty,
			Amount:          t.QuoteQty,
			Commission:      t.Commission,
			CommissionAsset: t.CommissionAsset,
			RawData:         t,
		})
	}
	return out
}

// FormatTime renders a trade's timestamp in loc.
func FormatTime(t models.Trade, loc *time.Location) string {
	return time.UnixMilli(exchanges.TimeMillis(t)).In(loc).Format(displayTimeLayout)
}

// Direction reports BUY or SELL from the trade's side.
func Direction(t models.Trade) string {
	if t.IsBuyer {
		return DirectionBuy
	}
	return DirectionSell
}

// Select returns the trades at the given indices in the order the indices
// were given, skipping indices out of range and repeats.
func Select(trades []models.Trade, indices []int) []models.Trade {
	seen := make(map[int]bool, len(indices))
	var out []models.Trade
	for _, idx := range indices {
		if idx < 0 || idx >= len(trades) || seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, trades[idx])
	}
	return out
}
