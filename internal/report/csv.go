// Package report renders trade analyses as downloadable CSV reports.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ashmitsharp/tradebook/internal/calculator"
	"github.com/ashmitsharp/tradebook/internal/models"
	"github.com/ashmitsharp/tradebook/internal/query"
)

const (
	generatedLayout = "2006-01-02 15:04:05"
	filenameLayout  = "20060102_150405"
)

// utf8BOM lets spreadsheet tools detect the encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var tradeHeader = []string{
	"Account", "Exchange", "Trade ID", "Time", "Direction",
	"Price", "Quantity", "Amount", "Commission", "Commission Asset",
}

// Filename returns the download name for a report generated at now.
func Filename(symbol string, now time.Time) string {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		sym = "UNKNOWN"
	}
	return fmt.Sprintf("%s_multi_account_analysis_%s.csv", sym, now.Format(filenameLayout))
}

// WriteCSV writes the analysis report followed by the analyzed trades.
// Times are rendered in now's location.
func WriteCSV(w io.Writer, symbol string, analysis *calculator.TradeAnalysis, trades []models.Trade, now time.Time) error {
	if analysis == nil {
		return calculator.ErrNoTrades
	}
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}

	rw := &rowWriter{csv: csv.NewWriter(w)}

	rw.row("Multi-Account Trade Analysis Report")
	rw.row("Generated:", now.Format(generatedLayout))
	rw.row("Symbol:", strings.ToUpper(symbol))
	rw.row("Accounts:", strings.Join(analysis.Accounts, ", "))
	rw.row("Exchanges:", strings.Join(analysis.Exchanges, ", "))
	rw.blank()

	rw.row("=== Summary ===")
	rw.row("Selected trades:", strconv.Itoa(analysis.TotalCount))
	rw.row("Buy trades:", strconv.Itoa(analysis.BuyCount))
	rw.row("Sell trades:", strconv.Itoa(analysis.SellCount))
	rw.blank()

	rw.side("Buy", analysis.BuyStats)
	rw.side("Sell", analysis.SellStats)

	if p := analysis.ProfitStats; p != nil {
		rw.row("=== Profit (matched volume) ===")
		rw.row("Price difference:", fmt.Sprintf("%.6f", p.PriceDiff))
		rw.row("Profit on matched quantity:", fmt.Sprintf("%.2f", p.TotalProfit))
		rw.row("Profit percentage:", fmt.Sprintf("%+.2f%%", p.ProfitPercentage))
		rw.row("Matched quantity:", fmt.Sprintf("%.6f", p.MinQty))
		rw.blank()
	}

	rw.row("=== Total Commission ===")
	for _, asset := range sortedAssets(analysis.TotalCommissionByAsset) {
		rw.row(fmt.Sprintf("Total commission (%s):", asset),
			fmt.Sprintf("%.8f", analysis.TotalCommissionByAsset[asset]))
	}
	rw.blank()

	rw.row("=== Selected Trades ===")
	rw.row(tradeHeader...)
	for _, t := range trades {
		rw.row(
			t.AccountName,
			t.Exchange,
			t.ID,
			query.FormatTime(t, now.Location()),
			query.Direction(t),
			t.Price,
			t.Qty,
			t.QuoteQty,
			t.Commission,
			t.CommissionAsset,
		)
	}

	rw.csv.Flush()
	if rw.err != nil {
		return rw.err
	}
	return rw.csv.Error()
}

// rowWriter keeps the first write error so sections can be written without
// checking every row.
type rowWriter struct {
	csv *csv.Writer
	err error
}

func (r *rowWriter) row(fields ...string) {
	if r.err != nil {
		return
	}
	if err := r.csv.Write(fields); err != nil {
		r.err = fmt.Errorf("write csv row: %w", err)
	}
}

func (r *rowWriter) blank() {
	r.row("")
}

func (r *rowWriter) side(label string, s *calculator.SideStats) {
	if s == nil {
		return
	}
	r.row(fmt.Sprintf("=== %s Statistics ===", label))
	r.row("Average price:", fmt.Sprintf("%.6f", s.AvgPrice))
	r.row("Total quantity:", fmt.Sprintf("%.6f", s.TotalQty))
	r.row("Total amount:", fmt.Sprintf("%.2f", s.TotalAmount))
	r.row("Commission:")
	for _, asset := range sortedAssets(s.CommissionByAsset) {
		r.row("", fmt.Sprintf("%.8f %s", s.CommissionByAsset[asset], asset))
	}
	r.blank()
}

func sortedAssets(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
