package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ashmitsharp/tradebook/internal/models"
)

// TradeStorage archives merged query results in ClickHouse. Only canonical
// trades are stored; account credentials never reach this layer.
type TradeStorage struct {
	conn   driver.Conn
	logger *zap.Logger
	now    func() time.Time
}

// NewTradeStorage creates a new trade archive
func NewTradeStorage(conn driver.Conn, logger *zap.Logger) *TradeStorage {
	return &TradeStorage{
		conn:   conn,
		logger: logger,
		now:    time.Now,
	}
}

// fillRow is one trade_fills row.
type fillRow struct {
	AccountName     string
	Exchange        string
	Symbol          string
	TradeID         string
	OrderID         string
	TradeTime       time.Time
	Side            string
	IsMaker         uint8
	Price           decimal.Decimal
	Qty             decimal.Decimal
	QuoteQty        decimal.Decimal
	Commission      decimal.Decimal
	CommissionAsset string
}

func toFillRow(t models.Trade) (fillRow, error) {
	ms, err := strconv.ParseInt(strings.TrimSpace(t.Time), 10, 64)
	if err != nil {
		return fillRow{}, fmt.Errorf("trade %s: invalid time %q", t.ID, t.Time)
	}

	row := fillRow{
		AccountName:     t.AccountName,
		Exchange:        t.Exchange,
		Symbol:          t.Symbol,
		TradeID:         t.ID,
		OrderID:         t.OrderID,
		TradeTime:       time.UnixMilli(ms).UTC(),
		Side:            "SELL",
		CommissionAsset: t.CommissionAsset,
	}
	if t.IsBuyer {
		row.Side = "BUY"
	}
	if t.IsMaker {
		row.IsMaker = 1
	}

	fields := []struct {
		dst *decimal.Decimal
		raw string
	}{
		{&row.Price, t.Price},
		{&row.Qty, t.Qty},
		{&row.QuoteQty, t.QuoteQty},
		{&row.Commission, t.Commission},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.raw) == "" {
			continue
		}
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return fillRow{}, fmt.Errorf("trade %s: invalid decimal %q", t.ID, f.raw)
		}
		*f.dst = d
	}
	return row, nil
}

// StoreTrades batch-inserts trades under queryID. Rows that cannot be
// converted are skipped and logged.
func (s *TradeStorage) StoreTrades(ctx context.Context, queryID string, trades []models.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trade_fills (
			query_id, archived_at, account_name, exchange, symbol,
			trade_id, order_id, trade_time, side, is_maker,
			price, qty, quote_qty, commission, commission_asset
		)`)
	if err != nil {
		return fmt.Errorf("preparing batch: %w", err)
	}

	archivedAt := s.now().UTC()
	count := 0
	for _, t := range trades {
		row, err := toFillRow(t)
		if err != nil {
			s.logger.Debug("Skipping unarchivable trade", zap.Error(err))
			continue
		}
		if err := batch.Append(
			queryID,
			archivedAt,
			row.AccountName,
			row.Exchange,
			row.Symbol,
			row.TradeID,
			row.OrderID,
			row.TradeTime,
			row.Side,
			row.IsMaker,
			row.Price,
			row.Qty,
			row.QuoteQty,
			row.Commission,
			row.CommissionAsset,
		); err != nil {
			s.logger.Debug("Failed to append trade",
				zap.String("exchange", row.Exchange),
				zap.String("trade_id", row.TradeID),
				zap.Error(err))
			continue
		}
		count++
	}

	if count == 0 {
		return batch.Abort()
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("sending batch: %w", err)
	}

	s.logger.Debug("Archived trades",
		zap.String("query_id", queryID),
		zap.Int("count", count),
		zap.Int("total", len(trades)))
	return nil
}

// DeleteArchivedBefore removes rows archived before cutoff.
func (s *TradeStorage) DeleteArchivedBefore(ctx context.Context, cutoff time.Time) error {
	if err := s.conn.Exec(ctx, "ALTER TABLE trade_fills DELETE WHERE archived_at < ?", cutoff.UTC()); err != nil {
		return fmt.Errorf("deleting archived trades: %w", err)
	}
	return nil
}

// Ping reports whether the archive is reachable.
func (s *TradeStorage) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}
