// Package query fans a trade-history request out across exchange accounts
// and merges the results into one chronologically ordered list.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/ashmitsharp/tradebook/internal/exchanges"
	"github.com/ashmitsharp/tradebook/internal/models"
)

var (
	ErrNoAccounts    = errors.New("no accounts to query")
	ErrMissingSymbol = errors.New("symbol is required")
)

// ClientFactory builds an exchange client for an account.
type ClientFactory interface {
	NewClient(acct exchanges.Account) (exchanges.Client, error)
	Location() *time.Location
}

// Request describes one multi-account query.
type Request struct {
	Symbol         string
	StartDate      string
	EndDate        string
	Accounts       []exchanges.Account
	ExchangeFilter string
}

// Result is the merged outcome of a query. Success is true when at least
// one account succeeded.
type Result struct {
	Success      bool                        `json:"success"`
	Message      string                      `json:"message"`
	Symbol       string                      `json:"symbol"`
	Trades       []models.Trade              `json:"-"`
	Formatted    []models.FormattedTrade     `json:"trades"`
	AccountStats []models.AccountQueryResult `json:"account_stats"`
	Summary      models.QuerySummary         `json:"summary"`
	TotalCount   int                         `json:"total_count"`
}

// ProgressFunc observes each account as it finishes. Calls are serialized.
type ProgressFunc func(models.AccountQueryResult)

// Service runs multi-account queries.
type Service struct {
	factory ClientFactory
	logger  *zap.Logger
}

// NewService creates a query service.
func NewService(factory ClientFactory, logger *zap.Logger) *Service {
	return &Service{
		factory: factory,
		logger:  logger,
	}
}

// QueryAll fetches symbol's trades for every account concurrently. Only
// request validation fails the whole call; account failures are reported in
// AccountStats.
func (s *Service) QueryAll(ctx context.Context, req Request, progress ProgressFunc) (*Result, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return nil, ErrMissingSymbol
	}
	window, err := exchanges.ParseWindow(req.StartDate, req.EndDate, s.factory.Location())
	if err != nil {
		return nil, err
	}

	accounts, err := filterAccounts(req.Accounts, req.ExchangeFilter)
	if err != nil {
		return nil, err
	}
	for _, acct := range accounts {
		if err := acct.Validate(); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	s.logger.Info("Starting multi-account query",
		zap.String("symbol", symbol),
		zap.String("start_date", req.StartDate),
		zap.String("end_date", req.EndDate),
		zap.Int("accounts", len(accounts)))

	var (
		mu      sync.Mutex
		results = make([]models.AccountQueryResult, 0, len(accounts))
	)
	p := pool.New()
	for _, acct := range accounts {
		p.Go(func() {
			res := s.queryAccount(ctx, acct, symbol, window)

			mu.Lock()
			defer mu.Unlock()
			results = append(results, res)
			if progress != nil {
				progress(res)
			}
		})
	}
	p.Wait()

	result := merge(symbol, results, s.factory.Location())
	s.logger.Info("Multi-account query completed",
		zap.String("symbol", symbol),
		zap.Int("successful_accounts", result.Summary.SuccessfulAccounts),
		zap.Int("failed_accounts", result.Summary.FailedAccounts),
		zap.Int("trades", result.TotalCount),
		zap.Duration("duration", time.Since(start)))
	return result, nil
}

// queryAccount runs one account's fetch; panics and errors become a failed result.
func (s *Service) queryAccount(ctx context.Context, acct exchanges.Account, symbol string, window exchanges.Window) (res models.AccountQueryResult) {
	res = models.AccountQueryResult{
		AccountName: acct.Name,
		Exchange:    string(acct.Exchange),
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Account query panicked",
				zap.String("account", acct.Name),
				zap.Any("panic", r))
			res.Success = false
			res.Trades = nil
			res.Count = 0
			res.Error = fmt.Sprintf("internal error: %v", r)
		}
	}()

	client, err := s.factory.NewClient(acct)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	trades, err := client.FetchTradesForWindow(ctx, symbol, window)
	if err != nil {
		res.Error = DescribeFailure(acct.Exchange, symbol, err)
		s.logger.Warn("Account query failed",
			zap.String("account", acct.Name),
			zap.String("exchange", string(acct.Exchange)),
			zap.Error(err))
		return res
	}

	exchanges.Tag(trades, acct.Name, acct.Exchange)
	res.Success = true
	res.Trades = trades
	res.Count = len(trades)
	return res
}

func filterAccounts(accounts []exchanges.Account, filter string) ([]exchanges.Account, error) {
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}
	if strings.TrimSpace(filter) == "" {
		return accounts, nil
	}
	ex, err := exchanges.ParseExchange(filter)
	if err != nil {
		return nil, err
	}
	var out []exchanges.Account
	for _, acct := range accounts {
		if acct.Exchange == ex {
			out = append(out, acct)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: none configured for exchange %s", ErrNoAccounts, ex)
	}
	return out, nil
}

// merge concatenates successful accounts' trades, orders them by time and
// builds the summary.
func merge(symbol string, results []models.AccountQueryResult, loc *time.Location) *Result {
	var trades []models.Trade
	summary := models.QuerySummary{TotalAccounts: len(results)}
	for _, res := range results {
		if !res.Success {
			summary.FailedAccounts++
			continue
		}
		summary.SuccessfulAccounts++
		trades = append(trades, res.Trades...)
	}
	exchanges.SortByTime(trades)
	summary.TotalTrades = len(trades)

	return &Result{
		Success:      summary.SuccessfulAccounts > 0,
		Message:      summaryMessage(summary),
		Symbol:       symbol,
		Trades:       trades,
		Formatted:    Format(trades, loc),
		AccountStats: results,
		Summary:      summary,
		TotalCount:   len(trades),
	}
}

func summaryMessage(s models.QuerySummary) string {
	switch {
	case s.FailedAccounts == 0:
		return fmt.Sprintf("Query completed: %d trades from %d accounts", s.TotalTrades, s.TotalAccounts)
	case s.SuccessfulAccounts > 0:
		return fmt.Sprintf("Partially completed: %d of %d accounts succeeded, %d trades, %d accounts failed",
			s.SuccessfulAccounts, s.TotalAccounts, s.TotalTrades, s.FailedAccounts)
	default:
		return fmt.Sprintf("Query failed: all %d accounts failed", s.TotalAccounts)
	}
}
