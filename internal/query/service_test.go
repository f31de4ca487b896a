package query

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ashmitsharp/tradebook/internal/errs"
	"github.com/ashmitsharp/tradebook/internal/exchanges"
	"github.com/ashmitsharp/tradebook/internal/models"
)

type stubClient struct {
	exchange exchanges.Exchange
	fetch    func(ctx context.Context, symbol string, w exchanges.Window) ([]models.Trade, error)
}

func (c *stubClient) Exchange() exchanges.Exchange             { return c.exchange }
func (c *stubClient) TestConnection(ctx context.Context) error { return nil }
func (c *stubClient) FetchTradesForWindow(ctx context.Context, symbol string, w exchanges.Window) ([]models.Trade, error) {
	return c.fetch(ctx, symbol, w)
}

type stubFactory struct {
	mu      sync.Mutex
	clients map[string]*stubClient
	built   []string
}

func (f *stubFactory) NewClient(acct exchanges.Account) (exchanges.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.built = append(f.built, acct.Name)
	c, ok := f.clients[acct.Name]
	if !ok {
		return nil, errors.New("no stub for " + acct.Name)
	}
	return c, nil
}

func (f *stubFactory) Location() *time.Location { return time.UTC }

func returning(trades ...models.Trade) func(context.Context, string, exchanges.Window) ([]models.Trade, error) {
	return func(context.Context, string, exchanges.Window) ([]models.Trade, error) {
		out := make([]models.Trade, len(trades))
		copy(out, trades)
		return out, nil
	}
}

func failing(err error) func(context.Context, string, exchanges.Window) ([]models.Trade, error) {
	return func(context.Context, string, exchanges.Window) ([]models.Trade, error) {
		return nil, err
	}
}

func account(name string, ex exchanges.Exchange) exchanges.Account {
	acct := exchanges.Account{Name: name, Exchange: ex, APIKey: "k", SecretKey: "s"}
	if ex == exchanges.OKX {
		acct.Passphrase = "p"
	}
	return acct
}

func trade(id, ts string, buy bool) models.Trade {
	return models.Trade{ID: id, Time: ts, Price: "1", Qty: "1", QuoteQty: "1", Commission: "0", IsBuyer: buy}
}

func baseRequest(accounts ...exchanges.Account) Request {
	return Request{Symbol: "btcusdt", StartDate: "2024-01-01", EndDate: "2024-01-02", Accounts: accounts}
}

func TestQueryAllMergesChronologically(t *testing.T) {
	factory := &stubFactory{clients: map[string]*stubClient{
		"a": {exchange: exchanges.Binance, fetch: returning(trade("a1", "1704070000000", true), trade("a2", "1704090000000", false))},
		"b": {exchange: exchanges.OKX, fetch: returning(trade("b1", "1704080000000", true), trade("b2", "1704090000000", true))},
		"c": {exchange: exchanges.Bybit, fetch: returning(trade("c1", "1704060000000", false))},
	}}
	svc := NewService(factory, zap.NewNop())

	var progressed []string
	res, err := svc.QueryAll(context.Background(),
		baseRequest(account("a", exchanges.Binance), account("b", exchanges.OKX), account("c", exchanges.Bybit)),
		func(r models.AccountQueryResult) { progressed = append(progressed, r.AccountName) })
	require.NoError(t, err)

	require.True(t, res.Success)
	require.Equal(t, "BTCUSDT", res.Symbol)
	require.Len(t, res.Trades, 5)
	require.Len(t, res.Formatted, 5)
	require.ElementsMatch(t, []string{"a", "b", "c"}, progressed)

	for i, f := range res.Formatted {
		require.Equal(t, i, f.Index)
		if i > 0 {
			require.LessOrEqual(t,
				exchanges.TimeMillis(res.Trades[i-1]),
				exchanges.TimeMillis(res.Trades[i]))
		}
	}
	require.Equal(t, "c1", res.Trades[0].ID)
	require.Equal(t, "c", res.Trades[0].AccountName)
	require.Equal(t, "bybit", res.Trades[0].Exchange)
	require.Equal(t, "a1", res.Trades[1].ID)
	require.Equal(t, "b1", res.Trades[2].ID)
	require.Equal(t, models.QuerySummary{TotalAccounts: 3, SuccessfulAccounts: 3, TotalTrades: 5}, res.Summary)
	require.Equal(t, 5, res.TotalCount)
	require.Contains(t, res.Message, "Query completed")
}

func TestQueryAllPartialFailure(t *testing.T) {
	factory := &stubFactory{clients: map[string]*stubClient{
		"good": {exchange: exchanges.Binance, fetch: returning(trade("g1", "1704070000000", true))},
		"bad": {exchange: exchanges.Binance, fetch: failing(errs.New("binance", errs.CodeAuth,
			errs.WithRawCode("-1022"), errs.WithRawMessage("Signature for this request is not valid.")))},
	}}
	svc := NewService(factory, zap.NewNop())

	res, err := svc.QueryAll(context.Background(), baseRequest(account("good", exchanges.Binance), account("bad", exchanges.Binance)), nil)
	require.NoError(t, err)

	require.True(t, res.Success)
	require.Len(t, res.Trades, 1)
	require.Equal(t, "good", res.Trades[0].AccountName)
	require.Equal(t, 1, res.Summary.SuccessfulAccounts)
	require.Equal(t, 1, res.Summary.FailedAccounts)
	require.Contains(t, res.Message, "Partially completed")

	stats := map[string]models.AccountQueryResult{}
	for _, s := range res.AccountStats {
		stats[s.AccountName] = s
	}
	require.True(t, stats["good"].Success)
	require.Equal(t, 1, stats["good"].Count)
	require.False(t, stats["bad"].Success)
	require.Equal(t, "Binance rejected the request signature; check the secret key", stats["bad"].Error)
}

func TestQueryAllTotalFailureIsNotAnError(t *testing.T) {
	factory := &stubFactory{clients: map[string]*stubClient{
		"x": {exchange: exchanges.Bybit, fetch: failing(errors.New("boom"))},
	}}
	res, err := NewService(factory, zap.NewNop()).QueryAll(context.Background(), baseRequest(account("x", exchanges.Bybit)), nil)
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Empty(t, res.Trades)
	require.Equal(t, "Query failed: all 1 accounts failed", res.Message)
	require.Equal(t, "boom", res.AccountStats[0].Error)
}

func TestQueryAllRecoversPanics(t *testing.T) {
	factory := &stubFactory{clients: map[string]*stubClient{
		"ok": {exchange: exchanges.Binance, fetch: returning(trade("1", "1704070000000", true))},
		"panics": {exchange: exchanges.Binance, fetch: func(context.Context, string, exchanges.Window) ([]models.Trade, error) {
			panic("unexpected nil")
		}},
	}}
	res, err := NewService(factory, zap.NewNop()).QueryAll(context.Background(),
		baseRequest(account("ok", exchanges.Binance), account("panics", exchanges.Binance)), nil)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, 1, res.Summary.FailedAccounts)
}

func TestQueryAllRunsAccountsConcurrently(t *testing.T) {
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(2)
	blocking := func(context.Context, string, exchanges.Window) ([]models.Trade, error) {
		started.Done()
		<-release
		return nil, nil
	}
	factory := &stubFactory{clients: map[string]*stubClient{
		"one": {exchange: exchanges.Binance, fetch: blocking},
		"two": {exchange: exchanges.Bybit, fetch: blocking},
	}}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = NewService(factory, zap.NewNop()).QueryAll(context.Background(),
			baseRequest(account("one", exchanges.Binance), account("two", exchanges.Bybit)), nil)
	}()

	// both fetches must be in flight before either is released
	started.Wait()
	close(release)
	require.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestQueryAllExchangeFilter(t *testing.T) {
	factory := &stubFactory{clients: map[string]*stubClient{
		"okx": {exchange: exchanges.OKX, fetch: returning(trade("o1", "1704070000000", true))},
		"bn":  {exchange: exchanges.Binance, fetch: returning(trade("b1", "1704070000000", true))},
	}}
	svc := NewService(factory, zap.NewNop())

	req := baseRequest(account("okx", exchanges.OKX), account("bn", exchanges.Binance))
	req.ExchangeFilter = "OKX"
	res, err := svc.QueryAll(context.Background(), req, nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.Summary.TotalAccounts)
	require.Equal(t, []string{"okx"}, factory.built)

	req.ExchangeFilter = "bybit"
	_, err = svc.QueryAll(context.Background(), req, nil)
	require.ErrorIs(t, err, ErrNoAccounts)
}

func TestQueryAllValidationShortCircuits(t *testing.T) {
	factory := &stubFactory{clients: map[string]*stubClient{}}
	svc := NewService(factory, zap.NewNop())

	_, err := svc.QueryAll(context.Background(), baseRequest(), nil)
	require.ErrorIs(t, err, ErrNoAccounts)

	req := baseRequest(account("a", exchanges.Binance))
	req.Symbol = " "
	_, err = svc.QueryAll(context.Background(), req, nil)
	require.ErrorIs(t, err, ErrMissingSymbol)

	req = baseRequest(account("a", exchanges.Binance))
	req.EndDate = "2023-12-31"
	_, err = svc.QueryAll(context.Background(), req, nil)
	require.ErrorIs(t, err, exchanges.ErrInvalidWindow)

	noPass := account("o", exchanges.OKX)
	noPass.Passphrase = ""
	_, err = svc.QueryAll(context.Background(), baseRequest(account("a", exchanges.Binance), noPass), nil)
	require.ErrorIs(t, err, exchanges.ErrMissingPassphrase)

	require.Empty(t, factory.built)
}
