package exchanges

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ashmitsharp/tradebook/internal/errs"
	"github.com/ashmitsharp/tradebook/internal/models"
)

// binanceDayLimit is the most fills myTrades returns for one call.
const binanceDayLimit = 1000

type binanceClient struct {
	account   Account
	endpoints []string
	rest      *restClient
	now       func() time.Time
	pacing    time.Duration
	logger    *zap.Logger
}

func newBinanceClient(acct Account, endpoints []string, deps clientDeps) Client {
	rest := newRESTClient(Binance, deps)
	return &binanceClient{
		account:   acct,
		endpoints: endpoints,
		rest:      rest,
		now:       deps.now,
		pacing:    deps.binancePacing,
		logger:    rest.logger.With(zap.String("account", acct.Name)),
	}
}

func (c *binanceClient) Exchange() Exchange { return Binance }

func (c *binanceClient) TestConnection(ctx context.Context) error {
	if _, err := c.withFailover(ctx, c.publicRequest("/api/v3/time")); err != nil {
		return fmt.Errorf("server time: %w", err)
	}
	if _, err := c.withFailover(ctx, c.signedRequest("/api/v3/account", url.Values{})); err != nil {
		return fmt.Errorf("account: %w", err)
	}
	return nil
}

// FetchTradesForWindow calls myTrades once per calendar day, since Binance
// rejects ranges longer than 24 hours, and pauses after every day but the last.
func (c *binanceClient) FetchTradesForWindow(ctx context.Context, symbol string, window Window) ([]models.Trade, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	days := window.Days()

	var trades []models.Trade
	for i, day := range days {
		params := url.Values{}
		params.Set("symbol", symbol)
		params.Set("startTime", strconv.FormatInt(day.StartMillis(), 10))
		params.Set("endTime", strconv.FormatInt(day.EndMillis(), 10))
		params.Set("limit", strconv.Itoa(binanceDayLimit))

		data, err := c.withFailover(ctx, c.signedRequest("/api/v3/myTrades", params))
		if err != nil {
			return nil, fmt.Errorf("fetching %s trades for %s: %w", symbol, day.Start.Format(dateLayout), err)
		}

		var raw []binanceTrade
		if err := c.rest.decode(data, &raw); err != nil {
			return nil, err
		}
		if len(raw) >= binanceDayLimit {
			c.logger.Warn("Day hit the myTrades limit, later fills may be missing",
				zap.String("symbol", symbol),
				zap.String("day", day.Start.Format(dateLayout)))
		}
		for _, r := range raw {
			trades = append(trades, normalizeBinance(r))
		}

		if i < len(days)-1 {
			if err := pause(ctx, c.pacing); err != nil {
				return nil, c.rest.networkError(err)
			}
		}
	}

	SortByTime(trades)
	c.logger.Debug("Fetched trades",
		zap.String("symbol", symbol),
		zap.Int("days", len(days)),
		zap.Int("count", len(trades)))
	return trades, nil
}

func (c *binanceClient) publicRequest(path string) buildRequest {
	return func(ctx context.Context, baseURL string) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path, nil)
	}
}

// signedRequest appends timestamp and signature to params; the signature
// is always the last query parameter.
func (c *binanceClient) signedRequest(path string, params url.Values) buildRequest {
	return func(ctx context.Context, baseURL string) (*http.Request, error) {
		q := url.Values{}
		for k, v := range params {
			q[k] = v
		}
		q.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
		query := q.Encode()
		query += "&signature=" + SignBinance(c.account.SecretKey, query)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path+"?"+query, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-MBX-APIKEY", c.account.APIKey)
		return req, nil
	}
}

// withFailover tries each candidate endpoint in order, moving on only for
// transport failures and geo-blocks. The candidate list itself is never
// modified.
func (c *binanceClient) withFailover(ctx context.Context, build buildRequest) ([]byte, error) {
	var lastErr error
	for i, base := range c.endpoints {
		data, err := c.rest.get(ctx, base, build)
		if err == nil {
			if i > 0 {
				c.logger.Info("Binance request served by fallback endpoint", zap.String("endpoint", base))
			}
			return data, nil
		}
		lastErr = err
		if ctx.Err() != nil || !shouldFailover(err) {
			return nil, err
		}
		c.logger.Warn("Binance endpoint unavailable, trying next",
			zap.String("endpoint", base),
			zap.Int("remaining", len(c.endpoints)-i-1),
			zap.Error(err))
	}
	if errs.CodeOf(lastErr) == errs.CodeGeoBlocked {
		return nil, errs.New(string(Binance), errs.CodeGeoBlocked,
			errs.WithHTTP(http.StatusUnavailableForLegalReasons),
			errs.WithMessage(fmt.Sprintf("all %d endpoints refused the request", len(c.endpoints))),
			errs.WithRemediation("Binance blocks this region; route traffic through a supported region"),
			errs.WithCause(lastErr))
	}
	return nil, lastErr
}

func shouldFailover(err error) bool {
	var e *errs.E
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == errs.CodeNetwork || e.Code == errs.CodeGeoBlocked
}
