package exchanges

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ashmitsharp/tradebook/internal/models"
)

const (
	bybitPageLimit = 100
	bybitMaxPages  = 50
)

type bybitEnvelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

type bybitServerTime struct {
	TimeSecond string `json:"timeSecond"`
}

type bybitExecutionPage struct {
	List           []bybitExecution `json:"list"`
	NextPageCursor string           `json:"nextPageCursor"`
}

type bybitClient struct {
	account    Account
	baseURL    string
	recvWindow string
	rest       *restClient
	now        func() time.Time
	pacing     time.Duration
	logger     *zap.Logger
}

func newBybitClient(acct Account, endpoints []string, deps clientDeps) Client {
	rest := newRESTClient(Bybit, deps)
	return &bybitClient{
		account:    acct,
		baseURL:    endpoints[0],
		recvWindow: DefaultBybitRecvWindow,
		rest:       rest,
		now:        deps.now,
		pacing:     deps.bybitPacing,
		logger:     rest.logger.With(zap.String("account", acct.Name)),
	}
}

func (c *bybitClient) Exchange() Exchange { return Bybit }

func (c *bybitClient) TestConnection(ctx context.Context) error {
	if _, err := c.serverOffset(ctx); err != nil {
		return fmt.Errorf("server time: %w", err)
	}
	params := url.Values{}
	params.Set("accountType", "UNIFIED")
	params.Set("coin", "USDT")
	if _, err := c.call(ctx, "/v5/asset/transfer/query-account-coins-balance", params, true); err != nil {
		return fmt.Errorf("account balance: %w", err)
	}
	return nil
}

// FetchTradesForWindow walks the window one calendar day at a time and
// pauses only after days that returned executions.
func (c *bybitClient) FetchTradesForWindow(ctx context.Context, symbol string, window Window) ([]models.Trade, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	days := window.Days()

	var trades []models.Trade
	for i, day := range days {
		dayTrades, err := c.fetchDay(ctx, symbol, day)
		if err != nil {
			return nil, fmt.Errorf("fetching %s executions for %s: %w", symbol, day.Start.Format(dateLayout), err)
		}
		trades = append(trades, dayTrades...)

		if len(dayTrades) > 0 && i < len(days)-1 {
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

func (c *bybitClient) fetchDay(ctx context.Context, symbol string, day Day) ([]models.Trade, error) {
	var trades []models.Trade
	cursor := ""
	for page := 0; page < bybitMaxPages; page++ {
		params := url.Values{}
		params.Set("category", "spot")
		params.Set("symbol", symbol)
		params.Set("startTime", strconv.FormatInt(day.StartMillis(), 10))
		params.Set("endTime", strconv.FormatInt(day.EndMillis(), 10))
		params.Set("limit", strconv.Itoa(bybitPageLimit))
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		data, err := c.call(ctx, "/v5/execution/list", params, true)
		if err != nil {
			return nil, err
		}
		var result bybitExecutionPage
		if err := c.rest.decode(data, &result); err != nil {
			return nil, err
		}
		for _, e := range result.List {
			trades = append(trades, normalizeBybit(e))
		}
		if result.NextPageCursor == "" || len(result.List) == 0 {
			break
		}
		cursor = result.NextPageCursor
	}
	return trades, nil
}

// serverOffset returns server time minus local time.
func (c *bybitClient) serverOffset(ctx context.Context) (time.Duration, error) {
	data, err := c.call(ctx, "/v5/market/time", nil, false)
	if err != nil {
		return 0, err
	}
	var st bybitServerTime
	if err := c.rest.decode(data, &st); err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseInt(st.TimeSecond, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing server time %q: %w", st.TimeSecond, err)
	}
	return time.Duration(seconds*1000-c.now().UnixMilli()) * time.Millisecond, nil
}

// call performs a GET and unwraps the {retCode, retMsg, result} envelope.
// Signed calls resync the server clock offset first.
func (c *bybitClient) call(ctx context.Context, path string, params url.Values, signed bool) (json.RawMessage, error) {
	query := params.Encode()

	var offset time.Duration
	if signed {
		var err error
		if offset, err = c.serverOffset(ctx); err != nil {
			c.logger.Warn("Could not sync Bybit server time, signing with local clock", zap.Error(err))
			offset = 0
		}
	}

	data, err := c.rest.get(ctx, c.baseURL, func(ctx context.Context, baseURL string) (*http.Request, error) {
		target := baseURL + path
		if query != "" {
			target += "?" + query
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		if signed {
			ts := strconv.FormatInt(c.now().Add(offset).UnixMilli(), 10)
			req.Header.Set("X-BAPI-API-KEY", c.account.APIKey)
			req.Header.Set("X-BAPI-SIGN", SignBybit(c.account.SecretKey, ts, c.account.APIKey, c.recvWindow, query))
			req.Header.Set("X-BAPI-TIMESTAMP", ts)
			req.Header.Set("X-BAPI-RECV-WINDOW", c.recvWindow)
		}
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var env bybitEnvelope
	if err := c.rest.decode(data, &env); err != nil {
		return nil, err
	}
	if env.RetCode != 0 {
		return nil, c.rest.businessError(strconv.Itoa(env.RetCode), env.RetMsg)
	}
	return env.Result, nil
}
