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
	"golang.org/x/time/rate"

	"github.com/ashmitsharp/tradebook/internal/models"
)

const (
	okxPageLimit = 100
	// okxMaxPages bounds cursor paging through one window.
	okxMaxPages = 50
	// okxRequestsPerSecond matches the trade history limit of 10 requests
	// per 2 seconds.
	okxRequestsPerSecond = 5
)

type okxEnvelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type okxClient struct {
	account Account
	baseURL string
	rest    *restClient
	limiter *rate.Limiter
	now     func() time.Time
	logger  *zap.Logger
}

func newOKXClient(acct Account, endpoints []string, deps clientDeps) Client {
	rest := newRESTClient(OKX, deps)
	return &okxClient{
		account: acct,
		baseURL: endpoints[0],
		rest:    rest,
		limiter: rate.NewLimiter(rate.Limit(okxRequestsPerSecond), okxRequestsPerSecond),
		now:     deps.now,
		logger:  rest.logger.With(zap.String("account", acct.Name)),
	}
}

func (c *okxClient) Exchange() Exchange { return OKX }

func (c *okxClient) TestConnection(ctx context.Context) error {
	if _, err := c.call(ctx, "/api/v5/public/time", nil, false); err != nil {
		return fmt.Errorf("server time: %w", err)
	}
	if _, err := c.call(ctx, "/api/v5/account/balance", nil, true); err != nil {
		return fmt.Errorf("account balance: %w", err)
	}
	return nil
}

// FetchTradesForWindow reads the fills history first and falls back to
// synthesizing trades from filled orders when no fills come back.
func (c *okxClient) FetchTradesForWindow(ctx context.Context, symbol string, window Window) ([]models.Trade, error) {
	instID := ToOKXInstID(symbol)
	canonical := strings.ToUpper(strings.ReplaceAll(symbol, "-", ""))

	trades, fillsErr := c.fetchFills(ctx, instID, canonical, window)
	if fillsErr == nil && len(trades) > 0 {
		SortByTime(trades)
		c.logger.Debug("Fetched trades from fills history",
			zap.String("inst_id", instID),
			zap.Int("count", len(trades)))
		return trades, nil
	}
	if fillsErr != nil {
		c.logger.Warn("Fills history failed, falling back to order history",
			zap.String("inst_id", instID),
			zap.Error(fillsErr))
	}

	trades, ordersErr := c.fetchFilledOrders(ctx, instID, canonical, window)
	if ordersErr != nil {
		return nil, fmt.Errorf("fetching %s order history: %w", instID, ordersErr)
	}
	SortByTime(trades)
	c.logger.Debug("Fetched trades from order history",
		zap.String("inst_id", instID),
		zap.Int("count", len(trades)))
	return trades, nil
}

func (c *okxClient) fetchFills(ctx context.Context, instID, symbol string, window Window) ([]models.Trade, error) {
	var trades []models.Trade
	after := ""
	for page := 0; page < okxMaxPages; page++ {
		params := c.windowParams(instID, window)
		if after != "" {
			params.Set("after", after)
		}
		data, err := c.call(ctx, "/api/v5/trade/fills-history", params, true)
		if err != nil {
			return nil, err
		}
		var fills []okxFill
		if err := c.rest.decode(data, &fills); err != nil {
			return nil, err
		}
		for _, f := range fills {
			ts, _ := strconv.ParseInt(f.Ts, 10, 64)
			if window.Contains(ts) {
				trades = append(trades, normalizeOKXFill(f, symbol))
			}
		}
		if len(fills) < okxPageLimit {
			break
		}
		last := fills[len(fills)-1]
		if ts, _ := strconv.ParseInt(last.Ts, 10, 64); ts < window.StartMillis() || last.BillID == "" {
			break
		}
		after = last.BillID
	}
	return trades, nil
}

func (c *okxClient) fetchFilledOrders(ctx context.Context, instID, symbol string, window Window) ([]models.Trade, error) {
	var trades []models.Trade
	after := ""
	for page := 0; page < okxMaxPages; page++ {
		params := c.windowParams(instID, window)
		params.Set("state", "filled")
		if after != "" {
			params.Set("after", after)
		}
		data, err := c.call(ctx, "/api/v5/trade/orders-history", params, true)
		if err != nil {
			return nil, err
		}
		var orders []okxOrder
		if err := c.rest.decode(data, &orders); err != nil {
			return nil, err
		}
		for _, o := range orders {
			if trade, ok := normalizeOKXOrder(o, symbol); ok && window.Contains(TimeMillis(trade)) {
				trades = append(trades, trade)
			}
		}
		if len(orders) < okxPageLimit || orders[len(orders)-1].OrdID == "" {
			break
		}
		after = orders[len(orders)-1].OrdID
	}
	return trades, nil
}

func (c *okxClient) windowParams(instID string, window Window) url.Values {
	params := url.Values{}
	params.Set("instType", "SPOT")
	params.Set("instId", instID)
	params.Set("begin", strconv.FormatInt(window.StartMillis(), 10))
	params.Set("end", strconv.FormatInt(window.EndMillis(), 10))
	params.Set("limit", strconv.Itoa(okxPageLimit))
	return params
}

// call performs a GET and unwraps the {code, msg, data} envelope.
func (c *okxClient) call(ctx context.Context, path string, params url.Values, signed bool) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.rest.networkError(err)
	}

	requestPath := path
	if len(params) > 0 {
		requestPath += "?" + params.Encode()
	}

	data, err := c.rest.get(ctx, c.baseURL, func(ctx context.Context, baseURL string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+requestPath, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if signed {
			ts := OKXTimestamp(c.now())
			req.Header.Set("OK-ACCESS-KEY", c.account.APIKey)
			req.Header.Set("OK-ACCESS-SIGN", SignOKX(c.account.SecretKey, ts, http.MethodGet, requestPath, ""))
			req.Header.Set("OK-ACCESS-TIMESTAMP", ts)
			req.Header.Set("OK-ACCESS-PASSPHRASE", c.account.Passphrase)
		}
		if c.account.Testnet {
			req.Header.Set("x-simulated-trading", "1")
		}
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var env okxEnvelope
	if err := c.rest.decode(data, &env); err != nil {
		return nil, err
	}
	if env.Code != "0" {
		return nil, c.rest.businessError(env.Code, env.Msg)
	}
	return env.Data, nil
}
