package exchanges

import (
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultRetryAttempts  = 3
	defaultBinancePacing  = 100 * time.Millisecond
	defaultBybitPacing    = 200 * time.Millisecond
)

// clientDeps carries what every client variant is built from.
type clientDeps struct {
	httpClient    *http.Client
	logger        *zap.Logger
	retryAttempts int
	newBackOff    func() backoff.BackOff
	now           func() time.Time
	location      *time.Location
	binancePacing time.Duration
	bybitPacing   time.Duration
}

type constructor func(acct Account, endpoints []string, deps clientDeps) Client

// Factory builds exchange clients for accounts.
type Factory struct {
	logger       *zap.Logger
	endpoints    EndpointTable
	deps         clientDeps
	constructors map[Exchange]constructor
}

// FactoryOption customizes a Factory.
type FactoryOption func(*Factory)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) FactoryOption {
	return func(f *Factory) { f.deps.httpClient = c }
}

// WithRequestTimeout bounds every outbound exchange call.
func WithRequestTimeout(d time.Duration) FactoryOption {
	return func(f *Factory) {
		if d > 0 {
			f.deps.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithRetryAttempts sets how often throttled or 5xx calls are attempted.
func WithRetryAttempts(n int) FactoryOption {
	return func(f *Factory) {
		if n > 0 {
			f.deps.retryAttempts = n
		}
	}
}

// WithBackOff replaces the retry backoff policy.
func WithBackOff(newBackOff func() backoff.BackOff) FactoryOption {
	return func(f *Factory) { f.deps.newBackOff = newBackOff }
}

// WithClock replaces the wall clock used for signing timestamps.
func WithClock(now func() time.Time) FactoryOption {
	return func(f *Factory) { f.deps.now = now }
}

// WithLocation sets the zone calendar days are enumerated in.
func WithLocation(loc *time.Location) FactoryOption {
	return func(f *Factory) { f.deps.location = loc }
}

// WithPacing sets the pauses between per-day requests.
func WithPacing(binance, bybit time.Duration) FactoryOption {
	return func(f *Factory) {
		f.deps.binancePacing = binance
		f.deps.bybitPacing = bybit
	}
}

// NewFactory creates a factory using the given endpoint table.
func NewFactory(logger *zap.Logger, endpoints EndpointTable, opts ...FactoryOption) *Factory {
	if endpoints == nil {
		endpoints = DefaultEndpoints()
	}
	f := &Factory{
		logger:    logger,
		endpoints: endpoints,
		deps: clientDeps{
			httpClient:    &http.Client{Timeout: defaultRequestTimeout},
			logger:        logger,
			retryAttempts: defaultRetryAttempts,
			newBackOff: func() backoff.BackOff {
				b := backoff.NewExponentialBackOff()
				b.InitialInterval = 500 * time.Millisecond
				b.MaxInterval = 5 * time.Second
				return b
			},
			now:           time.Now,
			location:      time.Local,
			binancePacing: defaultBinancePacing,
			bybitPacing:   defaultBybitPacing,
		},
		constructors: map[Exchange]constructor{
			Binance: newBinanceClient,
			OKX:     newOKXClient,
			Bybit:   newBybitClient,
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Location returns the zone calendar days are enumerated in.
func (f *Factory) Location() *time.Location {
	return f.deps.location
}

// NewClient validates the account and returns the client for its exchange.
func (f *Factory) NewClient(acct Account) (Client, error) {
	if err := acct.Validate(); err != nil {
		return nil, err
	}
	build, ok := f.constructors[acct.Exchange]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExchange, acct.Exchange)
	}
	endpoints := f.endpoints.For(acct.Exchange, acct.Testnet)
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints configured for %s (testnet=%t)", acct.Exchange, acct.Testnet)
	}

	f.logger.Debug("Creating exchange client",
		zap.String("exchange", string(acct.Exchange)),
		zap.String("account", acct.Name),
		zap.Bool("testnet", acct.Testnet),
		zap.Int("endpoints", len(endpoints)))

	return build(acct, endpoints, f.deps), nil
}
