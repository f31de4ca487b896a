package exchanges

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ashmitsharp/tradebook/internal/errs"
)

const userAgent = "Tradebook/1.0"

// maxErrorBody bounds how much of a failed response is kept in an error.
const maxErrorBody = 512

// restClient is the transport shared by the exchange clients.
type restClient struct {
	exchange      Exchange
	httpClient    *http.Client
	logger        *zap.Logger
	retryAttempts int
	newBackOff    func() backoff.BackOff
}

// buildRequest creates a fresh, freshly signed request against baseURL.
type buildRequest func(ctx context.Context, baseURL string) (*http.Request, error)

func newRESTClient(ex Exchange, deps clientDeps) *restClient {
	return &restClient{
		exchange:      ex,
		httpClient:    deps.httpClient,
		logger:        deps.logger.With(zap.String("exchange", string(ex))),
		retryAttempts: deps.retryAttempts,
		newBackOff:    deps.newBackOff,
	}
}

// get executes build against baseURL, retrying rate-limit and 5xx responses
// with exponential backoff. Each attempt rebuilds the request so signatures
// carry a current timestamp.
func (r *restClient) get(ctx context.Context, baseURL string, build buildRequest) ([]byte, error) {
	b := r.newBackOff()
	attempts := r.retryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		req, err := build(ctx, baseURL)
		if err != nil {
			return nil, errs.New(string(r.exchange), errs.CodeInvalid,
				errs.WithMessage("creating request"), errs.WithCause(err))
		}

		body, err := r.do(req)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !errs.Retryable(err) || attempt == attempts {
			break
		}

		sleep := b.NextBackOff()
		if sleep == backoff.Stop {
			break
		}
		r.logger.Debug("Retrying exchange request",
			zap.String("path", req.URL.Path),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", sleep),
			zap.Error(err))

		if err := pause(ctx, sleep); err != nil {
			return nil, r.networkError(err)
		}
	}
	return nil, lastErr
}

func (r *restClient) do(req *http.Request) ([]byte, error) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, r.networkError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, r.networkError(fmt.Errorf("reading response: %w", err))
	}

	r.logger.Debug("Exchange request completed",
		zap.String("host", req.URL.Host),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, r.statusError(resp.StatusCode, data)
	}
	return data, nil
}

// decode unmarshals an exchange response body.
func (r *restClient) decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return errs.New(string(r.exchange), errs.CodeExchange,
			errs.WithMessage("decoding response"),
			errs.WithRawMessage(truncate(string(data))),
			errs.WithCause(err))
	}
	return nil
}

func (r *restClient) networkError(err error) error {
	return errs.New(string(r.exchange), errs.CodeNetwork, errs.WithCause(err))
}

// businessError reports a 2xx response whose envelope carried a failure code.
func (r *restClient) businessError(rawCode, msg string) error {
	return errs.New(string(r.exchange), classify(r.exchange, 0, rawCode, msg),
		errs.WithRawCode(rawCode),
		errs.WithRawMessage(msg))
}

func (r *restClient) statusError(status int, body []byte) error {
	rawCode, msg := extractErrorBody(body)
	if msg == "" {
		msg = truncate(strings.TrimSpace(string(body)))
	}
	opts := []errs.Option{
		errs.WithHTTP(status),
		errs.WithRawCode(rawCode),
		errs.WithRawMessage(msg),
		errs.WithMessage(fmt.Sprintf("unexpected status code %d", status)),
	}
	return errs.New(string(r.exchange), classify(r.exchange, status, rawCode, msg), opts...)
}

// extractErrorBody pulls the code and message out of any of the three
// exchanges' error envelopes.
func extractErrorBody(body []byte) (code, msg string) {
	var envelope struct {
		Code    json.RawMessage `json:"code"`
		Msg     string          `json:"msg"`
		RetCode json.RawMessage `json:"retCode"`
		RetMsg  string          `json:"retMsg"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", ""
	}
	switch {
	case len(envelope.RetCode) > 0:
		return rawString(envelope.RetCode), envelope.RetMsg
	case len(envelope.Code) > 0:
		return rawString(envelope.Code), envelope.Msg
	}
	return "", envelope.Msg
}

func rawString(raw json.RawMessage) string {
	return strings.Trim(string(raw), `"`)
}

func truncate(s string) string {
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}

// pause sleeps for d or until ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
