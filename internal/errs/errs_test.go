package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := New("binance", CodeNetwork,
		WithHTTP(451),
		WithMessage(" geo blocked "),
		WithRawCode("0"),
		WithRawMessage("Service unavailable from a restricted location"),
		WithCause(cause))

	require.Equal(t,
		`exchange=binance code=network http=451 message="geo blocked" raw_code="0" raw_msg="Service unavailable from a restricted location" cause="dial tcp: timeout"`,
		err.Error())
	require.ErrorIs(t, err, cause)
}

func TestErrorDefaults(t *testing.T) {
	require.Equal(t, "exchange=unknown code=unknown", New("", "").Error())

	var nilErr *E
	require.Equal(t, "<nil>", nilErr.Error())
}

func TestDetail(t *testing.T) {
	wrapped := fmt.Errorf("fetching day: %w", New("okx", CodeAuth, WithMessage("request rejected"), WithRawMessage("Invalid Sign")))
	require.Equal(t, "Invalid Sign", Detail(wrapped))
	require.Equal(t, "request rejected", Detail(New("okx", CodeAuth, WithMessage("request rejected"))))
	require.Equal(t, "boom", Detail(New("okx", CodeNetwork, WithCause(errors.New("boom")))))
	require.Equal(t, "plain", Detail(errors.New("plain")))
	require.Empty(t, Detail(nil))
}

func TestCodeOfAndRetryable(t *testing.T) {
	rate := fmt.Errorf("wrapped: %w", New("bybit", CodeRateLimited))
	require.Equal(t, CodeRateLimited, CodeOf(rate))
	require.True(t, Retryable(rate))

	require.True(t, Retryable(New("bybit", CodeExchange, WithHTTP(502))))
	require.False(t, Retryable(New("bybit", CodeExchange, WithHTTP(400))))
	require.False(t, Retryable(New("bybit", CodeAuth, WithHTTP(401))))
	require.False(t, Retryable(New("bybit", CodeNetwork)))
	require.False(t, Retryable(errors.New("plain")))
	require.Equal(t, Code(""), CodeOf(errors.New("plain")))
}
