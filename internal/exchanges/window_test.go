package exchanges

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("2024-01-01", "2024-01-03", time.UTC)
	require.NoError(t, err)
	require.EqualValues(t, 1704067200000, w.StartMillis())
	require.EqualValues(t, 1704326399999, w.EndMillis())
	require.True(t, w.Contains(1704326399999))
	require.False(t, w.Contains(1704326400000))

	days := w.Days()
	require.Len(t, days, 3)
	require.EqualValues(t, 1704153600000, days[1].StartMillis())
	require.EqualValues(t, 1704239999999, days[1].EndMillis())
}

func TestParseWindowSingleDayInLocation(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	w, err := ParseWindow("2024-01-01", "2024-01-01", loc)
	require.NoError(t, err)
	require.Len(t, w.Days(), 1)
	require.EqualValues(t, 1704067200000-8*3600*1000, w.StartMillis())
}

func TestParseWindowErrors(t *testing.T) {
	_, err := ParseWindow("2024-01-05", "2024-01-01", time.UTC)
	require.ErrorIs(t, err, ErrInvalidWindow)

	_, err = ParseWindow("01/01/2024", "2024-01-01", time.UTC)
	require.ErrorIs(t, err, ErrInvalidWindow)

	_, err = ParseWindow("2024-01-01", "", time.UTC)
	require.ErrorIs(t, err, ErrInvalidWindow)
}

func TestAccountValidate(t *testing.T) {
	valid := Account{Name: "a", Exchange: Binance, APIKey: "k", SecretKey: "s"}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*Account)
		want   error
	}{
		{"missing name", func(a *Account) { a.Name = " " }, ErrMissingAccountName},
		{"unknown exchange", func(a *Account) { a.Exchange = "kraken" }, ErrUnknownExchange},
		{"missing secret", func(a *Account) { a.SecretKey = "" }, ErrMissingCredentials},
		{"okx without passphrase", func(a *Account) { a.Exchange = OKX }, ErrMissingPassphrase},
		{"passphrase on binance", func(a *Account) { a.Passphrase = "p" }, ErrUnexpectedPassphrase},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			acct := valid
			tc.mutate(&acct)
			require.ErrorIs(t, acct.Validate(), tc.want)
		})
	}
}

func TestParseExchange(t *testing.T) {
	ex, err := ParseExchange(" OKX ")
	require.NoError(t, err)
	require.Equal(t, OKX, ex)

	_, err = ParseExchange("coinbase")
	require.ErrorIs(t, err, ErrUnknownExchange)
}

func TestFactoryRejectsInvalidAccount(t *testing.T) {
	_, err := NewFactory(zap.NewNop(), nil).NewClient(Account{Name: "x", Exchange: OKX, APIKey: "k", SecretKey: "s"})
	require.ErrorIs(t, err, ErrMissingPassphrase)
}
