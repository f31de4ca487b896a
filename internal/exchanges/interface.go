package exchanges

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ashmitsharp/tradebook/internal/models"
)

// Exchange tags the venue an account belongs to.
type Exchange string

const (
	Binance Exchange = "binance"
	OKX     Exchange = "okx"
	Bybit   Exchange = "bybit"
)

// SupportedExchanges lists every venue a Client can be built for.
var SupportedExchanges = []Exchange{Binance, OKX, Bybit}

var (
	ErrUnknownExchange      = errors.New("unsupported exchange")
	ErrMissingCredentials   = errors.New("api key and secret key are required")
	ErrMissingAccountName   = errors.New("account name is required")
	ErrMissingPassphrase    = errors.New("okx accounts require a passphrase")
	ErrUnexpectedPassphrase = errors.New("passphrase is only used by okx accounts")
)

// ParseExchange maps a user supplied tag onto a supported Exchange.
func ParseExchange(s string) (Exchange, error) {
	ex := Exchange(strings.ToLower(strings.TrimSpace(s)))
	for _, supported := range SupportedExchanges {
		if ex == supported {
			return ex, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownExchange, s)
}

// Account holds the credentials of one exchange account. It is passed
// explicitly to every call and never persisted.
type Account struct {
	Name       string   `json:"name" yaml:"name"`
	Exchange   Exchange `json:"exchange" yaml:"exchange"`
	APIKey     string   `json:"api_key" yaml:"api_key"`
	SecretKey  string   `json:"secret_key" yaml:"secret_key"`
	Passphrase string   `json:"passphrase,omitempty" yaml:"passphrase,omitempty"`
	Testnet    bool     `json:"testnet" yaml:"testnet"`
}

// Validate checks the account before any network call is made.
func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrMissingAccountName
	}
	if _, err := ParseExchange(string(a.Exchange)); err != nil {
		return err
	}
	if a.APIKey == "" || a.SecretKey == "" {
		return fmt.Errorf("account %s: %w", a.Name, ErrMissingCredentials)
	}
	switch {
	case a.Exchange == OKX && a.Passphrase == "":
		return fmt.Errorf("account %s: %w", a.Name, ErrMissingPassphrase)
	case a.Exchange != OKX && a.Passphrase != "":
		return fmt.Errorf("account %s: %w", a.Name, ErrUnexpectedPassphrase)
	}
	return nil
}

// Info strips the secrets from the account.
func (a Account) Info() models.AccountInfo {
	return models.AccountInfo{
		Name:          a.Name,
		Exchange:      string(a.Exchange),
		Testnet:       a.Testnet,
		HasPassphrase: a.Passphrase != "",
	}
}

// Client is implemented by every exchange variant.
type Client interface {
	// Exchange returns the venue the client talks to.
	Exchange() Exchange
	// TestConnection probes server time and then one authenticated
	// low-privilege call. A nil error means both succeeded; otherwise the
	// error carries the human-readable reason.
	TestConnection(ctx context.Context) error
	// FetchTradesForWindow returns every fill of symbol inside the window,
	// sorted ascending by time.
	FetchTradesForWindow(ctx context.Context, symbol string, window Window) ([]models.Trade, error)
}
