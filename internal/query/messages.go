package query

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ashmitsharp/tradebook/internal/errs"
	"github.com/ashmitsharp/tradebook/internal/exchanges"
)

var exchangeTitles = map[exchanges.Exchange]string{
	exchanges.Binance: "Binance",
	exchanges.OKX:     "OKX",
	exchanges.Bybit:   "Bybit",
}

// DescribeFailure rewrites an account failure into user-facing guidance.
// Unrecognized failures return the exchange-reported text unchanged.
func DescribeFailure(ex exchanges.Exchange, symbol string, err error) string {
	name := exchangeTitles[ex]
	if name == "" {
		name = string(ex)
	}

	code := errs.CodeOf(err)
	switch code {
	case errs.CodeGeoBlocked:
		return fmt.Sprintf("%s is not available from this network region (HTTP 451); connect through a supported region", name)
	case errs.CodeNetwork:
		return fmt.Sprintf("Could not reach %s: %s", name, networkReason(err))
	}

	detail := errs.Detail(err)
	lower := strings.ToLower(detail)
	switch {
	case strings.Contains(lower, "restricted location"):
		return fmt.Sprintf("%s is not available from this network region (HTTP 451); connect through a supported region", name)
	case strings.Contains(lower, "signature") || strings.Contains(lower, "error sign") ||
		strings.Contains(lower, "invalid sign"):
		return fmt.Sprintf("%s rejected the request signature; check the secret key", name)
	case strings.Contains(lower, "passphrase"):
		return fmt.Sprintf("%s rejected the passphrase; check the API passphrase", name)
	case strings.Contains(lower, "timestamp") || strings.Contains(lower, "recv_window") ||
		strings.Contains(lower, "recvwindow"):
		return fmt.Sprintf("%s rejected the request time; sync the local clock", name)
	case strings.Contains(lower, "ip whitelist") || strings.Contains(lower, "unmatched ip") ||
		strings.Contains(lower, "ip, or permissions"):
		return fmt.Sprintf("%s rejected the API key; check that it is valid and allows this IP", name)
	case strings.Contains(lower, "permission") || strings.Contains(lower, "not authorized"):
		return fmt.Sprintf("%s API key lacks permission to read trade history", name)
	case strings.Contains(lower, "api-key") || strings.Contains(lower, "api key") ||
		strings.Contains(lower, "apikey"):
		return fmt.Sprintf("%s API key is invalid or expired", name)
	case code == errs.CodeNotFound || strings.Contains(lower, "symbol") ||
		strings.Contains(lower, "instrument"):
		return fmt.Sprintf("Trading pair %s was not found on %s; check the symbol", symbol, name)
	case code == errs.CodeRateLimited:
		return fmt.Sprintf("%s rate limit hit; retry in a moment", name)
	}
	return detail
}

// networkReason drops the request URL, which carries signed parameters.
func networkReason(err error) string {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err.Error()
	}
	return errs.Detail(err)
}
