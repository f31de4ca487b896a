package exchanges

import (
	"net/http"
	"strings"

	"github.com/ashmitsharp/tradebook/internal/errs"
)

// Exchange-native error codes that map onto a failure category.
var rawCodeCategories = map[Exchange]map[string]errs.Code{
	Binance: {
		"-1002": errs.CodeAuth,
		"-1021": errs.CodeAuth,
		"-1022": errs.CodeAuth,
		"-2014": errs.CodeAuth,
		"-2015": errs.CodeAuth,
		"-1003": errs.CodeRateLimited,
		"-1121": errs.CodeNotFound,
	},
	OKX: {
		"50102": errs.CodeAuth,
		"50103": errs.CodeAuth,
		"50104": errs.CodeAuth,
		"50105": errs.CodeAuth,
		"50110": errs.CodeAuth,
		"50111": errs.CodeAuth,
		"50113": errs.CodeAuth,
		"50120": errs.CodeAuth,
		"50011": errs.CodeRateLimited,
		"51001": errs.CodeNotFound,
	},
	Bybit: {
		"10002": errs.CodeAuth,
		"10003": errs.CodeAuth,
		"10004": errs.CodeAuth,
		"10005": errs.CodeAuth,
		"10010": errs.CodeAuth,
		"10006": errs.CodeRateLimited,
		"10018": errs.CodeRateLimited,

		"170121": errs.CodeNotFound,
	},
}

// classify picks the failure category for an exchange error response.
// status is 0 for 2xx responses whose envelope carried a failure code.
func classify(ex Exchange, status int, rawCode, msg string) errs.Code {
	if code, ok := rawCodeCategories[ex][rawCode]; ok {
		return code
	}

	switch {
	case status == http.StatusUnavailableForLegalReasons:
		return errs.CodeGeoBlocked
	case status == http.StatusTooManyRequests || status == http.StatusTeapot:
		return errs.CodeRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errs.CodeAuth
	case status == http.StatusNotFound:
		return errs.CodeNotFound
	}

	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "signature"), strings.Contains(lower, "api-key"),
		strings.Contains(lower, "api key"), strings.Contains(lower, "passphrase"):
		return errs.CodeAuth
	case strings.Contains(lower, "too many"), strings.Contains(lower, "rate limit"):
		return errs.CodeRateLimited
	case strings.Contains(lower, "invalid symbol"), strings.Contains(lower, "doesn't exist"),
		strings.Contains(lower, "does not exist"), strings.Contains(lower, "not supported symbol"):
		return errs.CodeNotFound
	}
	return errs.CodeExchange
}
