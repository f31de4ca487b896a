package exchanges

import "strings"

var okxBaseCurrencies = []string{
	"BTC", "ETH", "BNB", "ADA", "XRP", "DOT", "UNI", "LINK", "LTC", "BCH",
	"SOL", "MATIC", "AVAX", "ATOM", "NEAR", "FTM", "ALGO", "XLM", "ICP", "HBAR",
	"VET", "MANA", "SAND", "AXS", "THETA", "EGLD", "EOS", "AAVE", "MKR", "COMP",
	"SUSHI", "YFI", "SNX", "CRV", "BAL", "REN", "KNC", "PNUT", "DOGE", "SHIB",
	"PEPE", "FLOKI", "BONK",
}

var okxQuoteCurrencies = []string{"USDT", "USDC", "BTC", "ETH", "BNB"}

// SplitSymbol decomposes a concatenated symbol into a known base and quote.
// The first base/quote pair in table order wins.
func SplitSymbol(symbol string) (base, quote string, ok bool) {
	upper := strings.ToUpper(strings.TrimSpace(symbol))
	for _, b := range okxBaseCurrencies {
		if !strings.HasPrefix(upper, b) {
			continue
		}
		for _, q := range okxQuoteCurrencies {
			if b+q == upper {
				return b, q, true
			}
		}
	}
	return "", "", false
}

// ToOKXInstID converts "BTCUSDT" into OKX's "BTC-USDT". Unknown symbols are
// returned unchanged and left for the exchange to reject.
func ToOKXInstID(symbol string) string {
	if strings.Contains(symbol, "-") {
		return strings.ToUpper(symbol)
	}
	base, quote, ok := SplitSymbol(symbol)
	if !ok {
		return symbol
	}
	return base + "-" + quote
}
