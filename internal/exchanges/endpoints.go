package exchanges

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Endpoints lists candidate base URLs for one exchange, tried in order.
type Endpoints struct {
	Mainnet []string `yaml:"mainnet"`
	Testnet []string `yaml:"testnet"`
}

// EndpointTable maps each exchange to its candidate base URLs.
type EndpointTable map[Exchange]Endpoints

// DefaultEndpoints returns the built-in endpoint table.
func DefaultEndpoints() EndpointTable {
	return EndpointTable{
		Binance: {
			Mainnet: []string{
				"https://api.binance.com",
				"https://api1.binance.com",
				"https://api2.binance.com",
				"https://api3.binance.com",
				"https://data-api.binance.vision",
			},
			Testnet: []string{"https://testnet.binance.vision"},
		},
		OKX: {
			Mainnet: []string{"https://www.okx.com"},
			Testnet: []string{"https://www.okx.com"},
		},
		Bybit: {
			Mainnet: []string{"https://api.bybit.com"},
			Testnet: []string{"https://api-testnet.bybit.com"},
		},
	}
}

// LoadEndpoints reads a YAML endpoint file and overlays it on the defaults.
// An empty path returns the defaults.
//
//	binance:
//	  mainnet: [https://api.binance.com, https://api1.binance.com]
//	bybit:
//	  testnet: [https://api-testnet.bybit.com]
func LoadEndpoints(path string) (EndpointTable, error) {
	table := DefaultEndpoints()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading endpoints file: %w", err)
	}

	var overrides map[string]Endpoints
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parsing endpoints file: %w", err)
	}

	for name, override := range overrides {
		ex, err := ParseExchange(name)
		if err != nil {
			return nil, fmt.Errorf("endpoints file: %w", err)
		}
		current := table[ex]
		if len(override.Mainnet) > 0 {
			current.Mainnet = trimURLs(override.Mainnet)
		}
		if len(override.Testnet) > 0 {
			current.Testnet = trimURLs(override.Testnet)
		}
		table[ex] = current
	}
	return table, nil
}

// For returns a copy of the candidate list for the exchange and network.
func (t EndpointTable) For(ex Exchange, testnet bool) []string {
	e := t[ex]
	urls := e.Mainnet
	if testnet {
		urls = e.Testnet
	}
	return append([]string(nil), urls...)
}

func trimURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			out = append(out, u)
		}
	}
	return out
}
