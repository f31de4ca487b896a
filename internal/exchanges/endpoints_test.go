package exchanges

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadEndpointsDefaults(t *testing.T) {
	table, err := LoadEndpoints("")
	require.NoError(t, err)
	require.Len(t, table.For(Binance, false), 5)
	require.Equal(t, []string{"https://testnet.binance.vision"}, table.For(Binance, true))
	require.Equal(t, []string{"https://api-testnet.bybit.com"}, table.For(Bybit, true))
}

func TestLoadEndpointsOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpoints.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
binance:
  mainnet:
    - "https://proxy.example.com/ "
bybit:
  testnet: [https://bybit-testnet.example.com]
`), 0o600))

	table, err := LoadEndpoints(path)
	require.NoError(t, err)
	require.Equal(t, []string{"https://proxy.example.com"}, table.For(Binance, false))
	require.Equal(t, []string{"https://testnet.binance.vision"}, table.For(Binance, true))
	require.Equal(t, []string{"https://bybit-testnet.example.com"}, table.For(Bybit, true))
	require.Equal(t, []string{"https://api.bybit.com"}, table.For(Bybit, false))
}

func TestLoadEndpointsRejectsUnknownExchange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpoints.yaml")
	require.NoError(t, os.WriteFile(path, []byte("kraken:\n  mainnet: [https://api.kraken.com]\n"), 0o600))

	_, err := LoadEndpoints(path)
	require.ErrorIs(t, err, ErrUnknownExchange)
}

func TestEndpointTableForReturnsCopy(t *testing.T) {
	table := DefaultEndpoints()
	urls := table.For(Binance, false)
	urls[0] = "mutated"
	require.Equal(t, "https://api.binance.com", table.For(Binance, false)[0])
}
