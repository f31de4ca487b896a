package exchanges

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2024, 1, 10, 8, 30, 0, 0, time.UTC)

func newTestFactory(table EndpointTable, opts ...FactoryOption) *Factory {
	base := []FactoryOption{
		WithClock(func() time.Time { return fixedNow }),
		WithLocation(time.UTC),
		WithPacing(0, 0),
		WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	}
	return NewFactory(zap.NewNop(), table, append(base, opts...)...)
}

func newTestClient(t *testing.T, acct Account, table EndpointTable, opts ...FactoryOption) Client {
	t.Helper()
	client, err := newTestFactory(table, opts...).NewClient(acct)
	require.NoError(t, err)
	return client
}

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func mustWindow(t *testing.T, start, end string) Window {
	t.Helper()
	w, err := ParseWindow(start, end, time.UTC)
	require.NoError(t, err)
	return w
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
