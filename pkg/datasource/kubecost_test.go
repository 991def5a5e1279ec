package datasource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const allocationFixture = `{
  "code": 200,
  "data": [{
    "shop":     {"name": "shop",     "cpuCost": 2.0, "ramCost": 1.0, "totalCost": 3.2, "cpuEfficiency": 0.5, "ramEfficiency": 0.25, "totalEfficiency": 0.41},
    "search":   {"name": "search",   "cpuCost": 1.0, "ramCost": 1.0, "totalCost": 2.0, "cpuEfficiency": 1.2, "ramEfficiency": 0.9,  "totalEfficiency": 1.05},
    "__idle__": {"name": "__idle__", "cpuCost": 4.0, "ramCost": 2.0, "totalCost": 6.0},
    "__unallocated__": {"name": "__unallocated__", "totalCost": 0.3}
  }]
}`

func newKubecostServer(t *testing.T, status int, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestKubecostRequestParameters(t *testing.T) {
	var got *http.Request
	srv := newKubecostServer(t, http.StatusOK, allocationFixture, func(r *http.Request) { got = r })

	gw, err := NewKubecostGateway(srv.URL)
	require.NoError(t, err)

	_, err = gw.FetchSnapshot(context.Background(), "1h")
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/model/allocation", got.URL.Path)
	q := got.URL.Query()
	assert.Equal(t, "1h", q.Get("window"))
	assert.Equal(t, "namespace", q.Get("aggregate"))
	assert.Equal(t, "true", q.Get("accumulate"))
	assert.Equal(t, "true", q.Get("idle"))
}

func TestKubecostSnapshot(t *testing.T) {
	srv := newKubecostServer(t, http.StatusOK, allocationFixture, nil)
	gw, err := NewKubecostGateway(srv.URL)
	require.NoError(t, err)

	snapshot, err := gw.FetchSnapshot(context.Background(), "1h")
	require.NoError(t, err)

	assert.Len(t, snapshot.Namespaces, 2)
	assert.Equal(t, "1h", snapshot.Window)

	shop, ok := snapshot.Lookup("shop")
	require.True(t, ok)
	assert.InDelta(t, 3.2, shop.TotalCost, 1e-9)
	assert.InDelta(t, 0.41, shop.Utilization, 1e-9)
	// 2.0*(1-0.5) + 1.0*(1-0.25)
	assert.InDelta(t, 1.75, shop.IdleCost, 1e-9)

	search, ok := snapshot.Lookup("search")
	require.True(t, ok)
	// over-used CPU does not produce negative idle
	assert.InDelta(t, 0.1, search.IdleCost, 1e-9)

	require.NotNil(t, snapshot.ClusterIdle)
	assert.InDelta(t, 6.0, snapshot.ClusterIdle.IdleCost, 1e-9)

	_, ok = snapshot.Lookup("__unallocated__")
	assert.False(t, ok)
}

func TestKubecostMergesUnaccumulatedSets(t *testing.T) {
	body := `{"code": 200, "data": [
	  {"shop": {"cpuCost": 1.0, "ramCost": 1.0, "totalCost": 2.0, "cpuEfficiency": 1.0, "ramEfficiency": 1.0, "totalEfficiency": 1.0}},
	  {"shop": {"cpuCost": 1.0, "ramCost": 1.0, "totalCost": 2.0, "cpuEfficiency": 0.0, "ramEfficiency": 0.0, "totalEfficiency": 0.0}}
	]}`
	srv := newKubecostServer(t, http.StatusOK, body, nil)
	gw, err := NewKubecostGateway(srv.URL)
	require.NoError(t, err)

	snapshot, err := gw.FetchSnapshot(context.Background(), "1h")
	require.NoError(t, err)

	shop, ok := snapshot.Lookup("shop")
	require.True(t, ok)
	assert.Equal(t, "shop", shop.Name)
	assert.InDelta(t, 4.0, shop.TotalCost, 1e-9)
	assert.InDelta(t, 0.5, shop.Utilization, 1e-9)
}

func TestKubecostErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http error", http.StatusInternalServerError, `{"message":"boom"}`},
		{"api error code", http.StatusOK, `{"code": 500, "message": "bad window"}`},
		{"no data", http.StatusOK, `{"code": 200, "data": []}`},
		{"malformed json", http.StatusOK, `{"code": 200, "data": [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newKubecostServer(t, tt.status, tt.body, nil)
			gw, err := NewKubecostGateway(srv.URL)
			require.NoError(t, err)

			snapshot, err := gw.FetchSnapshot(context.Background(), "1h")
			assert.Error(t, err)
			assert.Nil(t, snapshot)
		})
	}
}

func TestKubecostCancelledContext(t *testing.T) {
	srv := newKubecostServer(t, http.StatusOK, allocationFixture, nil)
	gw, err := NewKubecostGateway(srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = gw.FetchSnapshot(ctx, "1h")
	assert.Error(t, err)
}

func TestNewGateway(t *testing.T) {
	gw, err := NewGateway(&Config{Source: "kubecost", KubecostURL: "http://kubecost:9090"})
	require.NoError(t, err)
	assert.Equal(t, "Kubecost", gw.Name())

	gw, err = NewGateway(&Config{Source: "prometheus", PrometheusURL: "http://prometheus:9090"})
	require.NoError(t, err)
	assert.Equal(t, "Prometheus", gw.Name())

	_, err = NewGateway(&Config{Source: "datadog"})
	assert.Error(t, err)
}

func TestKubecostIsAvailable(t *testing.T) {
	var path string
	srv := newKubecostServer(t, http.StatusOK, `ok`, func(r *http.Request) { path = r.URL.Path })
	gw, err := NewKubecostGateway(srv.URL)
	require.NoError(t, err)

	assert.True(t, gw.IsAvailable(context.Background()))
	assert.Equal(t, "/healthz", path)
}

func TestKubecostUnavailable(t *testing.T) {
	srv := newKubecostServer(t, http.StatusServiceUnavailable, `starting`, nil)
	gw, err := NewKubecostGateway(srv.URL)
	require.NoError(t, err)

	assert.False(t, gw.IsAvailable(context.Background()))
}
