package prometheus

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"github.com/stretchr/testify/require"

	"github.com/akshatgg/vibe-monitor-back/internal/rca/provider"
)

type fakeQueryAPI struct {
	lastQuery string
	lastTime  time.Time
	value     model.Value
	warnings  promv1.Warnings
	err       error
}

func (f *fakeQueryAPI) Query(ctx context.Context, query string, ts time.Time, opts ...promv1.Option) (model.Value, promv1.Warnings, error) {
	f.lastQuery = query
	f.lastTime = ts
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.value, f.warnings, nil
}

func TestAdapter_Call_UsesExplicitQueryOverBuiltin(t *testing.T) {
	api := &fakeQueryAPI{value: &model.Scalar{Value: 42}}
	a := &Adapter{api: api, capability: provider.CapMetricsCPU}

	out, err := a.Call(context.Background(), []byte(`{"query":"up{job=\"api\"}"}`))
	require.NoError(t, err)
	require.Equal(t, `up{job="api"}`, api.lastQuery)

	var result queryResult
	require.NoError(t, json.Unmarshal(out, &result))
	require.Equal(t, "scalar", result.ResultType)
}

func TestAdapter_Call_FallsBackToBuiltinQuery(t *testing.T) {
	api := &fakeQueryAPI{value: &model.Scalar{Value: 1}}
	a := &Adapter{api: api, capability: provider.CapMetricsMemory}

	_, err := a.Call(context.Background(), []byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, builtinQueries[provider.CapMetricsMemory], api.lastQuery)
}

func TestAdapter_Call_NoQueryAvailableForCustomCapability(t *testing.T) {
	a := &Adapter{api: &fakeQueryAPI{}, capability: provider.CapMetricsQuery}

	_, err := a.Call(context.Background(), []byte(`{}`))
	require.Error(t, err)
}

func TestAdapter_Call_PropagatesQueryError(t *testing.T) {
	a := &Adapter{api: &fakeQueryAPI{err: errors.New("connection refused")}, capability: provider.CapMetricsCPU}

	_, err := a.Call(context.Background(), []byte(`{}`))
	require.Error(t, err)
}

func TestAdapter_Call_InvalidJSONInput(t *testing.T) {
	a := &Adapter{api: &fakeQueryAPI{}, capability: provider.CapMetricsCPU}

	_, err := a.Call(context.Background(), []byte(`not json`))
	require.Error(t, err)
}

func TestBearerTransport_SetsAuthorizationHeader(t *testing.T) {
	rt := newBearerTransport("tok-123").(*bearerTransport)
	capturing := &capturingRoundTripper{}
	rt.base = capturing

	req := httptest.NewRequest(http.MethodGet, "http://prom.internal/api/v1/query", nil)
	_, err := rt.RoundTrip(req)
	require.NoError(t, err)
	require.Equal(t, "Bearer tok-123", capturing.lastReq.Header.Get("Authorization"))
}

func TestBearerTransport_NoTokenLeavesHeaderUnset(t *testing.T) {
	rt := newBearerTransport("").(*bearerTransport)
	capturing := &capturingRoundTripper{}
	rt.base = capturing

	req := httptest.NewRequest(http.MethodGet, "http://prom.internal/api/v1/query", nil)
	_, err := rt.RoundTrip(req)
	require.NoError(t, err)
	require.Empty(t, capturing.lastReq.Header.Get("Authorization"))
}

type capturingRoundTripper struct {
	lastReq *http.Request
}

func (c *capturingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	c.lastReq = req
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
}
