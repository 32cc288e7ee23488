package transport_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/fastygo/places/domain"
	"github.com/fastygo/places/internal/fakebackend"
	"github.com/fastygo/places/pkg/backend/transport"
	"github.com/fastygo/places/pkg/logger"
)

func newClient(t *testing.T, fb *fakebackend.Server, cfg transport.Config) *transport.Client {
	t.Helper()
	cfg.BaseURL = fb.BaseURL()
	cfg.AnonKey = fb.AnonKey()
	cfg.HTTPClient = fb.Client()
	c, err := transport.New(cfg)
	require.NoError(t, err)
	return c
}

func startBackend(t *testing.T) *fakebackend.Server {
	t.Helper()
	fb := fakebackend.New(fakebackend.Config{})
	require.NoError(t, fb.Start())
	t.Cleanup(func() { _ = fb.Close() })
	return fb
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := transport.New(transport.Config{BaseURL: "http://x"})
	assert.ErrorIs(t, err, transport.ErrMissingConfig)
}

func TestDoSendsAuthHeaders(t *testing.T) {
	fb := startBackend(t)
	c := newClient(t, fb, transport.Config{})

	ctx := logger.ContextWithRequestID(context.Background(), "req-42")
	resp, err := c.Do(ctx, transport.Request{Service: transport.ServiceREST, Path: "/rest/v1/places", RawQuery: "select=*"})
	require.NoError(t, err)
	require.NoError(t, resp.Err())

	reqs := fb.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, fb.AnonKey(), reqs[0].Header["apikey"])
	assert.Equal(t, "Bearer "+fb.AnonKey(), reqs[0].Header["Authorization"])
	assert.Equal(t, "select=*", reqs[0].RawQuery)
	assert.Equal(t, "req-42", reqs[0].RequestID)
}

func TestDoWithoutAuthorization(t *testing.T) {
	fb := startBackend(t)
	c := newClient(t, fb, transport.Config{})

	_, err := c.Do(context.Background(), transport.Request{Service: transport.ServiceAuth, Path: "/auth/v1/health", NoAuthorization: true})
	require.NoError(t, err)
	_, hasAuth := fb.Requests()[0].Header["Authorization"]
	assert.False(t, hasAuth)
}

func TestJSONParsesBackendErrors(t *testing.T) {
	fb := startBackend(t)
	c := newClient(t, fb, transport.Config{})

	err := c.JSON(context.Background(), transport.Request{Service: transport.ServiceREST, Path: "/rest/v1/nope"}, nil, nil)
	var terr *transport.Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 404, terr.Status)
	assert.Equal(t, "42P01", terr.ErrCode)
	assert.Contains(t, terr.Message, "does not exist")
	assert.Equal(t, domain.ErrCodeNotFound, terr.Code())
}

func TestJSONRawTextError(t *testing.T) {
	fb := startBackend(t)
	fb.InjectFault(fakebackend.Fault{PathPrefix: "/rest/v1/places", Status: 500, Body: "upstream exploded", ContentType: "text/plain"})
	c := newClient(t, fb, transport.Config{})

	var out []map[string]any
	err := c.JSON(context.Background(), transport.Request{Service: transport.ServiceREST, Path: "/rest/v1/places"}, nil, &out)
	var terr *transport.Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "upstream exploded", terr.Message)
	assert.Nil(t, out)
}

func TestNetworkFailureIsError(t *testing.T) {
	c, err := transport.New(transport.Config{
		BaseURL: "http://offline",
		AnonKey: "k",
		HTTPClient: &fasthttp.Client{Dial: func(string) (net.Conn, error) {
			return nil, errors.New("no route to host")
		}},
	})
	require.NoError(t, err)

	_, err = c.Do(context.Background(), transport.Request{Path: "/rest/v1/places"})
	var terr *transport.Error
	require.ErrorAs(t, err, &terr)
	assert.True(t, terr.Network())
	assert.Equal(t, domain.ErrCodeUnavailable, terr.Code())
}

func TestCanceledContextSkipsRequest(t *testing.T) {
	fb := startBackend(t)
	c := newClient(t, fb, transport.Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Do(ctx, transport.Request{Path: "/rest/v1/places"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, fb.RequestCount("/"))
}

func TestMetricsRecorded(t *testing.T) {
	fb := startBackend(t)
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	c := newClient(t, fb, transport.Config{Meter: provider.Meter("test")})

	_, err := c.Do(context.Background(), transport.Request{Service: transport.ServiceREST, Path: "/rest/v1/places"})
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
			if m.Name == "backend.requests" {
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				require.Len(t, sum.DataPoints, 1)
				assert.Equal(t, int64(1), sum.DataPoints[0].Value)
				status, _ := sum.DataPoints[0].Attributes.Value("status_class")
				assert.Equal(t, "2xx", status.AsString())
			}
		}
	}
	assert.True(t, names["backend.requests"])
	assert.True(t, names["backend.request.duration"])
}

func TestURLAndHeaders(t *testing.T) {
	c, err := transport.New(transport.Config{BaseURL: "https://x.example/", AnonKey: "anon"})
	require.NoError(t, err)

	assert.Equal(t, "https://x.example/rest/v1/places?a=eq.1", c.URL("rest/v1/places", "a=eq.1"))
	assert.Equal(t, "Bearer anon", c.Headers("")["Authorization"])
	assert.Equal(t, "Bearer tok", c.Headers("tok")["Authorization"])
	assert.Equal(t, "anon", c.Headers("tok")["apikey"])
}

func TestProbe(t *testing.T) {
	fb := startBackend(t)
	c := newClient(t, fb, transport.Config{})

	require.NoError(t, c.Probe(context.Background(), fb.BaseURL()+"/auth/v1/health", 0))
	require.NoError(t, c.Probe(context.Background(), fb.BaseURL()+"/no/such/route", 0), "any status means reachable")

	require.NoError(t, fb.Close())
	err := c.Probe(context.Background(), fb.BaseURL()+"/auth/v1/health", time.Second)
	var terr *transport.Error
	require.ErrorAs(t, err, &terr)
	assert.True(t, terr.Network())
}
