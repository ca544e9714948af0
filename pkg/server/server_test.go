package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skilldesk/pkg/config"
	"github.com/jingkaihe/skilldesk/pkg/history"
	"github.com/jingkaihe/skilldesk/pkg/market"
	"github.com/jingkaihe/skilldesk/pkg/portfolio"
	"github.com/jingkaihe/skilldesk/pkg/quotes"
	"github.com/jingkaihe/skilldesk/pkg/quotes/quotestest"
	"github.com/jingkaihe/skilldesk/pkg/utils"
)

func rising(n int) []quotes.Candle {
	out := make([]quotes.Candle, n)
	for i := range out {
		p := 10 + 0.1*float64(i)
		out[i] = quotes.Candle{Open: p - 0.05, High: p + 0.1, Low: p - 0.1, Close: p, Volume: 1000}
	}
	return out
}

func newFake() *quotestest.Fake {
	return &quotestest.Fake{
		Indices: []quotes.Index{{Code: "sh000001", Name: "上证指数", Price: 345.6, ChangePct: 0.4}},
		Stats:   &quotes.MarketStats{Total: 5000, Up: 3000, Down: 1500, LimitUp: 100, LimitDown: 10, Turnover: 1e12},
		Sectors: []quotes.Sector{{Code: "BK1036", Name: "半导体", ChangePct: 3.2}},
		Constituents: map[string][]quotes.Constituent{
			"半导体": {{Symbol: "688981", Name: "中芯国际"}},
		},
		Spots: map[string]*quotes.Spot{
			"600519": {Symbol: "600519", Name: "贵州茅台", Price: 16.9, ChangePct: 0.6},
			"000001": {Symbol: "000001", Name: "平安银行", Price: 13.1, ChangePct: -0.8},
		},
		Candles: map[string][]quotes.Candle{
			"600519": rising(80),
			"000001": rising(80),
		},
		Financials: map[string]*quotes.Financial{
			"600519": {Symbol: "600519", PE: quotes.Float64(25), PB: quotes.Float64(8)},
		},
	}
}

func newServer(t *testing.T, fake *quotestest.Fake, store *history.Store) *Server {
	t.Helper()
	s, err := New(fake, config.Default(), store)
	require.NoError(t, err)
	return s
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.ServerConfig
		wantErr string
	}{
		{"valid", config.ServerConfig{Host: "127.0.0.1", Port: 8421}, ""},
		{"empty host", config.ServerConfig{Port: 8421}, "host cannot be empty"},
		{"port zero", config.ServerConfig{Host: "localhost"}, "port must be between 1 and 65535, got 0"},
		{"port too large", config.ServerConfig{Host: "localhost", Port: 70000}, "port must be between 1 and 65535, got 70000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t, newFake(), nil)

	rec := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	health := decode[Health](t, rec)
	assert.Equal(t, "ok", health.Status)
	assert.GreaterOrEqual(t, health.UptimeSeconds, 0.0)
	require.NotNil(t, health.Process)
	assert.Equal(t, int32(os.Getpid()), health.Process.PID)
	assert.Positive(t, health.Process.RSSBytes)

	rec = get(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `skilldesk_http_request_duration_seconds_count{code="200",route="/healthz"}`)
}

func TestMarketRoutes(t *testing.T) {
	s := newServer(t, newFake(), nil)

	rec := get(t, s, "/api/market/snapshot")
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[market.Snapshot](t, rec)
	require.Len(t, snap.Indices, 1)
	assert.Equal(t, "上证指数", snap.Indices[0].Name)
	assert.Equal(t, 3000, snap.Statistics.Up)

	rec = get(t, s, "/api/market/sentiment")
	require.Equal(t, http.StatusOK, rec.Code)
	sentiment := decode[market.Sentiment](t, rec)
	assert.Equal(t, 2.0, sentiment.BreadthRatio)

	rec = get(t, s, "/api/market/sectors")
	require.Equal(t, http.StatusOK, rec.Code)
	hot := decode[[]market.HotSector](t, rec)
	require.Len(t, hot, 1)
	assert.Equal(t, "半导体", hot[0].Name)
}

func TestMarketRoutes_UpstreamFailure(t *testing.T) {
	fake := newFake()
	fake.Errors = map[string]error{"MarketStatistics": errors.New("timeout")}
	s := newServer(t, fake, nil)

	rec := get(t, s, "/api/market/snapshot")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "failed to load market snapshot", body["error"])
	assert.Equal(t, false, body["success"])
}

func TestStockRoutes(t *testing.T) {
	s := newServer(t, newFake(), nil)

	rec := get(t, s, "/api/stocks/sh600519")
	require.Equal(t, http.StatusOK, rec.Code)
	comp := decode[portfolio.Comprehensive](t, rec)
	assert.Equal(t, "600519", comp.Symbol)
	require.NotNil(t, comp.Basic)
	assert.Equal(t, "贵州茅台", comp.Basic.Name)

	rec = get(t, s, "/api/stocks/600519/signals")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[StockSignalsResponse](t, rec)
	assert.Equal(t, "600519", resp.Signal.Symbol)
	assert.NotEmpty(t, resp.Signal.Recommendation)
	assert.Equal(t, 0.6, resp.Score.Weights["technical"])

	rec = get(t, s, "/api/stocks/abc/signals")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, `invalid stock symbol "abc"`, decode[map[string]any](t, rec)["error"])

	rec = get(t, s, "/api/stocks/300750/signals")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestAnalyzeGroupRoute(t *testing.T) {
	s := newServer(t, newFake(), nil)

	rec := get(t, s, "/api/groups/analyze?symbols=600519,%20000001,&name=核心")
	require.Equal(t, http.StatusOK, rec.Code)
	analysis := decode[portfolio.GroupAnalysis](t, rec)
	assert.Equal(t, "核心", analysis.GroupName)
	assert.Equal(t, 2, analysis.StockCount)
	assert.Equal(t, 1, analysis.Summary.Up)
	assert.Equal(t, 1, analysis.Summary.Down)

	rec = get(t, s, "/api/groups/analyze?symbols=600519")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, portfolio.DefaultGroupName, decode[portfolio.GroupAnalysis](t, rec).GroupName)

	rec = get(t, s, "/api/groups/analyze")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryRoutes(t *testing.T) {
	ctx := context.Background()

	s := newServer(t, newFake(), nil)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/history").Code)

	store, err := history.Open(ctx, filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()
	run, err := store.Save(ctx, history.KindMarket, "", map[string]string{"timestamp": "2026-03-02 15:00:00"})
	require.NoError(t, err)

	s = newServer(t, newFake(), store)

	rec := get(t, s, "/api/history?kind=market")
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode[[]history.Run](t, rec)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)

	rec = get(t, s, "/api/history/"+run.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"timestamp":"2026-03-02 15:00:00"}`, string(decode[history.Run](t, rec).Payload))

	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/history/missing").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/history?limit=x").Code)
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestStart(t *testing.T) {
	cfg := config.Default()
	cfg.Server = config.ServerConfig{Host: "127.0.0.1", Port: freePort(t)}
	s, err := New(newFake(), cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	client := &http.Client{Timeout: time.Second}
	up := utils.WaitForCondition(5*time.Second, 50*time.Millisecond, func() bool {
		resp, err := client.Get("http://" + s.Address() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	})
	assert.True(t, up, "server never became healthy")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
