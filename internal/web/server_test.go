package web_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Shiv7/trading-dashboard-sub004/internal/domain"
	"github.com/Shiv7/trading-dashboard-sub004/internal/usecase"
	"github.com/Shiv7/trading-dashboard-sub004/internal/web"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockDecisionRepo struct {
	mu        sync.Mutex
	decisions []*domain.ExitDecision
}

func (m *MockDecisionRepo) SaveExitDecision(ctx context.Context, d *domain.ExitDecision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, d)
	return nil
}

func (m *MockDecisionRepo) ListExitDecisions(ctx context.Context, scripCode string, limit int) ([]*domain.ExitDecision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.ExitDecision
	for i := len(m.decisions) - 1; i >= 0 && len(out) < limit; i-- {
		if scripCode == "" || m.decisions[i].ScripCode == scripCode {
			out = append(out, m.decisions[i])
		}
	}
	return out, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *MockDecisionRepo) {
	t.Helper()
	repo := &MockDecisionRepo{}
	coordinator := usecase.NewExitCoordinator(
		usecase.DefaultCoordinatorConfig(),
		nil, nil, repo,
		usecase.NewLevelCollector(usecase.DefaultCollectorConfig()),
		usecase.NewConfluenceScorer(usecase.DefaultScorerConfig()),
		usecase.DefaultLotAllocator(),
		nil,
	)
	srv := web.NewServer(0, coordinator, repo, 20*time.Millisecond, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, repo
}

const openBody = `{
	"scripCode": "OPT1",
	"underlyingScripCode": "RELIANCE",
	"side": "LONG",
	"entryPrice": "22.50",
	"underlyingEntryPrice": "3057.60",
	"quantity": 300,
	"lotSize": 75,
	"staticTargets": {"t1": "30", "t2": "35", "t3": null, "t4": null, "stopLoss": "18"}
}`

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServer_PositionLifecycle(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := do(t, http.MethodPost, ts.URL+"/api/positions", openBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var snap domain.PositionSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, domain.LadderStatic, snap.TargetLadder.Source)
	assert.Equal(t, 225, snap.LotAllocation[1])
	assert.Equal(t, 75, snap.LotAllocation[2])

	resp = do(t, http.MethodGet, ts.URL+"/api/positions/OPT1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodPost, ts.URL+"/api/positions/OPT1/target-hit", `{"targetIndex": 1}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var decision domain.ExitDecision
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decision))
	assert.Equal(t, 225, decision.Quantity)
	assert.Equal(t, "T1 partial", decision.Reason)
	assert.Equal(t, 75, decision.RemainingQuantity)

	resp = do(t, http.MethodGet, ts.URL+"/api/decisions?scrip=OPT1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var decisions []domain.ExitDecision
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decisions))
	assert.Len(t, decisions, 1)

	resp = do(t, http.MethodDelete, ts.URL+"/api/positions/OPT1", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodDelete, ts.URL+"/api/positions/OPT1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPost, ts.URL+"/api/positions/OPT1/target-hit", `{"targetIndex": 2}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_BadRequests(t *testing.T) {
	ts, _ := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"malformed body", http.MethodPost, "/api/positions", `{`, http.StatusBadRequest},
		{"zero quantity", http.MethodPost, "/api/positions", strings.Replace(openBody, `"quantity": 300`, `"quantity": 0`, 1), http.StatusBadRequest},
		{"unknown side", http.MethodPost, "/api/positions", strings.Replace(openBody, `"LONG"`, `"FLAT"`, 1), http.StatusBadRequest},
		{"unknown position", http.MethodGet, "/api/positions/NOPE", "", http.StatusNotFound},
		{"bad limit", http.MethodGet, "/api/decisions?limit=abc", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, tt.method, ts.URL+tt.path, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}

	do(t, http.MethodPost, ts.URL+"/api/positions", openBody)
	resp := do(t, http.MethodPost, ts.URL+"/api/positions/OPT1/target-hit", `{"targetIndex": 9}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_ListPositionsEmpty(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := do(t, http.MethodGet, ts.URL+"/api/positions", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var positions []domain.PositionSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&positions))
	assert.NotNil(t, positions)
	assert.Empty(t, positions)
}

func TestServer_Metrics(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := do(t, http.MethodGet, ts.URL+"/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_PositionsStream(t *testing.T) {
	ts, _ := newTestServer(t)
	do(t, http.MethodPost, ts.URL+"/api/positions", openBody)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/positions", nil)
	require.NoError(t, err)
	defer conn.Close()

	for i := 0; i < 2; i++ {
		var positions []domain.PositionSnapshot
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		require.NoError(t, conn.ReadJSON(&positions))
		require.Len(t, positions, 1)
		assert.Equal(t, "OPT1", positions[0].ScripCode)
	}
}
