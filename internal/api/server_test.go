package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"exec-core/internal/account"
	"exec-core/internal/ledger"
	"exec-core/internal/risk"
)

func newTestServer(t *testing.T) (*Server, *risk.Runtime, *ledger.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	guard := risk.NewRuntime(risk.Settings{MaxTradesPerDay: 20})
	store := ledger.NewMemory()
	positions := func() []account.Position {
		return []account.Position{{Symbol: "BTCUSDT", Side: account.SideLong, Quantity: 1}}
	}
	srv := NewServer(guard, store, nil, positions, Meta{
		Mode:     "dryrun",
		Symbols:  []string{"BTCUSDT"},
		Strategy: "ma_cross",
		Version:  "test",
	})
	return srv, guard, store
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *strings.Reader
	if body == "" {
		rdr = strings.NewReader("")
	} else {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	w := doRequest(t, srv, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestStatusReflectsFreeze(t *testing.T) {
	srv, guard, _ := newTestServer(t)
	guard.Freeze("maintenance")

	w := doRequest(t, srv, http.MethodGet, "/api/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Mode string `json:"mode"`
		Risk struct {
			Frozen       bool   `json:"frozen"`
			FreezeReason string `json:"freeze_reason"`
		} `json:"risk"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Mode != "dryrun" || !resp.Risk.Frozen || resp.Risk.FreezeReason != "maintenance" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestFreezeUnfreezeEndpoints(t *testing.T) {
	srv, guard, _ := newTestServer(t)

	w := doRequest(t, srv, http.MethodPost, "/api/risk/freeze", `{"reason":"drill"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("freeze status = %d", w.Code)
	}
	if st := guard.State(); !st.IsManualFrozen || st.FrozenReason != "drill" {
		t.Fatalf("guard state = %+v", st)
	}

	w = doRequest(t, srv, http.MethodPost, "/api/risk/unfreeze", "")
	if w.Code != http.StatusOK {
		t.Fatalf("unfreeze status = %d", w.Code)
	}
	if st := guard.State(); st.IsFrozen {
		t.Fatalf("guard still frozen: %+v", st)
	}
}

func TestFreezeDefaultReason(t *testing.T) {
	srv, guard, _ := newTestServer(t)
	doRequest(t, srv, http.MethodPost, "/api/risk/freeze", "")
	if st := guard.State(); st.FrozenReason != "manual freeze" {
		t.Fatalf("reason = %q", st.FrozenReason)
	}
}

func TestGetTrades(t *testing.T) {
	srv, _, store := newTestServer(t)
	_ = store.AddTrade(context.Background(), ledger.TradeRecord{
		ID: "t1", Symbol: "BTCUSDT", RealizedPnl: 1.5,
		CloseTime: time.Now().UTC(),
	})

	w := doRequest(t, srv, http.MethodGet, "/api/trades", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 {
		t.Fatalf("count = %d", resp.Count)
	}
}

func TestGetPositions(t *testing.T) {
	srv, _, _ := newTestServer(t)
	w := doRequest(t, srv, http.MethodGet, "/api/positions", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 {
		t.Fatalf("count = %d", resp.Count)
	}
}

func TestSimOnlyEndpointsWithoutState(t *testing.T) {
	srv, _, _ := newTestServer(t)
	for _, path := range []string{"/api/pnl/daily", "/api/fills"} {
		w := doRequest(t, srv, http.MethodGet, path, "")
		if w.Code != http.StatusNotFound {
			t.Fatalf("%s status = %d", path, w.Code)
		}
	}
}
