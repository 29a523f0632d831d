package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"StokVault/internal/core"
	"StokVault/internal/event"
	"StokVault/internal/ledger"
	"StokVault/internal/observability"
	"StokVault/internal/query"
	"StokVault/internal/server"
	"StokVault/internal/state"
)

// ============================================================================
// Fixture
// ============================================================================

type serverFixture struct {
	ledger *ledger.MemoryLedger
	engine *core.RoundEngine
	router *gin.Engine
	now    time.Time
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	f := &serverFixture{
		ledger: ledger.NewMemoryLedger(),
		now:    time.Unix(1_757_000_000, 0),
	}

	params := core.DefaultParams()
	f.engine = core.NewRoundEngine(f.ledger, params, state.DefaultScoringPolicy())
	f.engine.SetClock(func() time.Time { return f.now })

	events := make(chan event.Record, 64)
	// Metrics stay nil: promauto registers against the default registry
	// and would panic on the second fixture in the same process.
	vault := core.NewVault(f.engine, events, nil)
	queries := query.NewService(vault, nil)

	health := observability.NewHealthChecker()
	health.SetReady(true)

	f.router = server.NewHTTPServer(vault, queries, health).Router()
	return f
}

func (f *serverFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *serverFixture) join(t *testing.T, id uuid.UUID) {
	t.Helper()

	f.ledger.Mint(mustAsset(t, "wETH"), id, 1_000)
	f.ledger.Mint(mustAsset(t, "wDAI"), id, 1_000)

	w := f.do(t, http.MethodPost, "/v1/members/join", map[string]interface{}{
		"member_id":   id,
		"assets":      []string{"wETH", "wDAI"},
		"deposits":    []int64{600, 400},
		"weights_bps": []int64{6_000, 4_000},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("join: status %d body %s", w.Code, w.Body.String())
	}
}

func mustAsset(t *testing.T, name string) ledger.AssetID {
	t.Helper()
	id, ok := ledger.GetAssetID(name)
	if !ok {
		t.Fatalf("asset %s not registered", name)
	}
	return id
}

// ============================================================================
// Test: Probes
// ============================================================================

func TestHTTP_HealthProbes(t *testing.T) {
	f := newServerFixture(t)

	if w := f.do(t, http.MethodGet, "/healthz", nil); w.Code != http.StatusOK {
		t.Errorf("healthz: status %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/readyz", nil); w.Code != http.StatusOK {
		t.Errorf("readyz: status %d", w.Code)
	}
}

// ============================================================================
// Test: Lifecycle over HTTP
// ============================================================================

func TestHTTP_JoinAndGetMember(t *testing.T) {
	f := newServerFixture(t)
	id := uuid.New()
	f.join(t, id)

	w := f.do(t, http.MethodGet, "/v1/members/"+id.String(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get member: status %d body %s", w.Code, w.Body.String())
	}

	var resp struct {
		MemberID   uuid.UUID `json:"member_id"`
		TotalValue int64     `json:"total_value"`
		ScoreBps   int64     `json:"score_bps"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.MemberID != id {
		t.Errorf("member id mismatch")
	}
	if resp.TotalValue != 520 {
		t.Errorf("total value: got %d, want 520", resp.TotalValue)
	}
	if resp.ScoreBps != 10_000 {
		t.Errorf("initial score: got %d, want 10000", resp.ScoreBps)
	}
}

func TestHTTP_RoundLifecycle(t *testing.T) {
	f := newServerFixture(t)
	a := uuid.New()
	b := uuid.New()
	f.join(t, a)
	f.join(t, b)

	w := f.do(t, http.MethodPost, "/v1/rounds/start", map[string]interface{}{
		"caller":      a,
		"assets":      []string{"wETH", "wDAI"},
		"weights_bps": []int64{6_000, 4_000},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("start round: status %d body %s", w.Code, w.Body.String())
	}

	var started struct {
		RoundID   int64     `json:"round_id"`
		Recipient uuid.UUID `json:"recipient"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &started); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if started.Recipient != a {
		t.Fatalf("recipient: got %s, want first joiner", started.Recipient)
	}

	// Claim by the wrong member is a state conflict.
	w = f.do(t, http.MethodPost, "/v1/rounds/claim", map[string]interface{}{"caller": b})
	if w.Code != http.StatusConflict {
		t.Errorf("claim by non-recipient: status %d, want 409", w.Code)
	}

	w = f.do(t, http.MethodPost, "/v1/rounds/claim", map[string]interface{}{"caller": a})
	if w.Code != http.StatusOK {
		t.Fatalf("claim: status %d body %s", w.Code, w.Body.String())
	}

	// Completing before the deadline is also a conflict.
	w = f.do(t, http.MethodPost, "/v1/rounds/complete", map[string]interface{}{"caller": a})
	if w.Code != http.StatusConflict {
		t.Errorf("early complete: status %d, want 409", w.Code)
	}

	f.now = f.now.Add(31 * 24 * time.Hour)
	w = f.do(t, http.MethodPost, "/v1/rounds/complete", map[string]interface{}{"caller": a})
	if w.Code != http.StatusOK {
		t.Fatalf("complete: status %d body %s", w.Code, w.Body.String())
	}

	var done struct {
		HealthFactorBps int64 `json:"health_factor_bps"`
		Violation       bool  `json:"violation"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &done); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// Pool 1200/800, recipient wallet at settlement 1600/1400: the wDAI
	// leg is the minimum weighted ratio, 1.75 * 0.4 = 0.7.
	if done.HealthFactorBps != 7_000 {
		t.Errorf("health factor: got %d, want 7000", done.HealthFactorBps)
	}

	w = f.do(t, http.MethodGet, fmt.Sprintf("/v1/rounds/%d", started.RoundID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get round: status %d", w.Code)
	}
	var round struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &round); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if round.State != "COMPLETED" {
		t.Errorf("round state: got %q, want COMPLETED", round.State)
	}
}

// ============================================================================
// Test: Error mapping
// ============================================================================

func TestHTTP_ErrorMapping(t *testing.T) {
	f := newServerFixture(t)
	id := uuid.New()
	f.join(t, id)

	cases := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{
			"malformed json binding", http.MethodPost, "/v1/members/join",
			map[string]interface{}{"member_id": "not-a-uuid"},
			http.StatusBadRequest,
		},
		{
			"unregistered asset", http.MethodPost, "/v1/members/join",
			map[string]interface{}{
				"member_id":   uuid.New(),
				"assets":      []string{"wXYZ"},
				"deposits":    []int64{500},
				"weights_bps": []int64{10_000},
			},
			http.StatusBadRequest,
		},
		{
			"duplicate join", http.MethodPost, "/v1/members/join",
			map[string]interface{}{
				"member_id":   id,
				"assets":      []string{"wETH"},
				"deposits":    []int64{100},
				"weights_bps": []int64{10_000},
			},
			http.StatusConflict,
		},
		{
			"unknown member", http.MethodGet,
			"/v1/members/" + uuid.New().String(), nil,
			http.StatusNotFound,
		},
		{
			"invalid member id", http.MethodGet,
			"/v1/members/not-a-uuid", nil,
			http.StatusBadRequest,
		},
		{
			"no current round", http.MethodGet,
			"/v1/rounds/current", nil,
			http.StatusConflict,
		},
		{
			"invalid round id", http.MethodGet,
			"/v1/rounds/abc", nil,
			http.StatusBadRequest,
		},
		{
			"claim without round", http.MethodPost, "/v1/rounds/claim",
			map[string]interface{}{"caller": id},
			http.StatusConflict,
		},
		{
			"unregistered insurance asset", http.MethodGet,
			"/v1/insurance/wXYZ", nil,
			http.StatusBadRequest,
		},
	}

	for _, tc := range cases {
		w := f.do(t, tc.method, tc.path, tc.body)
		if w.Code != tc.want {
			t.Errorf("%s: status %d, want %d (body %s)", tc.name, w.Code, tc.want, w.Body.String())
		}
	}
}

// ============================================================================
// Test: Queries
// ============================================================================

func TestHTTP_NextRecipientAndInsurance(t *testing.T) {
	f := newServerFixture(t)
	a := uuid.New()
	f.join(t, a)

	w := f.do(t, http.MethodGet, "/v1/rounds/next-recipient", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("next recipient: status %d body %s", w.Code, w.Body.String())
	}
	var next struct {
		MemberID uuid.UUID `json:"member_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &next); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if next.MemberID != a {
		t.Errorf("next recipient: got %s, want %s", next.MemberID, a)
	}

	w = f.do(t, http.MethodGet, "/v1/insurance/wETH", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("insurance balance: status %d", w.Code)
	}
	var bal struct {
		Balance int64 `json:"balance"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &bal); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if bal.Balance != 0 {
		t.Errorf("insurance balance: got %d, want 0", bal.Balance)
	}
}
