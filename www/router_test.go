package www

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"mecanimovil/api"
	"mecanimovil/config"
	"mecanimovil/engine"
	"mecanimovil/healthcache"
	"mecanimovil/messaging"
	"mecanimovil/offers"
	"mecanimovil/store"
)

// upstream fakes the remote marketplace API.
type upstream struct {
	srv         *httptest.Server
	healthCalls int64
	offerStatus atomic.Value // status returned by single-offer reads
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{}
	u.offerStatus.Store("aceptada")

	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.PingResponse{Status: "ok"})
	})
	mux.HandleFunc("/vehicles/VIN-1/health", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&u.healthCalls, 1)
		w.Write([]byte(`{"vehicle_id":"VIN-1","score":73.0,"alert":false}`))
	})
	mux.HandleFunc("/offers/sent", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"offers":[{"id":20,"status":"pendiente","amount":150000,"vehicle":"Jetta 2018"}]}`))
	})
	mux.HandleFunc("/offers/received", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"offers":[{"id":31,"status":"aceptada","amount":98000,"vehicle":"Ranger 2021"}]}`))
	})
	mux.HandleFunc("/offers/31", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"id":31,"status":"%s","vehicle":"Ranger 2021","buyer":{"id":7,"name":"Luisa P."}}`, u.offerStatus.Load())
	})
	mux.HandleFunc("/offers/31/respond", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.RespondOfferResponse{ID: 31, Status: "aceptada"})
	})
	mux.HandleFunc("/offers/31/transfer-token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.TransferToken{Token: "TT-31", ExpiresAt: time.Now().Add(15 * time.Minute)})
	})
	mux.HandleFunc("/transfers/complete", func(w http.ResponseWriter, r *http.Request) {
		var req api.CompleteTransferRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Token != "TT-31" {
			w.WriteHeader(http.StatusGone)
			w.Write([]byte(`{"code":"token_invalid","message":"token desconocido"}`))
			return
		}
		json.NewEncoder(w).Encode(api.TransferResult{VehicleID: "VIN-9", NewOwner: api.Counterpart{ID: 7, Name: "Luisa P."}})
	})

	u.srv = httptest.NewServer(mux)
	t.Cleanup(u.srv.Close)
	return u
}

func newTestServer(t *testing.T, up *upstream) (*httptest.Server, *engine.Engine) {
	t.Helper()

	cfg := config.Defaults()
	cfg.API.BaseURL = up.srv.URL
	cfg.API.Timeout = 2 * time.Second
	cfg.API.PollInterval = 10 * time.Millisecond
	cfg.Database.SQLite.Path = filepath.Join(t.TempDir(), "test.db")

	db, err := store.Open(&cfg.Database)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	apiClient := api.NewClient(cfg.API.BaseURL, cfg.API.Timeout)
	cache := healthcache.New(apiClient, db, cfg.Cache.TTL)
	offerSvc := offers.NewService(apiClient)
	msgClient := messaging.NewClient(&cfg.Messaging) // never connected in tests

	eng := engine.New(engine.Config{
		AppConfig:  cfg,
		ConfigPath: filepath.Join(t.TempDir(), "config.yaml"),
		DB:         db,
		API:        apiClient,
		Cache:      cache,
		Offers:     offerSvc,
		MsgClient:  msgClient,
		LogFunc:    func(string, ...any) {},
	})
	eng.Start()
	t.Cleanup(eng.Stop)

	handler, stopWeb := NewRouter(eng)
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		stopWeb()
	})
	return srv, eng
}

func authedClient(t *testing.T, srv *httptest.Server) *http.Client {
	t.Helper()
	jar, _ := cookiejar.New(nil)
	client := &http.Client{Jar: jar}
	body := bytes.NewBufferString(`{"username":"admin","password":"admin"}`)
	resp, err := client.Post(srv.URL+"/login", "application/json", body)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d", resp.StatusCode)
	}
	return client
}

func postJSON(t *testing.T, client *http.Client, url, body string) *http.Response {
	t.Helper()
	resp, err := client.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestVehicleHealthCachedAcrossRequests(t *testing.T) {
	up := newUpstream(t)
	srv, _ := newTestServer(t, up)

	for i := 0; i < 3; i++ {
		resp, err := http.Get(srv.URL + "/api/vehicles/VIN-1/health")
		if err != nil {
			t.Fatalf("get health: %v", err)
		}
		var snap api.HealthSnapshot
		if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
			t.Fatalf("decode: %v", err)
		}
		resp.Body.Close()
		if snap.Score != 73.0 {
			t.Fatalf("unexpected score %v", snap.Score)
		}
	}
	if n := atomic.LoadInt64(&up.healthCalls); n != 1 {
		t.Fatalf("expected 1 upstream fetch across requests, got %d", n)
	}
}

func TestForceQueryBypassesCache(t *testing.T) {
	up := newUpstream(t)
	srv, _ := newTestServer(t, up)

	http.Get(srv.URL + "/api/vehicles/VIN-1/health")
	http.Get(srv.URL + "/api/vehicles/VIN-1/health?force=true")

	if n := atomic.LoadInt64(&up.healthCalls); n != 2 {
		t.Fatalf("force must refetch, got %d upstream calls", n)
	}
}

func TestInvalidateRequiresAuth(t *testing.T) {
	up := newUpstream(t)
	srv, _ := newTestServer(t, up)

	resp := postJSON(t, http.DefaultClient, srv.URL+"/api/vehicles/VIN-1/health/invalidate", `{}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated write got %d, want 401", resp.StatusCode)
	}

	client := authedClient(t, srv)
	http.Get(srv.URL + "/api/vehicles/VIN-1/health")

	resp = postJSON(t, client, srv.URL+"/api/vehicles/VIN-1/health/invalidate", `{}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("invalidate got %d", resp.StatusCode)
	}

	http.Get(srv.URL + "/api/vehicles/VIN-1/health")
	if n := atomic.LoadInt64(&up.healthCalls); n != 2 {
		t.Fatalf("read after invalidate must refetch, got %d upstream calls", n)
	}
}

func TestListOffersMerged(t *testing.T) {
	up := newUpstream(t)
	srv, _ := newTestServer(t, up)

	resp, err := http.Get(srv.URL + "/api/offers?refresh=true")
	if err != nil {
		t.Fatalf("get offers: %v", err)
	}
	defer resp.Body.Close()

	var list []offers.Offer
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 offers, got %d", len(list))
	}
	// Sorted id descending: 31 then 20.
	if list[0].ID != 31 || list[0].Status != offers.StatusAccepted {
		t.Fatalf("unexpected first offer: %+v", list[0])
	}
	if list[1].ID != 20 || list[1].Direction != offers.DirectionSent {
		t.Fatalf("unexpected second offer: %+v", list[1])
	}
}

func TestRespondOfferWritesAudit(t *testing.T) {
	up := newUpstream(t)
	srv, eng := newTestServer(t, up)
	client := authedClient(t, srv)

	resp := postJSON(t, client, srv.URL+"/api/offers/31/respond", `{"accept":true}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("respond got %d", resp.StatusCode)
	}

	entries, err := eng.DB().ListEntityAudit("offer", 31)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "responded" {
		t.Fatalf("audit entry missing: %+v", entries)
	}
	if entries[0].Actor != "admin" {
		t.Fatalf("audit actor %q, want session user", entries[0].Actor)
	}
}

func TestTransferTokenAndComplete(t *testing.T) {
	up := newUpstream(t)
	srv, eng := newTestServer(t, up)
	client := authedClient(t, srv)

	resp := postJSON(t, client, srv.URL+"/api/offers/31/transfer-token", `{}`)
	var tok struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	resp.Body.Close()
	if tok.Token != "TT-31" {
		t.Fatalf("unexpected token %q", tok.Token)
	}

	entries, err := eng.DB().ListEntityAudit("transfer", 31)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "token_issued" || entries[0].Actor != "admin" {
		t.Fatalf("token audit entry wrong: %+v", entries)
	}

	resp = postJSON(t, client, srv.URL+"/api/transfers/complete", `{"token":"TT-31"}`)
	var result api.TransferResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	resp.Body.Close()
	if result.NewOwner.Name != "Luisa P." {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestCompleteTransferBusinessError(t *testing.T) {
	up := newUpstream(t)
	srv, _ := newTestServer(t, up)
	client := authedClient(t, srv)

	resp := postJSON(t, client, srv.URL+"/api/transfers/complete", `{"token":"TT-bogus"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusGone {
		t.Fatalf("business error status lost: %d", resp.StatusCode)
	}
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != api.CodeTokenInvalid {
		t.Fatalf("code not forwarded: %q", body.Code)
	}
}

func TestWatchLifecycle(t *testing.T) {
	up := newUpstream(t)
	srv, eng := newTestServer(t, up)
	client := authedClient(t, srv)

	// Start without a session: 404.
	resp := postJSON(t, client, srv.URL+"/api/offers/31/watch/start", `{}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("watch without session got %d, want 404", resp.StatusCode)
	}

	resp = postJSON(t, client, srv.URL+"/api/offers/31/transfer-token", `{}`)
	resp.Body.Close()

	done := make(chan engine.TransferCompletedEvent, 1)
	eng.Events.SubscribeTypes(func(evt engine.Event) {
		done <- evt.Payload.(engine.TransferCompletedEvent)
	}, engine.EventTransferCompleted)

	resp = postJSON(t, client, srv.URL+"/api/offers/31/watch/start", `{}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("watch start got %d", resp.StatusCode)
	}

	up.offerStatus.Store("vendida")
	select {
	case ev := <-done:
		if ev.OfferID != 31 || ev.NewOwner == nil || ev.NewOwner.Name != "Luisa P." {
			t.Fatalf("unexpected completion event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transfer completion")
	}

	// Stop after completion is a harmless no-op.
	resp = postJSON(t, client, srv.URL+"/api/offers/31/watch/stop", `{}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("watch stop got %d", resp.StatusCode)
	}
}

func TestHealthCheckReportsComponents(t *testing.T) {
	up := newUpstream(t)
	srv, _ := newTestServer(t, up)

	resp, err := http.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Status     string `json:"status"`
		API        bool   `json:"api"`
		Messaging  bool   `json:"messaging"`
		SSEClients *int   `json:"sse_clients"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || !body.API {
		t.Fatalf("unexpected health body: %+v", body)
	}
	if body.Messaging {
		t.Fatal("messaging reported connected with no broker")
	}
	if body.SSEClients == nil || *body.SSEClients != 0 {
		t.Fatalf("sse_clients missing or nonzero: %v", body.SSEClients)
	}
}

func TestSaveConfigPersistsToDisk(t *testing.T) {
	up := newUpstream(t)
	srv, eng := newTestServer(t, up)
	client := authedClient(t, srv)

	resp := postJSON(t, client, srv.URL+"/api/config/save", `{"cache":{"ttl":"90s"}}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save config got %d", resp.StatusCode)
	}

	if got := eng.AppConfig().Cache.TTL; got != 90*time.Second {
		t.Fatalf("in-memory TTL %v, want 90s", got)
	}
	saved, err := config.Load(eng.ConfigPath())
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if saved.Cache.TTL != 90*time.Second {
		t.Fatalf("persisted TTL %v, want 90s", saved.Cache.TTL)
	}
}
