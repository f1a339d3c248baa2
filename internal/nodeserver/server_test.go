package nodeserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/preettrank53/DistributedCache/internal/cacheengine"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	engine := cacheengine.New(10, time.Second)
	t.Cleanup(engine.Close)
	return New(engine, 9001, nil)
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestNodeServerHealth(t *testing.T) {
	s := newTestServer(t)
	rr := doRequest(t, s.Handler(), http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestNodeServerPutGetDelete(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	rr := doRequest(t, h, http.MethodPost, "/cache", map[string]any{"key": "a", "value": "1"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, h, http.MethodGet, "/cache/a", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		Value string `json:"value"`
		Hit   bool   `json:"hit"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Value != "1" || !resp.Hit {
		t.Fatalf("unexpected response: %+v", resp)
	}

	rr = doRequest(t, h, http.MethodDelete, "/cache/a", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = doRequest(t, h, http.MethodGet, "/cache/a", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rr.Code)
	}
}

func TestNodeServerMissingKeyIsBadRequest(t *testing.T) {
	s := newTestServer(t)
	rr := doRequest(t, s.Handler(), http.MethodPost, "/cache", map[string]any{"value": "1"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestNodeServerStatsAndKeys(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	doRequest(t, h, http.MethodPost, "/cache", map[string]any{"key": "a", "value": "1"})
	doRequest(t, h, http.MethodGet, "/cache/a", nil)
	doRequest(t, h, http.MethodGet, "/cache/missing", nil)

	rr := doRequest(t, h, http.MethodGet, "/cache/stats", nil)
	var stats cacheengine.Stats
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshal stats: %v", err)
	}
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("expected 1 hit and 1 miss, got %+v", stats)
	}

	rr = doRequest(t, h, http.MethodGet, "/cache/keys", nil)
	var keys []cacheengine.KeyTTL
	if err := json.Unmarshal(rr.Body.Bytes(), &keys); err != nil {
		t.Fatalf("unmarshal keys: %v", err)
	}
	if len(keys) != 1 || keys[0].Key != "a" {
		t.Fatalf("unexpected keys snapshot: %+v", keys)
	}
}

func TestNodeServerClear(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	doRequest(t, h, http.MethodPost, "/cache", map[string]any{"key": "a", "value": "1"})
	doRequest(t, h, http.MethodPost, "/cache/clear", nil)

	rr := doRequest(t, h, http.MethodGet, "/cache/a", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after clear, got %d", rr.Code)
	}
}

func TestNodeServerShutdownSignalsOnce(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	rr := doRequest(t, h, http.MethodPost, "/control/shutdown", nil)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}

	select {
	case <-s.ShutdownRequested():
	case <-time.After(time.Second):
		t.Fatal("expected shutdown channel to be closed")
	}

	doRequest(t, h, http.MethodPost, "/control/shutdown", nil) // must not panic on second call
}
