package devchain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fentz26/tasktrack/internal/store"
)

func TestHealthEndpoint_OK(t *testing.T) {
	s, cleanup := newTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if !health.OK {
		t.Error("Expected health.OK to be true")
	}
	if health.DB != "ok" {
		t.Errorf("Expected DB status 'ok', got '%s'", health.DB)
	}
	if health.ChainID != "1337" {
		t.Errorf("Expected chain id 1337, got %s", health.ChainID)
	}
	if health.Version != ClientVersion {
		t.Errorf("Expected version %s, got %s", ClientVersion, health.Version)
	}
	if health.Time == "" {
		t.Error("Expected time to be set")
	}
}

func TestHealthEndpoint_MethodNotAllowed(t *testing.T) {
	s, cleanup := newTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	w := httptest.NewRecorder()

	s.handleHealth(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", resp.StatusCode)
	}
}

func TestHealthEndpoint_DBError(t *testing.T) {
	st, err := store.New(store.MemoryPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	server, err := NewServer(NewBackend(st, 1337, common.Address{}), "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	defer server.Shutdown(context.Background())

	// Close the store to simulate DB error
	st.Close()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	server.handleHealth(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", resp.StatusCode)
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if health.OK {
		t.Error("Expected health.OK to be false when DB is down")
	}
	if health.DB == "ok" {
		t.Error("Expected DB status to indicate error")
	}
}

func TestJSONRPCOverHTTP(t *testing.T) {
	s, cleanup := newTestServer(t)
	defer cleanup()

	body := `{"jsonrpc":"2.0","id":1,"method":"eth_chainId","params":[]}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	var resp struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Result != "0x539" {
		t.Errorf("Expected chain id 0x539, got %q", resp.Result)
	}
}

func TestRevertErrorData(t *testing.T) {
	err := newRevertError("task already completed")
	if err.ErrorCode() != revertErrorCode {
		t.Errorf("Expected code %d, got %d", revertErrorCode, err.ErrorCode())
	}
	data, _ := err.ErrorData().(string)
	if !strings.HasPrefix(data, "0x08c379a0") {
		t.Errorf("Expected Error(string) selector, got %s", data)
	}
}

func newTestServer(t *testing.T) (*Server, func()) {
	t.Helper()
	st, err := store.New(store.MemoryPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	server, err := NewServer(NewBackend(st, 1337, common.Address{}), "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	cleanup := func() {
		server.Shutdown(context.Background())
		st.Close()
	}

	return server, cleanup
}
