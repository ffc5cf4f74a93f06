package devchain

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	DB      string `json:"db"`
	ChainID string `json:"chain_id"`
	Block   uint64 `json:"block"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

// Server exposes the backend over HTTP JSON-RPC.
type Server struct {
	backend *Backend
	rpc     *rpc.Server
	addr    string
	log     log.Logger

	mu     sync.Mutex
	server *http.Server
}

// NewServer creates a server for backend listening on addr.
func NewServer(backend *Backend, addr string) (*Server, error) {
	rs := rpc.NewServer()
	apis := map[string]interface{}{
		"eth":  &ethAPI{b: backend},
		"net":  &netAPI{b: backend},
		"web3": &web3API{},
	}
	for ns, api := range apis {
		if err := rs.RegisterName(ns, api); err != nil {
			rs.Stop()
			return nil, fmt.Errorf("register %s api: %w", ns, err)
		}
	}

	return &Server{
		backend: backend,
		rpc:     rs,
		addr:    addr,
		log:     log.New("component", "devchain-http"),
	}, nil
}

// Handler returns the HTTP handler: JSON-RPC at / and health at /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/", s.rpc)
	return mux
}

// RPC returns the underlying rpc server, e.g. for rpc.DialInProc.
func (s *Server) RPC() *rpc.Server {
	return s.rpc
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	s.log.Info("Starting devchain", "addr", ln.Addr().String(), "chain", s.backend.ChainID(), "contract", s.backend.Contract())
	err := srv.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.rpc.Stop()
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := HealthResponse{
		OK:      true,
		DB:      "ok",
		ChainID: s.backend.ChainID().String(),
		Version: ClientVersion,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.backend.Ping(ctx); err != nil {
		resp.OK = false
		resp.DB = err.Error()
		status = http.StatusServiceUnavailable
	} else if n, err := s.backend.BlockNumber(ctx); err == nil {
		resp.Block = n
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
