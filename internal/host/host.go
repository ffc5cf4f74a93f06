// Package host implements the readiness handshake with an embedding host
// shell that renders a splash screen while tasktrack starts.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/log"

	"github.com/fentz26/tasktrack/internal/models"
)

// Environment variables understood by EnvHost.
const (
	EnvContext = "TASKTRACK_HOST_CONTEXT"
	EnvReady   = "TASKTRACK_HOST_READY"
)

// Sentinel errors for the handshake.
var (
	ErrNoHost         = errors.New("not running inside a host")
	ErrInvalidContext = errors.New("invalid host context")
)

// Host is the embedding shell.
type Host interface {
	// Context returns the validated host context.
	Context(ctx context.Context) (*models.HostContext, error)

	// Ready tells the host to dismiss its splash screen.
	Ready(ctx context.Context) error
}

// rawContext is the wire shape of the host context.
type rawContext struct {
	User *struct {
		FID      *uint64 `json:"fid"`
		Username string  `json:"username"`
	} `json:"user"`
	Location *struct {
		Type string `json:"type"`
	} `json:"location"`
}

// ParseContext decodes and validates a host context document.
func ParseContext(data []byte) (*models.HostContext, error) {
	var raw rawContext
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContext, err)
	}

	hc := &models.HostContext{}
	if raw.User != nil {
		if raw.User.FID == nil || *raw.User.FID == 0 {
			return nil, fmt.Errorf("%w: user.fid is required", ErrInvalidContext)
		}
		handle := strings.TrimPrefix(strings.TrimSpace(raw.User.Username), "@")
		hc.User = &models.UserProfile{ID: *raw.User.FID, Handle: handle}
	}
	if raw.Location != nil && strings.TrimSpace(raw.Location.Type) != "" {
		hc.Location = &models.LaunchLocation{Kind: strings.TrimSpace(raw.Location.Type)}
	}
	return hc, nil
}

// EnvHost reads its context from the environment and signals readiness by
// writing to a file the host watches.
type EnvHost struct {
	lookup func(string) (string, bool)
}

// FromEnv creates an EnvHost over the process environment.
func FromEnv() *EnvHost {
	return NewEnvHost(os.LookupEnv)
}

// NewEnvHost creates an EnvHost with a custom variable lookup.
func NewEnvHost(lookup func(string) (string, bool)) *EnvHost {
	return &EnvHost{lookup: lookup}
}

// Context parses TASKTRACK_HOST_CONTEXT.
func (h *EnvHost) Context(ctx context.Context) (*models.HostContext, error) {
	v, ok := h.lookup(EnvContext)
	if !ok || strings.TrimSpace(v) == "" {
		return nil, ErrNoHost
	}
	return ParseContext([]byte(v))
}

// Ready writes "ready" to the TASKTRACK_HOST_READY path, if set.
func (h *EnvHost) Ready(ctx context.Context) error {
	path, ok := h.lookup(EnvReady)
	if !ok || path == "" {
		return ErrNoHost
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("open ready signal: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString("ready\n"); err != nil {
		return fmt.Errorf("write ready signal: %w", err)
	}
	return nil
}

// Handshake fetches the host context and then signals readiness. Neither
// step can fail the caller: a missing or invalid context yields nil and the
// ready signal is sent regardless.
func Handshake(ctx context.Context, h Host) *models.HostContext {
	logger := log.New("component", "host")

	hc, err := h.Context(ctx)
	if err != nil {
		if errors.Is(err, ErrNoHost) {
			logger.Debug("Running without a host shell")
		} else {
			logger.Warn("Host context unavailable", "err", err)
		}
		hc = nil
	}

	if err := h.Ready(ctx); err != nil && !errors.Is(err, ErrNoHost) {
		logger.Warn("Host ready signal failed", "err", err)
	}
	return hc
}
