package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/fentz26/tasktrack/internal/chain"
	"github.com/fentz26/tasktrack/internal/config"
	"github.com/fentz26/tasktrack/internal/connectors"
	"github.com/fentz26/tasktrack/internal/connectors/devkey"
	"github.com/fentz26/tasktrack/internal/connectors/injected"
	"github.com/fentz26/tasktrack/internal/connectors/keystore"
	"github.com/fentz26/tasktrack/internal/contract"
	"github.com/fentz26/tasktrack/internal/tracker"
	"github.com/fentz26/tasktrack/internal/wallet"
)

// passphraseEnv supplies the keystore passphrase non-interactively.
const passphraseEnv = "TASKTRACK_KEYSTORE_PASSPHRASE"

// loadConfig reads the config file and applies environment and flag overrides.
func loadConfig() (*config.Config, error) {
	c, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(os.LookupEnv)
	if err := applyFlags(c, network, rpcURL, logLevel); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}

func applyFlags(c *config.Config, network, rpcURL, logLevel string) error {
	if network != "" && network != c.Network {
		if err := c.UseNetwork(network); err != nil {
			return err
		}
	}
	if rpcURL != "" {
		c.RPCURL = rpcURL
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	return nil
}

// buildRegistry registers every connector usable with c.
func buildRegistry(c *config.Config) *connectors.Registry {
	reg := connectors.NewRegistry()
	reg.Register(injected.New())
	if c.KeystorePath != "" {
		reg.Register(keystore.New(c.KeystorePath, readPassphrase))
	}
	if c.Network == config.NetworkDevchain {
		reg.Register(devkey.New(0))
	}
	return reg
}

func readPassphrase() (string, error) {
	if v, ok := os.LookupEnv(passphraseEnv); ok {
		return v, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no terminal for passphrase prompt, set %s", passphraseEnv)
	}
	fmt.Fprint(os.Stderr, "Keystore passphrase: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// promptApprover asks on out before every signature and reads the answer from in.
func promptApprover(in io.Reader, out io.Writer) wallet.Approver {
	reader := bufio.NewReader(in)
	return func(ctx context.Context, req wallet.SignRequest) error {
		fmt.Fprintf(out, "Sign transaction to %s (nonce %d, chain %s)? [y/N] ", req.To.Hex(), req.Nonce, req.ChainID)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return chain.ErrSignatureRejected
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return nil
		default:
			return chain.ErrSignatureRejected
		}
	}
}

// session bundles the client-side components built from the config.
type session struct {
	client  *chain.RPCClient
	gateway *contract.Gateway
	wallet  *wallet.Wallet
	ctrl    *tracker.Controller
	// connector is the configured connector. It is never swapped for
	// another one when unavailable.
	connector string
}

func openSession(ctx context.Context, c *config.Config, opts ...wallet.Option) (*session, error) {
	client, err := chain.Dial(ctx, c.RPCURL,
		chain.WithPollInterval(c.PollInterval),
		chain.WithExpectedChainID(c.ChainID),
	)
	if err != nil {
		return nil, err
	}

	gw := contract.NewGateway(client, c.Contract())
	reg := buildRegistry(c)
	w := wallet.New(reg, opts...)
	ctrl := tracker.New(gw, w, tracker.Config{
		DwellTime:      c.DwellTime,
		ConfirmTimeout: c.ConfirmTimeout,
	})

	return &session{
		client:    client,
		gateway:   gw,
		wallet:    w,
		ctrl:      ctrl,
		connector: c.Connector,
	}, nil
}

// connect opens the session's account and loads its tasks.
func (s *session) connect(ctx context.Context) error {
	if _, err := s.wallet.Connect(ctx, s.connector); err != nil {
		return err
	}
	s.ctrl.Refresh(ctx)
	return nil
}

func (s *session) Close() {
	s.ctrl.Close()
	s.client.Close()
}
