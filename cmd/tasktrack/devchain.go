package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/cobra"

	"github.com/fentz26/tasktrack/internal/config"
	"github.com/fentz26/tasktrack/internal/devchain"
	"github.com/fentz26/tasktrack/internal/logging"
)

var (
	devListen    string
	devDBPath    string
	devBlockTime time.Duration
	devInstant   bool
)

var devchainCmd = &cobra.Command{
	Use:   "devchain",
	Short: "Run a local development chain",
	Long:  `Runs a single-node chain that serves the task tracker contract over JSON-RPC, for local development and demos.`,
	RunE:  runDevchain,
}

func init() {
	devchainCmd.Flags().StringVar(&devListen, "listen", "", "Listen address (default from config)")
	devchainCmd.Flags().StringVar(&devDBPath, "db", "", "Path to SQLite chain database (default from config)")
	devchainCmd.Flags().DurationVar(&devBlockTime, "block-time", 0, "Interval between blocks (default from config)")
	devchainCmd.Flags().BoolVar(&devInstant, "instant", true, "Seal a block as soon as a transaction arrives")
}

func runDevchain(cmd *cobra.Command, args []string) error {
	if err := logging.Setup(os.Stderr, cfg.LogLevel); err != nil {
		return err
	}

	dc := cfg.Devchain
	if devListen != "" {
		dc.Listen = devListen
	}
	if devDBPath != "" {
		dc.DBPath = devDBPath
	}
	if devBlockTime > 0 {
		dc.BlockTime = devBlockTime
	}
	if cmd.Flags().Changed("instant") {
		dc.Instant = devInstant
	}

	profile := config.Networks[config.NetworkDevchain]
	log.Info("Starting tasktrack devchain", "db", dc.DBPath)
	node, err := devchain.Open(devchain.Config{
		DBPath:    dc.DBPath,
		Listen:    dc.Listen,
		ChainID:   profile.ChainID,
		Contract:  config.DevchainContract,
		BlockTime: dc.BlockTime,
		Instant:   dc.Instant,
	})
	if err != nil {
		return err
	}
	node.Start()

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		if err := node.Server.Start(); err != nil {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigCh:
		log.Info("Received signal, initiating graceful shutdown", "signal", sig)
	case err := <-serverErr:
		if err != nil {
			log.Error("Server error", "err", err)
			node.Close()
			return err
		}
	}

	log.Info("Shutting down devchain")
	if err := node.Close(); err != nil {
		log.Warn("Devchain close error", "err", err)
	}

	log.Info("Shutdown complete")
	return nil
}
