package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/fentz26/tasktrack/internal/config"
	"github.com/fentz26/tasktrack/internal/host"
	"github.com/fentz26/tasktrack/internal/logging"
	"github.com/fentz26/tasktrack/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive TUI",
	RunE:  runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	// The TUI owns the terminal, so logs go to a file.
	logPath := cfg.LogFile
	if logPath == "" {
		logPath = filepath.Join(config.Dir(), "tasktrack.log")
	}
	logFile, err := logging.SetupFile(logPath, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logFile.Close()

	// 1. Make sure a local devchain is running
	if cfg.Network == config.NetworkDevchain && !isDevchainRunning(cfg.Devchain.Listen) {
		fmt.Println("⚡ Devchain not running. Starting background node...")
		if err := startDevchain(cfg.Devchain.Listen); err != nil {
			return fmt.Errorf("failed to start devchain: %w", err)
		}
	}

	// 2. Build the session
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	s, err := openSession(ctx, cfg)
	cancel()
	if err != nil {
		return err
	}
	defer s.Close()

	// 3. Launch TUI
	app := tui.New(tui.Options{
		Controller:        s.ctrl,
		Wallet:            s.wallet,
		Host:              host.FromEnv(),
		Network:           cfg.Network,
		Connector:         s.connector,
		ConfirmSignatures: cfg.ConfirmSignatures,
	})
	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func isDevchainRunning(addr string) bool {
	client := http.Client{Timeout: 500 * time.Millisecond}
	resp, err := client.Get("http://" + addr + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func startDevchain(addr string) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}

	// Start "tasktrack devchain" in background
	args := []string{"devchain", "--listen", addr}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	cmd := exec.Command(exe, args...)
	// Detach process so it survives TUI exit
	configureDevchainProc(cmd)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return err
	}

	// Wait for it to become ready
	fmt.Print("   Waiting for devchain...")
	for i := 0; i < 20; i++ { // Wait up to 5 seconds
		if isDevchainRunning(addr) {
			fmt.Println(" Done.")
			return nil
		}
		time.Sleep(250 * time.Millisecond)
		fmt.Print(".")
	}
	fmt.Println(" Timeout!")
	return fmt.Errorf("devchain started but not reachable at %s", addr)
}
