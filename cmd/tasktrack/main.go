package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fentz26/tasktrack/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "tasktrack",
	Short: "tasktrack - on-chain task tracker",
	Long:  `tasktrack keeps a personal task list in a smart contract. Tasks are read with contract calls and created or completed with signed transactions.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		var err error
		cfg, err = loadConfig()
		return err
	},
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	configPath string
	network    string
	rpcURL     string
	logLevel   string

	cfg *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.HomePath(), "Path to config file")
	rootCmd.PersistentFlags().StringVar(&network, "network", "", "Network profile (soneium-minato, devchain)")
	rootCmd.PersistentFlags().StringVar(&rpcURL, "rpc", "", "JSON-RPC endpoint, overrides the network profile")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")

	// Add subcommands
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(devchainCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
