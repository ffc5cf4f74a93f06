package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show the wallet account and connectors",
	RunE:  runAccount,
}

func runAccount(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	reg := buildRegistry(cfg)
	chosen := cfg.Connector

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CONNECTOR\tNAME\tAVAILABLE")
	for _, c := range reg.List() {
		id := c.ID()
		if id == chosen {
			id += " *"
		}
		fmt.Fprintf(w, "%s\t%s\t%v\n", id, c.Name(), c.Available())
	}
	if err := w.Flush(); err != nil {
		return err
	}

	conn, ok := reg.Get(chosen)
	if !ok || !conn.Available() {
		fmt.Fprintf(out, "\nConnector %q is unavailable, no account connected\n", chosen)
		return nil
	}
	signer, err := conn.Connect(cmd.Context())
	if err != nil {
		return fmt.Errorf("connect %s: %w", chosen, err)
	}
	fmt.Fprintf(out, "\nAccount:  %s\n", signer.Address().Hex())
	fmt.Fprintf(out, "Network:  %s (chain %d)\n", cfg.Network, cfg.ChainID)
	fmt.Fprintf(out, "Contract: %s\n", cfg.Contract().Hex())
	return nil
}
