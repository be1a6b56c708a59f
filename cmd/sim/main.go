// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/luxfi/log"

	"github.com/luxfi/morpheus/config"
	"github.com/luxfi/morpheus/mempool"
	"github.com/luxfi/morpheus/sim"
	"github.com/luxfi/morpheus/types"
)

var rootCmd = &cobra.Command{
	Use:   "morpheus-sim",
	Short: "Discrete-event simulator for the Morpheus BFT protocol",
	Long: `morpheus-sim drives a universe of Morpheus processes through a virtual
clock, delivering messages FIFO per destination with a fixed network delay,
and reports each process's view and finalized transaction count once the
run ends.`,
	RunE: runSim,
}

func init() {
	rootCmd.Flags().String("network", "local", "Parameter preset: mainnet, testnet, or local")
	rootCmd.Flags().Int("steps", 500, "Number of logical ticks to run")
	rootCmd.Flags().Int64("network-delay", 1, "Message delivery delay, in logical ticks")
	rootCmd.Flags().String("tx-policy", "always", "Transaction-generation policy: never, always, every-n, once-per-view")
	rootCmd.Flags().Int("tx-every-n", 5, "N for the every-n transaction policy")
	rootCmd.Flags().Bool("check-invariants", true, "Panic if a process's internal invariants are violated")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runSim(cmd *cobra.Command, _ []string) error {
	network, _ := cmd.Flags().GetString("network")
	steps, _ := cmd.Flags().GetInt("steps")
	networkDelay, _ := cmd.Flags().GetInt64("network-delay")
	txPolicy, _ := cmd.Flags().GetString("tx-policy")
	txEveryN, _ := cmd.Flags().GetInt("tx-every-n")
	checkInvariants, _ := cmd.Flags().GetBool("check-invariants")

	var params config.Parameters
	switch network {
	case "mainnet":
		params = config.MainnetParams()
	case "testnet":
		params = config.TestnetParams()
	case "local":
		params = config.LocalParams()
	default:
		return fmt.Errorf("unknown network preset %q", network)
	}
	if err := params.Valid(); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}

	logger := log.NewNoOpLogger()
	harnessCfg := sim.FromParameters(logger, params, checkInvariants)
	harnessCfg.NetworkDelay = networkDelay

	h, err := sim.New(harnessCfg)
	if err != nil {
		return fmt.Errorf("building simulation harness: %w", err)
	}

	for _, id := range h.Processes() {
		h.SetPolicy(id, policyFor(txPolicy, txEveryN))
	}

	fmt.Printf("Running %d processes (f=%d) for %d ticks (delta=%s, network=%s)\n",
		params.N, params.F, steps, params.Delta, network)

	h.Run(steps)

	for _, id := range h.Processes() {
		p := h.Process(id)
		finalized := h.ExtractLog(id)
		fmt.Printf("process %d: view=%d finalized_txs=%d\n", id, p.Views().View(), len(finalized))
	}

	return nil
}

func policyFor(name string, everyN int) mempool.Policy {
	switch name {
	case "never":
		return mempool.NeverPolicy{}
	case "every-n":
		return mempool.EveryNStepsPolicy{N: everyN, Payload: types.Transaction([]byte{1, 2, 3, 4})}
	case "once-per-view":
		return mempool.NewOncePerViewPolicy(types.Transaction([]byte{1, 2, 3, 4}))
	default:
		return mempool.AlwaysPolicy{Payload: types.Transaction([]byte{1, 2, 3, 4})}
	}
}
