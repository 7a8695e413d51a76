package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/icn-network/poc-consensus/clock"
	"github.com/icn-network/poc-consensus/config"
	"github.com/icn-network/poc-consensus/consensus"
	"github.com/icn-network/poc-consensus/event"
	"github.com/spf13/cobra"
)

func simCmd() *cobra.Command {
	var nodes, byzantine, rounds int
	var verbose bool

	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Simulate PoC consensus rounds with a local engine",
		Long: `Run a local, in-process simulation of the PoC engine across a fixed
number of rounds, with a configurable share of Byzantine (always-reject)
validators, and report the resulting reputation distribution.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSim(nodes, byzantine, rounds, verbose)
		},
	}

	cmd.Flags().IntVar(&nodes, "nodes", 4, "total number of validators to simulate")
	cmd.Flags().IntVar(&byzantine, "byzantine", 0, "number of validators that always vote reject")
	cmd.Flags().IntVar(&rounds, "rounds", 10, "number of rounds to run")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "show per-round detail")
	return cmd
}

func runSim(nodes, byzantine, rounds int, verbose bool) error {
	if byzantine >= nodes {
		return fmt.Errorf("byzantine count must be less than total nodes")
	}

	cfg := config.Default()
	cfg.MinValidators = nodes
	mock := clock.NewMock(time.Unix(0, 0))
	bus := event.NewBus(nil)

	e, err := consensus.New(cfg, mock, nil, bus)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	dids := make([]string, nodes)
	byzantineSet := make(map[string]bool, byzantine)
	for i := 0; i < nodes; i++ {
		did := fmt.Sprintf("did:coop:sim-%d", i)
		dids[i] = did
		if err := e.RegisterValidator(ctx, did, 100); err != nil {
			return err
		}
		if i < byzantine {
			byzantineSet[did] = true
		}
	}

	succeeded := 0
	for round := 0; round < rounds; round++ {
		roundNo, err := e.StartRound(ctx)
		if err != nil {
			return fmt.Errorf("round %d: start: %w", round, err)
		}
		r, err := e.CurrentRound(ctx)
		if err != nil {
			return err
		}
		if err := e.ProposeBlock(ctx, r.Coordinator, nil); err != nil {
			return fmt.Errorf("round %d: propose: %w", round, err)
		}
		r, err = e.CurrentRound(ctx)
		if err != nil {
			return err
		}
		blockHash := r.ProposedBlock.HashHex()
		for _, did := range dids {
			approve := !byzantineSet[did]
			if err := e.SubmitVote(ctx, roundNo, did, blockHash, approve); err != nil {
				var cerr *consensus.Error
				if errors.As(err, &cerr) && cerr.Kind == consensus.KindInvalidRoundState {
					// The round was already rejected; remaining votes are moot.
					break
				}
				return fmt.Errorf("round %d: vote %s: %w", round, did, err)
			}
		}

		result, err := e.FinalizeRound(ctx)
		if err != nil {
			return fmt.Errorf("round %d: finalize: %w", round, err)
		}
		if result.Successful {
			succeeded++
		}
		if verbose {
			fmt.Printf("round %d: successful=%v coordinator=%s\n", roundNo, result.Successful, r.Coordinator)
		}
		mock.Advance(time.Second)
	}

	fmt.Printf("\n=== Simulation Summary ===\n")
	fmt.Printf("  Rounds run:        %d\n", rounds)
	fmt.Printf("  Rounds succeeded:  %d\n", succeeded)
	fmt.Printf("  Byzantine nodes:   %d / %d\n\n", byzantine, nodes)
	for _, did := range dids {
		rep, err := e.Reputation(ctx, did)
		if err != nil {
			return err
		}
		fmt.Printf("  %-24s reputation=%d\n", did, rep)
	}
	return nil
}
