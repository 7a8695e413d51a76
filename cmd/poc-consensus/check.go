package main

import (
	"fmt"

	"github.com/icn-network/poc-consensus/config"
	"github.com/spf13/cobra"
)

func checkCmd() *cobra.Command {
	var minValidators, maxValidators int
	var quorum, voteThreshold float64

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check consensus parameters for safety and correctness",
		Long: `Analyze a PoC consensus configuration to ensure it satisfies the
invariants required for safe operation before deploying it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if minValidators > 0 {
				cfg.MinValidators = minValidators
			}
			if maxValidators > 0 {
				cfg.MaxValidators = maxValidators
			}
			if quorum > 0 {
				cfg.Quorum = quorum
			}
			if voteThreshold > 0 {
				cfg.VoteThreshold = voteThreshold
			}

			fmt.Printf("\n=== PoC Consensus Parameter Check ===\n\n")
			fmt.Printf("  Min Validators:     %d\n", cfg.MinValidators)
			fmt.Printf("  Max Validators:     %d\n", cfg.MaxValidators)
			fmt.Printf("  Quorum:             %.2f\n", cfg.Quorum)
			fmt.Printf("  Vote Threshold:     %.2f\n", cfg.VoteThreshold)
			fmt.Printf("  Round Timeout:      %s\n", cfg.RoundTimeout)
			fmt.Printf("  Max Tx Per Block:   %d\n", cfg.MaxTxPerBlock)

			if err := cfg.Validate(); err != nil {
				fmt.Printf("\nResult: INVALID — %v\n", err)
				return err
			}
			fmt.Printf("\nResult: VALID\n")
			return nil
		},
	}

	cmd.Flags().IntVar(&minValidators, "min-validators", 0, "override min_validators (0 keeps default)")
	cmd.Flags().IntVar(&maxValidators, "max-validators", 0, "override max_validators (0 keeps default)")
	cmd.Flags().Float64Var(&quorum, "quorum", 0, "override quorum fraction (0 keeps default)")
	cmd.Flags().Float64Var(&voteThreshold, "vote-threshold", 0, "override vote_threshold fraction (0 keeps default)")
	return cmd
}
