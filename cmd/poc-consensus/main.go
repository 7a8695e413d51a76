// Command poc-consensus provides operational tooling for the PoC
// engine: parameter validation and a local multi-validator simulation.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "poc-consensus",
	Short: "Proof-of-Cooperation consensus tools",
	Long: `poc-consensus provides tools for working with the reputation-weighted
PoC consensus engine: parameter checking and local round simulation.`,
}

func main() {
	rootCmd.AddCommand(checkCmd(), simCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
