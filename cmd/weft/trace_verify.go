package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weftworks/weft/pkg/chain"
)

var traceVerifyCmd = &cobra.Command{
	Use:   "verify [trace.jsonl]",
	Short: "Verify the ordering invariants of a chain trace file",
	Args:  cobra.ExactArgs(1),
	RunE:  runTraceVerify,
}

func runTraceVerify(cmd *cobra.Command, args []string) error {
	result, err := chain.VerifyTraceFile(args[0])
	if err != nil {
		return err
	}

	if !result.Valid {
		fmt.Printf("✗ Invariant broken at event %d\n", result.BrokenAt)
		if result.Error != "" {
			fmt.Printf("  %s\n", result.Error)
		}
		return fmt.Errorf("trace verification failed")
	}

	fmt.Printf("✓ Trace ok: %d events across %d chain(s)\n", result.EventCount, result.Chains)
	return nil
}

func init() {
	traceCmd := &cobra.Command{
		Use:   "trace",
		Short: "Trace file operations",
	}
	traceCmd.AddCommand(traceVerifyCmd)
	rootCmd.AddCommand(traceCmd)
}
