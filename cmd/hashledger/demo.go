package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/jmerrifield20/hashledger/internal/hashledger"
	"github.com/spf13/cobra"
)

// demoPayloads is the sample chain used by the demo command.
var demoPayloads = [][]int{
	{1, 2, 3, 4, 5, 6, 7, 8},
	{1, 1, 2, 3, 4, 5, 6, 7},
	{1, 1, 1, 3, 4, 5, 6, 7},
	{1, 1, 1, 1, 4, 5, 6, 7},
}

var (
	demoPosition int
	demoTampered []int
	demoRepair   bool
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Build a sample ledger, tamper with one record, then detect and recover it",
	Long: `demo appends four sample payloads, verifies the chain, overwrites the payload
at --position with --tampered (by default a reordering of the original), and
then verifies again, locates the divergent record and searches for the
original ordering:

  hashledger demo
  hashledger demo --position 3 --tampered 7,6,5,4,1,1,1,1 --repair`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDemo(cmd, hashledger.New(cfg.Ledger.options()...))
	},
}

func init() {
	demoCmd.Flags().IntVar(&demoPosition, "position", 1, "position of the record to tamper with")
	demoCmd.Flags().IntSliceVar(&demoTampered, "tampered", []int{1, 2, 1, 3, 4, 5, 6, 7}, "payload written over the record")
	demoCmd.Flags().BoolVar(&demoRepair, "repair", false, "write the recovered payload back and verify again")
}

func runDemo(cmd *cobra.Command, l *hashledger.Ledger) error {
	out := cmd.OutOrStdout()
	for _, p := range demoPayloads {
		l.Append(p)
	}
	fmt.Fprintf(out, "Ledger %s (%s), %d records\n", l.ID(), l.Algorithm(), l.Len())
	fmt.Fprintf(out, "Valid before tampering: %t\n", l.Verify())

	if _, err := l.Overwrite(demoPosition, demoTampered); err != nil {
		return err
	}
	fmt.Fprintf(out, "Overwrote record %d with %v\n", demoPosition, demoTampered)
	fmt.Fprintf(out, "Valid after tampering: %t\n", l.Verify())

	d, ok := l.LocateDivergence()
	if !ok {
		fmt.Fprintln(out, "No divergence found")
		return nil
	}
	fmt.Fprintf(out, "Divergence at position %d\n%s\n", d.Position, d.Record)

	search := l.RecoverAt
	if demoRepair {
		search = l.Repair
	}
	payload, err := search(cmd.Context(), d.Position)
	report(out, payload, err)
	if err != nil && !errors.Is(err, hashledger.ErrRecoveryFailed) && !errors.Is(err, hashledger.ErrRecoveryInconclusive) {
		return err
	}
	if demoRepair && err == nil {
		fmt.Fprintf(out, "Valid after repair: %t\n", l.Verify())
	}
	return nil
}

func report(out io.Writer, payload []int, err error) {
	switch {
	case err == nil:
		fmt.Fprintf(out, "Recovered original payload: %v\n", payload)
	case errors.Is(err, hashledger.ErrRecoveryFailed):
		fmt.Fprintln(out, "Could not recover: the payload is not a reordering of the original")
	case errors.Is(err, hashledger.ErrRecoveryInconclusive):
		fmt.Fprintf(out, "Recovery inconclusive: %v\n", err)
	default:
		fmt.Fprintf(out, "Recovery error: %v\n", err)
	}
}
