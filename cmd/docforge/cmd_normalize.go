package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"docforge/internal/gate"
	"docforge/internal/normalize"
	"docforge/internal/wrap"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize [script-file]",
	Short: "Run the repair pipeline without executing (dry run)",
	Long: `Applies the full normalization pipeline to the script and prints the
repaired text to stdout, with one note per applied rewrite on stderr.
Nothing is executed and no document is touched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := readSource(args[0])
		if err != nil {
			return err
		}
		res := normalize.Source(source)
		for _, note := range res.Notes {
			fmt.Fprintln(cmd.ErrOrStderr(), "note:", note)
		}
		fmt.Fprint(cmd.OutOrStdout(), res.Code)
		return nil
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan [script-file]",
	Short: "Gate a script payload without executing it",
	Long: `Runs the safety gate against the normalized payload and reports the
verdict: structured plan, modality mismatch, disallowed capabilities,
residual unsupported syntax, or clean. Exits non-zero on any violation.`,
	Args: cobra.ExactArgs(1),
	RunE: scanSource,
}

func scanSource(cmd *cobra.Command, args []string) error {
	source, err := readSource(args[0])
	if err != nil {
		return err
	}

	plan, perr := gate.DetectPayload(source)
	if perr != nil {
		return perr
	}
	if plan != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "structured plan: %d action(s)\n", len(plan.Actions))
		return nil
	}

	res := normalize.Source(source)
	if caps := gate.ScanCapabilities(res.Code); len(caps) > 0 {
		for _, c := range caps {
			fmt.Fprintln(cmd.ErrOrStderr(), "capability:", c)
		}
		return gate.Capabilities(res.Code)
	}
	if err := gate.ResidualSyntax(res.Code); err != nil {
		return err
	}

	dir := wrap.ParseDirectives(res.Code)
	unit := wrap.Assemble(res.Code, dir)
	if unit.Wrapped {
		fmt.Fprintln(cmd.OutOrStdout(), "clean; would wrap as block", unit.BlockID)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "clean; would run unwrapped")
	}
	return nil
}
