package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yourusername/strategy-validator/internal/backtest"
)

var windowsCmd = &cobra.Command{
	Use:   "windows",
	Short: "Print the windows generated for the configured policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := backtest.FromConfig(cfg)
		if err != nil {
			return err
		}
		windows, err := backtest.GenerateWindows(spec.FullRange, spec.Policy)
		if err != nil {
			return err
		}
		printWindows(os.Stdout, spec, windows)
		return nil
	},
}

func printWindows(w io.Writer, spec backtest.RunSpec, windows []backtest.Window) {
	const layout = "2006-01-02"
	fmt.Fprintf(w, "Mode: %s  Range: %s to %s  Combinations per window: %d\n",
		spec.Policy.Mode, spec.FullRange.Start.Format(layout), spec.FullRange.End.Format(layout), spec.Space.Size())
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "%-6s %-23s %-23s\n", "Window", "Training", "Testing")
	for _, win := range windows {
		fmt.Fprintf(w, "%-6d %s..%s  %s..%s\n", win.Index,
			win.Training.Start.Format(layout), win.Training.End.Format(layout),
			win.Testing.Start.Format(layout), win.Testing.End.Format(layout))
	}
	fmt.Fprintf(w, "Total windows: %d\n", len(windows))
}
