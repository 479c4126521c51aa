// Command supervisord is the companion robot's core process: it owns
// the 50Hz tick loop and wires together the MCU transports, the worker
// supervisor, the dashboard, and persisted state, per spec.md §9
// ("single supervisor process, everything else is a worker or an MCU").
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "supervisord",
		Short: "Companion robot supervisor core",
		Long: `supervisord runs the robot's core tick loop: mode state machine,
behavior and safety cascade, conversation and affect engines, and the
worker and MCU I/O that feed them.`,
		SilenceUsage: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newParamsCmd())
	root.AddCommand(newReplayCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
