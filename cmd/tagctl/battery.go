package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var batteryCmd = &cobra.Command{
	Use:   "battery <tag>",
	Short: "Read the battery level of a tag",
	Long: `Connect to a tag and read its battery level (0-100%) a number of times.

The tag starts slow-beeping once disconnected; press its button to acknowledge.`,
	Example: `  tagctl battery Blue
  tagctl battery ff:ff:33:31:8a:76 --count 1`,
	Args: cobra.ExactArgs(1),
	RunE: runBattery,
}

var (
	batteryCount    int
	batteryInterval time.Duration
)

func init() {
	batteryCmd.Flags().IntVarP(&batteryCount, "count", "n", 5, "Number of reads")
	batteryCmd.Flags().DurationVarP(&batteryInterval, "interval", "i", time.Second, "Minimum time between reads")
}

func runBattery(cmd *cobra.Command, args []string) error {
	env, err := newCommandEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	t, err := env.target(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := &eventPrinter{w: env.out}
	return t.PollBattery(ctx, batteryCount, batteryInterval, p.Report)
}
