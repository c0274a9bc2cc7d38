package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var buttonCmd = &cobra.Command{
	Use:   "button <tag>",
	Short: "Listen for button presses",
	Long: `Connect to a tag and wait for button presses. Each press arrives as a
notification on the tag's custom characteristic (ffe1 in service ffe0).`,
	Example: `  tagctl button Blue
  tagctl button Blue --presses 1 --timeout 30s`,
	Args: cobra.ExactArgs(1),
	RunE: runButton,
}

var (
	buttonPresses int
	buttonTimeout time.Duration
)

func init() {
	buttonCmd.Flags().IntVarP(&buttonPresses, "presses", "p", 5, "Number of presses to wait for")
	buttonCmd.Flags().DurationVarP(&buttonTimeout, "timeout", "t", 0, "Maximum wait per press (0 waits until interrupted)")
}

func runButton(cmd *cobra.Command, args []string) error {
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
	return t.ListenButton(ctx, buttonPresses, buttonTimeout, p.Report)
}
