package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var alertCmd = &cobra.Command{
	Use:   "alert <tag>",
	Short: "Make a tag beep",
	Long: `Connect to a tag, report its battery level, then make it fast-beep through
the Immediate Alert service for the given duration.

Ctrl+C stops the beeping early; the alert is always switched off before disconnecting.`,
	Example: `  tagctl alert Blue
  tagctl alert Pink --duration 2s`,
	Args: cobra.ExactArgs(1),
	RunE: runAlert,
}

var alertDuration time.Duration

func init() {
	alertCmd.Flags().DurationVarP(&alertDuration, "duration", "d", 5*time.Second, "How long the tag beeps")
}

func runAlert(cmd *cobra.Command, args []string) error {
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

	p := &eventPrinter{w: env.out, alertFor: alertDuration}
	return t.Beep(ctx, alertDuration, p.Report)
}
