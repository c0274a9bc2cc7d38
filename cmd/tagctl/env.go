package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/tagctl/internal/device"
	goble "github.com/srg/tagctl/internal/device/go-ble"
	"github.com/srg/tagctl/internal/tracer"
	"github.com/srg/tagctl/pkg/config"
	"github.com/srg/tagctl/tag"
)

// radioFactory creates the platform radio. Tests replace it with a fake.
var radioFactory = func(cfg *config.Config, logger *logrus.Logger) (device.Radio, error) {
	return goble.NewRadio(cfg.ScanParams(), logger)
}

// settleDelay is the pause a flow takes before disconnecting
var settleDelay = 500 * time.Millisecond

// commandEnv is what every subcommand needs once flags are parsed
type commandEnv struct {
	cfg    *config.Config
	logger *logrus.Logger
	radio  device.Radio
	labels tag.Labels
	out    io.Writer

	shutdownTracer func(context.Context) error
}

func newCommandEnv(cmd *cobra.Command) (*commandEnv, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logger, err := configureLogger(cmd, cfg, "verbose")
	if err != nil {
		return nil, err
	}
	known, err := cfg.KnownTags()
	if err != nil {
		return nil, err
	}

	if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
		color.NoColor = true
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	shutdown, err := tracer.Setup(cmd.Context(), cfg.Tracing)
	if err != nil {
		return nil, err
	}

	radio, err := radioFactory(cfg, logger)
	if err != nil {
		_ = shutdown(context.Background())
		return nil, fmt.Errorf("failed to open BLE radio: %w", err)
	}

	return &commandEnv{
		cfg:            cfg,
		logger:         logger,
		radio:          radio,
		labels:         known,
		out:            cmd.OutOrStdout(),
		shutdownTracer: shutdown,
	}, nil
}

// target resolves a tag argument given as an address or a label
func (e *commandEnv) target(arg string) (*tag.Tag, error) {
	addr, label, ok := e.labels.Resolve(arg)
	if !ok {
		return nil, fmt.Errorf("%w %q: use an address or one of %v", ErrUnknownTag, arg, e.labels.Names())
	}
	t := tag.New(e.radio, addr, label, e.cfg.Session, e.logger)
	t.Settle = settleDelay
	return t, nil
}

func (e *commandEnv) Close() {
	if err := e.shutdownTracer(context.Background()); err != nil {
		e.logger.WithError(err).Warn("Failed to flush traces")
	}
}
