package main

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/srg/tagctl/internal/device"
	"github.com/srg/tagctl/internal/testutils"
	"github.com/srg/tagctl/pkg/config"
)

// BlueTagAddress is the address of the "Blue" tag in the default configuration
const BlueTagAddress = "ff:ff:33:31:8a:76"

// CommandTestSuite extends MockBLEPeripheralSuite with command testing utilities.
// The CLI talks to the suite's fake radio instead of the platform one.
type CommandTestSuite struct {
	testutils.MockBLEPeripheralSuite

	Stderr *bytes.Buffer // stderr of the last ExecuteCommand

	origFactory func(*config.Config, *logrus.Logger) (device.Radio, error)
	origSettle  time.Duration
}

func (s *CommandTestSuite) SetupTest() {
	s.MockBLEPeripheralSuite.SetupTest()

	s.origFactory = radioFactory
	s.origSettle = settleDelay
	radioFactory = func(*config.Config, *logrus.Logger) (device.Radio, error) {
		return s.Radio, nil
	}
	settleDelay = 0
	color.NoColor = true
	resetFlags(rootCmd)
}

func (s *CommandTestSuite) TearDownTest() {
	radioFactory = s.origFactory
	settleDelay = s.origSettle
	s.MockBLEPeripheralSuite.TearDownTest()
}

// ExecuteCommand runs the root command with args, returns stdout and error
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, error) {
	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	s.Stderr = new(bytes.Buffer)
	rootCmd.SetErr(s.Stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// WriteConfig writes a YAML config file and returns its path
func (s *CommandTestSuite) WriteConfig(content string) string {
	path := filepath.Join(s.T().TempDir(), "tagctl.yaml")
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o600))
	return path
}

// resetFlags restores every flag to its default so test runs do not leak into each other
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
