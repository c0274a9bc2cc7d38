package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/tagctl/internal/device"
	"github.com/srg/tagctl/scanner"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for iTags",
	Long: `Scan for iTags advertising nearby and report each one with its best signal.

By default a tag is admitted when its advertised name starts with "iTAG" and it
uses a public address. With --known only the configured tags are reported, each
once, as soon as it is first seen.`,
	Example: `  tagctl scan
  tagctl scan --known
  tagctl scan --duration 10s --format json`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

var (
	scanDuration   time.Duration
	scanFormat     string
	scanPrefix     string
	scanKnown      bool
	scanAnyAddress bool
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 0, "Scan duration (default from config, 5s)")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "", "Output format (table, json)")
	scanCmd.Flags().StringVar(&scanPrefix, "prefix", "", "Advertised name prefix (default from config, \"iTAG\")")
	scanCmd.Flags().BoolVarP(&scanKnown, "known", "k", false, "Only report configured tags, once each")
	scanCmd.Flags().BoolVar(&scanAnyAddress, "any-address", false, "Admit random addresses too")
}

// scanEntry is the JSON shape of one scan result
type scanEntry struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	RSSI    int    `json:"rssi"`
	Label   string `json:"label,omitempty"`
}

func runScan(cmd *cobra.Command, _ []string) error {
	env, err := newCommandEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	cfg := env.cfg
	if cmd.Flags().Changed("duration") {
		cfg.Scan.Duration = scanDuration
	}
	if cmd.Flags().Changed("prefix") {
		cfg.Scan.NamePrefix = scanPrefix
	}
	if cmd.Flags().Changed("format") {
		cfg.OutputFormat = scanFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	addrType, _ := device.ParseAddressType(cfg.Scan.AddressType)
	filter := scanner.Filter{
		NamePrefix:     cfg.Scan.NamePrefix,
		AddressType:    addrType,
		AnyAddressType: scanAnyAddress,
	}

	var opts []scanner.TableOption
	if scanKnown {
		opts = append(opts, scanner.WithKnown(env.labels), scanner.WithMerge(scanner.FirstSighting))
	}
	table := scanner.NewTable(filter, opts...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var progress *ProgressPrinter
	if w := progressWriter(); w != nil {
		progress = NewCountdownProgressPrinter(w, "Scanning for iTags", cfg.Scan.Duration)
		progress.Start()
		defer progress.Stop()
	}

	streamKnown := scanKnown && cfg.OutputFormat == "table"
	onChange := func(e scanner.Entry, ch scanner.Change) {
		if ch == scanner.Inserted && progress != nil {
			progress.Found()
		}
		if streamKnown {
			if progress != nil {
				fmt.Fprint(os.Stderr, clearLineSequence)
			}
			fmt.Fprintf(env.out, "Found iTag: %s (%s), RSSI: %d\n", okColor.Sprint(e.Label), e.Address, e.RSSI)
		}
	}

	sc := scanner.NewScanner(env.radio, env.logger)
	if err := scanner.Collect(ctx, sc, cfg.ScanParams(), table, onChange); err != nil {
		return err
	}
	if progress != nil {
		progress.Stop()
	}

	entries := table.Entries()
	for i := range entries {
		if entries[i].Label == "" {
			entries[i].Label = env.labels.Label(entries[i].Address)
		}
	}
	switch {
	case cfg.OutputFormat == "json":
		return displayEntriesJSON(env.out, entries)
	case streamKnown:
		if len(entries) == 0 {
			fmt.Fprintln(env.out, "No known iTags found")
		}
		return nil
	default:
		return displayEntriesTable(env.out, entries)
	}
}

func displayEntriesTable(out io.Writer, entries []scanner.Entry) error {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No iTags found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ADDRESS\tNAME\tBEST RSSI\tLABEL")
	for _, e := range entries {
		label := e.Label
		if label == "" {
			label = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d dBm\t%s\n", e.Address, strings.TrimSpace(e.Name), e.RSSI, label)
	}
	return w.Flush()
}

func displayEntriesJSON(out io.Writer, entries []scanner.Entry) error {
	list := make([]scanEntry, 0, len(entries))
	for _, e := range entries {
		list = append(list, scanEntry{
			Address: e.Address.String(),
			Name:    e.Name,
			RSSI:    e.RSSI,
			Label:   e.Label,
		})
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(list)
}
