// Command ephysinfo prints the metrics each protocol kind reports and the
// configuration they are computed with.
//
// Usage:
//
//	ephysinfo [flags] [kind ...]
//
// Without arguments it prints the metrics of every kind.
//
// Examples:
//
//	ephysinfo iv
//	ephysinfo -config ephys.yaml ahp sag
//	ephysinfo -config ephys.yaml -show-config
//	ephysinfo -list
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"gopkg.in/yaml.v2"

	"github.com/cwbudde/algo-ephys/params"
	"github.com/cwbudde/algo-ephys/protocol"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ephysinfo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "YAML configuration file")
	list := fs.Bool("list", false, "list available protocol kinds")
	showConfig := fs.Bool("show-config", false, "print the effective configuration as YAML")
	hooks := fs.Bool("hooks", false, "rescale current-step tables given in fA")
	verbose := fs.Bool("v", false, "log at debug level")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: ephysinfo [flags] [kind ...]\n\n")
		fmt.Fprintf(stderr, "Prints the metrics reported by each protocol kind.\n")
		fmt.Fprintf(stderr, "Without arguments, prints the metrics of every kind.\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nEnvironment variables prefixed with %s_ override the file.\n", params.EnvPrefix)
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if *list {
		for _, k := range protocol.Kinds() {
			fmt.Fprintln(stdout, k)
		}
		return 0
	}

	cfg, err := params.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", slog.String("path", *configPath), slog.Any("err", err))
		return 1
	}
	if *hooks {
		params.AdjustStepUnits(&cfg, logger)
	}
	logger.Debug("configuration loaded", slog.String("path", *configPath))

	if *showConfig {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			logger.Error("failed to encode configuration", slog.Any("err", err))
			return 1
		}
		if _, err := stdout.Write(out); err != nil {
			return 1
		}
		return 0
	}

	kinds, ok := resolveKinds(fs.Args(), logger)
	if !ok {
		return 1
	}
	if err := printSchemas(stdout, kinds, cfg); err != nil {
		logger.Error("failed to write output", slog.Any("err", err))
		return 1
	}
	return 0
}

// resolveKinds parses names, skipping unknown ones with a warning. No
// names selects every kind.
func resolveKinds(names []string, logger *slog.Logger) ([]protocol.Kind, bool) {
	if len(names) == 0 {
		return protocol.Kinds(), true
	}
	var kinds []protocol.Kind
	for _, name := range names {
		k, err := protocol.ParseKind(name)
		if err != nil {
			logger.Warn("unknown protocol kind (use -list to see available)", slog.String("kind", name))
			continue
		}
		kinds = append(kinds, k)
	}
	if len(kinds) == 0 {
		logger.Error("no matching protocol kinds")
		return nil, false
	}
	return kinds, true
}

func printSchemas(w io.Writer, kinds []protocol.Kind, cfg protocol.Config) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintf(tw, "Protocol\tMetric\tDescription\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(tw, "--------\t------\t-----------\n"); err != nil {
		return err
	}
	for _, k := range kinds {
		schema, err := protocol.Provides(k, cfg)
		if err != nil {
			return err
		}
		for _, key := range schema.Keys() {
			if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\n", k, key, schema[key]); err != nil {
				return err
			}
		}
	}
	return tw.Flush()
}
