// Command pgtselftest runs the concrete end-to-end scenarios an ARM LPAE
// page-table allocator is expected to satisfy against one or more
// configured address-space domains, reporting pass/fail per scenario. The
// universal properties are checked by the pgtable package's own tests, not
// by this driver. It exists purely as a driver over the public
// pgtable API — the core package itself never depends on this binary or
// anything it imports.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&runCmd{}, "")
	subcommands.Register(&listCmd{}, "")
	subcommands.Register(&benchCmd{}, "")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}

type runCmd struct {
	configPath string
	verbose    bool
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "run scenarios against every domain in a TOML config" }
func (*runCmd) Usage() string {
	return "run -config <path> [-v]\n  runs every [[domain]]'s scenarios and exits non-zero on any failure.\n"
}

func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "path to a scenario TOML file")
	f.BoolVar(&c.verbose, "v", false, "log every passing scenario, not just failures")
}

func (c *runCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	log := logrus.New()
	if !c.verbose {
		log.SetLevel(logrus.WarnLevel)
	}

	if c.configPath == "" {
		log.Error("pgtselftest run: -config is required")
		return subcommands.ExitUsageError
	}

	cfg, err := loadConfig(c.configPath)
	if err != nil {
		log.Error(err)
		return subcommands.ExitFailure
	}

	results, err := runAll(ctx, cfg, log)
	if err != nil {
		log.Error(err)
		return subcommands.ExitFailure
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Printf("FAIL %s/%s: %v\n", r.Domain, r.Scenario, r.Err)
		}
	}
	fmt.Printf("%d scenario(s) run, %d failed\n", len(results), failed)
	if failed > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type listCmd struct{}

func (*listCmd) Name() string             { return "list" }
func (*listCmd) Synopsis() string         { return "list every known scenario name" }
func (*listCmd) Usage() string            { return "list\n" }
func (*listCmd) SetFlags(f *flag.FlagSet) {}

func (*listCmd) Execute(context.Context, *flag.FlagSet, ...interface{}) subcommands.ExitStatus {
	for _, s := range allScenarios {
		fmt.Println(s.Name)
	}
	return subcommands.ExitSuccess
}

type benchCmd struct {
	configPath string
	iterations int
}

func (*benchCmd) Name() string     { return "bench" }
func (*benchCmd) Synopsis() string { return "time each scenario over several iterations" }
func (*benchCmd) Usage() string {
	return "bench -config <path> [-n <iterations>]\n"
}

func (c *benchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "path to a scenario TOML file")
	f.IntVar(&c.iterations, "n", 10, "iterations per scenario")
}

func (c *benchCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	if c.configPath == "" {
		fmt.Fprintln(os.Stderr, "pgtselftest bench: -config is required")
		return subcommands.ExitUsageError
	}
	cfg, err := loadConfig(c.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	for _, d := range cfg.Domain {
		names := d.Scenarios
		if len(names) == 0 {
			for _, s := range allScenarios {
				names = append(names, s.Name)
			}
		}
		for _, name := range names {
			s, ok := scenarioByName(name)
			if !ok {
				continue
			}
			var total time.Duration
			for i := 0; i < c.iterations; i++ {
				h, err := buildHandle(d)
				if err != nil {
					fmt.Fprintf(os.Stderr, "%s/%s: %v\n", d.Name, name, err)
					continue
				}
				start := time.Now()
				_ = s.Run(h)
				total += time.Since(start)
				h.Free()
			}
			fmt.Printf("%s/%s: avg %v over %d runs\n", d.Name, name, total/time.Duration(c.iterations), c.iterations)
		}
	}
	return subcommands.ExitSuccess
}
