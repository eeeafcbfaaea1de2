package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesim/datarecording"
	"github.com/sarchlab/cachesim/mem/hierarchy"
	"github.com/sarchlab/cachesim/mem/mem"
	"github.com/sarchlab/cachesim/mem/trace"
	"github.com/sarchlab/cachesim/mem/workload"
	"github.com/sarchlab/cachesim/monitoring"
	"github.com/sarchlab/cachesim/sim"
)

type runOptions struct {
	configPath  string
	tracePath   string
	sequential  bool
	record      string
	monitor     bool
	monitorPort int
	openBrowser bool
	maxCycles   uint64
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run [trace]",
	Short: "Replay a trace through the cache hierarchy.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := runOpts
		if len(args) == 1 {
			opts.tracePath = args[0]
		}

		opts.configPath = configPathFromEnv(opts.configPath)

		return runSimulation(cmd.Context(), opts, cmd.OutOrStdout())
	},
}

func init() {
	flags := runCmd.Flags()
	flags.StringVar(&runOpts.configPath, "config", "",
		"Hierarchy configuration file. Defaults to $CACHESIM_CONFIG, "+
			"then to the built-in two-level hierarchy.")
	flags.StringVar(&runOpts.tracePath, "trace", "", "Trace file to replay.")
	flags.BoolVar(&runOpts.sequential, "sequential", false,
		"Serve each access to completion before the next one.")
	flags.StringVar(&runOpts.record, "record", "",
		"Record accesses and level statistics into <name>.sqlite3.")
	flags.BoolVar(&runOpts.monitor, "monitor", false,
		"Serve the state of the simulation over HTTP.")
	flags.IntVar(&runOpts.monitorPort, "monitor-port", 0,
		"Port of the monitoring server. Zero picks a free port.")
	flags.BoolVar(&runOpts.openBrowser, "open-browser", false,
		"Open the monitoring page in the default browser.")
	flags.Uint64Var(&runOpts.maxCycles, "max-cycles", 0,
		"Stop with an error after this many cycles. Zero means no limit.")

	rootCmd.AddCommand(runCmd)
}

func configPathFromEnv(path string) string {
	if path != "" {
		return path
	}

	return os.Getenv("CACHESIM_CONFIG")
}

func loadConfig(path string) (hierarchy.Config, error) {
	if path == "" {
		return hierarchy.DefaultConfig(), nil
	}

	cfg, err := hierarchy.LoadConfig(path)
	if err != nil {
		return cfg, fmt.Errorf("loading %s: %w", path, err)
	}

	return cfg, nil
}

func loadRequests(path string) ([]*mem.Request, error) {
	if path == "" {
		return nil, fmt.Errorf("no trace file given")
	}

	reqs, malformed, err := workload.LoadTrace(path, sim.NewSequentialIDGenerator())
	if err != nil {
		return nil, err
	}

	for _, e := range malformed {
		logrus.Warn(e)
	}

	logrus.WithFields(logrus.Fields{
		"trace":     path,
		"requests":  len(reqs),
		"malformed": len(malformed),
	}).Info("trace loaded")

	return reqs, nil
}

func runSimulation(ctx context.Context, opts runOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	reqs, err := loadRequests(opts.tracePath)
	if err != nil {
		return err
	}

	var recorder datarecording.DataRecorder
	if opts.record != "" {
		recorder = datarecording.New(opts.record)
		defer recorder.Close()
	}

	builder := hierarchy.MakeBuilder().WithConfig(cfg)

	if opts.sequential {
		return runSequential(ctx, builder, reqs, recorder, out)
	}

	return runParallel(ctx, builder, reqs, opts, recorder, out)
}

func runSequential(
	ctx context.Context,
	builder hierarchy.Builder,
	reqs []*mem.Request,
	recorder datarecording.DataRecorder,
	out io.Writer,
) error {
	h, err := builder.BuildSequential("cachesim")
	if err != nil {
		return err
	}

	h.AcceptHook(trace.NewLogTracer(logrus.StandardLogger(), h))

	if recorder != nil {
		h.AcceptHook(trace.NewDBTracer(recorder, h))
	}

	total, err := h.Replay(ctx, reqs)
	if err != nil {
		return err
	}

	writeReport(out, h.Levels(), "total latency", total)
	recordLevels(recorder, h.Levels())

	return nil
}

func runParallel(
	ctx context.Context,
	builder hierarchy.Builder,
	reqs []*mem.Request,
	opts runOptions,
	recorder datarecording.DataRecorder,
	out io.Writer,
) error {
	h, err := builder.BuildParallel("cachesim")
	if err != nil {
		return err
	}

	h.AcceptHook(trace.NewLogTracer(logrus.StandardLogger(), h))

	if recorder != nil {
		h.AcceptHook(trace.NewDBTracer(recorder, h))
	}

	runner := hierarchy.NewRunner(h)
	runner.MaxCycles = sim.Cycle(opts.maxCycles)

	if opts.monitor {
		startMonitor(runner, len(reqs), opts)
	}

	elapsed, err := runner.Run(ctx, reqs)
	if err != nil {
		return err
	}

	writeReport(out, h.Levels(), "elapsed cycles", uint64(elapsed))
	recordLevels(recorder, h.Levels())

	return nil
}

func startMonitor(runner *hierarchy.Runner, numReqs int, opts runOptions) {
	m := monitoring.NewMonitor().WithPortNumber(opts.monitorPort)
	m.RegisterTarget(runner)

	bar := m.CreateProgressBar("requests", uint64(numReqs))
	runner.Hierarchy().AcceptHook(monitoring.ProgressHook(bar))

	m.StartServer()

	if opts.openBrowser {
		if err := m.OpenInBrowser(); err != nil {
			logrus.WithError(err).Warn("cannot open the monitoring page")
		}
	}
}
