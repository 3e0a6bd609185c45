package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/physloop/internal/config"
	"github.com/san-kum/physloop/internal/experiment"
	"github.com/san-kum/physloop/internal/storage"
	"github.com/san-kum/physloop/internal/viz"
)

var (
	dataDir  string
	logLevel string

	configFile string
	preset     string

	scenario      string
	integrator    string
	frames        int
	bodies        int
	scenes        int
	seed          int64
	multithreaded bool
	fixedStep     float32
	maxSubSteps   int
	realtime      bool

	benchFrames int
	benchSeed   int64

	outFile  string
	savePath string
	svgPath  string
)

// main registers the physloop commands and exits non-zero when one fails.
func main() {
	rootCmd := &cobra.Command{
		Use:          "physloop",
		Short:        "fixed-step physics scheduling lab",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logrus.SetLevel(lvl)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".physloop", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a headless experiment and store its cycles",
		Args:  cobra.NoArgs,
		RunE:  runExperiment,
	}
	addRunFlags(runCmd)

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "drive an experiment from the terminal frame clock",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addRunFlags(liveCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot substeps, budget and latency of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&svgPath, "svg", "", "also write the charts to this svg file")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "run every preset and compare scheduling behaviour",
		Args:  cobra.NoArgs,
		RunE:  benchPresets,
	}
	benchCmd.Flags().IntVar(&benchFrames, "frames", 120, "frames per preset")
	benchCmd.Flags().Int64Var(&benchSeed, "seed", 1, "random seed")

	presetsCmd := &cobra.Command{
		Use:   "presets [name]",
		Short: "list presets or write one as a config file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showPresets,
	}
	presetsCmd.Flags().StringVar(&savePath, "save", "", "write the named preset to this yaml file")

	rootCmd.AddCommand(runCmd, liveCmd, listCmd, plotCmd, exportCmd, benchCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().StringVar(&scenario, "scenario", config.DefaultScenario, "scenario")
	cmd.Flags().StringVar(&integrator, "integrator", config.DefaultIntegrator, "integrator")
	cmd.Flags().IntVar(&frames, "frames", config.DefaultFrames, "frames to run")
	cmd.Flags().IntVar(&bodies, "bodies", config.DefaultBodies, "bodies per scene")
	cmd.Flags().IntVar(&scenes, "scenes", config.DefaultScenes, "number of scenes")
	cmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")
	cmd.Flags().BoolVar(&multithreaded, "multithreaded", false, "step on a worker goroutine")
	cmd.Flags().Float32Var(&fixedStep, "fixed-step", config.DefaultFixedStep, "fixed step in seconds")
	cmd.Flags().IntVar(&maxSubSteps, "max-substeps", config.DefaultMaxSubSteps, "substep cap per cycle")
	cmd.Flags().BoolVar(&realtime, "realtime", false, "pace frames against the wall clock")
}

// loadConfig layers defaults, preset, config file and changed flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		if !cmd.Flags().Changed("log-level") {
			if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
				logrus.SetLevel(lvl)
			}
		}
	}

	f := cmd.Flags()
	if f.Changed("scenario") {
		cfg.Run.Scenario = scenario
	}
	if f.Changed("integrator") {
		cfg.Run.Integrator = integrator
	}
	if f.Changed("frames") {
		cfg.Run.Frames = frames
	}
	if f.Changed("bodies") {
		cfg.Run.Bodies = bodies
	}
	if f.Changed("scenes") {
		cfg.Run.Scenes = scenes
	}
	if f.Changed("seed") || cfg.Run.Seed == 0 {
		cfg.Run.Seed = seed
	}
	if f.Changed("multithreaded") {
		cfg.Physics.Multithreaded = multithreaded
	}
	if f.Changed("fixed-step") {
		cfg.Physics.FixedStep = fixedStep
	}
	if f.Changed("max-substeps") {
		cfg.Physics.MaxSubSteps = maxSubSteps
	}
	if f.Changed("realtime") {
		cfg.Run.Realtime = realtime
	}
	cfg.Normalize()
	return cfg, nil
}

func runExperiment(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	exp, err := experiment.New(cfg, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("running %s (%s, %d scenes x %d bodies)...\n", cfg.Run.Scenario, modeName(cfg), cfg.Run.Scenes, cfg.Run.Bodies)
	res, runErr := exp.Run(ctx)
	if res == nil {
		return runErr
	}

	meta := storage.RunMetadata{
		Scenario:    res.Scenario,
		Mode:        res.Mode,
		Integrator:  res.Integrator,
		Preset:      preset,
		Seed:        cfg.Run.Seed,
		FixedStep:   float64(cfg.Physics.FixedStep),
		MaxSubSteps: cfg.Physics.MaxSubSteps,
		Scenes:      cfg.Run.Scenes,
		Bodies:      res.Bodies,
		Frames:      res.Frames,
		WallSeconds: res.Wall.Seconds(),
		Events:      res.Events,
		Metrics:     res.Metrics,
	}
	runID, err := st.Save(meta, storage.FromReports(res.Cycles))
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", res.Wall.Round(time.Millisecond))
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("frames: %d  cycles: %d  bodies: %d  events: %d\n", res.Frames, len(res.Cycles), res.Bodies, res.Events)
	fmt.Printf("dropped: %.4fs  checksum: %.6f\n", res.Dropped, res.Checksum)
	fmt.Println("\nmetrics:")
	printMetrics(os.Stdout, res.Metrics)

	return runErr
}

func modeName(cfg *config.Config) string {
	switch {
	case !cfg.Physics.Multithreaded:
		return "sync"
	case cfg.Physics.ExclusiveSceneUpdate:
		return "async-exclusive"
	}
	return "async"
}

func printMetrics(w io.Writer, m map[string]float64) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, name := range sortedKeys(m) {
		fmt.Fprintf(tw, "  %s\t%.6f\n", name, m[name])
	}
	tw.Flush()
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	exp, err := experiment.New(cfg, nil)
	if err != nil {
		return err
	}
	// keep log lines from tearing the alt screen
	logrus.SetOutput(io.Discard)
	return viz.Run(context.Background(), exp, filepath.Join(dataDir, "snapshots"))
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tMODE\tTIME\tSTEP\tCAP\tFRAMES\tSUBSTEPS\tDROPPED")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.4fs\t%d\t%d\t%.2f\t%.3fs\n",
			run.ID,
			run.Scenario,
			run.Mode,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.FixedStep,
			run.MaxSubSteps,
			run.Frames,
			run.Metrics["substeps_per_cycle"],
			run.Metrics["dropped_time"],
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	cycles, err := st.LoadCycles(runID)
	if err != nil {
		return err
	}
	if len(cycles) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scenario: %s (%s)\n", meta.Scenario, meta.Mode)
	fmt.Printf("cycles: %d\n\n", len(cycles))

	substeps := make([]float64, len(cycles))
	budget := make([]float64, len(cycles))
	latency := make([]float64, len(cycles))
	for i, c := range cycles {
		substeps[i] = float64(c.Substeps)
		budget[i] = c.Budget
		latency[i] = c.LatencyMs
	}

	series := []struct {
		caption string
		data    []float64
	}{
		{"substeps per cycle", substeps},
		{"budget at cycle start (s)", budget},
		{"cycle latency (ms)", latency},
	}
	for _, s := range series {
		fmt.Println(asciigraph.Plot(s.data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.LowerBound(0),
			asciigraph.Caption(s.caption),
		))
		fmt.Println()
	}

	if svgPath == "" {
		return nil
	}
	f, err := os.Create(svgPath)
	if err != nil {
		return err
	}
	colors := []string{"#00ff88", "#00ccff", "#ffcc00"}
	out := make([]viz.Series, len(series))
	for i, s := range series {
		out[i] = viz.Series{Name: s.caption, Values: s.data, Color: colors[i]}
	}
	if err := viz.WriteSeriesSVG(f, out, 800, 160); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", svgPath)
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	if outFile == "" {
		return st.Export(args[0], os.Stdout)
	}

	f, err := os.Create(outFile)
	if err != nil {
		return err
	}
	if err := st.Export(args[0], f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("exported %s to %s\n", args[0], outFile)
	return nil
}

func benchPresets(cmd *cobra.Command, args []string) error {
	fmt.Printf("benchmarking presets (%d frames each)\n\n", benchFrames)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tMODE\tCYCLES\tSUBSTEPS\tSATURATION\tLATENCY\tDROPPED\tWALL")

	for _, name := range config.ListPresets() {
		cfg := config.GetPreset(name)
		cfg.Run.Frames = benchFrames
		cfg.Run.Seed = benchSeed

		exp, err := experiment.New(cfg, nil)
		if err != nil {
			return err
		}
		res, err := exp.Run(context.Background())
		if err != nil {
			return fmt.Errorf("preset %s: %w", name, err)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%.1f%%\t%.3fms\t%.3fs\t%v\n",
			name,
			res.Mode,
			len(res.Cycles),
			res.Metrics["substeps_per_cycle"],
			res.Metrics["saturation"]*100,
			res.Metrics["cycle_latency_ms"],
			res.Dropped,
			res.Wall.Round(time.Millisecond),
		)
	}
	return w.Flush()
}

func showPresets(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		cfg := config.GetPreset(args[0])
		if cfg == nil {
			return fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets())
		}
		if savePath != "" {
			if err := config.Save(savePath, cfg); err != nil {
				return err
			}
			fmt.Printf("wrote %s to %s\n", args[0], savePath)
			return nil
		}
		describePreset(os.Stdout, args[0], cfg)
		return nil
	}
	if savePath != "" {
		return fmt.Errorf("--save needs a preset name")
	}

	fmt.Println("presets:")
	for _, name := range config.ListPresets() {
		describePreset(os.Stdout, name, config.GetPreset(name))
	}
	return nil
}

func describePreset(w io.Writer, name string, cfg *config.Config) {
	p := cfg.Physics
	fmt.Fprintf(w, "  %-10s %-16s step=%.4fs cap=%d scenario=%s scenes=%d bodies=%d\n",
		name, modeName(cfg), p.FixedStep, p.MaxSubSteps, cfg.Run.Scenario, cfg.Run.Scenes, cfg.Run.Bodies)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
