package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/san-kum/ocptrans/internal/analysis"
	"github.com/san-kum/ocptrans/internal/config"
	"github.com/san-kum/ocptrans/internal/integrator"
	"github.com/san-kum/ocptrans/internal/metrics"
	"github.com/san-kum/ocptrans/internal/model"
	"github.com/san-kum/ocptrans/internal/shooting"
	"github.com/san-kum/ocptrans/internal/storage"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

var (
	dataDir string
	verbose bool

	configFile string
	preset     string
	solver     string
	control    string
	backend    string
	finalTime  float64
	nShooting  int
	steps      int
	degree     int
	threads    int

	jacobian bool
	save     bool
	asJSON   bool

	orderMethods []string
	orderTf      float64
	orderSteps   []int
	orderDegree  int
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	goodStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

var logger = zerolog.Nop()

// main registers the ocptrans commands and runs the root command, exiting
// with status 1 on error.
func main() {
	rootCmd := &cobra.Command{
		Use:           "ocptrans",
		Short:         "direct transcription integrators for optimal control",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.InfoLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
				Level(level).With().Timestamp().Logger()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".ocptrans", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	integrateCmd := &cobra.Command{
		Use:   "integrate [model]",
		Short: "integrate one finite element",
		Args:  cobra.ExactArgs(1),
		RunE:  runIntegrate,
	}
	phaseFlags(integrateCmd)
	integrateCmd.Flags().BoolVar(&jacobian, "jacobian", false, "print dxf/dx0")

	shootCmd := &cobra.Command{
		Use:   "shoot [model]",
		Short: "simulate a shooting phase and report continuity defects",
		Args:  cobra.ExactArgs(1),
		RunE:  runShoot,
	}
	phaseFlags(shootCmd)
	shootCmd.Flags().BoolVar(&save, "save", false, "store the run in the data directory")
	shootCmd.Flags().BoolVar(&asJSON, "json", false, "write the run as JSON to stdout")

	orderCmd := &cobra.Command{
		Use:   "order",
		Short: "estimate convergence order on x' = -x",
		RunE:  runOrder,
	}
	orderCmd.Flags().StringSliceVar(&orderMethods, "method", integrator.ListMethods(), "methods to study")
	orderCmd.Flags().Float64Var(&orderTf, "time", 1.0, "final time")
	orderCmd.Flags().IntSliceVar(&orderSteps, "steps", []int{2, 4, 8, 16}, "refinement levels")
	orderCmd.Flags().IntVar(&orderDegree, "degree", 2, "collocation degree")

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for model: %s\n", args[0])
				return nil
			}
			fmt.Println(titleStyle.Render("presets for " + args[0]))
			for _, p := range presets {
				cfg := config.GetPreset(args[0], p)
				fmt.Printf("  %s %s\n", labelStyle.Render(p),
					valueStyle.Render(fmt.Sprintf("%s %s N=%d T=%g", cfg.OdeSolver, cfg.ControlType, cfg.NShooting, cfg.FinalTime)))
			}
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list models",
		Run: func(cmd *cobra.Command, args []string) {
			reg := model.NewRegistry()
			for _, name := range reg.List() {
				sys, _ := reg.Get(name)
				fmt.Printf("  %s %s\n", labelStyle.Render(name),
					valueStyle.Render(fmt.Sprintf("nx=%d nu=%d np=%d", sys.StateDim(), sys.ControlDim(), sys.ParamDim())))
			}
		},
	}

	rootCmd.AddCommand(integrateCmd, shootCmd, orderCmd, presetsCmd, listCmd, modelsCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, warnStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func phaseFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().StringVar(&solver, "solver", "RK4", "ode solver (RK4, RK8, IRK)")
	cmd.Flags().StringVar(&control, "control", "constant", "control type (constant, linear_continuous)")
	cmd.Flags().StringVar(&backend, "backend", "dual", "derivative backend (dual, fd)")
	cmd.Flags().Float64Var(&finalTime, "time", config.DefaultFinalTime, "phase duration")
	cmd.Flags().IntVar(&nShooting, "shooting", config.DefaultShooting, "shooting intervals")
	cmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "explicit sub-steps per interval")
	cmd.Flags().IntVar(&degree, "degree", config.DefaultDegree, "collocation degree")
	cmd.Flags().IntVar(&threads, "threads", config.DefaultThreads, "parallel interval evaluations")
}

// resolveConfig layers the preset, the config file and explicit flags, in
// that order.
func resolveConfig(cmd *cobra.Command, name string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	cfg.Model = name

	if preset != "" {
		p := config.GetPreset(name, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(name))
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		cfg.Model = name
	}

	flags := cmd.Flags()
	if flags.Changed("solver") || cfg.OdeSolver == "" {
		cfg.OdeSolver = solver
	}
	if flags.Changed("control") || cfg.ControlType == "" {
		cfg.ControlType = control
	}
	if flags.Changed("backend") || cfg.Backend == "" {
		cfg.Backend = backend
	}
	if flags.Changed("time") || cfg.FinalTime == 0 {
		cfg.FinalTime = finalTime
	}
	if flags.Changed("shooting") || cfg.NShooting == 0 {
		cfg.NShooting = nShooting
	}
	if flags.Changed("steps") || cfg.Steps == 0 {
		cfg.Steps = steps
	}
	if flags.Changed("degree") || cfg.Degree == 0 {
		cfg.Degree = degree
	}
	if flags.Changed("threads") || cfg.NThreads == 0 {
		cfg.NThreads = threads
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup is a resolved model with its compiled interval integrator.
type setup struct {
	cfg    *config.Config
	sys    model.System
	integ  *integrator.Integrator
	x0     []float64
	params []float64
}

func buildSetup(cmd *cobra.Command, name string) (*setup, error) {
	cfg, err := resolveConfig(cmd, name)
	if err != nil {
		return nil, err
	}

	sys, err := model.NewRegistry().Get(name)
	if err != nil {
		return nil, err
	}
	if len(cfg.Constants) > 0 {
		c, ok := sys.(model.Configurable)
		if !ok {
			return nil, fmt.Errorf("model %s has no configurable constants", name)
		}
		for k, v := range cfg.Constants {
			if err := c.SetParam(k, v); err != nil {
				return nil, err
			}
		}
	}

	method, _ := cfg.Method()
	ct, _ := cfg.Control()
	b, _ := cfg.SymbolicBackend()
	cols, err := integrator.ControlColumns(ct)
	if err != nil {
		return nil, err
	}

	spec, params := model.Symbolic(sys, cols)
	integ, err := integrator.New(method, spec, integrator.OdeOptions{
		Model:                  model.IntegratorModel(sys),
		Tf:                     cfg.IntervalTime(),
		SymbolicType:           b,
		Params:                 params,
		ParamScaling:           cfg.ParamScaling,
		ControlType:            ct,
		NumberOfFiniteElements: cfg.Steps,
		CollocationDegree:      cfg.Degree,
	}, integrator.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	x0 := cfg.StateOr(sys.DefaultState())
	if len(x0) != sys.StateDim() {
		return nil, fmt.Errorf("init_state has %d entries, %s needs %d", len(x0), name, sys.StateDim())
	}
	if err := cfg.CheckControls(sys.ControlDim()); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	p := cfg.ParamsOr(sys.DefaultParams())
	if len(p) != sys.ParamDim() {
		return nil, fmt.Errorf("params has %d entries, %s needs %d", len(p), name, sys.ParamDim())
	}

	return &setup{cfg: cfg, sys: sys, integ: integ, x0: x0, params: p}, nil
}

func columnOrNil(v []float64) mat.Matrix {
	if len(v) == 0 {
		return nil
	}
	return mat.NewDense(len(v), 1, v)
}

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value)
}

func runIntegrate(cmd *cobra.Command, args []string) error {
	s, err := buildSetup(cmd, args[0])
	if err != nil {
		return err
	}

	cols, _ := integrator.ControlColumns(s.integ.ControlType())
	g, err := s.cfg.ControlGrid(s.sys.ControlDim(), cols, s.integ.ControlType() == integrator.LinearContinuous)
	if err != nil {
		return err
	}
	var u mat.Matrix
	if g != nil {
		u = g
	}

	x0 := mat.NewDense(len(s.x0), 1, s.x0)
	start := time.Now()
	xf, xall, err := s.integ.Call(x0, u, columnOrNil(s.params))
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	_, n := xall.Dims()
	lines := []string{
		titleStyle.Render(fmt.Sprintf("%s / %s", s.sys.Name(), s.integ.Method())),
		row("step time", fmt.Sprintf("%g", s.integ.StepTime())),
		row("step size", fmt.Sprintf("%g", s.integ.StepSize())),
		row("columns", fmt.Sprintf("%d", n)),
		row("x0", fmt.Sprintf("%.6g", s.x0)),
		row("xf", fmt.Sprintf("%.6g", mat.Col(nil, 0, xf))),
		row("elapsed", elapsed.String()),
	}
	fmt.Println(panelStyle.Render(strings.Join(lines, "\n")))

	if jacobian {
		jac, err := s.integ.Jacobian("xf", "x0", x0, u, columnOrNil(s.params))
		if err != nil {
			return err
		}
		fmt.Println(titleStyle.Render("dxf/dx0"))
		fmt.Printf("%.6g\n", mat.Formatted(jac, mat.Squeeze()))
	}
	return nil
}

func runShoot(cmd *cobra.Command, args []string) error {
	s, err := buildSetup(cmd, args[0])
	if err != nil {
		return err
	}

	phase, err := shooting.NewPhase(s.integ, s.cfg.NShooting, s.cfg.NThreads, shooting.WithLogger(logger))
	if err != nil {
		return err
	}
	controls, err := s.cfg.ControlGrid(s.sys.ControlDim(), phase.ControlNodes(), s.integ.ControlType() == integrator.LinearContinuous)
	if err != nil {
		return err
	}

	start := time.Now()
	traj, err := phase.Simulate(cmd.Context(), s.x0, controls, s.params)
	if err != nil {
		return err
	}
	defects, err := phase.Defects(traj.States, controls, s.params)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)
	maxDefect := shooting.MaxAbs(defects)

	meta := storage.RunMetadata{
		Model:       s.sys.Name(),
		Method:      s.integ.Method().String(),
		ControlType: s.integ.ControlType().String(),
		Backend:     s.cfg.Backend,
		FinalTime:   s.cfg.FinalTime,
		NShooting:   s.cfg.NShooting,
		Steps:       s.integ.Steps(),
		NThreads:    s.cfg.NThreads,
		Params:      s.params,
		Metrics: map[string]float64{
			"max_defect": maxDefect,
			"elapsed_ms": float64(elapsed.Microseconds()) / 1000,
		},
	}
	if s.integ.Method() == integrator.IRK {
		meta.Degree = s.cfg.Degree
	}
	ms := metrics.DefaultMetrics(s.sys, s.integ.QuaternionBlocks(), s.params)
	for name, v := range metrics.Evaluate(traj, controls, s.integ.ControlType(), defects, ms...) {
		meta.Metrics[name] = v
	}

	if asJSON {
		return storage.ExportJSON(os.Stdout, meta, traj.Times, traj.States, defects)
	}

	nx, nodes := traj.States.Dims()
	defectStyle := goodStyle
	if maxDefect > 1e-9 {
		defectStyle = warnStyle
	}
	lines := []string{
		titleStyle.Render(fmt.Sprintf("%s / %s / %s", meta.Model, meta.Method, meta.ControlType)),
		row("intervals", fmt.Sprintf("%d x %g", s.cfg.NShooting, s.integ.StepTime())),
		row("nodes", fmt.Sprintf("%d x %d", nx, nodes)),
		row("final state", fmt.Sprintf("%.6g", mat.Col(nil, nodes-1, traj.States))),
		labelStyle.Render("max defect") + defectStyle.Render(fmt.Sprintf("%.3e", maxDefect)),
		row("elapsed", elapsed.String()),
	}
	for _, m := range ms {
		lines = append(lines, row(m.Name(), fmt.Sprintf("%.4g", meta.Metrics[m.Name()])))
	}
	fmt.Println(panelStyle.Render(strings.Join(lines, "\n")))

	if save {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(meta, traj.Times, traj.States)
		if err != nil {
			return err
		}
		logger.Info().Str("run", runID).Str("dir", dataDir).Msg("run saved")
	}
	return nil
}

func runOrder(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METHOD\tSTEPS\tH\tERROR")

	orders := make([]string, 0, len(orderMethods))
	for _, name := range orderMethods {
		if err := ctx.Err(); err != nil {
			return err
		}
		method, err := integrator.ParseMethod(name)
		if err != nil {
			return err
		}
		res, err := analysis.DecayStudy(method, orderTf, orderSteps, orderDegree)
		if err != nil {
			return err
		}
		for _, pt := range res.Points {
			fmt.Fprintf(w, "%s\t%d\t%.4g\t%.3e\n", method, pt.Steps, pt.StepSize, pt.Error)
		}
		orders = append(orders, row(method.String(), fmt.Sprintf("%.3f", res.Order)))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(titleStyle.Render("estimated order"))
	fmt.Println(strings.Join(orders, "\n"))
	return nil
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
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tSOLVER\tCONTROL\tN\tT\tMAX DEFECT")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%.2fs\t%.3e\n",
			run.ID,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Method,
			run.ControlType,
			run.NShooting,
			run.FinalTime,
			run.Metrics["max_defect"],
		)
	}

	return w.Flush()
}
