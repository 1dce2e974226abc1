package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/spf13/cobra"

	"github.com/edp1096/toy-mor/internal/config"
	"github.com/edp1096/toy-mor/pkg/analysis"
	"github.com/edp1096/toy-mor/pkg/matrix"
	"github.com/edp1096/toy-mor/pkg/mna"
	"github.com/edp1096/toy-mor/pkg/netlist"
	"github.com/edp1096/toy-mor/pkg/reduce"
	"github.com/edp1096/toy-mor/pkg/sta"
	"github.com/edp1096/toy-mor/pkg/symbolic"
	"github.com/edp1096/toy-mor/pkg/util"
)

type formulateOptions struct {
	method, inductors string
	in, out           string
	at                float64
	estimate          bool
}

func newFormulateCmd() *cobra.Command {
	var o formulateOptions
	cmd := &cobra.Command{
		Use:   "formulate [netlist]",
		Short: "Print the symbolic equation system of a netlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFormulate(cmd, args[0], o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.method, "method", "mna", "formulation (mna|sta)")
	f.StringVar(&o.inductors, "inductors", "admittance", "MNA inductor stamping form (admittance|branch)")
	f.StringVar(&o.in, "in", "", "input unknown for the transfer function")
	f.StringVar(&o.out, "out", "", "output unknown for the transfer function")
	f.Float64Var(&o.at, "at", 0, "also print and solve the numeric system at this frequency in Hz")
	f.BoolVar(&o.estimate, "estimate", false, "print det(A) with every symbol set to 1")
	return cmd
}

type sweepOptions struct {
	method, in, out string
	start, stop     float64
	points          int
	grid            string
	solver, plot    string
}

func newSweepCmd() *cobra.Command {
	var o sweepOptions
	cmd := &cobra.Command{
		Use:   "sweep [netlist]",
		Short: "Evaluate a transfer function over a frequency grid",
		Long:  `Evaluates x[out]/x[in] by numeric solves. The grid defaults to the netlist .ac card.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, args[0], o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.method, "method", "mna", "formulation (mna|sta)")
	f.StringVar(&o.in, "in", "", "input unknown")
	f.StringVar(&o.out, "out", "", "output unknown")
	f.Float64Var(&o.start, "start", 1, "start frequency in Hz")
	f.Float64Var(&o.stop, "stop", 1e6, "stop frequency in Hz")
	f.IntVar(&o.points, "points", 61, "number of points")
	f.StringVar(&o.grid, "type", "DEC", "grid type (DEC|OCT|LIN)")
	f.StringVar(&o.solver, "solver", "dense", "linear solver (dense|sparse)")
	f.StringVar(&o.plot, "plot", "", "write a Bode plot PNG")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

type reduceOptions struct {
	job           string
	in, out       string
	policy        string
	workers       int
	plot          string
	showRetained  bool
	noTransferFun bool
}

func newReduceCmd() *cobra.Command {
	var o reduceOptions
	cmd := &cobra.Command{
		Use:   "reduce [netlist]",
		Short: "Remove the least relevant terms of the system matrix under an error budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReduce(cmd, args[0], o)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.job, "config", "c", "", "reduction job YAML")
	f.StringVar(&o.in, "in", "", "override the job input unknown")
	f.StringVar(&o.out, "out", "", "override the job output unknown")
	f.StringVar(&o.policy, "policy", "", "override the elimination policy (tbt|block)")
	f.IntVar(&o.workers, "workers", 0, "override the scoring worker count")
	f.StringVar(&o.plot, "plot", "", "override the Bode plot path")
	f.BoolVar(&o.showRetained, "retained", false, "also list the terms that were kept")
	f.BoolVar(&o.noTransferFun, "no-tf", false, "skip the symbolic transfer function of the reduced system")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func formulate(path, method, inductors string) (*netlist.Netlist, *mna.System, error) {
	nl, err := netlist.ParseFile(path)
	if err != nil {
		return nil, nil, err
	}
	var sys *mna.System
	switch method {
	case "sta":
		sys, err = sta.Formulate(nl.Circuit)
	case "mna", "":
		var opts []mna.Option
		switch inductors {
		case "branch":
			opts = append(opts, mna.WithInductorBranches())
		case "admittance", "":
		default:
			return nil, nil, fmt.Errorf("unknown inductor form %q", inductors)
		}
		sys, err = mna.Formulate(nl.Circuit, opts...)
	default:
		return nil, nil, fmt.Errorf("unknown formulation %q", method)
	}
	if err != nil {
		return nil, nil, err
	}
	slog.Debug("formulated", "title", nl.Title, "method", method, "unknowns", sys.Size())
	return nl, sys, nil
}

func solverFor(name string) (matrix.Factorizer, error) {
	switch name {
	case "dense", "":
		return matrix.DenseLU{}, nil
	case "sparse":
		return matrix.SparseLU{}, nil
	}
	return nil, fmt.Errorf("unknown solver %q", name)
}

func runFormulate(cmd *cobra.Command, path string, o formulateOptions) error {
	w := cmd.OutOrStdout()
	nl, sys, err := formulate(path, o.method, o.inductors)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s\n", nl.Title)
	sys.Print(w)

	fmt.Fprintln(w, "Values:")
	for _, e := range nl.Circuit.Elements {
		if p := e.Value(); p.IsSymbolic() {
			fmt.Fprintf(w, "  %s = %s\n", p.Symbol, util.FormatComplexValue(p.Value, ""))
		}
	}

	if o.estimate {
		n, err := symbolic.EstimateTerms(sys.A)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Term estimate: %g\n", n)
	}

	if o.at > 0 {
		if err := printNumeric(w, sys, o.at); err != nil {
			return err
		}
	}

	if o.in != "" && o.out != "" {
		in, err := sys.Unknown(o.in)
		if err != nil {
			return err
		}
		out, err := sys.Unknown(o.out)
		if err != nil {
			return err
		}
		tf, err := symbolic.TransferFunction(sys.A, sys.Z, in, out)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "H(s) = %s / %s = %s\n", sys.X[out], sys.X[in], tf)
	}
	return nil
}

// printNumeric binds the system at s = j·2πf, prints its equations and the
// solution.
func printNumeric(w io.Writer, sys *mna.System, freq float64) error {
	if sys.Size() == 0 {
		return nil
	}
	ev, err := analysis.NewEvaluator(sys.A, sys.Z, sys.Values, []float64{2 * math.Pi * freq}, 0, 0)
	if err != nil {
		return err
	}
	a, z := ev.At(0)
	fmt.Fprintf(w, "At %s:\n", util.FormatFrequency(ev.Omegas()[0]/(2*math.Pi)))
	a.PrintSystem(w, sys.X, z)

	x, err := ev.Solve(0)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Solution:")
	for i, v := range x {
		fmt.Fprintf(w, "  %s = %s\n", sys.X[i], util.FormatComplexValue(v, ""))
	}
	return nil
}

func runSweep(cmd *cobra.Command, path string, o sweepOptions) error {
	nl, sys, err := formulate(path, o.method, "admittance")
	if err != nil {
		return err
	}
	if nl.AC != nil {
		flags := cmd.Flags()
		if !flags.Changed("start") {
			o.start = nl.AC.FStart
		}
		if !flags.Changed("stop") {
			o.stop = nl.AC.FStop
		}
		if !flags.Changed("points") {
			o.points = nl.AC.Points
		}
		if !flags.Changed("type") {
			o.grid = nl.AC.Sweep
		}
	}

	solver, err := solverFor(o.solver)
	if err != nil {
		return err
	}
	freqs, err := analysis.Frequencies(o.start, o.stop, o.points, o.grid)
	if err != nil {
		return err
	}
	in, err := sys.Unknown(o.in)
	if err != nil {
		return err
	}
	out, err := sys.Unknown(o.out)
	if err != nil {
		return err
	}

	r, err := analysis.Sweep(sys.A, sys.Z, sys.Values, analysis.HzToRad(freqs), in, out, analysis.WithSolver(solver))
	if err != nil {
		return err
	}
	r.Name = sys.X[out]
	analysis.WriteTable(cmd.OutOrStdout(), r)

	if o.plot != "" {
		return analysis.SaveBode(o.plot, nl.Title, r)
	}
	return nil
}

func loadJob(cmd *cobra.Command, o reduceOptions) (*config.Job, error) {
	job, err := config.Load(o.job)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("in") {
		job.Input = o.in
	}
	if flags.Changed("out") {
		job.Output = o.out
	}
	if flags.Changed("policy") {
		job.Policy = o.policy
	}
	if flags.Changed("workers") {
		job.Workers = o.workers
	}
	if flags.Changed("plot") {
		job.Plot = o.plot
	}
	return job, job.Validate()
}

// reduceJob formulates the netlist and runs the reduction a job describes.
func reduceJob(ctx context.Context, path string, job *config.Job, extra ...reduce.Option) (*netlist.Netlist, *mna.System, *reduce.Result, error) {
	nl, sys, err := formulate(path, job.Method, job.Inductors)
	if err != nil {
		return nil, nil, nil, err
	}
	solver, err := solverFor(job.Solver)
	if err != nil {
		return nil, nil, nil, err
	}
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	req := reduce.Request{
		Input:            job.Input,
		Output:           job.Output,
		Policy:           reduce.Policy(job.Policy),
		EliminationParam: job.EliminationParam,
		Sorting:          reduce.SortPolicy{Sorting: reduce.Sorting(job.Sorting), Column: job.Column},
	}
	for _, p := range job.Points {
		req.Points = append(req.Points, reduce.ReferencePoint{Omega: p.Omega(), AllowedError: p.Error})
	}
	opts := append([]reduce.Option{
		reduce.WithBlockDecades(job.BlockDecades),
		reduce.WithWorkers(job.Workers),
		reduce.WithMaxIterations(job.MaxIterations),
		reduce.WithSolver(solver),
		reduce.WithLogger(slog.Default()),
	}, extra...)

	res, err := reduce.Reduce(ctx, sys, req, opts...)
	if err != nil {
		return nil, nil, nil, err
	}
	return nl, sys, res, nil
}

func runReduce(cmd *cobra.Command, path string, o reduceOptions) error {
	w := cmd.OutOrStdout()
	job, err := loadJob(cmd, o)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	var extra []reduce.Option
	if o.noTransferFun {
		extra = append(extra, reduce.WithoutTransferFunction())
	}
	nl, sys, res, err := reduceJob(ctx, path, job, extra...)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s: run %s\n", nl.Title, res.RunID)
	fmt.Fprintf(w, "stop=%s trials=%d rescores=%d true error=%s budget=%s\n",
		res.Stop, res.Trials, res.Rescores, util.FormatError(res.TrueError), util.FormatError(res.Budget))
	if res.Rejected != nil {
		fmt.Fprintf(w, "first rejected: %s (%s)\n", res.Rejected, res.RejectedBy)
	}
	printTerms(w, fmt.Sprintf("Removed terms (%d):", len(res.Removed)), sys.X, res.Removed)
	if o.showRetained {
		printTerms(w, fmt.Sprintf("Retained terms (%d):", len(res.Retained)), sys.X, res.Retained)
	}

	in, _ := sys.Unknown(job.Input)
	out, _ := sys.Unknown(job.Output)
	if !o.noTransferFun {
		fmt.Fprintf(w, "H(s) = %s / %s = %s\n", sys.X[out], sys.X[in], res.Transfer)
	}

	solver, _ := solverFor(job.Solver)
	return compare(w, nl.Title, job, sys, res, in, out, solver, !o.noTransferFun)
}

func printTerms(w io.Writer, header string, unknowns []string, terms []reduce.Term) {
	fmt.Fprintln(w, header)
	for _, t := range terms {
		fmt.Fprintf(w, "  [%s, %s] %-24s %s\n", unknowns[t.Pos.Row], unknowns[t.Pos.Col], t.Expr, util.FormatError(t.Score))
	}
}

// compare prints the full and reduced responses side by side at the
// reference points and over the display grid.
func compare(w io.Writer, title string, job *config.Job, sys *mna.System, res *reduce.Result, in, out int, solver matrix.Factorizer, symbolicTF bool) error {
	reducedAt := func(omegas []float64) (analysis.Response, error) {
		if symbolicTF {
			return analysis.EvaluateNumeric(res.Transfer, sys.Values, omegas)
		}
		return analysis.Sweep(res.Reduced, sys.Z, sys.Values, omegas, in, out, analysis.WithSolver(solver))
	}

	omegas := job.Omegas()
	full, err := analysis.Sweep(sys.A, sys.Z, sys.Values, omegas, in, out, analysis.WithSolver(solver))
	if err != nil {
		return err
	}
	reduced, err := reducedAt(omegas)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Reference points:")
	for k, p := range job.Points {
		rel := math.Abs(full.Magnitude[k]-reduced.Magnitude[k]) / full.Magnitude[k]
		fmt.Fprintf(w, "  %s  error %s (allowed %s)\n",
			util.FormatFrequency(omegas[k]/(2*math.Pi)), util.FormatError(rel), util.FormatError(p.Error))
	}

	freqs, err := analysis.Frequencies(job.Sweep.Start, job.Sweep.Stop, job.Sweep.Points, job.Sweep.Type)
	if err != nil {
		return err
	}
	grid := analysis.HzToRad(freqs)
	if full, err = analysis.Sweep(sys.A, sys.Z, sys.Values, grid, in, out, analysis.WithSolver(solver)); err != nil {
		return err
	}
	if reduced, err = reducedAt(grid); err != nil {
		return err
	}
	full.Name, reduced.Name = "full", "reduced"
	analysis.WriteTable(w, full, reduced)

	if job.Plot != "" {
		if err := analysis.SaveBode(job.Plot, title, full, reduced); err != nil {
			return err
		}
		slog.Info("bode plot written", "path", job.Plot)
	}
	return nil
}
