package reduce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/cmplx"

	"github.com/google/uuid"

	"github.com/edp1096/toy-mor/internal/consts"
	"github.com/edp1096/toy-mor/pkg/analysis"
	"github.com/edp1096/toy-mor/pkg/matrix"
	"github.com/edp1096/toy-mor/pkg/mna"
	"github.com/edp1096/toy-mor/pkg/symbolic"
)

// ReferencePoint is an angular frequency and the relative magnitude error
// allowed there.
type ReferencePoint struct {
	Omega        float64
	AllowedError float64
}

// Request describes one reduction run.
type Request struct {
	Input, Output string // unknown names, e.g. "V_in" or "in"
	Points        []ReferencePoint
	Policy        Policy

	// EliminationParam is the re-score threshold: scores are recomputed
	// when the measured error drifts further than this from the sum of the
	// scores of the terms removed since the last scoring.
	EliminationParam float64
	Sorting          SortPolicy
}

type StopReason int

const (
	StopExhausted StopReason = iota // no terms left
	StopRejected                    // first rejected removal
	StopBudget                      // iteration limit or context done
)

func (r StopReason) String() string {
	switch r {
	case StopExhausted:
		return "exhausted"
	case StopRejected:
		return "rejected"
	case StopBudget:
		return "budget"
	}
	return fmt.Sprintf("StopReason(%d)", int(r))
}

// Result of a reduction run.
type Result struct {
	RunID     string
	Removed   []Term
	Retained  []Term // live terms when the loop stopped
	Reduced   [][]symbolic.Expr
	Transfer  symbolic.Rational
	TrueError float64 // worst relative error of the reduced system
	Budget    float64

	// Drift is the error of the reduced system against the response at the
	// last scoring. Accumulated never exceeds it by more than
	// EliminationParam.
	Drift       float64
	Accumulated float64
	Rescores    int
	Trials      int
	Stop        StopReason
	Rejected    *Term
	RejectedBy  string // "singular", "phase" or "error"
}

type options struct {
	decades float64
	workers int
	maxIter int
	solver  matrix.Factorizer
	logger  *slog.Logger
	noTF    bool
}

type Option func(*options)

// WithBlockDecades sets the score jump, in decades, that closes a block.
func WithBlockDecades(d float64) Option { return func(o *options) { o.decades = d } }

func WithWorkers(n int) Option { return func(o *options) { o.workers = n } }

// WithMaxIterations bounds the number of trials.
func WithMaxIterations(n int) Option { return func(o *options) { o.maxIter = n } }

func WithSolver(f matrix.Factorizer) Option { return func(o *options) { o.solver = f } }

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithoutTransferFunction skips the symbolic solve of the reduced system.
func WithoutTransferFunction() Option { return func(o *options) { o.noTF = true } }

// engine owns the only mutable state of a run.
type engine struct {
	req     Request
	opts    options
	sys     *mna.System
	log     *slog.Logger
	omegas  []float64
	in, out int

	href    []complex128 // unreduced system, acceptance reference
	hbase   []complex128 // system at the last scoring, drift reference
	current analysis.Linear
	splits  map[int][2]complex128 // term order -> (t0, t1)

	live    []Term
	removed []Term
	acc     float64
	res     *Result

	lastH     []complex128 // response after the last accepted trial
	lastDrift float64      // its error against hbase
}

// Reduce removes terms from sys.A while the transfer function Output/Input
// stays within the largest allowed error of the reference points. The first
// rejected removal ends the run.
func Reduce(ctx context.Context, sys *mna.System, req Request, opts ...Option) (*Result, error) {
	o := options{
		decades: consts.DefaultBlockDecades,
		maxIter: consts.DefaultMaxIterations,
		solver:  matrix.DenseLU{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	e, err := newEngine(sys, req, o)
	if err != nil {
		return nil, err
	}
	if err := e.run(ctx); err != nil {
		return nil, err
	}
	return e.finish()
}

func newEngine(sys *mna.System, req Request, o options) (*engine, error) {
	if len(req.Points) == 0 {
		return nil, errors.New("reduce: no reference points")
	}
	if req.EliminationParam < 0 {
		return nil, fmt.Errorf("reduce: negative elimination parameter %g", req.EliminationParam)
	}
	if req.Policy == "" {
		req.Policy = TermByTerm
	}
	if _, err := ParsePolicy(string(req.Policy)); err != nil {
		return nil, err
	}
	if req.Sorting.Sorting == "" {
		req.Sorting.Sorting = SortMax
	}
	in, err := sys.Unknown(req.Input)
	if err != nil {
		return nil, err
	}
	out, err := sys.Unknown(req.Output)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	e := &engine{
		req:  req,
		opts: o,
		sys:  sys,
		log:  o.logger.With(slog.String("run_id", runID)),
		in:   in,
		out:  out,
		res:  &Result{RunID: runID},
	}
	for _, p := range req.Points {
		e.omegas = append(e.omegas, p.Omega)
		e.res.Budget = math.Max(e.res.Budget, p.AllowedError)
	}
	return e, nil
}

func (e *engine) run(ctx context.Context) error {
	terms, err := DecomposeSystem(e.sys)
	if err != nil {
		return err
	}
	if e.current, err = SplitMatrix(e.sys.A, e.sys.Z, e.sys.Values); err != nil {
		return err
	}
	e.splits = make(map[int][2]complex128, len(terms))
	for _, t := range terms {
		v0, v1, err := bindSplit(t.Expr, e.sys.Values)
		if err != nil {
			return fmt.Errorf("term %s: %w", t, err)
		}
		e.splits[t.Order] = [2]complex128{v0, v1}
	}

	if e.href, err = analysis.TransferLinear(e.current, e.omegas, e.in, e.out, e.opts.solver); err != nil {
		return fmt.Errorf("unreduced system: %w", err)
	}
	e.hbase = e.href

	e.log.Info("reduce: start",
		slog.Int("unknowns", e.sys.Size()),
		slog.Int("terms", len(terms)),
		slog.String("policy", string(e.req.Policy)),
		slog.Float64("budget", e.res.Budget))

	live, err := e.score(ctx, terms, e.sys.A)
	if err != nil {
		e.live = terms
		return e.budgetOr(err)
	}
	e.live = live

	for len(e.live) > 0 {
		if e.exhausted(ctx) {
			return nil
		}
		n := 1
		if e.req.Policy == Block {
			n = blockSize(e.live, e.opts.decades)
		}

		if n > 1 {
			batch := e.live[:n]
			ok, err := e.try(batch)
			if err != nil {
				return err
			}
			if ok {
				e.live = e.live[n:]
				if _, err := e.rescoreIfStale(ctx); err != nil {
					return e.budgetOr(err)
				}
				continue
			}
			e.log.Debug("reduce: block rejected, falling back to single terms", slog.Int("size", n))
		}

		// One term at a time over the first n live terms. A re-score
		// replaces the live list, so the fallback ends there.
		for k := 0; k < n; k++ {
			if k > 0 && e.exhausted(ctx) {
				return nil
			}
			ok, err := e.try(e.live[:1])
			if err != nil {
				return err
			}
			if !ok {
				e.res.Stop = StopRejected
				return nil
			}
			e.live = e.live[1:]
			rescored, err := e.rescoreIfStale(ctx)
			if err != nil {
				return e.budgetOr(err)
			}
			if rescored {
				break
			}
		}
	}
	e.res.Stop = StopExhausted
	return nil
}

// exhausted checks the iteration and context budgets.
func (e *engine) exhausted(ctx context.Context) bool {
	if ctx.Err() != nil || (e.opts.maxIter > 0 && e.res.Trials >= e.opts.maxIter) {
		e.res.Stop = StopBudget
		e.log.Warn("reduce: budget exhausted", slog.Int("trials", e.res.Trials), slog.Any("ctx_err", ctx.Err()))
		return true
	}
	return false
}

func (e *engine) budgetOr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		e.res.Stop = StopBudget
		return nil
	}
	return err
}

func (e *engine) score(ctx context.Context, terms []Term, a [][]symbolic.Expr) ([]Term, error) {
	return Score(ctx, terms, a, e.sys.Z, e.sys.Values, e.omegas, e.in, e.out, ScoreOptions{
		Sorting: e.req.Sorting,
		Workers: e.opts.workers,
		Solver:  e.opts.solver,
	})
}

// try removes the batch from the current system if the trial passes every
// guard. A failing trial leaves the state untouched.
func (e *engine) try(batch []Term) (bool, error) {
	e.res.Trials++
	trial := e.current.Clone()
	for _, t := range batch {
		s := e.splits[t.Order]
		trial.A0.AddAt(t.Pos.Row, t.Pos.Col, -s[0])
		trial.A1.AddAt(t.Pos.Row, t.Pos.Col, -s[1])
	}

	reject := func(reason string, attrs ...any) (bool, error) {
		if len(batch) == 1 {
			t := batch[0]
			e.res.Rejected = &t
			e.res.RejectedBy = reason
		}
		e.log.Debug("reduce: rejected", append([]any{slog.String("term", batch[0].String()), slog.Int("batch", len(batch)), slog.String("reason", reason)}, attrs...)...)
		return false, nil
	}

	h, err := analysis.TransferLinear(trial, e.omegas, e.in, e.out, e.opts.solver)
	if errors.Is(err, analysis.ErrNonInvertible) {
		return reject("singular")
	}
	if err != nil {
		return false, err
	}
	if phaseJump(e.href, h) {
		return reject("phase")
	}
	trueErr := maxError(e.href, h)
	if math.IsNaN(trueErr) || trueErr > e.res.Budget {
		return reject("error", slog.Float64("true_error", trueErr))
	}

	e.current = trial
	e.res.TrueError = trueErr
	e.lastDrift = maxError(e.hbase, h)
	e.lastH = h
	for _, t := range batch {
		e.acc += t.Score
		e.removed = append(e.removed, t)
	}
	e.log.Debug("reduce: removed",
		slog.String("term", batch[0].String()),
		slog.Int("batch", len(batch)),
		slog.Float64("score", batch[0].Score),
		slog.Float64("true_error", trueErr),
		slog.Float64("accumulated", e.acc))
	return true, nil
}

// rescoreIfStale recomputes the live scores against the current reduced
// system when the measured drift and the accumulated scores disagree by more
// than EliminationParam.
func (e *engine) rescoreIfStale(ctx context.Context) (bool, error) {
	if len(e.live) == 0 || math.Abs(e.lastDrift-e.acc) <= e.req.EliminationParam {
		return false, nil
	}
	e.log.Debug("reduce: re-scoring",
		slog.Int("live", len(e.live)),
		slog.Float64("drift", e.lastDrift),
		slog.Float64("accumulated", e.acc))

	live, err := e.score(ctx, e.live, Subtract(e.sys.A, e.removed))
	if err != nil {
		return false, err
	}
	e.live = live
	e.hbase = e.lastH
	e.acc = 0
	e.lastDrift = 0
	e.res.Rescores++
	return true, nil
}

func maxError(href, h []complex128) float64 {
	var worst float64
	for k := range href {
		ref := cmplx.Abs(href[k])
		worst = math.Max(worst, math.Abs(ref-cmplx.Abs(h[k]))/ref)
	}
	return worst
}

func (e *engine) finish() (*Result, error) {
	r := e.res
	r.Removed = e.removed
	r.Retained = e.live
	r.Accumulated = e.acc
	r.Drift = e.lastDrift
	r.Reduced = Subtract(e.sys.A, e.removed)

	if !e.opts.noTF {
		tf, err := symbolic.TransferFunction(r.Reduced, e.sys.Z, e.in, e.out)
		if err != nil {
			return nil, fmt.Errorf("reduced transfer function: %w", err)
		}
		r.Transfer = tf
	}

	e.log.Info("reduce: done",
		slog.String("stop", r.Stop.String()),
		slog.Int("removed", len(r.Removed)),
		slog.Int("retained", len(r.Retained)),
		slog.Int("rescores", r.Rescores),
		slog.Int("trials", r.Trials),
		slog.Float64("true_error", r.TrueError))
	return r, nil
}
