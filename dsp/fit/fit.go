package fit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Result holds a fitted model.
type Result struct {
	Order   Order
	Success bool
	// Err is the failure reason when Success is false.
	Err error

	// Params is the fitted parameter vector in the layout of
	// DefaultInitialGuess. Nil on failure.
	Params []float64
	// Origin is the x value subtracted before evaluating exponentials.
	Origin float64

	// Slope and Intercept are set for linear fits.
	Slope     float64
	Intercept float64

	// TC is the canonical time constant: the single time constant, or the
	// weighted or arithmetic average of a double-exponential fit.
	TC           float64
	TC1          float64
	TC2          float64
	WeightedTC   float64
	ArithmeticTC float64
	// R2 is the coefficient of determination, computed for double
	// exponentials only.
	R2 float64

	Evaluations int
	Iterations  int
}

func failed(order Order, err error) Result {
	nan := math.NaN()
	return Result{
		Order:        order,
		Err:          err,
		Slope:        nan,
		Intercept:    nan,
		TC:           nan,
		TC1:          nan,
		TC2:          nan,
		WeightedTC:   nan,
		ArithmeticTC: nan,
		R2:           nan,
	}
}

// Eval evaluates the fitted model at x. It returns NaN for failed fits.
func (r Result) Eval(x float64) float64 {
	if !r.Success {
		return math.NaN()
	}

	p := r.Params
	switch r.Order {
	case OrderSingle:
		return p[0]*math.Exp(-(x-r.Origin)/p[1]) + p[2]
	case OrderDouble:
		t := x - r.Origin
		return p[0]*math.Exp(-t/p[1]) + p[2]*math.Exp(-t/p[3]) + p[4]
	default:
		return p[0]*x + p[1]
	}
}

// Curve evaluates the fitted model at each x.
func (r Result) Curve(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = r.Eval(v)
	}
	return out
}

// Fitter fits one model order with fixed settings. A Fitter is stateless
// and safe for concurrent use.
type Fitter struct {
	cfg Config
}

// NewFitter returns a Fitter for order with the given options applied over
// DefaultConfig(order).
func NewFitter(order Order, opts ...Option) *Fitter {
	cfg := DefaultConfig(order)
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Fitter{cfg: cfg}
}

// NewFitterWithConfig returns a Fitter using cfg as is.
func NewFitterWithConfig(cfg Config) *Fitter {
	if cfg.MaxEvaluations <= 0 {
		cfg.MaxEvaluations = DefaultMaxEvaluations
	}
	if len(cfg.InitialGuess) == 0 {
		cfg.InitialGuess = DefaultInitialGuess(cfg.Order)
	}
	return &Fitter{cfg: cfg}
}

// Config returns the fitter configuration.
func (f *Fitter) Config() Config { return f.cfg }

// Fit fits the model to the window (x, y).
func (f *Fitter) Fit(x, y []float64) Result {
	order := f.cfg.Order
	if len(x) != len(y) {
		return failed(order, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(x), len(y)))
	}
	if len(x) < order.numParams() {
		return failed(order, fmt.Errorf("%w: %d samples for %s", ErrInsufficientData, len(x), order))
	}
	for i := range x {
		if !isFinite(x[i]) || !isFinite(y[i]) {
			return failed(order, ErrNonFinite)
		}
	}

	switch order {
	case OrderLinear:
		return fitLinear(x, y)
	case OrderSingle, OrderDouble:
		return f.fitExponential(x, y)
	default:
		return failed(order, fmt.Errorf("%w: unsupported order %d", ErrDegenerate, int(order)))
	}
}

func fitLinear(x, y []float64) Result {
	if stat.Variance(x, nil) == 0 {
		return failed(OrderLinear, fmt.Errorf("%w: constant x", ErrDegenerate))
	}

	intercept, slope := stat.LinearRegression(x, y, nil, false)
	res := failed(OrderLinear, nil)
	res.Success = true
	res.Params = []float64{slope, intercept}
	res.Slope = slope
	res.Intercept = intercept
	return res
}

func (f *Fitter) fitExponential(x, y []float64) Result {
	order := f.cfg.Order
	guess := f.cfg.InitialGuess
	if len(guess) != order.numParams() {
		return failed(order, fmt.Errorf("%w: want %d parameters, got %d", ErrInitialGuess, order.numParams(), len(guess)))
	}

	var seeds []float64
	if order == OrderSingle {
		seeds = []float64{guess[1]}
	} else {
		seeds = []float64{guess[1], guess[3]}
	}

	theta0 := make([]float64, len(seeds))
	for i, tc := range seeds {
		if !(tc > 0) || math.IsInf(tc, 0) {
			return failed(order, fmt.Errorf("%w: time constant %v", ErrInitialGuess, tc))
		}
		theta0[i] = math.Log(tc)
	}

	model := newExpModel(x, y, len(seeds))
	lm, err := levenbergMarquardt(model.residual, theta0, len(x), f.cfg.MaxEvaluations)
	if err != nil {
		res := failed(order, err)
		res.Evaluations, res.Iterations = lm.evaluations, lm.iterations
		return res
	}

	beta, ok := model.solve(lm.theta)
	if !ok {
		return failed(order, ErrDegenerate)
	}

	res := failed(order, nil)
	res.Success = true
	res.Origin = x[0]
	res.Evaluations, res.Iterations = lm.evaluations, lm.iterations

	if order == OrderSingle {
		tc := math.Exp(lm.theta[0])
		res.Params = []float64{beta[0], tc, beta[1]}
		res.TC, res.TC1 = tc, tc
		return res
	}

	a, c, e := beta[0], beta[1], beta[2]
	tc1, tc2 := math.Exp(lm.theta[0]), math.Exp(lm.theta[1])
	res.Params = []float64{a, tc1, c, tc2, e}
	res.TC1, res.TC2 = tc1, tc2
	res.WeightedTC = (a*tc1 + c*tc2) / (a + c)
	res.ArithmeticTC = (tc1 + tc2) / 2
	if f.cfg.Weighted {
		res.TC = res.WeightedTC
	} else {
		res.TC = res.ArithmeticTC
	}
	res.R2 = rSquared(y, res.Curve(x))
	return res
}

func rSquared(y, fitted []float64) float64 {
	mean := stat.Mean(y, nil)
	var ssRes, ssTot float64
	for i := range y {
		d := y[i] - fitted[i]
		ssRes += d * d
		m := y[i] - mean
		ssTot += m * m
	}
	if ssTot == 0 {
		return math.NaN()
	}
	return 1 - ssRes/ssTot
}

// expModel projects out the linear amplitudes of a sum of k exponentials
// plus offset, leaving only the log time constants as free parameters.
type expModel struct {
	t   []float64
	y   *mat.VecDense
	phi *mat.Dense
	k   int
}

func newExpModel(x, y []float64, k int) *expModel {
	t := make([]float64, len(x))
	for i := range x {
		t[i] = x[i] - x[0]
	}
	return &expModel{
		t:   t,
		y:   mat.NewVecDense(len(y), append([]float64(nil), y...)),
		phi: mat.NewDense(len(x), k+1, nil),
		k:   k,
	}
}

func (m *expModel) solve(theta []float64) ([]float64, bool) {
	for j := range m.k {
		tc := math.Exp(theta[j])
		if !(tc > 0) || math.IsInf(tc, 0) {
			return nil, false
		}
		for i, t := range m.t {
			m.phi.Set(i, j, math.Exp(-t/tc))
		}
	}
	for i := range m.t {
		m.phi.Set(i, m.k, 1)
	}

	var beta mat.VecDense
	if err := beta.SolveVec(m.phi, m.y); err != nil && !isCondition(err) {
		return nil, false
	}

	out := make([]float64, m.k+1)
	for j := range out {
		out[j] = beta.AtVec(j)
		if !isFinite(out[j]) {
			return nil, false
		}
	}
	return out, true
}

func (m *expModel) residual(theta, r []float64) bool {
	beta, ok := m.solve(theta)
	if !ok {
		return false
	}
	for i := range r {
		v := beta[m.k]
		for j := range m.k {
			v += beta[j] * m.phi.At(i, j)
		}
		r[i] = v - m.y.AtVec(i)
	}
	return true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
