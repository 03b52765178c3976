package fit

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	lmLambdaInit = 1e-3
	lmLambdaMin  = 1e-12
	lmLambdaMax  = 1e12
	lmFTol       = 1e-12
	lmXTol       = 1e-10
	lmDiagFloor  = 1e-30
)

// residualFunc fills r with the residual vector at theta and reports
// whether the model could be evaluated there.
type residualFunc func(theta, r []float64) bool

type lmResult struct {
	theta       []float64
	cost        float64
	evaluations int
	iterations  int
	converged   bool
}

// levenbergMarquardt minimizes |r(theta)|^2 over theta with a forward
// difference Jacobian. Every call of res counts towards maxEval.
//
//nolint:cyclop,funlen
func levenbergMarquardt(res residualFunc, theta0 []float64, m, maxEval int) (lmResult, error) {
	k := len(theta0)
	theta := append([]float64(nil), theta0...)
	r := make([]float64, m)
	trial := make([]float64, m)
	cand := make([]float64, k)

	out := lmResult{theta: theta}
	if !res(theta, r) {
		return out, ErrDegenerate
	}
	out.evaluations = 1
	cost := sumSquares(r)

	jac := mat.NewDense(m, k, nil)
	lambda := lmLambdaInit

	for out.evaluations < maxEval {
		out.iterations++
		if cost == 0 {
			out.cost, out.converged = 0, true
			return out, nil
		}

		for j := range k {
			h := 1e-7 * math.Max(1, math.Abs(theta[j]))
			copy(cand, theta)
			cand[j] += h
			out.evaluations++
			if !res(cand, trial) {
				return out, ErrDegenerate
			}
			for i := range m {
				jac.Set(i, j, (trial[i]-r[i])/h)
			}
		}

		var grad mat.VecDense
		grad.MulVec(jac.T(), mat.NewVecDense(m, r))
		var hess mat.Dense
		hess.Mul(jac.T(), jac)

		improved := false
		for out.evaluations < maxEval {
			a := mat.NewDense(k, k, nil)
			a.Copy(&hess)
			for j := range k {
				a.Set(j, j, hess.At(j, j)+lambda*math.Max(hess.At(j, j), lmDiagFloor))
			}

			var delta mat.VecDense
			if err := delta.SolveVec(a, &grad); err != nil && !isCondition(err) {
				lambda *= 10
				if lambda > lmLambdaMax {
					break
				}
				continue
			}

			step := 0.0
			for j := range k {
				cand[j] = theta[j] - delta.AtVec(j)
				step += delta.AtVec(j) * delta.AtVec(j)
			}
			step = math.Sqrt(step)

			out.evaluations++
			if res(cand, trial) {
				if trialCost := sumSquares(trial); trialCost < cost {
					rel := (cost - trialCost) / cost
					copy(theta, cand)
					copy(r, trial)
					cost = trialCost
					lambda = math.Max(lambda/10, lmLambdaMin)
					if rel <= lmFTol || step <= lmXTol*(norm(theta)+lmXTol) {
						out.cost, out.converged = cost, true
						return out, nil
					}
					improved = true
					break
				}
			}

			lambda *= 10
			if lambda > lmLambdaMax {
				break
			}
		}

		if !improved {
			if lambda > lmLambdaMax {
				// No descent direction left: theta is stationary.
				out.cost, out.converged = cost, true
				return out, nil
			}
			break
		}
	}

	out.cost = cost
	return out, ErrNotConverged
}

func isCondition(err error) bool {
	var cond mat.Condition
	return errors.As(err, &cond)
}

func sumSquares(x []float64) float64 {
	s := 0.0
	for _, v := range x {
		s += v * v
	}
	return s
}

func norm(x []float64) float64 {
	return math.Sqrt(sumSquares(x))
}
