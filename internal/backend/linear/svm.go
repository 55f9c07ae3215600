package linear

import (
	"math"
	"math/rand/v2"

	"github.com/crimson-sun/argval/internal/textvec"
)

// SolverConfig holds the dual coordinate descent parameters.
type SolverConfig struct {
	C       float64
	MaxIter int
	Tol     float64
	Seed    uint64
}

// DefaultSolverConfig matches the penalty and stopping rule the shipped
// models were trained with.
func DefaultSolverConfig() SolverConfig {
	return SolverConfig{C: 18, MaxIter: 10000, Tol: 1e-4, Seed: 1}
}

// Params is one trained binary classifier.
type Params struct {
	Coef      []float64
	Intercept float64
}

// trainBinary fits an L2-regularized squared-hinge SVM with dual
// coordinate descent and shrinking. The intercept is learned as the weight
// of an extra constant feature with value 1, so it is regularized too.
// Classes are weighted n/(2*n_class). A column with a single class yields
// the constant predictor: zero weights and intercept -1 or +1.
func trainBinary(cfg SolverConfig, x []textvec.SparseVector, y []int, nFeatures int) (Params, bool) {
	l := len(x)
	pos := 0
	for _, v := range y {
		if v != 0 {
			pos++
		}
	}
	if pos == 0 {
		return Params{Coef: make([]float64, nFeatures), Intercept: -1}, true
	}
	if pos == l {
		return Params{Coef: make([]float64, nFeatures), Intercept: 1}, true
	}

	cPos := cfg.C * float64(l) / (2 * float64(pos))
	cNeg := cfg.C * float64(l) / (2 * float64(l-pos))

	sign := make([]float64, l)
	diag := make([]float64, l)
	qd := make([]float64, l)
	for i := range x {
		if y[i] != 0 {
			sign[i], diag[i] = 1, 0.5/cPos
		} else {
			sign[i], diag[i] = -1, 0.5/cNeg
		}
		qd[i] = diag[i] + x[i].SquaredNorm() + 1
	}

	w := make([]float64, nFeatures)
	var bias float64
	alpha := make([]float64, l)
	index := make([]int, l)
	for i := range index {
		index[i] = i
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	active := l
	pgMaxOld, pgMinOld := math.Inf(1), math.Inf(-1)
	converged := false

	for iter := 0; iter < cfg.MaxIter; iter++ {
		pgMaxNew, pgMinNew := math.Inf(-1), math.Inf(1)

		for i := 0; i < active; i++ {
			j := i + rng.IntN(active-i)
			index[i], index[j] = index[j], index[i]
		}

		for s := 0; s < active; s++ {
			i := index[s]
			g := sign[i]*(x[i].Dot(w)+bias) - 1 + alpha[i]*diag[i]

			pg := 0.0
			if alpha[i] == 0 {
				if g > pgMaxOld {
					active--
					index[s], index[active] = index[active], index[s]
					s--
					continue
				}
				if g < 0 {
					pg = g
				}
			} else {
				pg = g
			}
			pgMaxNew = math.Max(pgMaxNew, pg)
			pgMinNew = math.Min(pgMinNew, pg)

			if math.Abs(pg) > 1e-12 {
				old := alpha[i]
				alpha[i] = math.Max(alpha[i]-g/qd[i], 0)
				d := (alpha[i] - old) * sign[i]
				for k, idx := range x[i].Indices {
					w[idx] += d * x[i].Values[k]
				}
				bias += d
			}
		}

		if pgMaxNew-pgMinNew <= cfg.Tol {
			if active == l {
				converged = true
				break
			}
			active = l
			pgMaxOld, pgMinOld = math.Inf(1), math.Inf(-1)
			continue
		}
		pgMaxOld, pgMinOld = pgMaxNew, pgMinNew
		if pgMaxOld <= 0 {
			pgMaxOld = math.Inf(1)
		}
		if pgMinOld >= 0 {
			pgMinOld = math.Inf(-1)
		}
	}
	return Params{Coef: w, Intercept: bias}, converged
}

// Decision is the signed distance proxy tfidf(x)·coef + intercept.
func (p Params) Decision(v textvec.SparseVector) float64 {
	return v.Dot(p.Coef) + p.Intercept
}

// Predict applies the decision rule score > 0.
func (p Params) Predict(v textvec.SparseVector) int {
	if p.Decision(v) > 0 {
		return 1
	}
	return 0
}
