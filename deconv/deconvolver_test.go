// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package deconv

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/curioloop/deconv/cg"
	"github.com/curioloop/deconv/vector"
)

func threeTap(n int) []float64 {
	psf := make([]float64, n)
	psf[0], psf[1], psf[n-1] = 0.6, 0.2, 0.2
	return psf
}

func boxcar(n int) []float64 {
	x := make([]float64, n)
	for i := n / 4; i < 3*n/4; i++ {
		x[i] = 1
	}
	return x
}

func maxDiff(a, b []float64) float64 {
	d := 0.0
	for i := range a {
		d = max(d, math.Abs(a[i]-b[i]))
	}
	return d
}

func TestBoxcarRecovery(t *testing.T) {
	const n = 32
	psf := threeTap(n)
	truth := boxcar(n)
	data := circularConvolve(truth, psf)

	d, err := NewLinearDeconvolver([]int{n}, data, psf, nil, 0, WithTolerance(1e-9, 1e-12))
	if err != nil {
		t.Fatal(err)
	}
	x := d.Space().Create()
	if status := d.Solve(x, 200, true); status != cg.Converged {
		t.Fatal("CG did not converge", status)
	}
	diff := d.Space().Create()
	d.Space().Axpby(diff, 1, x, -1, d.Space().Wrap(truth))
	if e := d.Space().Norm2(diff); e > 1e-6 {
		t.Fatal("boxcar not recovered", e)
	}
	if r := d.LastResult(); r.NumIter == 0 || r.NumIter > 200 {
		t.Fatal("unexpected iteration count", r.NumIter)
	}

	// A warm start from the solution converges at once.
	if status := d.Solve(x, 200, false); status != cg.Converged {
		t.Fatal("warm start failed", status)
	}
	if d.LastResult().NumIter > 1 {
		t.Fatal("warm start iterated", d.LastResult().NumIter)
	}
}

func noisyProblem(seed uint64, shape []int) (data, psf, weights []float64) {
	rng := rand.New(rand.NewPCG(seed, 0))
	n := 1
	for _, k := range shape {
		n *= k
	}
	psf = make([]float64, n)
	psf[0], psf[1], psf[n-1] = 0.5, 0.25, 0.25
	data = circularConvolve(boxcar(n), psf)
	weights = make([]float64, n)
	for i := range data {
		data[i] += 0.05 * rng.NormFloat64()
		weights[i] = 0.5 + rng.Float64()
	}
	return
}

func TestSetMuMatchesFreshSolver(t *testing.T) {
	shape := []int{16, 4}
	data, psf, weights := noisyProblem(11, shape)

	for _, w := range [][]float64{nil, weights} {
		d, err := NewLinearDeconvolver(shape, data, psf, w, 0.1, WithTolerance(1e-10, 1e-12))
		if err != nil {
			t.Fatal(err)
		}
		x := d.Space().Create()
		if status := d.Solve(x, 500, true); status != cg.Converged {
			t.Fatal("first solve failed", status)
		}

		if err = d.SetMu(0.5); err != nil {
			t.Fatal(err)
		}
		if d.Mu() != 0.5 {
			t.Fatal("unexpected mu", d.Mu())
		}
		if status := d.Solve(x, 500, false); status != cg.Converged {
			t.Fatal("second solve failed", status)
		}

		fresh, err := NewLinearDeconvolver(shape, data, psf, w, 0.5, WithTolerance(1e-10, 1e-12))
		if err != nil {
			t.Fatal(err)
		}
		y := fresh.Space().Create()
		if status := fresh.Solve(y, 500, true); status != cg.Converged {
			t.Fatal("fresh solve failed", status)
		}
		if e := maxDiff(x.Data(), y.Data()); e > 1e-8 {
			t.Fatal("SetMu differs from fresh solver", w != nil, e)
		}
	}
}

func TestWeightsAreCopied(t *testing.T) {
	shape := []int{24}
	data, psf, weights := noisyProblem(17, shape)

	w := append([]float64(nil), weights...)
	d, err := NewLinearDeconvolver(shape, data, psf, w, 0.1, WithTolerance(1e-10, 1e-12))
	if err != nil {
		t.Fatal(err)
	}
	for i := range w {
		w[i] = 3 * w[i] * float64(i%2)
	}
	x := d.Space().Create()
	if status := d.Solve(x, 500, true); status != cg.Converged {
		t.Fatal("solve failed", status)
	}

	fresh, err := NewLinearDeconvolver(shape, data, psf, weights, 0.1, WithTolerance(1e-10, 1e-12))
	if err != nil {
		t.Fatal(err)
	}
	y := fresh.Space().Create()
	if status := fresh.Solve(y, 500, true); status != cg.Converged {
		t.Fatal("fresh solve failed", status)
	}
	if e := maxDiff(x.Data(), y.Data()); e > 1e-12 {
		t.Fatal("caller weights leak into the solver", e)
	}
}

func TestConstantWeightsFoldIntoMu(t *testing.T) {
	shape := []int{32}
	data, psf, _ := noisyProblem(5, shape)
	w := make([]float64, len(data))
	for i := range w {
		w[i] = 2
	}

	d1, err := NewLinearDeconvolver(shape, data, psf, w, 0.2, WithTolerance(1e-10, 1e-12))
	if err != nil {
		t.Fatal(err)
	}
	d2, err := NewLinearDeconvolver(shape, data, psf, nil, 0.1, WithTolerance(1e-10, 1e-12))
	if err != nil {
		t.Fatal(err)
	}
	if d1.Mu() != 0.2 {
		t.Fatal("folding changed the visible mu", d1.Mu())
	}
	x1, x2 := d1.Space().Create(), d2.Space().Create()
	d1.Solve(x1, 200, true)
	d2.Solve(x2, 200, true)
	if e := maxDiff(x1.Data(), x2.Data()); e > 1e-9 {
		t.Fatal("constant weights not folded into mu", e)
	}

	// Folding follows SetMu.
	_ = d1.SetMu(1)
	_ = d2.SetMu(0.5)
	d1.Solve(x1, 200, true)
	d2.Solve(x2, 200, true)
	if e := maxDiff(x1.Data(), x2.Data()); e > 1e-9 {
		t.Fatal("constant weights not folded after SetMu", e)
	}
}

func TestWeightedNormalEquations(t *testing.T) {
	shape := []int{8, 8}
	data, psf, weights := noisyProblem(23, shape)
	const mu = 0.05

	d, err := NewLinearDeconvolver(shape, data, psf, weights, mu, WithTolerance(1e-10, 0))
	if err != nil {
		t.Fatal(err)
	}
	sp := d.Space()
	x := sp.Create()
	if status := d.Solve(x, 1000, true); status != cg.Converged {
		t.Fatal("solve failed", status)
	}

	// Hᵀ·W·(H·x - y) + μ·Q·x = 0
	conv, reg := d.Convolution(), mustRegularizer(t, sp)
	r, qx := sp.Create(), sp.Create()
	_ = conv.Apply(r, x, vector.Direct)
	sp.Axpby(r, 1, r, -1, sp.Wrap(data))
	sp.Multiply(r, sp.Wrap(weights), r)
	_ = conv.Apply(r, r, vector.Adjoint)
	_ = reg.Apply(qx, x, vector.Direct)
	sp.Axpby(r, 1, r, mu, qx)
	if e := sp.NormInf(r); e > 1e-9 {
		t.Fatal("normal equations not satisfied", e)
	}

	// The solution minimizes the quadratic cost.
	f0, err := d.Cost(x)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewPCG(1, 2))
	for range 5 {
		y := sp.Clone(x)
		sp.Axpby(y, 1, y, 1e-3, sp.Wrap(randomData(rng, sp.Size())))
		if f, _ := d.Cost(y); f < f0 {
			t.Fatal("perturbation decreased the cost", f, f0)
		}
	}
}

func mustRegularizer(t *testing.T, sp *vector.Space) *Regularizer {
	t.Helper()
	reg, err := NewRegularizer(sp)
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func TestPreconditioner(t *testing.T) {
	shape := []int{16, 8}
	data, psf, weights := noisyProblem(31, shape)

	for _, w := range [][]float64{nil, weights} {
		plain, err := NewLinearDeconvolver(shape, data, psf, w, 0.01, WithTolerance(1e-10, 1e-12))
		if err != nil {
			t.Fatal(err)
		}
		pre, err := NewLinearDeconvolver(shape, data, psf, w, 0.01,
			WithTolerance(1e-10, 1e-12), WithPreconditioner(), WithLogger(nil))
		if err != nil {
			t.Fatal(err)
		}
		x, y := plain.Space().Create(), pre.Space().Create()
		if status := plain.Solve(x, 1000, true); status != cg.Converged {
			t.Fatal("plain solve failed", status)
		}
		if status := pre.Solve(y, 1000, true); status != cg.Converged {
			t.Fatal("preconditioned solve failed", status)
		}
		if e := maxDiff(x.Data(), y.Data()); e > 1e-8 {
			t.Fatal("preconditioned solution differs", e)
		}
		if w == nil && pre.LastResult().NumIter > 2 {
			t.Fatal("exact preconditioner iterated", pre.LastResult().NumIter)
		}
	}
}

func TestUnweightedOperatorInverse(t *testing.T) {
	shape := []int{16}
	data, psf, _ := noisyProblem(2, shape)
	d, err := NewLinearDeconvolver(shape, data, psf, nil, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	sp := d.Space()
	x, ax := sp.Create(), sp.Create()
	if err = d.Operator().Apply(x, d.RHS(), vector.Inverse); err != nil {
		t.Fatal(err)
	}
	_ = d.Operator().Apply(ax, x, vector.Direct)
	if e := maxDiff(ax.Data(), d.RHS().Data()); e > 1e-12 {
		t.Fatal("inverse mismatch", e)
	}

	_, _, w := noisyProblem(2, shape)
	d, _ = NewLinearDeconvolver(shape, data, psf, w, 0.1)
	if err = d.Operator().Apply(x, d.RHS(), vector.Inverse); !errors.Is(err, vector.ErrNotInvertible) {
		t.Fatal("weighted operator must not be invertible", err)
	}
}

func TestDeconvolverValidation(t *testing.T) {
	const n = 8
	data, psf := make([]float64, n), threeTap(n)
	neg := make([]float64, n)
	neg[3] = -1
	nan := make([]float64, n)
	nan[0] = math.NaN()

	for _, tc := range []struct {
		name    string
		shape   []int
		data    []float64
		weights []float64
		mu      float64
		target  error
	}{
		{"shape", []int{0}, data, nil, 0, nil},
		{"data", []int{n}, data[:3], nil, 0, nil},
		{"weights size", []int{n}, data, make([]float64, 3), 0, nil},
		{"zero weights", []int{n}, data, make([]float64, n), 0, ErrBadWeights},
		{"negative weight", []int{n}, data, neg, 0, ErrBadWeights},
		{"NaN weight", []int{n}, data, nan, 0, ErrBadWeights},
		{"negative mu", []int{n}, data, nil, -1, ErrBadMu},
		{"NaN mu", []int{n}, data, nil, math.NaN(), ErrBadMu},
		{"tolerance", []int{n}, data, nil, 0, nil},
	} {
		var opts []Option
		if tc.name == "tolerance" {
			opts = append(opts, WithTolerance(0, 2))
		}
		_, err := NewLinearDeconvolver(tc.shape, tc.data, psf, tc.weights, tc.mu, opts...)
		if err == nil {
			t.Fatal("expected error", tc.name)
		}
		if tc.target != nil && !errors.Is(err, tc.target) {
			t.Fatal("unexpected error", tc.name, err)
		}
	}

	d, err := NewLinearDeconvolver([]int{n}, data, psf, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err = d.SetMu(-1); !errors.Is(err, ErrBadMu) {
		t.Fatal("SetMu accepted a negative level", err)
	}
	if d.Mu() != 0 {
		t.Fatal("failed SetMu changed mu")
	}

	// Zero data gives the zero solution without iterating.
	x := d.Space().Create()
	d.Space().Fill(x, 3)
	if status := d.Solve(x, 10, true); status != cg.Converged || d.Space().NormInf(x) != 0 {
		t.Fatal("zero data not solved at once", status)
	}
}
