// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package deconv

import (
	"errors"
	"fmt"
	"math"

	"github.com/curioloop/deconv/cg"
	"github.com/curioloop/deconv/logs"
	"github.com/curioloop/deconv/vector"
	"github.com/cwbudde/algo-vecmath"
)

var (
	ErrBadWeights = errors.New("deconv: weights must be finite, non-negative and not all zero")
	ErrBadMu      = errors.New("deconv: regularization level must be finite and non-negative")
)

// Config holds the settings of a LinearDeconvolver.
type Config struct {
	Atol    float64 // Absolute tolerance of the CG residual
	Rtol    float64 // Relative tolerance of the CG residual
	Precond bool    // Use a Fourier-diagonal preconditioner
	Logger  *logs.Logger
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{Atol: 0, Rtol: 1e-5}
}

// WithTolerance sets the absolute and relative tolerances of the CG residual.
func WithTolerance(atol, rtol float64) Option {
	return func(cfg *Config) {
		cfg.Atol, cfg.Rtol = atol, rtol
	}
}

// WithPreconditioner enables the Fourier-diagonal preconditioner.
func WithPreconditioner() Option {
	return func(cfg *Config) { cfg.Precond = true }
}

// WithLogger sets the logger of the CG solver.
func WithLogger(logger *logs.Logger) Option {
	return func(cfg *Config) { cfg.Logger = logger }
}

// LinearDeconvolver solves the Tikhonov regularized deconvolution
//
//	min_x ½‖H·x - y‖²_W + ½μ·xᵀ·Q·x
//
// through its normal equations A·x = b with
//
//	A = Hᵀ·W·H + μ·Q
//	b = Hᵀ·W·y
//
// by conjugate gradients. H is the circulant convolution by the PSF, W the
// diagonal of the weights and Q the isotropic smoothness regularizer.
type LinearDeconvolver struct {
	space  *vector.Space
	conv   *Convolution
	op     *normalOperator
	pre    *spectralInverse
	b      *vector.Vector
	mu     float64
	muFold float64 // μ is multiplied by muFold in A
	solver *cg.Solver
	last   cg.Result
	logger *logs.Logger
}

// NewLinearDeconvolver builds the normal equations of a deconvolution problem.
// The data, psf and weights have the given shape, the psf having its origin at
// index 0. Nil weights stand for unit weights. When all weights are equal to w,
// the weight is folded into the regularization level which becomes μ/w.
func NewLinearDeconvolver(shape []int, data, psf, weights []float64, mu float64, opts ...Option) (*LinearDeconvolver, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	for _, n := range shape {
		if n <= 0 {
			return nil, fmt.Errorf("deconv: invalid dimension %d in shape %v", n, shape)
		}
	}
	space := vector.NewSpace(shape...)
	n := space.Size()
	switch {
	case len(data) != n:
		return nil, fmt.Errorf("deconv: data has %d entries, expected %d", len(data), n)
	case weights != nil && len(weights) != n:
		return nil, fmt.Errorf("deconv: weights have %d entries, expected %d", len(weights), n)
	case !(mu >= 0) || math.IsInf(mu, 1):
		return nil, fmt.Errorf("%w: %g", ErrBadMu, mu)
	}

	fold := 1.0
	if weights != nil {
		weights = append([]float64(nil), weights...)
		w0, constant, positive := weights[0], true, false
		for _, w := range weights {
			if !(w >= 0) || math.IsInf(w, 1) {
				return nil, ErrBadWeights
			}
			positive = positive || w > 0
			constant = constant && w == w0
		}
		switch {
		case !positive:
			return nil, ErrBadWeights
		case constant:
			fold = 1 / w0
			weights = nil
		}
	}

	conv, err := NewConvolution(space, psf)
	if err != nil {
		return nil, err
	}

	d := &LinearDeconvolver{
		space:  space,
		conv:   conv,
		mu:     mu,
		muFold: fold,
		logger: cfg.Logger,
	}
	d.op = newNormalOperator(conv, weights, mu*fold)

	// b = Hᵀ·W·y
	d.b = space.Create()
	y := space.Wrap(append([]float64(nil), data...))
	if weights != nil {
		space.Multiply(y, space.Wrap(weights), y)
	}
	if err = conv.Apply(d.b, y, vector.Adjoint); err != nil {
		return nil, err
	}

	problem := cg.Problem{Space: space, A: d.op, Atol: cfg.Atol, Rtol: cfg.Rtol}
	if cfg.Precond {
		d.pre = newSpectralInverse(d.op)
		problem.Precond = d.pre
	}
	if d.solver, err = problem.New(cfg.Logger); err != nil {
		return nil, err
	}
	return d, nil
}

// Space returns the space of the unknowns.
func (d *LinearDeconvolver) Space() *vector.Space { return d.space }

// Operator returns the left-hand side operator A of the normal equations.
func (d *LinearDeconvolver) Operator() vector.LinearOperator { return d.op }

// Convolution returns the convolution operator H.
func (d *LinearDeconvolver) Convolution() *Convolution { return d.conv }

// RHS returns the right-hand side b of the normal equations.
func (d *LinearDeconvolver) RHS() *vector.Vector { return d.b }

// Mu returns the regularization level.
func (d *LinearDeconvolver) Mu() float64 { return d.mu }

// SetMu changes the regularization level. Only the regularization term of
// the operator is rescaled, the next Solve is a fresh CG run.
func (d *LinearDeconvolver) SetMu(mu float64) error {
	if !(mu >= 0) || math.IsInf(mu, 1) {
		return fmt.Errorf("%w: %g", ErrBadMu, mu)
	}
	d.mu = mu
	d.op.setMu(mu * d.muFold)
	if d.pre != nil {
		d.pre.update(d.op)
	}
	return nil
}

// Solve improves x by at most maxIter iterations of conjugate gradients.
// When reset is true x is zeroed first, otherwise it is the initial guess.
func (d *LinearDeconvolver) Solve(x *vector.Vector, maxIter int, reset bool) cg.Status {
	if reset {
		d.space.Zero(x)
	}
	d.last = d.solver.Solve(x, d.b, maxIter)
	if d.logger.Enabled(logs.LogLast) {
		d.logger.Logf("deconv: μ = %g, %s after %d iterations, |r| = %.3e\n",
			d.mu, d.last.Status, d.last.NumIter, d.last.ResidualNorm)
	}
	return d.last.Status
}

// LastResult returns the outcome of the last Solve.
func (d *LinearDeconvolver) LastResult() cg.Result { return d.last }

// Cost returns ½·xᵀ·A·x - bᵀ·x, the quadratic minimized by Solve.
func (d *LinearDeconvolver) Cost(x *vector.Vector) (float64, error) {
	ax := d.space.Create()
	if err := d.op.Apply(ax, x, vector.Direct); err != nil {
		return math.NaN(), err
	}
	return 0.5*d.space.Dot(x, ax) - d.space.Dot(d.b, x), nil
}

// normalOperator applies A = Hᵀ·W·H + μ·Q. Without weights A is diagonal in
// the frequency domain.
type normalOperator struct {
	space   *vector.Space
	fft     *fftn
	mtf     []complex128
	q       []float64
	hth     []float64 // |h(k)|²
	diag    []float64 // |h(k)|² + μ·q(k), unweighted only
	weights []float64
	mu      float64
	z, zx   []complex128
	r       []float64
}

func newNormalOperator(conv *Convolution, weights []float64, mu float64) *normalOperator {
	n := conv.space.Size()
	a := &normalOperator{
		space:   conv.space,
		fft:     conv.fft,
		mtf:     conv.mtf,
		q:       isotropicSpectrum(conv.space.Shape()),
		hth:     make([]float64, n),
		weights: weights,
		z:       make([]complex128, n),
	}
	re, im := make([]float64, n), make([]float64, n)
	for i, h := range a.mtf {
		re[i], im[i] = real(h), imag(h)
	}
	vecmath.Power(a.hth, re, im)
	if weights == nil {
		a.diag = make([]float64, n)
	} else {
		a.zx = make([]complex128, n)
		a.r = make([]float64, n)
	}
	a.setMu(mu)
	return a
}

func (a *normalOperator) setMu(mu float64) {
	a.mu = mu
	if a.diag != nil {
		vecmath.ScaleBlock(a.diag, a.q, mu)
		vecmath.AddBlockInPlace(a.diag, a.hth)
	}
}

func (a *normalOperator) Apply(dst, src *vector.Vector, job vector.Job) error {
	if !a.space.Equal(dst.Space()) || !a.space.Equal(src.Space()) {
		panic("deconv: vector does not belong to the operator space")
	}
	switch job {
	case vector.Direct, vector.Adjoint:
	case vector.Inverse, vector.InverseAdjoint:
		if a.diag == nil {
			return fmt.Errorf("%w: weighted normal operator", vector.ErrNotInvertible)
		}
		for _, v := range a.diag {
			if v == 0 {
				return fmt.Errorf("%w: singular normal operator", vector.ErrNotInvertible)
			}
		}
	default:
		return vector.ErrBadJob
	}

	z := a.z
	if err := a.fft.forwardReal(z, src.Data()); err != nil {
		return err
	}

	if a.diag != nil {
		if job == vector.Direct || job == vector.Adjoint {
			for i, v := range a.diag {
				z[i] *= complex(v, 0)
			}
		} else {
			for i, v := range a.diag {
				z[i] /= complex(v, 0)
			}
		}
		return a.fft.inverseReal(dst.Data(), z)
	}

	// W·H·x
	copy(a.zx, z)
	for i, h := range a.mtf {
		z[i] *= h
	}
	if err := a.fft.inverseReal(a.r, z); err != nil {
		return err
	}
	vecmath.MulBlockInPlace(a.r, a.weights)

	// Hᵀ·W·H·x + μ·Q·x
	if err := a.fft.forwardReal(z, a.r); err != nil {
		return err
	}
	mu := a.mu
	for i, h := range a.mtf {
		z[i] = complex(real(h), -imag(h))*z[i] + complex(mu*a.q[i], 0)*a.zx[i]
	}
	return a.fft.inverseReal(dst.Data(), z)
}

// spectralInverse approximates A⁻¹ by the inverse of the frequency-domain
// diagonal w̄·|h(k)|² + μ·q(k), w̄ the mean weight.
type spectralInverse struct {
	space *vector.Space
	fft   *fftn
	inv   []float64
	z     []complex128
}

func newSpectralInverse(a *normalOperator) *spectralInverse {
	p := &spectralInverse{
		space: a.space,
		fft:   a.fft,
		inv:   make([]float64, len(a.hth)),
		z:     make([]complex128, len(a.hth)),
	}
	p.update(a)
	return p
}

func (p *spectralInverse) update(a *normalOperator) {
	wbar := 1.0
	if a.weights != nil {
		wbar = 0
		for _, w := range a.weights {
			wbar += w
		}
		wbar /= float64(len(a.weights))
	}
	vecmath.ScaleBlock(p.inv, a.hth, wbar)
	for i, q := range a.q {
		p.inv[i] += a.mu * q
	}
	top := 0.0
	for _, v := range p.inv {
		top = max(top, v)
	}
	floor := 1e-8 * top
	for i, v := range p.inv {
		if v < floor || v == 0 {
			v = max(floor, math.SmallestNonzeroFloat64)
		}
		p.inv[i] = 1 / v
	}
}

func (p *spectralInverse) Apply(dst, src *vector.Vector, job vector.Job) error {
	if job != vector.Direct && job != vector.Adjoint {
		return vector.ErrBadJob
	}
	z := p.z
	if err := p.fft.forwardReal(z, src.Data()); err != nil {
		return err
	}
	for i, v := range p.inv {
		z[i] *= complex(v, 0)
	}
	return p.fft.inverseReal(dst.Data(), z)
}
