// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package deconv

import (
	"errors"
	"fmt"
	"math"

	"github.com/curioloop/deconv/vector"
)

// Cost is a differentiable objective function.
type Cost interface {
	// Evaluate returns alpha·f(x) and stores alpha·∇f(x) into g when clr is
	// true, or adds it to g otherwise.
	Evaluate(alpha float64, x, g *vector.Vector, clr bool) (float64, error)
}

// CostFunc adapts an ordinary function to a Cost.
type CostFunc func(alpha float64, x, g *vector.Vector, clr bool) (float64, error)

func (f CostFunc) Evaluate(alpha float64, x, g *vector.Vector, clr bool) (float64, error) {
	return f(alpha, x, g, clr)
}

// DataCost is the weighted least squares data fidelity ½‖H·x - y‖²_W.
type DataCost struct {
	conv    *Convolution
	y       *vector.Vector
	weights *vector.Vector
	r       *vector.Vector
}

// NewDataCost returns the data fidelity of the observations y blurred by
// conv. Nil weights stand for unit weights.
func NewDataCost(conv *Convolution, y, weights []float64) (*DataCost, error) {
	sp := conv.Space()
	switch {
	case len(y) != sp.Size():
		return nil, fmt.Errorf("deconv: data has %d entries, expected %d", len(y), sp.Size())
	case weights != nil && len(weights) != sp.Size():
		return nil, fmt.Errorf("deconv: weights have %d entries, expected %d", len(weights), sp.Size())
	}
	c := &DataCost{conv: conv, y: sp.Wrap(y), r: sp.Create()}
	if weights != nil {
		for _, w := range weights {
			if !(w >= 0) || math.IsInf(w, 1) {
				return nil, ErrBadWeights
			}
		}
		c.weights = sp.Wrap(weights)
	}
	return c, nil
}

func (c *DataCost) Evaluate(alpha float64, x, g *vector.Vector, clr bool) (float64, error) {
	sp := c.conv.Space()
	r := c.r
	if err := c.conv.Apply(r, x, vector.Direct); err != nil {
		return math.NaN(), err
	}
	sp.Axpby(r, 1, r, -1, c.y)

	var f float64
	if c.weights != nil {
		w, rd := c.weights.Data(), r.Data()
		for i, ri := range rd {
			f += w[i] * ri * ri
		}
		sp.Multiply(r, c.weights, r)
	} else {
		f = sp.Dot(r, r)
	}

	if err := c.conv.Apply(r, r, vector.Adjoint); err != nil {
		return math.NaN(), err
	}
	accumulate(g, alpha, r, clr)
	return alpha * f / 2, nil
}

// Smoothness is the quadratic regularization ½μ·xᵀ·Q·x.
type Smoothness struct {
	reg *Regularizer
	mu  float64
	qx  *vector.Vector
}

// NewSmoothness returns the quadratic regularization of level mu.
func NewSmoothness(space *vector.Space, mu float64) (*Smoothness, error) {
	if !(mu >= 0) || math.IsInf(mu, 1) {
		return nil, fmt.Errorf("%w: %g", ErrBadMu, mu)
	}
	reg, err := NewRegularizer(space)
	if err != nil {
		return nil, err
	}
	return &Smoothness{reg: reg, mu: mu, qx: space.Create()}, nil
}

func (c *Smoothness) Evaluate(alpha float64, x, g *vector.Vector, clr bool) (float64, error) {
	if err := c.reg.Apply(c.qx, x, vector.Direct); err != nil {
		return math.NaN(), err
	}
	f := c.reg.space.Dot(x, c.qx)
	accumulate(g, alpha*c.mu, c.qx, clr)
	return alpha * c.mu * f / 2, nil
}

// HyperbolicTV is the edge-preserving regularization
//
//	μ Σᵢ (sqrt(‖∇xᵢ‖² + ε²) - ε)
//
// with forward differences and periodic boundary conditions.
type HyperbolicTV struct {
	space *vector.Space
	mu    float64
	eps   float64
	d     []float64
}

// NewHyperbolicTV returns the regularization of level mu and threshold eps > 0.
func NewHyperbolicTV(space *vector.Space, mu, eps float64) (*HyperbolicTV, error) {
	switch {
	case !(mu >= 0) || math.IsInf(mu, 1):
		return nil, fmt.Errorf("%w: %g", ErrBadMu, mu)
	case !(eps > 0) || math.IsInf(eps, 1):
		return nil, errors.New("deconv: threshold of hyperbolic TV must be positive")
	}
	return &HyperbolicTV{space: space, mu: mu, eps: eps, d: make([]float64, space.Rank())}, nil
}

func (c *HyperbolicTV) Evaluate(alpha float64, x, g *vector.Vector, clr bool) (float64, error) {
	sp := c.space
	if !sp.Equal(x.Space()) || !sp.Equal(g.Space()) {
		panic("deconv: vector does not belong to the cost space")
	}
	if clr {
		sp.Zero(g)
	}
	xd, gd := x.Data(), g.Data()
	shape := sp.Shape()
	eps2 := c.eps * c.eps
	scl := alpha * c.mu

	f := 0.0
	for i, xi := range xd {
		ss, stride := eps2, 1
		for j, n := range shape {
			d := 0.0
			if n > 1 {
				d = xd[neighbor(i, stride, n)] - xi
			}
			c.d[j] = d
			ss += d * d
			stride *= n
		}
		r := math.Sqrt(ss)
		f += r - c.eps
		if scl == 0 {
			continue
		}
		stride = 1
		for j, n := range shape {
			if d := c.d[j]; d != 0 {
				u := scl * d / r
				gd[i] -= u
				gd[neighbor(i, stride, n)] += u
			}
			stride *= n
		}
	}
	return scl * f, nil
}

// neighbor returns the index following i along the axis of the given stride
// and length, wrapping around.
func neighbor(i, stride, n int) int {
	if (i/stride)%n == n-1 {
		return i - (n-1)*stride
	}
	return i + stride
}

// Composite is the sum of costs.
type Composite []Cost

func (c Composite) Evaluate(alpha float64, x, g *vector.Vector, clr bool) (float64, error) {
	if len(c) == 0 {
		if clr {
			x.Space().Zero(g)
		}
		return 0, nil
	}
	f := 0.0
	for k, cost := range c {
		fk, err := cost.Evaluate(alpha, x, g, clr && k == 0)
		if err != nil {
			return math.NaN(), err
		}
		f += fk
	}
	return f, nil
}

// accumulate stores a·v into g when clr is true, adds it otherwise.
func accumulate(g *vector.Vector, a float64, v *vector.Vector, clr bool) {
	if clr {
		g.Space().Scale(g, a, v)
	} else {
		g.Space().Axpby(g, 1, g, a, v)
	}
}
