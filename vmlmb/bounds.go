// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vmlmb

import (
	"errors"
	"fmt"
	"math"

	"github.com/curioloop/deconv/vector"
)

// BoundProjector restricts the variables to a convex feasible set.
type BoundProjector interface {
	// ProjectVariables stores the feasible point closest to x into dst.
	ProjectVariables(dst, x *vector.Vector)
	// ProjectDirection stores d into dst with the components zeroed that
	// would leave the feasible set along x - α·d for a small α > 0.
	ProjectDirection(dst, x, d *vector.Vector)
	// FreeVariables stores 1 into dst where x may move along -g and 0 where
	// x sits on a bound that -g points out of.
	FreeVariables(dst, x, g *vector.Vector)
}

// Box is a separable set of bounds lᵢ ≤ xᵢ ≤ uᵢ.
type Box struct {
	space        *vector.Space
	lower, upper []float64
}

// NewBox creates a box from per-component bounds.
// A nil slice or a NaN component means unbounded.
func NewBox(space *vector.Space, lower, upper []float64) (*Box, error) {
	n := space.Size()
	switch {
	case lower != nil && len(lower) != n:
		return nil, errors.New("vmlmb: lower bound size must equal to the space size")
	case upper != nil && len(upper) != n:
		return nil, errors.New("vmlmb: upper bound size must equal to the space size")
	}
	b := &Box{space: space, lower: make([]float64, n), upper: make([]float64, n)}
	for i := 0; i < n; i++ {
		l, u := math.Inf(-1), math.Inf(1)
		if lower != nil && !math.IsNaN(lower[i]) {
			l = lower[i]
		}
		if upper != nil && !math.IsNaN(upper[i]) {
			u = upper[i]
		}
		if l > u {
			return nil, fmt.Errorf("vmlmb: bound range at %d has no feasible solution", i)
		}
		b.lower[i], b.upper[i] = l, u
	}
	return b, nil
}

// NewScalarBox creates a box with the same bounds for every component.
func NewScalarBox(space *vector.Space, lower, upper float64) (*Box, error) {
	n := space.Size()
	l, u := make([]float64, n), make([]float64, n)
	for i := range l {
		l[i], u[i] = lower, upper
	}
	return NewBox(space, l, u)
}

// Lower returns the lower bounds, -Inf where unbounded.
func (b *Box) Lower() []float64 { return b.lower }

// Upper returns the upper bounds, +Inf where unbounded.
func (b *Box) Upper() []float64 { return b.upper }

func (b *Box) ProjectVariables(dst, x *vector.Vector) {
	b.space.Copy(dst, x)
	d := dst.Data()
	for i, v := range d {
		d[i] = math.Min(math.Max(v, b.lower[i]), b.upper[i])
	}
}

func (b *Box) ProjectDirection(dst, x, d *vector.Vector) {
	b.space.Copy(dst, d)
	p, xv := dst.Data(), x.Data()
	if len(xv) != len(p) {
		panic("bound check error")
	}
	for i, v := range p {
		if (v > 0 && xv[i] <= b.lower[i]) || (v < 0 && xv[i] >= b.upper[i]) {
			p[i] = 0
		}
	}
}

func (b *Box) FreeVariables(dst, x, g *vector.Vector) {
	b.space.Fill(dst, 1)
	m, xv, gv := dst.Data(), x.Data(), g.Data()
	if len(xv) != len(m) || len(gv) != len(m) {
		panic("bound check error")
	}
	for i, v := range gv {
		if (v > 0 && xv[i] <= b.lower[i]) || (v < 0 && xv[i] >= b.upper[i]) {
			m[i] = 0
		}
	}
}

var _ BoundProjector = (*Box)(nil)
