// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package deconv

import (
	"errors"
	"fmt"
	"math"

	"github.com/curioloop/deconv/vector"
	"github.com/curioloop/deconv/vmlmb"
)

// ErrNotFinite reports a cost which is not finite at the evaluated point.
var ErrNotFinite = errors.New("deconv: cost is not finite")

// Restore minimizes cost from the initial guess x with VMLMB, the solution
// being stored into x. When nonneg is true the variables are constrained to
// be non-negative. A nil opts selects vmlmb.DefaultOptions.
// The returned error is set when the optimizer cannot be created or the cost
// fails, in which case the result reports vmlmb.EvalFailed.
func Restore(cost Cost, x *vector.Vector, nonneg bool, opts *vmlmb.Options, stop vmlmb.Termination) (*vmlmb.Result, error) {
	space := x.Space()
	o := vmlmb.DefaultOptions()
	if opts != nil {
		o = *opts
	}
	if nonneg {
		box, err := vmlmb.NewScalarBox(space, 0, math.NaN())
		if err != nil {
			return nil, err
		}
		o.Bounds = box
	}

	opt, err := vmlmb.New(space, &o)
	if err != nil {
		return nil, err
	}

	eval := func(x, g *vector.Vector) (float64, error) {
		f, err := cost.Evaluate(1, x, g, true)
		if err == nil && (math.IsNaN(f) || math.IsInf(f, 0)) {
			err = fmt.Errorf("%w: f = %g", ErrNotFinite, f)
		}
		return f, err
	}
	return opt.FitE(x, eval, stop)
}
