// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linesearch

import (
	"math"
	"testing"
)

// stretch always asks for a step ten times larger.
type stretch struct{}

func (stretch) Start(*LineSearch) Status { return Search }

func (stretch) Iterate(_ *LineSearch, stp, _, _ float64) (float64, Status) {
	return 10 * stp, Search
}

// shrink always asks for a step ten times smaller.
type shrink struct{}

func (shrink) Start(*LineSearch) Status { return Search }

func (shrink) Iterate(_ *LineSearch, stp, _, _ float64) (float64, Status) {
	return stp / 10, Search
}

func TestStartArguments(t *testing.T) {
	cases := []struct {
		f0, g0, stp, lo, hi float64
		want                Status
	}{
		{0, -1, 1, 0, 10, Search},
		{0, -1, 1, -1, 10, ErrStpminLtZero},
		{0, -1, 1, 5, 2, ErrStpminGtStpmax},
		{0, -1, 1, 2, 10, ErrStpLtStpmin},
		{0, -1, 11, 0, 10, ErrStpGtStpmax},
		{0, 0, 1, 0, 10, ErrInitialDerivativeGeZero},
		{0, 1, 1, 0, 10, ErrInitialDerivativeGeZero},
		{0, math.Inf(1), 1, 0, 10, ErrInitialDerivativeGeZero},
		{0, math.NaN(), 1, 0, 10, ErrInitialDerivativeGeZero},
		{0, -1, math.NaN(), 0, 10, ErrStpLtStpmin},
		{0, -1, 1, 0, math.NaN(), ErrStpminGtStpmax},
		{0, -1, 1, math.NaN(), 10, ErrStpminLtZero},
	}
	for i, c := range cases {
		ls, _ := NewMoreThuenteSearch(DefaultFtol, DefaultGtol, DefaultXtol)
		if got := ls.Start(c.f0, c.g0, c.stp, c.lo, c.hi); got != c.want {
			t.Fatalf("case %d: got %v want %v", i, got, c.want)
		}
		if c.want != Search && !ls.HasErrors() {
			t.Fatalf("case %d: error status not reported", i)
		}
	}
}

func TestIterateProtocol(t *testing.T) {
	ls := New(stretch{})
	if ls.Status() != NotStarted || ls.Finished() {
		t.Fatal("fresh search should not be started")
	}
	if got := ls.Iterate(0, 0, 0); got != ErrNotStarted {
		t.Fatalf("iterate before start: got %v", got)
	}

	if ls.Status() != NotStarted {
		t.Fatalf("iterate before start changed the status to %v", ls.Status())
	}

	for _, f := range []float64{-1, 0, 1, math.NaN()} {
		ls.Start(0, -1, 1, 0, 100)
		if got := ls.Iterate(ls.Step()*(1+1e-15), f, -1); got != ErrStpChanged {
			t.Fatalf("changed step: got %v", got)
		}
		if !ls.Finished() || !ls.HasErrors() {
			t.Fatal("changed step must terminate the search")
		}
	}
}

func TestStepClampedToBounds(t *testing.T) {
	ls := New(stretch{})
	ls.Start(0, -1, 1, 0, 2)
	if got := ls.Iterate(1, -1, -1); got != Search || ls.Step() != 2 {
		t.Fatalf("got %v, step %v", got, ls.Step())
	}
	if got := ls.Iterate(2, -2, -1); got != WarnStpEqMax {
		t.Fatalf("got %v", got)
	}
	if !ls.HasWarnings() || ls.Converged() || !ls.Finished() {
		t.Fatal("stuck at upper bound should be a warning")
	}

	ls = New(shrink{})
	ls.Start(0, -1, 1, 0.5, 2)
	if got := ls.Iterate(1, 1, 1); got != Search || ls.Step() != 0.5 {
		t.Fatalf("got %v, step %v", got, ls.Step())
	}
	if got := ls.Iterate(0.5, 1, 1); got != WarnStpEqMin {
		t.Fatalf("got %v", got)
	}
}

func TestIterateAfterFinish(t *testing.T) {
	ls, _ := NewMoreThuenteSearch(DefaultFtol, DefaultGtol, DefaultXtol)
	// φ(s) = (s - 1)² - 1 is minimal at the first trial step.
	ls.Start(0, -2, 1, 0, 10)
	if got := ls.Iterate(1, -1, 0); got != Convergence {
		t.Fatalf("got %v", got)
	}
	if got := ls.Iterate(1, -1, 0); got != ErrNotStarted {
		t.Fatalf("iterate after convergence: got %v", got)
	}
	if !ls.Converged() || ls.Status() != Convergence || ls.HasErrors() {
		t.Fatalf("status overwritten by %v", ls.Status())
	}
}

func TestMessages(t *testing.T) {
	for s := ErrNotStarted; s <= WarnStpEqMin; s++ {
		if Message(s) == "" || s.String() != Message(s) {
			t.Fatalf("missing message for %d", int(s))
		}
	}
	if Message(Status(42)) != "unknown line search status (42)" {
		t.Fatal(Message(Status(42)))
	}
}

func TestArmijo(t *testing.T) {
	if _, err := NewArmijo(1e-4, 0.6, 0.5); err == nil {
		t.Fatal("expect error for amin > amax")
	}
	ls, err := NewArmijoSearch(1e-4, 0.1, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	phi := func(s float64) float64 { return (s - 0.05) * (s - 0.05) }
	f0, g0 := phi(0), -0.1

	status := ls.Start(f0, g0, 1, 0, 1)
	for n := 0; status == Search; n++ {
		if n > 50 {
			t.Fatal("armijo does not terminate")
		}
		stp := ls.Step()
		status = ls.Iterate(stp, phi(stp), 2*(stp-0.05))
	}
	if status != Convergence {
		t.Fatalf("got %v", status)
	}
	stp := ls.Step()
	if phi(stp) > f0+1e-4*stp*g0 {
		t.Fatal("sufficient decrease does not hold")
	}
}
