// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vector

import (
	"errors"
	"math"
	"testing"
)

func TestSpaceShape(t *testing.T) {
	s := NewSpace(4, 3, 2)
	switch {
	case s.Size() != 24:
		t.Fatalf("unexpected size %d", s.Size())
	case s.Rank() != 3 || s.Dim(1) != 3:
		t.Fatal("unexpected shape")
	case !s.Equal(NewSpace(4, 3, 2)):
		t.Fatal("spaces with identical shape must be equal")
	case s.Equal(NewSpace(4, 6)):
		t.Fatal("spaces with different shape must differ")
	}

	shape := s.Shape()
	shape[0] = 100
	if s.Dim(0) != 4 {
		t.Fatal("shape must be copied")
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expect panic on non-positive dimension")
		}
	}()
	NewSpace(3, 0)
}

func TestArithmetic(t *testing.T) {
	s := NewSpace(5)
	x := s.Wrap([]float64{1, 2, 3, 4, 5})
	y := s.Wrap([]float64{-1, 0, 1, 0, -1})
	z := s.Create()

	if d := s.Dot(x, y); d != -3 {
		t.Fatalf("unexpected dot %v", d)
	}
	if n := s.Norm2(x); math.Abs(n-math.Sqrt(55)) > 1e-14 {
		t.Fatalf("unexpected norm %v", n)
	}
	if n := s.Norm1(y); n != 3 {
		t.Fatalf("unexpected norm1 %v", n)
	}
	if n := s.NormInf(x); n != 5 {
		t.Fatalf("unexpected normInf %v", n)
	}

	tests := []struct {
		a, b float64
	}{
		{0, 2}, {2, 0}, {1, -3}, {-3, 1}, {0.5, 0.25},
	}
	for _, tt := range tests {
		s.Axpby(z, tt.a, x, tt.b, y)
		for i := range z.Data() {
			if want := tt.a*x.At(i) + tt.b*y.At(i); z.At(i) != want {
				t.Fatalf("axpby(%v,%v) [%d]: got %v want %v", tt.a, tt.b, i, z.At(i), want)
			}
		}
	}

	// aliased destination
	w := s.Clone(x)
	s.Axpby(w, 2, w, -1, y)
	for i := range w.Data() {
		if want := 2*x.At(i) - y.At(i); w.At(i) != want {
			t.Fatalf("aliased axpby [%d]: got %v want %v", i, w.At(i), want)
		}
	}

	s.Combine(z, 1, x, 1, y, -2, x)
	for i := range z.Data() {
		if want := -x.At(i) + y.At(i); z.At(i) != want {
			t.Fatalf("combine [%d]: got %v want %v", i, z.At(i), want)
		}
	}

	s.Multiply(z, x, y)
	for i := range z.Data() {
		if want := x.At(i) * y.At(i); z.At(i) != want {
			t.Fatalf("multiply [%d]: got %v want %v", i, z.At(i), want)
		}
	}

	s.Scale(z, 0, x)
	if s.NormInf(z) != 0 {
		t.Fatal("scale by zero must clear")
	}
}

func TestSpaceMismatch(t *testing.T) {
	a, b := NewSpace(3), NewSpace(4)
	defer func() {
		if recover() == nil {
			t.Fatal("expect panic on foreign vector")
		}
	}()
	a.Dot(a.Create(), b.Create())
}

func TestDiagonal(t *testing.T) {
	s := NewSpace(3)
	d := NewDiagonal(s, []float64{2, 4, 0.5})
	x := s.Wrap([]float64{1, 1, 1})
	y := s.Create()

	if err := d.Apply(y, x, Direct); err != nil {
		t.Fatal(err)
	}
	if y.At(0) != 2 || y.At(1) != 4 || y.At(2) != 0.5 {
		t.Fatalf("unexpected direct result %v", y.Data())
	}
	if err := d.Apply(y, y, Inverse); err != nil {
		t.Fatal(err)
	}
	if y.At(0) != 1 || y.At(1) != 1 || y.At(2) != 1 {
		t.Fatalf("unexpected inverse result %v", y.Data())
	}

	z := NewDiagonal(s, []float64{1, 0, 1})
	if err := z.Apply(y, x, Inverse); !errors.Is(err, ErrNotInvertible) {
		t.Fatalf("expect ErrNotInvertible, got %v", err)
	}
	if err := z.Apply(y, x, Job(9)); !errors.Is(err, ErrBadJob) {
		t.Fatalf("expect ErrBadJob, got %v", err)
	}
}

func TestIdentity(t *testing.T) {
	s := NewSpace(2, 2)
	x := s.Wrap([]float64{1, -2, 3, 0.5})
	y := s.Create()

	var op LinearOperator = Identity{}
	for job := Direct; job <= InverseAdjoint; job++ {
		s.Zero(y)
		if err := op.Apply(y, x, job); err != nil {
			t.Fatal(job, err)
		}
		for i := 0; i < s.Size(); i++ {
			if y.At(i) != x.At(i) {
				t.Fatalf("%v: y[%d] = %v, want %v", job, i, y.At(i), x.At(i))
			}
		}
	}
	if err := op.Apply(x, x, Direct); err != nil || x.At(1) != -2 {
		t.Fatal("in place application failed", err)
	}
	if err := op.Apply(y, x, Job(-1)); !errors.Is(err, ErrBadJob) {
		t.Fatalf("expect ErrBadJob, got %v", err)
	}
}
