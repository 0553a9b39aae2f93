// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package deconv restores blurred arrays of any rank.
//
// The blur is a circulant convolution by a point spread function (PSF),
// diagonalized by the discrete Fourier transform. Two solvers are provided:
//
//   - LinearDeconvolver solves the Tikhonov regularized weighted least
//     squares problem through its normal equations by conjugate gradients.
//   - Restore minimizes any differentiable Cost, for instance a data
//     fidelity plus an edge-preserving HyperbolicTV prior, with the VMLMB
//     quasi-Newton method, optionally under a positivity constraint.
//
// Arrays are stored flat with the first dimension varying fastest and the
// PSF has its origin at index 0.
package deconv
