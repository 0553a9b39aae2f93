// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command deconv restores a synthetic blurred and noisy 1-D signal with the
// solvers of the deconv package.
package main

import (
	"os"
)

func main() {
	if err := NewCmdDeconv(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
