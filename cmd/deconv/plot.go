// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

func series(y []float64) plotter.XYs {
	pts := make(plotter.XYs, len(y))
	for i, v := range y {
		pts[i].X = float64(i)
		pts[i].Y = v
	}
	return pts
}

// savePlot draws the truth, the observations and the restoration.
func savePlot(path string, rep *Report) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s restoration (rms %.3g)", rep.Method, rep.RMSError)
	p.X.Label.Text = "sample"
	p.Y.Label.Text = "value"
	p.Add(plotter.NewGrid())

	for _, s := range []struct {
		name  string
		data  []float64
		color color.Color
		dash  bool
	}{
		{"truth", rep.Truth, color.RGBA{A: 255}, true},
		{"data", rep.Data, color.RGBA{R: 200, G: 120, A: 255}, false},
		{"restored", rep.Solution, color.RGBA{B: 220, A: 255}, false},
	} {
		line, err := plotter.NewLine(series(s.data))
		if err != nil {
			return err
		}
		line.LineStyle.Color = s.color
		line.LineStyle.Width = vg.Points(1)
		if s.dash {
			line.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		}
		p.Add(line)
		p.Legend.Add(s.name, line)
	}
	p.Legend.Top = true

	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("saving plot: %w", err)
	}
	return nil
}
