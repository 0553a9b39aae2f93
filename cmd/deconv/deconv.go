// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"math"
	"math/rand/v2"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/curioloop/deconv/deconv"
	"github.com/curioloop/deconv/logs"
	"github.com/curioloop/deconv/vector"
	"github.com/curioloop/deconv/vmlmb"
)

var deconvExample = `# restore with the Tikhonov solver
deconv --size=256 --mu=1e-3

# edge-preserving restoration with positivity, saving a plot
deconv --method=tv --mu=5e-3 --plot=restored.png

# read the settings from a file
deconv --config=run.yaml`

// DeconvOptions holds a validated run.
type DeconvOptions struct {
	Config

	Out    io.Writer
	Logger *logrus.Logger
}

// NewCmdDeconv returns the root command.
func NewCmdDeconv(out, errOut io.Writer) *cobra.Command {
	cfg := DefaultConfig()
	var configPath string

	cmd := &cobra.Command{
		Use:          "deconv",
		Short:        "Restore a synthetic blurred signal",
		Long:         "Blur a synthetic piecewise constant signal by a Gaussian PSF, add noise and restore it.",
		Example:      deconvExample,
		SilenceUsage: true,
		RunE: func(c *cobra.Command, args []string) error {
			o := &DeconvOptions{Config: cfg, Out: out}
			if err := o.Complete(configPath, c.Flags(), errOut); err != nil {
				return err
			}
			if err := o.Validate(); err != nil {
				return err
			}
			_, err := o.Run()
			return err
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "YAML file with the run settings.")
	flags.IntVar(&cfg.Size, "size", cfg.Size, "number of samples, a power of two.")
	flags.Float64Var(&cfg.Sigma, "sigma", cfg.Sigma, "standard deviation of the Gaussian PSF in samples.")
	flags.Float64Var(&cfg.Noise, "noise", cfg.Noise, "standard deviation of the additive Gaussian noise.")
	flags.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "seed of the noise generator.")
	flags.Float64Var(&cfg.Mu, "mu", cfg.Mu, "regularization level.")
	flags.Float64Var(&cfg.Epsilon, "epsilon", cfg.Epsilon, "threshold of the edge-preserving prior (tv method).")
	flags.StringVarP(&cfg.Method, "method", "m", cfg.Method, "restoration method. One of: cg, vmlmb, tv.")
	flags.IntVar(&cfg.MaxIter, "max-iter", cfg.MaxIter, "maximum number of iterations.")
	flags.StringVar(&cfg.Plot, "plot", cfg.Plot, "write a PNG plot of the signals to this file.")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "log the solver iterations.")
	return cmd
}

// Complete loads the config file, keeping the flags set on the command line.
func (o *DeconvOptions) Complete(configPath string, flags *pflag.FlagSet, errOut io.Writer) error {
	if configPath != "" {
		fromFile := DefaultConfig()
		if err := LoadConfig(configPath, &fromFile); err != nil {
			return err
		}
		merge(&o.Config, fromFile, flags)
	}

	o.Logger = logrus.New()
	o.Logger.SetOutput(errOut)
	o.Logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if o.Verbose {
		o.Logger.SetLevel(logrus.DebugLevel)
	}
	return nil
}

// merge copies the settings of the file which were not given as flags.
func merge(dst *Config, file Config, flags *pflag.FlagSet) {
	keep := func(name string) bool { return flags != nil && flags.Changed(name) }
	if !keep("size") {
		dst.Size = file.Size
	}
	if !keep("sigma") {
		dst.Sigma = file.Sigma
	}
	if !keep("noise") {
		dst.Noise = file.Noise
	}
	if !keep("seed") {
		dst.Seed = file.Seed
	}
	if !keep("mu") {
		dst.Mu = file.Mu
	}
	if !keep("epsilon") {
		dst.Epsilon = file.Epsilon
	}
	if !keep("method") {
		dst.Method = file.Method
	}
	if !keep("max-iter") {
		dst.MaxIter = file.MaxIter
	}
	if !keep("plot") {
		dst.Plot = file.Plot
	}
	if !keep("verbose") {
		dst.Verbose = file.Verbose
	}
}

// Report summarizes a run.
type Report struct {
	Method     string
	Status     string
	Iterations int
	RMSError   float64
	Truth      []float64
	Data       []float64
	Solution   []float64
}

// Run simulates the observations and restores them.
func (o *DeconvOptions) Run() (*Report, error) {
	log := o.Logger
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}

	truth, psf, data := simulate(o.Size, o.Sigma, o.Noise, o.Seed)
	log.WithFields(logrus.Fields{
		"size":  o.Size,
		"sigma": o.Sigma,
		"noise": o.Noise,
		"seed":  o.Seed,
	}).Info("simulated observations")

	var solverLog *logs.Logger
	if o.Verbose {
		w := log.WriterLevel(logrus.DebugLevel)
		defer w.Close()
		solverLog = &logs.Logger{Level: logs.LogTrace, Msg: w}
	}

	rep := &Report{Method: o.Method, Truth: truth, Data: data}
	sp := vector.NewSpace(o.Size)
	x := sp.Create()

	switch o.Method {
	case MethodCG:
		d, err := deconv.NewLinearDeconvolver([]int{o.Size}, data, psf, nil, o.Mu,
			deconv.WithTolerance(0, 1e-8), deconv.WithLogger(solverLog))
		if err != nil {
			return nil, err
		}
		status := d.Solve(x, o.MaxIter, true)
		rep.Status = status.String()
		rep.Iterations = d.LastResult().NumIter

	case MethodVMLMB, MethodTV:
		conv, err := deconv.NewConvolution(sp, psf)
		if err != nil {
			return nil, err
		}
		fit, err := deconv.NewDataCost(conv, data, nil)
		if err != nil {
			return nil, err
		}
		var prior deconv.Cost
		if o.Method == MethodTV {
			prior, err = deconv.NewHyperbolicTV(sp, o.Mu, o.Epsilon)
		} else {
			prior, err = deconv.NewSmoothness(sp, o.Mu)
		}
		if err != nil {
			return nil, err
		}
		opts := vmlmb.DefaultOptions()
		opts.Logger = solverLog
		res, err := deconv.Restore(deconv.Composite{fit, prior}, x, true, &opts,
			vmlmb.Termination{MaxIterations: o.MaxIter})
		if err != nil {
			return nil, err
		}
		rep.Status = fmt.Sprintf("%s/%s", res.Task, res.Reason)
		rep.Iterations = res.NumIter
	}

	rep.Solution = x.Data()
	rep.RMSError = rms(rep.Solution, truth)
	log.WithFields(logrus.Fields{
		"method":     rep.Method,
		"status":     rep.Status,
		"iterations": rep.Iterations,
	}).Info("restoration finished")

	fmt.Fprintf(o.Out, "method=%s status=%s iterations=%d rms=%.6g data-rms=%.6g\n",
		rep.Method, rep.Status, rep.Iterations, rep.RMSError, rms(data, truth))

	if o.Plot != "" {
		if err := savePlot(o.Plot, rep); err != nil {
			return rep, err
		}
		log.WithField("file", o.Plot).Info("plot saved")
	}
	return rep, nil
}

// simulate returns a piecewise constant signal, a normalized Gaussian PSF
// centered at index 0 and the blurred noisy observations.
func simulate(n int, sigma, noise float64, seed uint64) (truth, psf, data []float64) {
	truth = make([]float64, n)
	for i := range truth {
		switch {
		case i >= n/8 && i < n/4:
			truth[i] = 1
		case i >= 3*n/8 && i < n/2:
			truth[i] = 0.5
		case i >= 5*n/8 && i < 7*n/8:
			truth[i] = float64(i-5*n/8) / float64(n/4)
		}
	}

	psf = make([]float64, n)
	sum := 0.0
	for i := range psf {
		d := float64(min(i, n-i))
		psf[i] = math.Exp(-0.5 * d * d / (sigma * sigma))
		sum += psf[i]
	}
	for i := range psf {
		psf[i] /= sum
	}

	rng := rand.New(rand.NewPCG(seed, 0))
	data = make([]float64, n)
	for i := range data {
		for j, h := range psf {
			data[i] += h * truth[((i-j)%n+n)%n]
		}
		data[i] += noise * rng.NormFloat64()
	}
	return
}

func rms(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return math.Sqrt(s / float64(len(a)))
}
