package main

import (
	"github.com/spf13/cobra"

	"TarLab/internal/services/simulate"
	applogger "TarLab/pkg/logger"
	"TarLab/pkg/util"
)

func newSimulateCmd() *cobra.Command {
	ref := simulate.Reference()
	var (
		cfg    simulate.Config
		last   float64
		output string
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Write a simulated level series",
		Long:  "Draw a level series whose differences follow a band TAR process, one value per line.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := newLogger(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("threshold-last") {
				cfg = cfg.WithThresholdLast(last)
			}
			levels, err := simulate.Generate(cfg)
			if err != nil {
				return err
			}
			w, err := createOutput(output)
			if err != nil {
				return err
			}
			defer w.Close()
			if err := util.WriteSeries(w, levels); err != nil {
				return err
			}
			log.Info("series simulated",
				applogger.Uint64("seed", cfg.Seed),
				applogger.Int("n", cfg.N),
				applogger.Float64("rho", cfg.Rho),
				applogger.Float64("threshold", cfg.Threshold))
			return nil
		},
	}
	f := cmd.Flags()
	f.Uint64Var(&cfg.Seed, "seed", ref.Seed, "Random seed")
	f.IntVar(&cfg.N, "n", ref.N, "Number of levels")
	f.Float64Var(&cfg.Noise, "noise", ref.Noise, "Innovation standard deviation")
	f.Float64Var(&cfg.Rho, "rho", ref.Rho, "Adjustment coefficient outside the band, in (-2, 0]")
	f.Float64Var(&cfg.Threshold, "threshold", ref.Threshold, "Band threshold, or its first value with --threshold-last")
	f.Float64Var(&last, "threshold-last", 0, "Last threshold of a linear path; unset keeps it constant")
	f.Float64Var(&cfg.Start, "start", 0, "First level")
	f.StringVarP(&output, "output", "o", "-", "Output file, - for stdout")
	return cmd
}
