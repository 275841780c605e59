package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"TarLab/internal/domain/models"
	"TarLab/internal/services/tar"
	"TarLab/internal/usecase"
	applogger "TarLab/pkg/logger"
	"TarLab/pkg/metrics"
)

type estimateFlags struct {
	variant     string
	input       string
	differences bool
	share       float64
	workers     int
	maxCands    int
	omitDiag    bool
	progress    bool
	timeout     time.Duration
}

func (f *estimateFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.variant, "variant", string(models.VariantConstant), "Search variant (constant|timevarying)")
	fl.StringVarP(&f.input, "input", "i", "-", "Series file, - for stdin")
	fl.BoolVar(&f.differences, "differences", false, "Input is already differenced")
	fl.Float64Var(&f.share, "share", tar.DefaultMinRegimeShare, "Minimum share of rows in each regime")
	fl.IntVar(&f.maxCands, "max-candidates", 0, "Thin the candidate set to this size; 0 keeps all")
	fl.BoolVar(&f.omitDiag, "omit-diagnostics", false, "Drop the RSS curve or surface from the output")
}

func (f *estimateFlags) request() (*models.EstimateRequest, error) {
	if v := models.Variant(f.variant); !v.Valid() {
		return nil, fmt.Errorf("unknown variant %q", f.variant)
	}
	xs, err := readInput(f.input)
	if err != nil {
		return nil, err
	}
	req := &models.EstimateRequest{
		MinRegimeShare:  f.share,
		MaxCandidates:   f.maxCands,
		Workers:         f.workers,
		OmitDiagnostics: f.omitDiag,
		Label:           f.input,
	}
	if f.differences {
		req.Differences = xs
	} else {
		req.Levels = xs
	}
	return req, nil
}

func newEstimateCmd() *cobra.Command {
	f := &estimateFlags{}
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the threshold of a series locally",
		Long:  "Read a newline, comma or whitespace separated series and print the estimate as JSON.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := newLogger(cmd)
			if err != nil {
				return err
			}
			req, err := f.request()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			est := usecase.NewEstimationUseCase(usecase.EstimatorConfig{
				Workers:        f.workers,
				MinRegimeShare: tar.DefaultMinRegimeShare,
				Timeout:        f.timeout,
			}, nil, nil, nil, nil, nil, metrics.NewWithRegistry(prometheus.NewRegistry()), log)

			start := time.Now()
			res, err := runLocal(ctx, est, models.Variant(f.variant), req, f.progress)
			if err != nil {
				return err
			}
			log.Info("estimation finished",
				applogger.String("variant", f.variant),
				applogger.Duration("elapsed", time.Since(start)))
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	f.register(cmd)
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Search goroutines; 0 uses GOMAXPROCS")
	cmd.Flags().BoolVar(&f.progress, "progress", false, "Report time-varying progress on stderr")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Abort the search after this long; 0 waits")
	return cmd
}

func runLocal(ctx context.Context, est *usecase.EstimationUseCase, v models.Variant, req *models.EstimateRequest, progress bool) (interface{}, error) {
	if v == models.VariantConstant {
		return est.EstimateConstant(ctx, req)
	}
	var report func(models.Progress)
	if progress {
		var (
			mu   sync.Mutex
			last time.Time
		)
		report = func(p models.Progress) {
			mu.Lock()
			defer mu.Unlock()
			if time.Since(last) < 500*time.Millisecond && p.Done < p.Total {
				return
			}
			last = time.Now()
			fmt.Fprintf(os.Stderr, "\r%d/%d regressions", p.Done, p.Total)
			if p.Done == p.Total {
				fmt.Fprintln(os.Stderr)
			}
		}
	}
	return est.EstimateTimeVarying(ctx, req, report)
}
