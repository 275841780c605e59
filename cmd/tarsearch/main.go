package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	applogger "TarLab/pkg/logger"
	"TarLab/pkg/util"
)

const version = "v0.4.0"

func main() {
	rootCmd := &cobra.Command{
		Use:     "tarsearch",
		Short:   "Threshold autoregressive grid search",
		Version: version,
		Long: `tarsearch estimates the band threshold of a TAR(1) adjustment process by
grid search over admissible thresholds, either locally or against a running
TarLab server.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug|info|warn|error)")

	rootCmd.AddCommand(newSimulateCmd(), newEstimateCmd(), newRemoteCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cmd *cobra.Command) (*applogger.Logger, error) {
	level, _ := cmd.Flags().GetString("log-level")
	return applogger.New(&applogger.Config{Level: level, Format: "console", Output: "stderr"})
}

// readInput reads a series from path, or stdin for "-".
func readInput(path string) ([]float64, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	xs, err := util.ReadSeries(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return xs, nil
}

// createOutput opens path for writing, or stdout for "-".
func createOutput(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
