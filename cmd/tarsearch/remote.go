package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"TarLab/internal/domain/models"
	xhttp "TarLab/pkg/http"
)

func newRemoteCmd() *cobra.Command {
	f := &estimateFlags{}
	var (
		serverURL string
		timeout   time.Duration
		async     bool
	)
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Estimate the threshold of a series on a TarLab server",
		Long: `Send the series to a TarLab server and print the estimate. With --async the
request is queued as a job and its id printed; poll it with "remote job <id>".`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := f.request()
			if err != nil {
				return err
			}
			client := xhttp.NewClient(xhttp.WithBaseURL(serverURL), xhttp.WithTimeout(timeout))

			opts := &xhttp.RequestOptions{Method: xhttp.MethodPost, URL: "/api/tar/" + f.variant, Body: req}
			if async {
				opts.URL = "/api/tar/jobs"
				opts.Body = models.EstimationJob{Variant: models.Variant(f.variant), Request: *req}
			}
			var out json.RawMessage
			if err := client.Call(cmd.Context(), opts, &out); err != nil {
				return fmt.Errorf("%s: %w", opts.URL, err)
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	f.register(cmd)
	cmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "TarLab server URL")
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Request timeout")
	cmd.Flags().BoolVar(&async, "async", false, "Queue the estimation as a job")

	cmd.AddCommand(&cobra.Command{
		Use:   "job <id>",
		Short: "Show the state of a queued estimation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := xhttp.NewClient(xhttp.WithBaseURL(serverURL), xhttp.WithTimeout(timeout))
			var out json.RawMessage
			if err := client.Call(cmd.Context(), &xhttp.RequestOptions{Method: xhttp.MethodGet, URL: "/api/tar/jobs/" + args[0]}, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	})
	return cmd
}
