// Command ingestclient drives the transcript insights HTTP API from a terminal.
package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type options struct {
	server  string
	tenant  string
	timeout time.Duration
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "ingestclient",
		Short:        "Submit transcripts, fetch results and trigger rescoring",
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&opts.server, "server", envOr("INSIGHTS_SERVER", "http://localhost:8000"), "service base URL")
	root.PersistentFlags().StringVar(&opts.tenant, "tenant", envOr("INSIGHTS_TENANT", ""), "tenant id sent as X-Tenant-ID")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "request timeout")

	root.AddCommand(
		newIngestCmd(opts),
		newResultCmd(opts),
		newRescoreCmd(opts),
	)
	return root
}

func newIngestCmd(opts *options) *cobra.Command {
	var (
		text     string
		wait     time.Duration
		textFile string
	)

	cmd := &cobra.Command{
		Use:   "ingest CONVERSATION_ID",
		Short: "Submit a transcript for scoring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if textFile != "" {
				data, err := readText(textFile)
				if err != nil {
					return err
				}
				text = data
			}

			client, err := opts.client()
			if err != nil {
				return err
			}
			ack, err := client.Ingest(cmd.Context(), args[0], text)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), ack); err != nil {
				return err
			}
			if wait <= 0 {
				return nil
			}
			return pollResult(cmd.Context(), cmd.OutOrStdout(), client, args[0], wait)
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "transcript text")
	cmd.Flags().StringVar(&textFile, "file", "", "read transcript text from a file (- for stdin)")
	cmd.Flags().DurationVar(&wait, "wait", 0, "poll for the result for up to this long")
	return cmd
}

func newResultCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "result CONVERSATION_ID",
		Short: "Fetch a processed result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			rec, err := client.Result(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		},
	}
}

func newRescoreCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rescore CONVERSATION_ID",
		Short: "Trigger a rescoring pass on a processed result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			ack, err := client.Rescore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ack)
		},
	}
}

func (o *options) client() (*Client, error) {
	if o.tenant == "" {
		return nil, errors.New("--tenant (or INSIGHTS_TENANT) is required")
	}
	return NewClient(o.server, o.tenant, o.timeout), nil
}

// pollResult retries Result until it succeeds or wait elapses. A 404 means
// the record is still processing.
func pollResult(ctx context.Context, out io.Writer, client *Client, conversationID string, wait time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		rec, err := client.Result(ctx, conversationID)
		if err == nil {
			return printJSON(out, rec)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != 404 {
			return err
		}

		select {
		case <-ctx.Done():
			return errors.Errorf("result for %s not ready after %s", conversationID, wait)
		case <-ticker.C:
		}
	}
}

func readText(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", errors.Wrapf(err, "read %s", path)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "print response")
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
