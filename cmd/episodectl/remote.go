package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/clique-kr/episodes/internal/version"
	episodes "github.com/clique-kr/episodes/pkg/sdk"
)

const defaultTimeout = 30 * time.Second

func newClient(cmd *cobra.Command) (*episodes.Client, error) {
	server, _ := cmd.Flags().GetString("server")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return episodes.New(server,
		episodes.WithTimeout(timeout),
		episodes.WithUserAgent("episodectl/"+version.Version),
	)
}

func submitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "POST a payload to /episode/index",
		Long: `Send a payload to the submit endpoint and print the acknowledgment.
The payload comes from --data, --file, or stdin ("-").`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, closeBody, err := payload(cmd)
			if err != nil {
				return err
			}
			defer closeBody()

			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			ack, err := client.SubmitIndex(cmd.Context(), body)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ack)
			return nil
		},
	}

	cmd.Flags().StringP("data", "d", "", "Inline payload")
	cmd.Flags().StringP("file", "f", "", `Payload file, "-" for stdin`)

	return cmd
}

func payload(cmd *cobra.Command) (io.Reader, func(), error) {
	data, _ := cmd.Flags().GetString("data")
	file, _ := cmd.Flags().GetString("file")

	switch {
	case data != "" && file != "":
		return nil, nil, errors.New("use either --data or --file, not both")
	case file == "-":
		return cmd.InOrStdin(), func() {}, nil
	case file != "":
		f, err := os.Open(file)
		if err != nil {
			return nil, nil, fmt.Errorf("open payload: %w", err)
		}
		return f, func() { _ = f.Close() }, nil
	default:
		return strings.NewReader(data), func() {}, nil
	}
}

func indexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "GET /index and print the published list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			raw, err := client.Index(cmd.Context())
			if errors.Is(err, episodes.ErrNotFound) {
				return errors.New("no index list published (run episodectl seed)")
			}
			if err != nil {
				return err
			}

			if pretty, _ := cmd.Flags().GetBool("pretty"); pretty {
				var buf bytes.Buffer
				if err := json.Indent(&buf, raw, "", "  "); err == nil {
					raw = buf.Bytes()
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			return nil
		},
	}

	cmd.Flags().BoolP("pretty", "p", false, "Indent JSON output")

	return cmd
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			hs, err := client.Health(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "status: %s\n", hs.Status)
			for name, result := range hs.Checks {
				fmt.Fprintf(out, "  %-10s %s\n", name, result)
			}
			if !hs.Healthy() {
				return errors.New("server degraded")
			}
			return nil
		},
	}
}
