package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/clique-kr/episodes/internal/config"
	"github.com/clique-kr/episodes/internal/db/dial"
	"github.com/clique-kr/episodes/internal/repository/index"
)

// seedCmd publishes an index list straight into the store configured for
// ENV. The HTTP API has no write path, so this is how the list gets there.
func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Publish the index list document into the store",
		Long: `Read a JSON value and store it as the list field of the index document
(ccn=totalindexlist in us_index by default), creating the document if needed.
Connection settings come from config/<ENV>.yaml.`,
		Args: cobra.NoArgs,
		RunE: runSeed,
	}

	cmd.Flags().StringP("file", "f", "-", `JSON file holding the list, "-" for stdin`)
	cmd.Flags().String("config", "", "Config file path (default: config/<ENV>.yaml)")

	return cmd
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	var (
		cfg config.Config
		err error
	)
	if cfgPath != "" {
		cfg, err = config.LoadFile(cfgPath)
	} else {
		cfg, err = config.Load(config.GetEnv())
	}
	if err != nil {
		return err
	}

	file, _ := cmd.Flags().GetString("file")
	value, err := readList(cmd, file)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := dial.New(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}

	loc := cfg.Index.Location()
	if err := index.New(store, loc).Publish(ctx, value); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "published %s.%s where %s=%s\n", loc.Collection, loc.ListField, loc.KeyField, loc.Key)
	return nil
}

func readList(cmd *cobra.Command, file string) (any, error) {
	var r io.Reader = cmd.InOrStdin()
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("open list: %w", err)
		}
		defer f.Close()
		r = f
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("list is empty")
		}
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return normalize(value), nil
}

// normalize turns json.Number into int64 or float64 so every driver stores
// a native number.
func normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case []any:
		for i := range t {
			t[i] = normalize(t[i])
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = normalize(t[k])
		}
		return t
	}
	return v
}
