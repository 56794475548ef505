package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	gojson "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/lumen/pkg/client"
	"github.com/ajitpratap0/lumen/pkg/compression"
	"github.com/ajitpratap0/lumen/pkg/config"
	formats "github.com/ajitpratap0/lumen/pkg/formats/columnar"
	jsonpool "github.com/ajitpratap0/lumen/pkg/json"
	"github.com/ajitpratap0/lumen/pkg/logger"
	"github.com/ajitpratap0/lumen/pkg/mmap"
	"github.com/ajitpratap0/lumen/pkg/observability"
	"github.com/ajitpratap0/lumen/pkg/server"
	"github.com/ajitpratap0/lumen/pkg/source"
	"github.com/ajitpratap0/lumen/pkg/table"
	"github.com/ajitpratap0/lumen/pkg/transport/httptransport"
	"github.com/ajitpratap0/lumen/pkg/wire"
)

func newLoadCommand(v *viper.Viper) *cobra.Command {
	var name, output string
	var frame bool

	cmd := &cobra.Command{
		Use:   "load FILE...",
		Short: "Build tables from files and describe them",
		Long: `Build one table per file and print its schema. The source kind is
chosen by extension: .csv, .tsv, .arrow/.arrows/.ipc, .parquet/.pq, .avro
and .json (records). With --frame a .json file is read as a labeled frame
in split orientation: {"columns": [...], "index": [...], "data": [[...]]}.

Without --remote the tables are built by an in-process server.

Example:
  lumen load animals.csv --name animals
  lumen load --remote http://127.0.0.1:8760 events.parquet`,
		Args: cobra.MinimumNArgs(1),
		PreRun: func(cmd *cobra.Command, args []string) {
			_ = v.BindPFlag("remote", cmd.Flags().Lookup("remote"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if name != "" && len(args) > 1 {
				return fmt.Errorf("--name needs exactly one file")
			}
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}

			c, cleanup, err := openClient(v, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			var infos []table.Info
			for _, path := range args {
				src, release, err := sourceForFile(path, frame)
				if err != nil {
					return err
				}
				var opts []client.TableOption
				if name != "" {
					opts = append(opts, client.WithName(name))
				}
				tbl, err := c.Table(cmd.Context(), src, opts...)
				release()
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				infos = append(infos, tbl.Info())
			}
			return printInfos(cmd.OutOrStdout(), infos, output)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Register the table under this name")
	cmd.Flags().BoolVar(&frame, "frame", false, "Read .json files as labeled frames")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	cmd.Flags().String("remote", "", "URL of a running lumen server")
	cmd.Flags().String("delimiter", "", "Default CSV delimiter")
	_ = v.BindPFlag("delimiter", cmd.Flags().Lookup("delimiter"))
	return cmd
}

// openClient returns a client of the remote server named by --remote, or of
// a fresh in-process server.
func openClient(v *viper.Viper, cfg *config.Config) (*client.Client, func(), error) {
	var tp *sdktrace.TracerProvider
	if cfg.Observability.EnableTracing {
		var err error
		if tp, err = observability.NewTracerProvider(cfg.Observability, version, os.Stderr); err != nil {
			return nil, nil, err
		}
	}
	shutdown := func() { _ = observability.Shutdown(context.Background(), tp) }

	if remote := v.GetString("remote"); remote != "" {
		algo, err := compression.ParseAlgorithm(cfg.Transport.Compression)
		if err != nil {
			return nil, nil, err
		}
		var opts []httptransport.Option
		if tp != nil {
			opts = append(opts, httptransport.WithTracerProvider(tp))
		}
		c, err := httptransport.Dial(remote, opts, wire.WithCompression(algo))
		if err != nil {
			return nil, nil, err
		}
		return c, shutdown, nil
	}

	if err := logger.Init(logger.Config{
		Level:    cfg.Observability.LogLevel,
		Encoding: "console",
	}); err != nil {
		return nil, nil, err
	}
	opts := []server.Option{server.WithLogger(logger.With(zap.String("component", "load")))}
	if tp != nil {
		opts = append(opts, server.WithTracerProvider(tp))
	}
	srv, err := server.New(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	return srv.NewLocalClient(), func() {
		_ = srv.Close()
		_ = logger.Sync()
		shutdown()
	}, nil
}

// sourceForFile reads path into the source its extension calls for. Binary
// formats are memory-mapped; the returned release unmaps them and must only
// be called once the table has been built.
func sourceForFile(path string, frame bool) (src source.Source, release func(), err error) {
	release = func() {}
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".csv", ".tsv", ".tab", ".json":
		data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the command line
		if err != nil {
			return nil, release, fmt.Errorf("failed to read %s: %w", path, err)
		}
		switch {
		case ext == ".csv":
			return source.CSV{Text: string(data)}, release, nil
		case ext != ".json":
			return source.TSV(string(data)), release, nil
		case frame:
			f, err := decodeSplitFrame(data)
			if err != nil {
				return nil, release, err
			}
			return f, release, nil
		default:
			return source.Records{Data: data}, release, nil
		}
	}

	f, ok := formats.FormatForPath(path)
	if !ok {
		return nil, release, fmt.Errorf("%s: unknown file extension %q", path, ext)
	}
	m, err := mmap.Open(path)
	if err != nil {
		return nil, release, fmt.Errorf("failed to read %s: %w", path, err)
	}
	release = func() { _ = m.Close() }

	switch f {
	case formats.Arrow:
		return source.ArrowIPC{Data: m.Bytes()}, release, nil
	case formats.Parquet:
		return source.Parquet{Data: m.Bytes()}, release, nil
	case formats.Avro:
		return source.Avro{Data: m.Bytes()}, release, nil
	}
	release()
	return nil, func() {}, fmt.Errorf("%s: unsupported format %s", path, f)
}

type splitFrame struct {
	Columns []string        `json:"columns"`
	Index   []interface{}   `json:"index"`
	Data    [][]interface{} `json:"data"`
}

// decodeSplitFrame reads a frame in split orientation. Integral numbers
// become int64 so integer columns stay integers.
func decodeSplitFrame(data []byte) (source.Frame, error) {
	dec := gojson.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var sf splitFrame
	if err := dec.Decode(&sf); err != nil {
		return source.Frame{}, fmt.Errorf("failed to parse frame: %w", err)
	}

	rows := sf.Data
	if rows == nil {
		rows = [][]interface{}{}
	}
	for _, row := range rows {
		for i, v := range row {
			row[i] = numberValue(v)
		}
	}
	for i, v := range sf.Index {
		sf.Index[i] = numberValue(v)
	}
	return source.Frame{Columns: sf.Columns, Rows: rows, Index: sf.Index}, nil
}

func numberValue(v interface{}) interface{} {
	n, ok := v.(gojson.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

func printInfos(w io.Writer, infos []table.Info, output string) error {
	switch output {
	case "json":
		return jsonpool.MarshalToWriter(w, infos)
	case "table", "":
	default:
		return fmt.Errorf("unknown output format %q", output)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, info := range infos {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		fmt.Fprintf(tw, "table %s (%s, %d rows)\n", info.Name, info.Source, info.NumRows)
		for _, f := range info.Fields {
			note := ""
			if f.Synthetic {
				note = "synthetic"
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", f.Name, f.Type, note)
		}
	}
	return tw.Flush()
}
