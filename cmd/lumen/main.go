package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/lumen/pkg/config"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("LUMEN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "lumen",
		Short: "Lumen - embeddable columnar table engine",
		Long: `Lumen builds immutable, typed columnar tables from delimited text,
Arrow, Parquet, Avro, JSON and labeled frames, and serves them to local or
remote clients.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "Path to a YAML configuration file")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().String("compression", "", "Wire compression (none, gzip, snappy, s2, zstd, lz4, deflate)")
	root.PersistentFlags().Bool("trace", false, "Print spans to stderr")
	for _, name := range []string{"config", "log-level", "compression", "trace"} {
		_ = v.BindPFlag(name, root.PersistentFlags().Lookup(name))
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Lumen v%s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
			fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	root.AddCommand(newLoadCommand(v))
	root.AddCommand(newServeCommand(v))
	root.AddCommand(newTablesCommand(v))
	return root
}

// loadConfig reads the configuration file, if any, and applies flag and
// LUMEN_* environment overrides on top.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg := config.NewConfig("lumen")
	if path := v.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if s := v.GetString("log-level"); s != "" {
		cfg.Observability.LogLevel = s
	}
	if s := v.GetString("compression"); s != "" {
		cfg.Transport.Compression = s
	}
	if s := v.GetString("addr"); s != "" {
		cfg.Transport.Addr = s
	}
	if s := v.GetString("delimiter"); s != "" {
		cfg.Ingest.Delimiter = s
	}
	if v.GetBool("trace") {
		cfg.Observability.EnableTracing = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
