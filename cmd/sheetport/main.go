package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/sheetport/pkg/connector/registry"
	"github.com/ajitpratap0/sheetport/pkg/factory"
	"github.com/ajitpratap0/sheetport/pkg/logger"
	"github.com/ajitpratap0/sheetport/pkg/observability"

	// Register the spreadsheet connectors
	_ "github.com/ajitpratap0/sheetport/pkg/connector/destinations/spreadsheet"
	_ "github.com/ajitpratap0/sheetport/pkg/connector/sources/spreadsheet"
)

var version = "0.1.0"

// globalFlags are shared by every command.
type globalFlags struct {
	logLevel    string
	logFormat   string
	metricsAddr string
	trace       bool
}

// runtimeHooks holds what PersistentPreRunE started and PersistentPostRunE stops.
type runtimeHooks struct {
	metricsServer *http.Server
	shutdownTrace observability.ShutdownFunc
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	hooks := &runtimeHooks{}

	root := &cobra.Command{
		Use:   "sheetport",
		Short: "sheetport - read, inspect and convert spreadsheets",
		Long: `sheetport reads XLSX and CSV sheets row by row and writes them back out
in either format. Files may be local or stored in S3 (s3://) or GCS (gs://),
and CSV files may be compressed (.gz, .zst, .lz4, .sz).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return hooks.start(cmd, flags)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return hooks.stop(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "console", "Log encoding (json, console)")
	root.PersistentFlags().StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	root.PersistentFlags().BoolVar(&flags.trace, "trace", false, "Export trace spans to stderr")

	root.AddCommand(
		newVersionCommand(),
		newListCommand(),
		newSheetsCommand(),
		newCountCommand(),
		newCatCommand(),
		newConvertCommand(),
	)
	return root
}

func (h *runtimeHooks) start(cmd *cobra.Command, flags *globalFlags) error {
	if err := logger.Init(logger.Config{
		Level:       flags.logLevel,
		Encoding:    flags.logFormat,
		OutputPaths: []string{"stderr"},
	}); err != nil {
		return err
	}
	ctx := context.WithValue(cmd.Context(), logger.JobIDKey, fmt.Sprintf("%s-%d", cmd.Name(), time.Now().UnixNano()))
	cmd.SetContext(ctx)

	if flags.trace {
		shutdown, err := observability.InitTracing(observability.TracingConfig{
			ServiceName:    "sheetport",
			ServiceVersion: version,
			SamplingRate:   1.0,
			Output:         cmd.ErrOrStderr(),
			PrettyPrint:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		h.shutdownTrace = shutdown
	}

	if flags.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		h.metricsServer = &http.Server{
			Addr:              flags.metricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log := logger.WithContext(ctx)
		go func(srv *http.Server) {
			if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", zap.Error(err))
			}
		}(h.metricsServer)
		log.Info("serving metrics", zap.String("addr", flags.metricsAddr))
	}
	return nil
}

func (h *runtimeHooks) stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	var errs []error
	if h.metricsServer != nil {
		errs = append(errs, h.metricsServer.Shutdown(ctx))
	}
	if h.shutdownTrace != nil {
		errs = append(errs, h.shutdownTrace(ctx))
	}
	_ = logger.Sync()
	return stderrors.Join(errs...)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sheetport v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List connectors and supported file extensions",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Available Source Connectors:")
			for _, source := range registry.ListSources() {
				fmt.Fprintf(out, "  - %s\n", source)
			}
			fmt.Fprintln(out, "\nAvailable Destination Connectors:")
			for _, dest := range registry.ListDestinations() {
				fmt.Fprintf(out, "  - %s\n", dest)
			}

			fmt.Fprintln(out, "\nConnector Catalog:")
			for _, info := range registry.ListConnectorInfo() {
				fmt.Fprintf(out, "  - %s (%s) v%s: %s\n", info.Name, info.Type, info.Version, info.Description)
			}

			fmt.Fprintln(out, "\nFile Extensions:")
			for _, m := range factory.Extensions() {
				fmt.Fprintf(out, "  %-6s %-5s read=%-5t write=%t\n", m.Extension, m.Format, m.Readable, m.Writable)
			}
		},
	}
}
