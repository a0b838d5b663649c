package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/sheetport/internal/pipeline"
	"github.com/ajitpratap0/sheetport/pkg/config"
	"github.com/ajitpratap0/sheetport/pkg/connector/core"
	"github.com/ajitpratap0/sheetport/pkg/connector/registry"
	srcsheet "github.com/ajitpratap0/sheetport/pkg/connector/sources/spreadsheet"
	"github.com/ajitpratap0/sheetport/pkg/factory"
	"github.com/ajitpratap0/sheetport/pkg/logger"
	"github.com/ajitpratap0/sheetport/pkg/observability"
	"github.com/ajitpratap0/sheetport/pkg/storage"
)

// readFlags select and parse the sheet being read.
type readFlags struct {
	headerRow         int
	sheet             int
	keepText          bool
	delimiter         string
	password          string
	preserveEmptyRows bool
	configFile        string
}

func addReadFlags(cmd *cobra.Command, f *readFlags) {
	cmd.Flags().IntVar(&f.headerRow, "header-row", 0, "Zero-based row holding column names; -1 for none")
	cmd.Flags().IntVar(&f.sheet, "sheet", 0, "Zero-based index of the sheet to read")
	cmd.Flags().BoolVar(&f.keepText, "keep-text", false, "Keep cell values as text instead of inferring numbers and booleans")
	cmd.Flags().StringVar(&f.delimiter, "delimiter", "", "CSV field separator (default ',' or tab for .tsv)")
	cmd.Flags().StringVar(&f.password, "password", "", "Password of an encrypted XLSX workbook")
	cmd.Flags().BoolVar(&f.preserveEmptyRows, "preserve-empty-rows", true, "Keep rows with no values; =false skips them (XLSX only)")
	cmd.Flags().StringVar(&f.configFile, "source-config", "", "YAML source configuration; flags are ignored when set")
}

// sourceConfig builds the configuration for reading path.
func (f *readFlags) sourceConfig(cmd *cobra.Command, path string) (*config.SpreadsheetConfig, error) {
	if f.configFile != "" {
		return loadConfigFile(f.configFile, "input", "source", path)
	}

	cfg := config.NewSpreadsheetConfig("input", "source")
	cfg.Path = path
	cfg.Sheet = f.sheet
	cfg.KeepText = f.keepText
	cfg.Delimiter = f.delimiter
	cfg.Password = f.password
	if f.headerRow >= 0 {
		cfg.HeaderRow = config.Int(f.headerRow)
	}
	if cmd.Flags().Changed("preserve-empty-rows") {
		cfg.PreserveEmptyRows = config.Bool(f.preserveEmptyRows)
	}
	return cfg, cfg.Validate()
}

// loadConfigFile reads a YAML connector configuration. A non-empty path
// argument overrides the path in the file.
func loadConfigFile(file, name, connectorType, path string) (*config.SpreadsheetConfig, error) {
	cfg := config.NewSpreadsheetConfig(name, connectorType)
	if err := config.Load(file, cfg); err != nil {
		return nil, err
	}
	cfg.Type = connectorType
	if path != "" {
		cfg.Path = path
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", file, err)
	}
	return cfg, nil
}

// openSource creates and initializes the source connector for cfg.
func openSource(ctx context.Context, name string, cfg *config.SpreadsheetConfig) (core.Source, error) {
	src, err := registry.CreateSource(name, cfg)
	if err != nil {
		return nil, err
	}
	if err := src.Initialize(ctx); err != nil {
		_ = src.Close(ctx)
		return nil, err
	}
	return src, nil
}

func newSheetsCommand() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "sheets FILE",
		Short: "List the sheets of a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m := storage.NewManager(storage.Config{}, logger.WithContext(ctx))
			defer m.Close()

			staged, err := m.Fetch(ctx, args[0])
			if err != nil {
				return err
			}
			defer staged.Cleanup()

			var sheets []factory.SheetInfo
			err = observability.Trace(ctx, "sheets.list", func(ctx context.Context) error {
				var err error
				sheets, err = factory.NewSourceFactory(factory.ReaderOptions{Password: password}).ListSheets(ctx, staged.Path)
				return err
			})
			if err != nil {
				return err
			}
			for _, s := range sheets {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", s.Index, s.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "Password of an encrypted XLSX workbook")
	return cmd
}

func newCountCommand() *cobra.Command {
	flags := &readFlags{}
	cmd := &cobra.Command{
		Use:   "count FILE",
		Short: "Count the data rows of a sheet",
		Long: `Count the rows of a sheet. With a header row, only the rows below it are
counted, including rows whose width does not match the header.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := flags.sourceConfig(cmd, args[0])
			if err != nil {
				return err
			}
			src, err := srcsheet.New(cfg, srcsheet.WithLogger(logger.WithContext(ctx)))
			if err != nil {
				return err
			}
			defer src.Close(ctx)
			if err := src.Initialize(ctx); err != nil {
				return err
			}

			n, err := src.Count()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
	addReadFlags(cmd, flags)
	return cmd
}

func newCatCommand() *cobra.Command {
	flags := &readFlags{}
	var limit int
	cmd := &cobra.Command{
		Use:   "cat FILE",
		Short: "Print the rows of a sheet as JSON lines",
		Long: `Print every row of a sheet as one JSON value per line: an object keyed by
column name when a header row is set, otherwise an array of cell values.
Rows whose width differs from the header are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.sourceConfig(cmd, args[0])
			if err != nil {
				return err
			}
			return catRows(cmd, cfg, limit)
		},
	}
	addReadFlags(cmd, flags)
	cmd.Flags().IntVar(&limit, "limit", 0, "Stop after this many rows; 0 prints all")
	return cmd
}

func catRows(cmd *cobra.Command, cfg *config.SpreadsheetConfig, limit int) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	src, err := openSource(ctx, "spreadsheet", cfg)
	if err != nil {
		return err
	}
	defer src.Close(ctx)

	stream, err := src.Read(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	printed := 0
	var encodeErr error
	for record := range stream.Records {
		if encodeErr != nil || (limit > 0 && printed >= limit) {
			cancel()
			continue
		}
		if record.HasItem() {
			encodeErr = enc.Encode(record.Item)
		} else {
			encodeErr = enc.Encode(record.Values)
		}
		printed++
	}
	if encodeErr != nil {
		return fmt.Errorf("failed to write row: %w", encodeErr)
	}

	err = <-stream.Errors
	if err != nil && !(stderrors.Is(err, context.Canceled) && cmd.Context().Err() == nil) {
		return err
	}
	return nil
}

// writeFlags shape the file being written.
type writeFlags struct {
	format           string
	sheetName        string
	noHeader         bool
	delimiter        string
	compressionLevel int
	configFile       string
}

func addWriteFlags(cmd *cobra.Command, f *writeFlags) {
	cmd.Flags().StringVar(&f.format, "format", "", "Output format (xlsx, csv); derived from the extension by default")
	cmd.Flags().StringVar(&f.sheetName, "sheet-name", "", "Name of the written sheet (XLSX only)")
	cmd.Flags().BoolVar(&f.noHeader, "no-header", false, "Do not write column names as the first row")
	cmd.Flags().StringVar(&f.delimiter, "out-delimiter", "", "CSV field separator of the output")
	cmd.Flags().IntVar(&f.compressionLevel, "compression-level", 0, "Compression level of compressed CSV output (1-9)")
	cmd.Flags().StringVar(&f.configFile, "destination-config", "", "YAML destination configuration; flags are ignored when set")
}

func (f *writeFlags) destinationConfig(path string) (*config.SpreadsheetConfig, error) {
	if f.configFile != "" {
		return loadConfigFile(f.configFile, "output", "destination", path)
	}

	cfg := config.NewSpreadsheetConfig("output", "destination")
	cfg.Path = path
	cfg.Format = f.format
	cfg.SheetName = f.sheetName
	cfg.PrependHeader = !f.noHeader
	cfg.Delimiter = f.delimiter
	cfg.CompressionLevel = f.compressionLevel
	return cfg, cfg.Validate()
}

func newConvertCommand() *cobra.Command {
	rf := &readFlags{}
	wf := &writeFlags{}
	var (
		from, to  string
		rename    map[string]string
		skipEmpty bool
	)
	cmd := &cobra.Command{
		Use:   "convert [INPUT] [OUTPUT]",
		Short: "Copy a sheet into a new XLSX or CSV file",
		Long: `Copy one sheet into a new file, replacing any existing one. The output
format follows the OUTPUT extension unless --format is given; unknown
extensions are written as XLSX.

Example:
  sheetport convert orders.xlsx s3://exports/orders.csv.gz --rename id=order_id`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in, out string
			if len(args) > 0 {
				in = args[0]
			}
			if len(args) > 1 {
				out = args[1]
			}

			srcCfg, err := rf.sourceConfig(cmd, in)
			if err != nil {
				return fmt.Errorf("source configuration error: %w", err)
			}
			dstCfg, err := wf.destinationConfig(out)
			if err != nil {
				return fmt.Errorf("destination configuration error: %w", err)
			}

			var transforms []pipeline.Transform
			if len(rename) > 0 {
				transforms = append(transforms, pipeline.FieldMapperTransform(rename))
			}
			if skipEmpty {
				transforms = append(transforms, pipeline.SkipEmptyRows())
			}
			return convert(cmd, from, to, srcCfg, dstCfg, transforms)
		},
	}
	addReadFlags(cmd, rf)
	addWriteFlags(cmd, wf)
	cmd.Flags().StringVar(&from, "from", "spreadsheet", "Source connector")
	cmd.Flags().StringVar(&to, "to", "spreadsheet", "Destination connector")
	cmd.Flags().StringToStringVar(&rename, "rename", nil, "Rename columns, e.g. --rename id=order_id")
	cmd.Flags().BoolVar(&skipEmpty, "skip-empty", false, "Drop rows whose cells are all empty")
	return cmd
}

func convert(cmd *cobra.Command, from, to string, srcCfg, dstCfg *config.SpreadsheetConfig, transforms []pipeline.Transform) error {
	ctx := context.WithValue(cmd.Context(), logger.FileKey, srcCfg.Path)
	log := logger.WithContext(ctx).With(
		zap.String("component", "sheetport-cli"),
		zap.String("destination", dstCfg.Path),
	)

	src, err := openSource(ctx, from, srcCfg)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer func() {
		if err := src.Close(ctx); err != nil {
			log.Warn("failed to close source", zap.Error(err))
		}
	}()

	dst, err := registry.CreateDestination(to, dstCfg)
	if err != nil {
		return fmt.Errorf("failed to create destination connector '%s': %w", to, err)
	}
	if err := dst.Initialize(ctx); err != nil {
		_ = dst.Close(ctx)
		return fmt.Errorf("failed to initialize destination: %w", err)
	}

	p := pipeline.NewSimplePipeline(src, dst, &pipeline.PipelineConfig{
		BufferSize:       srcCfg.Performance.BufferSize,
		ProgressInterval: srcCfg.Performance.ProgressInterval,
		SourceName:       formatLabel(srcCfg.Path),
		DestinationName:  formatLabel(dstCfg.Path),
	}, log)
	for _, t := range transforms {
		p.AddTransform(t)
	}

	runErr := p.Run(ctx)
	closeErr := dst.Close(ctx)
	if runErr != nil {
		return fmt.Errorf("conversion failed: %w", runErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to finish %s: %w", dstCfg.Path, closeErr)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", p.Metrics()["records_processed"], dstCfg.Path)
	return nil
}

// formatLabel names the format of path for metric labels.
func formatLabel(path string) string {
	if r, err := factory.Resolve(path); err == nil {
		return string(r.Format)
	}
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}
