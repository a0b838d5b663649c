// Package sheetport reads and writes spreadsheet files row by row.
//
// A sheet is read through a cursor that walks its rows in order, maps each
// row onto the header row when one is configured, and can be rewound or
// positioned at any logical row. Rows are written through a sink that
// prepends a header row on request and saves the file when finished.
// XLSX and CSV (optionally gzip, zstd, snappy, s2 or lz4 compressed) are
// supported, on local disk, S3 or GCS.
//
// # Architecture
//
//   - pkg/sheet: the Workbook, Sheet and RowIterator model, with the
//     xlsx (excelize) and csv engines
//   - pkg/cursor: positioned reading of one sheet, header mapping and counting
//   - pkg/sink: ordered writing of rows and items into a new sheet
//   - pkg/factory: extension to engine resolution for reading and writing
//   - pkg/storage: staging of s3:// and gs:// objects on local disk
//   - pkg/connector: Source and Destination connectors over the above,
//     looked up through a registry
//   - internal/pipeline: streams a source into a destination with transforms
//   - cmd/sheetport: the command line tool
//
// # Quick Start
//
// Convert the first sheet of a workbook into a compressed CSV file:
//
//	import (
//	    "context"
//
//	    "github.com/ajitpratap0/sheetport/internal/pipeline"
//	    "github.com/ajitpratap0/sheetport/pkg/config"
//	    "github.com/ajitpratap0/sheetport/pkg/connector/registry"
//	    _ "github.com/ajitpratap0/sheetport/pkg/connector/destinations/spreadsheet"
//	    _ "github.com/ajitpratap0/sheetport/pkg/connector/sources/spreadsheet"
//	)
//
//	srcCfg := config.NewSpreadsheetConfig("orders", "source")
//	srcCfg.Path = "orders.xlsx"
//	srcCfg.HeaderRow = config.Int(0)
//	src, _ := registry.CreateSource("spreadsheet", srcCfg)
//	_ = src.Initialize(ctx)
//	defer src.Close(ctx)
//
//	dstCfg := config.NewSpreadsheetConfig("orders-out", "destination")
//	dstCfg.Path = "s3://exports/orders.csv.gz"
//	dst, _ := registry.CreateDestination("spreadsheet", dstCfg)
//	_ = dst.Initialize(ctx)
//
//	err := pipeline.Copy(ctx, src, dst, logger)
//	err = dst.Close(ctx) // uploads the finished file
//
// The same conversion from the command line:
//
//	sheetport convert orders.xlsx s3://exports/orders.csv.gz
//
// # Configuration
//
// Connector settings are YAML files with ${VAR} substitution:
//
//	name: orders
//	type: source
//	path: gs://${BUCKET}/orders.xlsx
//	header_row: 0
//	sheet: 1
//	performance:
//	  buffer_size: 1000
//	storage:
//	  credentials_file: ${GOOGLE_APPLICATION_CREDENTIALS}
//
// # Observability
//
// Logging uses zap, metrics are exported through Prometheus
// (sheetport --metrics-addr :9090) and cursor and pipeline operations are
// traced with OpenTelemetry (sheetport --trace).
package sheetport
