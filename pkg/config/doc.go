// Package config provides the configuration model for sheetport.
//
// BaseConfig carries the settings every connector shares. Spreadsheet
// sources and destinations embed it in SpreadsheetConfig, which adds the
// reader and writer options.
//
// # Usage
//
//	cfg := config.NewSpreadsheetConfig("orders", "source")
//	if err := config.Load("orders.yaml", cfg); err != nil {
//		log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
//
// Loading over a value built by NewSpreadsheetConfig keeps the defaults for
// every key the file leaves out.
//
// # Environment Variable Substitution
//
// ${VAR_NAME} references are replaced before the YAML is parsed:
//
//	# orders.yaml
//	name: orders
//	type: source
//	path: s3://${EXPORT_BUCKET}/orders.xlsx
//	header_row: 0
//	storage:
//	  region: ${AWS_REGION}
package config
