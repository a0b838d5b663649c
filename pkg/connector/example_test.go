package connector_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ajitpratap0/sheetport/pkg/config"
	"github.com/ajitpratap0/sheetport/pkg/connector/core"
	"github.com/ajitpratap0/sheetport/pkg/connector/registry"

	// Import connectors to register them
	_ "github.com/ajitpratap0/sheetport/pkg/connector/destinations/spreadsheet"
	_ "github.com/ajitpratap0/sheetport/pkg/connector/sources/spreadsheet"
)

// Example reads a CSV file through the registry.
func Example() {
	dir, err := os.MkdirTemp("", "connector-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "people.csv")
	if err := os.WriteFile(path, []byte("name,age\nada,36\ngrace,45\n"), 0o600); err != nil {
		log.Fatal(err)
	}

	cfg := config.NewSpreadsheetConfig("people", "source")
	cfg.Path = path
	cfg.HeaderRow = config.Int(0)

	source, err := registry.CreateSource("csv", cfg)
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()
	if err := source.Initialize(ctx); err != nil {
		log.Fatal(err)
	}
	defer source.Close(ctx)

	stream, err := source.Read(ctx)
	if err != nil {
		log.Fatal(err)
	}
	for record := range stream.Records {
		name, _ := record.Item.Get("name")
		age, _ := record.Item.Get("age")
		fmt.Printf("row %d: %v is %v\n", record.Position, name, age)
	}
	if err := <-stream.Errors; err != nil {
		log.Fatal(err)
	}

	// Output:
	// row 2: ada is 36
	// row 3: grace is 45
}

// Example_discover shows the schema inferred from the first data row.
func Example_discover() {
	dir, err := os.MkdirTemp("", "connector-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "prices.csv")
	if err := os.WriteFile(path, []byte("sku,price,in_stock\nA-1,9.5,true\n"), 0o600); err != nil {
		log.Fatal(err)
	}

	cfg := config.NewSpreadsheetConfig("prices", "source")
	cfg.Path = path
	cfg.HeaderRow = config.Int(0)

	source, err := registry.CreateSource("spreadsheet", cfg)
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()
	if err := source.Initialize(ctx); err != nil {
		log.Fatal(err)
	}
	defer source.Close(ctx)

	schema, err := source.Discover(ctx)
	if err != nil {
		log.Fatal(err)
	}
	for _, f := range schema.Fields {
		fmt.Printf("%s: %s\n", f.Name, f.Type)
	}

	// Output:
	// sku: string
	// price: float
	// in_stock: bool
}

// Example_catalog lists the registered connectors.
func Example_catalog() {
	info, err := registry.GetConnectorInfo(string(core.ConnectorTypeDestination), "spreadsheet")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(info.Name, info.Type, info.Formats)

	// Output:
	// spreadsheet destination [.xlsx .xlsm .csv .tsv]
}
