// Package connector groups the source and destination connectors of
// sheetport.
//
// # Architecture Overview
//
//   - core: the Source and Destination interfaces, Schema and RecordStream.
//
//   - registry: name based factories for sources and destinations plus a
//     catalog describing each connector. Connectors register themselves in
//     init, so importing a connector package makes it available.
//
//   - sources/spreadsheet: reads one sheet of an XLSX or CSV file, local or
//     in an object store, and streams its rows as records.
//
//   - destinations/spreadsheet: writes records into a new XLSX or CSV file
//     and uploads it on Close when the path is remote.
//
// # Lifecycle
//
// Both connector kinds follow the same sequence:
//
//	src, err := registry.CreateSource("spreadsheet", cfg)
//	err = src.Initialize(ctx)  // fetch and open the file
//	schema, err := src.Discover(ctx)
//	stream, err := src.Read(ctx)
//	for record := range stream.Records {
//	    // record.Item is set when the sheet has a header row
//	}
//	err = <-stream.Errors
//	err = src.Close(ctx)
//
// A Destination is initialized the same way, receives the schema through
// CreateSchema and consumes a RecordStream in Write. Its output exists only
// after Close returns without error.
//
// # Errors
//
// Connectors return *errors.Error values from pkg/errors. Use errors.IsType
// to tell configuration, file, data and unsupported format failures apart.
package connector
