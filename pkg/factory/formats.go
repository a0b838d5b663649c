// Package factory opens spreadsheet files by extension and wraps them in a
// row cursor (read path) or a row sink (write path).
package factory

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/ajitpratap0/sheetport/pkg/compression"
	"github.com/ajitpratap0/sheetport/pkg/errors"
	"github.com/ajitpratap0/sheetport/pkg/sheet"
)

// formatByExtension maps lower-case file extensions to container formats.
var formatByExtension = map[string]sheet.Format{
	".xlsx": sheet.FormatXLSX,
	".xlsm": sheet.FormatXLSX,
	".csv":  sheet.FormatCSV,
	".tsv":  sheet.FormatCSV,
	".ods":  sheet.FormatODS,
}

// Resolved describes how a path will be handled.
type Resolved struct {
	Format      sheet.Format
	Extension   string
	Compression compression.Algorithm
}

// Resolve maps path to a format. A compression suffix is accepted only in
// front of a CSV extension, as in "data.csv.gz".
func Resolve(path string) (Resolved, error) {
	alg, inner := compression.FromPath(path)
	ext := strings.ToLower(filepath.Ext(inner))

	format, ok := formatByExtension[ext]
	if !ok || (alg != compression.None && format != sheet.FormatCSV) {
		return Resolved{}, errors.UnsupportedFormat(strings.ToLower(filepath.Ext(path)), path)
	}
	return Resolved{Format: format, Extension: ext, Compression: alg}, nil
}

// Extensions lists the mapped extensions with their format, sorted by
// extension.
func Extensions() []Mapping {
	out := make([]Mapping, 0, len(formatByExtension))
	for ext, format := range formatByExtension {
		_, readable := readEngines[format]
		_, writable := writeEngines[format]
		out = append(out, Mapping{
			Extension: ext,
			Format:    format,
			Readable:  readable,
			Writable:  writable,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Extension < out[j].Extension })
	return out
}

// Mapping is one row of the extension table.
type Mapping struct {
	Extension string
	Format    sheet.Format
	Readable  bool
	Writable  bool
}
