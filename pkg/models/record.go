// Package models holds the record type exchanged between connectors.
package models

import (
	"time"

	"github.com/ajitpratap0/sheetport/pkg/sheet"
)

// Record is one spreadsheet row travelling from a source to a destination.
type Record struct {
	// Source names the connector that produced the record
	Source string `json:"source"`
	// Position is the physical one-based row number in the source sheet
	Position int `json:"position"`
	// Index is the logical zero-based row index in the source sheet
	Index int `json:"index"`
	// Values is the raw row
	Values sheet.Row `json:"values"`
	// Item is the header projection of Values; nil without headers
	Item sheet.Item `json:"item,omitempty"`
	// Timestamp is when the record was read
	Timestamp time.Time `json:"timestamp"`
}

// NewRecord creates a record stamped with the current time.
func NewRecord(source string, position, index int, values sheet.Row, item sheet.Item) *Record {
	return &Record{
		Source:    source,
		Position:  position,
		Index:     index,
		Values:    values,
		Item:      item,
		Timestamp: time.Now(),
	}
}

// HasItem reports whether the record carries named fields.
func (r *Record) HasItem() bool {
	return r.Item != nil
}

// Keys returns the field names, or nil when the record has none.
func (r *Record) Keys() []string {
	if r.Item == nil {
		return nil
	}
	return r.Item.Keys()
}
