package sheet

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Row is an ordered sequence of scalar cells. Cells hold int64, float64,
// bool, string, or nil for an empty cell.
type Row []interface{}

// Strings renders every cell with CellString.
func (r Row) Strings() []string {
	out := make([]string, len(r))
	for i, v := range r {
		out[i] = CellString(v)
	}
	return out
}

// IsEmpty reports whether every cell in the row is empty.
func (r Row) IsEmpty() bool {
	for _, v := range r {
		if CellString(v) != "" {
			return false
		}
	}
	return true
}

// Field is one key/value pair of an Item.
type Field struct {
	Key   string
	Value interface{}
}

// Item is an ordered mapping from column name to cell value.
type Item []Field

// NewItem builds an item from parallel key and value slices. Extra values
// are ignored; missing values are nil.
func NewItem(keys []string, values ...interface{}) Item {
	item := make(Item, len(keys))
	for i, k := range keys {
		item[i].Key = k
		if i < len(values) {
			item[i].Value = values[i]
		}
	}
	return item
}

// Keys returns the item's keys in order.
func (it Item) Keys() []string {
	keys := make([]string, len(it))
	for i, f := range it {
		keys[i] = f.Key
	}
	return keys
}

// Values returns the item's values in key order.
func (it Item) Values() Row {
	values := make(Row, len(it))
	for i, f := range it {
		values[i] = f.Value
	}
	return values
}

// Get returns the value stored under key.
func (it Item) Get(key string) (interface{}, bool) {
	for _, f := range it {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Map copies the item into an unordered map.
func (it Item) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(it))
	for _, f := range it {
		m[f.Key] = f.Value
	}
	return m
}

// MarshalJSON encodes the item as a JSON object, keeping key order.
func (it Item) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range it {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Key, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ZipIfSameLength projects values onto labels. It returns false, and no
// item, when the two sequences differ in length.
func ZipIfSameLength(labels []string, values Row) (Item, bool) {
	if len(labels) != len(values) {
		return nil, false
	}
	item := make(Item, len(labels))
	for i, label := range labels {
		item[i] = Field{Key: label, Value: values[i]}
	}
	return item, true
}

// CellString renders a cell the way it would appear in a text file.
func CellString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}

// InferCell converts raw cell text into the narrowest scalar it represents:
// nil for empty text, int64, float64, bool, or the original string.
// Numeric text with a leading zero ("007") is kept as a string.
func InferCell(s string) interface{} {
	if s == "" {
		return nil
	}
	if looksNumeric(s) {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}

// InferRow applies InferCell to every cell.
func InferRow(cells []string) Row {
	row := make(Row, len(cells))
	for i, c := range cells {
		row[i] = InferCell(c)
	}
	return row
}

// TextRow keeps every cell as a string, mapping empty text to nil.
func TextRow(cells []string) Row {
	row := make(Row, len(cells))
	for i, c := range cells {
		if c != "" {
			row[i] = c
		}
	}
	return row
}

func looksNumeric(s string) bool {
	body := strings.TrimPrefix(s, "-")
	if body == "" {
		return false
	}
	if c := body[0]; c < '0' || c > '9' {
		return false
	}
	if len(body) > 1 && body[0] == '0' && body[1] != '.' {
		return false
	}
	return true
}
