package library

import (
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// Row is one result row: column names in select order and their values.
// Values are whatever the driver produced (int64, float64, string, []byte, nil).
type Row struct {
	columns []string
	values  map[string]any
}

// NewRow builds a Row from parallel column and value slices.
func NewRow(columns []string, values []any) Row {
	r := Row{columns: columns, values: make(map[string]any, len(columns))}
	for i, c := range columns {
		if i < len(values) {
			r.values[c] = values[i]
		}
	}
	return r
}

// Columns returns the column names in select order.
func (r Row) Columns() []string { return r.columns }

// Value returns the value of column c.
func (r Row) Value(c string) (any, bool) {
	v, ok := r.values[c]
	return v, ok
}

// Map returns a copy of the row as column -> value.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.values))
	for k, v := range r.values {
		m[k] = v
	}
	return m
}

// Decode fills dst, a pointer to a struct with `db` tags, from the row.
// NULL columns leave the field at its zero value; []byte converts to string.
func (r Row) Decode(dst any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "db",
		WeaklyTypedInput: true,
		Result:           dst,
	})
	if err != nil {
		return errors.Wrap(err, "row decoder")
	}
	if err := dec.Decode(r.values); err != nil {
		return errors.Wrap(err, "decode row")
	}
	return nil
}

func decodeRows[T any](rows []Row) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		var v T
		if err := r.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
