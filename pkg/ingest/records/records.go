// Package records ingests JSON documents in either of two layouts:
//
//	[{"a": 1, "b": "x"}, {"a": 2}]   rows; columns in order of first appearance
//	{"a": [1, 2], "b": ["x", null]}  columns; in key order
//
// Values must be scalars. Numbers keep their exact literal, so integral
// numbers become integer columns and a column mixing integers and
// fractions becomes float. Keys missing from a row are nulls.
package records

import (
	"bytes"
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/lumen/pkg/columnar"
	"github.com/ajitpratap0/lumen/pkg/errors"
	"github.com/ajitpratap0/lumen/pkg/ingest"
	jsonpool "github.com/ajitpratap0/lumen/pkg/json"
	"github.com/ajitpratap0/lumen/pkg/schema"
	"github.com/ajitpratap0/lumen/pkg/source"
)

// ParseErrorMessage prefixes errors for malformed JSON input.
const ParseErrorMessage = "JSON parse error"

// Adapter ingests source.Records values.
type Adapter struct {
	opts   ingest.Options
	logger *zap.Logger
}

// New creates a JSON records adapter.
func New(opts ingest.Options, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{opts: opts, logger: logger.With(zap.String("adapter", "records"))}
}

// Kinds implements ingest.Adapter.
func (a *Adapter) Kinds() []source.Kind { return []source.Kind{source.KindRecords} }

// Ingest implements ingest.Adapter.
func (a *Adapter) Ingest(ctx context.Context, src source.Source) (*schema.Schema, *columnar.Store, error) {
	s, ok := src.(source.Records)
	if !ok {
		return nil, nil, ingest.Mismatch("records", src)
	}

	doc, err := decode(s.Data)
	if err != nil {
		return nil, nil, err
	}

	fields := make([]schema.Field, len(doc.names))
	if err := ingest.ForEachColumn(ctx, len(doc.names), a.opts.Workers, func(col int) error {
		t, err := schema.InferValues(doc.names[col], doc.values[col])
		if err != nil {
			return err
		}
		fields[col] = schema.Field{Name: doc.names[col], Type: t}
		return nil
	}); err != nil {
		return nil, nil, err
	}

	sch, err := schema.Unify(fields)
	if err != nil {
		return nil, nil, err
	}

	store, err := ingest.Build(ctx, sch, doc.rows, a.opts, func(b *columnar.Builder, col int) error {
		return b.AppendColumn(col, doc.values[col])
	})
	if err != nil {
		return nil, nil, err
	}

	a.logger.Debug("json records ingested", zap.Int("columns", sch.Len()), zap.Int("rows", doc.rows))
	return sch, store, nil
}

// document is a decoded JSON document in column-major form.
type document struct {
	names  []string
	values [][]interface{}
	rows   int
}

func decode(data []byte) (*document, error) {
	if !jsonpool.Valid(data) {
		var v interface{}
		err := jsonpool.Unmarshal(data, &v)
		if err == nil {
			err = errors.New(errors.ErrorTypeParse, "invalid JSON")
		}
		return nil, errors.Wrap(err, errors.ErrorTypeParse, ParseErrorMessage)
	}

	tr := jsonpool.NewTokenReader(bytes.NewReader(data))
	tok, err := tr.Token()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeParse, ParseErrorMessage)
	}

	switch tok {
	case jsonpool.Delim('['):
		return decodeRows(tr)
	case jsonpool.Delim('{'):
		return decodeColumns(tr)
	}
	return nil, shapeError("document must be an array of objects or an object of arrays")
}

func decodeRows(tr *jsonpool.TokenReader) (*document, error) {
	doc := &document{}
	position := make(map[string]int)

	for tr.More() {
		tok, err := tr.Token()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeParse, ParseErrorMessage)
		}
		if tok != jsonpool.Delim('{') {
			return nil, shapeError("row %d is not an object", doc.rows)
		}

		for tr.More() {
			key, err := readKey(tr)
			if err != nil {
				return nil, err
			}
			v, err := readScalar(tr, key, doc.rows)
			if err != nil {
				return nil, err
			}

			col, ok := position[key]
			if !ok {
				col = len(doc.names)
				position[key] = col
				doc.names = append(doc.names, key)
				// earlier rows did not have the key
				doc.values = append(doc.values, make([]interface{}, doc.rows, doc.rows+1))
			}
			vals := doc.values[col]
			for len(vals) <= doc.rows {
				vals = append(vals, nil)
			}
			vals[doc.rows] = v
			doc.values[col] = vals
		}
		if _, err := tr.Token(); err != nil { // '}'
			return nil, errors.Wrap(err, errors.ErrorTypeParse, ParseErrorMessage)
		}

		doc.rows++
		for i, vals := range doc.values {
			if len(vals) < doc.rows {
				doc.values[i] = append(vals, nil)
			}
		}
	}
	return doc, nil
}

func decodeColumns(tr *jsonpool.TokenReader) (*document, error) {
	doc := &document{rows: -1}

	for tr.More() {
		key, err := readKey(tr)
		if err != nil {
			return nil, err
		}
		tok, err := tr.Token()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeParse, ParseErrorMessage)
		}
		if tok != jsonpool.Delim('[') {
			return nil, shapeError("column %q is not an array", key)
		}

		var vals []interface{}
		for tr.More() {
			v, err := readScalar(tr, key, len(vals))
			if err != nil {
				return nil, err
			}
			vals = append(vals, v)
		}
		if _, err := tr.Token(); err != nil { // ']'
			return nil, errors.Wrap(err, errors.ErrorTypeParse, ParseErrorMessage)
		}

		if doc.rows < 0 {
			doc.rows = len(vals)
		} else if len(vals) != doc.rows {
			return nil, errors.Newf(errors.ErrorTypeSchema,
				"column %q has %d values, expected %d", key, len(vals), doc.rows).
				WithDetail("column", key)
		}
		doc.names = append(doc.names, key)
		doc.values = append(doc.values, vals)
	}
	if doc.rows < 0 {
		doc.rows = 0
	}
	return doc, nil
}

func readKey(tr *jsonpool.TokenReader) (string, error) {
	tok, err := tr.Token()
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeParse, ParseErrorMessage)
	}
	key, ok := tok.(string)
	if !ok {
		return "", shapeError("expected an object key, got %v", tok)
	}
	return key, nil
}

// readScalar reads one value and converts numbers to int64 or float64.
func readScalar(tr *jsonpool.TokenReader, column string, row int) (interface{}, error) {
	tok, err := tr.Token()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeParse, ParseErrorMessage)
	}

	switch v := tok.(type) {
	case nil, string, bool:
		return v, nil
	case jsonpool.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeParse, "%s: column %q row %d", ParseErrorMessage, column, row)
		}
		return f, nil
	case jsonpool.Delim:
		return nil, errors.Newf(errors.ErrorTypeTypeMismatch,
			"column %q row %d: nested values are not supported", column, row).
			WithDetail("column", column).
			WithDetail("row", row)
	}
	return nil, shapeError("unexpected token %v", tok)
}

func shapeError(format string, args ...interface{}) error {
	return errors.Newf(errors.ErrorTypeParse, ParseErrorMessage+": "+format, args...)
}
