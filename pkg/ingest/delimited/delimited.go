// Package delimited ingests delimited text (CSV, TSV) with a header row.
//
// Parsing follows RFC 4180 quoting. Every record must have exactly as many
// fields as the header; short and long rows are rejected, never padded or
// truncated. Column types are inferred per column from every value.
package delimited

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/lumen/pkg/columnar"
	"github.com/ajitpratap0/lumen/pkg/errors"
	"github.com/ajitpratap0/lumen/pkg/ingest"
	"github.com/ajitpratap0/lumen/pkg/schema"
	"github.com/ajitpratap0/lumen/pkg/source"
)

// ParseErrorMessage prefixes every malformed-input error of this adapter.
const ParseErrorMessage = "CSV parse error"

// Adapter ingests source.CSV values.
type Adapter struct {
	opts     ingest.Options
	inferrer *schema.TokenInferrer
	logger   *zap.Logger
}

// New creates a delimited text adapter.
func New(opts ingest.Options, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	return &Adapter{
		opts:     opts,
		inferrer: schema.NewTokenInferrer(opts.DatetimeLayouts),
		logger:   logger.With(zap.String("adapter", "delimited")),
	}
}

// Kinds implements ingest.Adapter.
func (a *Adapter) Kinds() []source.Kind {
	return []source.Kind{source.KindCSV}
}

// Ingest implements ingest.Adapter.
func (a *Adapter) Ingest(ctx context.Context, src source.Source) (*schema.Schema, *columnar.Store, error) {
	s, ok := src.(source.CSV)
	if !ok {
		return nil, nil, ingest.Mismatch("delimited", src)
	}
	delim := s.Delimiter
	if delim == 0 {
		delim = a.opts.Delimiter
	}

	header, records, err := read(s.Text, delim)
	if err != nil {
		return nil, nil, err
	}

	// transpose once so each column task reads a contiguous slice
	tokens := make([][]string, len(header))
	for j := range tokens {
		tokens[j] = make([]string, len(records))
		for i, rec := range records {
			tokens[j][i] = rec[j]
		}
	}

	types := make([]schema.DataType, len(header))
	if err := ingest.ForEachColumn(ctx, len(header), a.opts.Workers, func(col int) error {
		types[col] = a.inferrer.InferColumn(tokens[col])
		return nil
	}); err != nil {
		return nil, nil, err
	}

	fields := make([]schema.Field, len(header))
	for j, name := range header {
		fields[j] = schema.Field{Name: name, Type: types[j]}
	}
	sch, err := schema.Unify(fields)
	if err != nil {
		return nil, nil, err
	}

	store, err := ingest.Build(ctx, sch, len(records), a.opts, func(b *columnar.Builder, col int) error {
		t := sch.Field(col).Type
		for row, tok := range tokens[col] {
			v, err := a.inferrer.ParseToken(tok, t)
			if err != nil {
				return errors.Wrapf(err, errors.ErrorTypeTypeMismatch, "column %q row %d", header[col], row)
			}
			if err := b.Append(col, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	a.logger.Debug("delimited text ingested",
		zap.Int("columns", sch.Len()),
		zap.Int("rows", store.NumRows()),
		zap.String("delimiter", string(delim)))
	return sch, store, nil
}

// read splits text into a header and records of exactly header width.
func read(text string, delim rune) ([]string, [][]string, error) {
	text = strings.TrimPrefix(text, "\ufeff")

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	// 0: every record must match the width of the first (the header)
	r.FieldsPerRecord = 0

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil, errors.New(errors.ErrorTypeParse, ParseErrorMessage+": input has no header row")
	}
	if err != nil {
		return nil, nil, parseError(err)
	}

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, parseError(err)
		}
		records = append(records, rec)
	}
	return header, records, nil
}

func parseError(err error) error {
	e := errors.Wrap(err, errors.ErrorTypeParse, ParseErrorMessage)
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		e = e.WithDetail("line", pe.Line)
	}
	return e
}
