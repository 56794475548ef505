// Package avro ingests Avro object container files whose schema is a flat
// record. Column order is the record's field order.
package avro

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/lumen/pkg/columnar"
	"github.com/ajitpratap0/lumen/pkg/errors"
	formats "github.com/ajitpratap0/lumen/pkg/formats/columnar"
	"github.com/ajitpratap0/lumen/pkg/ingest"
	"github.com/ajitpratap0/lumen/pkg/schema"
	"github.com/ajitpratap0/lumen/pkg/source"
)

// ParseErrorMessage prefixes errors for malformed Avro input.
const ParseErrorMessage = "Avro parse error"

var avroTypes = map[string]schema.DataType{
	"int":              schema.Integer,
	"long":             schema.Integer,
	"float":            schema.Float,
	"double":           schema.Float,
	"string":           schema.String,
	"enum":             schema.String,
	"boolean":          schema.Boolean,
	"timestamp-millis": schema.Datetime,
	"timestamp-micros": schema.Datetime,
	"date":             schema.Date,
}

// Adapter ingests source.Avro values.
type Adapter struct {
	opts   ingest.Options
	logger *zap.Logger
}

// New creates an Avro adapter.
func New(opts ingest.Options, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{opts: opts, logger: logger.With(zap.String("adapter", "avro"))}
}

// Kinds implements ingest.Adapter.
func (a *Adapter) Kinds() []source.Kind { return []source.Kind{source.KindAvro} }

// Ingest implements ingest.Adapter.
func (a *Adapter) Ingest(ctx context.Context, src source.Source) (*schema.Schema, *columnar.Store, error) {
	s, ok := src.(source.Avro)
	if !ok {
		return nil, nil, ingest.Mismatch("avro", src)
	}

	file, err := formats.ReadAvro(s.Data)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeParse, ParseErrorMessage)
	}

	fields := make([]schema.Field, len(file.Fields))
	for i, f := range file.Fields {
		t, ok := avroTypes[f.Type]
		if !ok {
			return nil, nil, errors.Newf(errors.ErrorTypeSchema,
				"column %q has unsupported avro type %s", f.Name, f.Type).
				WithDetail("column", f.Name)
		}
		fields[i] = schema.Field{Name: f.Name, Type: t}
	}

	sch, err := schema.Unify(fields)
	if err != nil {
		return nil, nil, err
	}

	store, err := ingest.Build(ctx, sch, len(file.Rows), a.opts, func(b *columnar.Builder, col int) error {
		name := file.Fields[col].Name
		for _, row := range file.Rows {
			if err := b.Append(col, row[name]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	a.logger.Debug("avro file ingested",
		zap.String("record", file.Name),
		zap.Int("columns", sch.Len()),
		zap.Int("rows", len(file.Rows)))
	return sch, store, nil
}
