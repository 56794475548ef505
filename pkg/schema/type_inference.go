package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/lumen/pkg/errors"
)

// DateLayout is the only layout accepted for date columns.
const DateLayout = "2006-01-02"

// TokenInferrer infers column types from text tokens, as found in delimited
// text. Empty tokens are nulls and never influence the result.
type TokenInferrer struct {
	datetimeLayouts []string
}

// NewTokenInferrer creates an inferrer that recognizes datetimes in the
// given layouts, tried in order.
func NewTokenInferrer(datetimeLayouts []string) *TokenInferrer {
	return &TokenInferrer{datetimeLayouts: datetimeLayouts}
}

// InferColumn selects the narrowest type that represents every non-empty
// token: boolean (the exact tokens "true" and "false"), then integer,
// float, date, datetime, falling back to string. A column without non-empty tokens is a string column.
func (ti *TokenInferrer) InferColumn(tokens []string) DataType {
	allBool, allInt, allFloat, allDate, allDatetime := true, true, true, true, true
	seen := false

	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		seen = true

		if allBool && !isBoolToken(tok) {
			allBool = false
		}
		if allInt {
			if _, err := strconv.ParseInt(tok, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat && !allInt {
			if _, err := parseFloatToken(tok); err != nil {
				allFloat = false
			}
		}
		if allDate {
			if _, err := time.Parse(DateLayout, tok); err != nil {
				allDate = false
			}
		}
		if allDatetime && !allDate {
			if _, err := ti.parseDatetime(tok); err != nil {
				allDatetime = false
			}
		}

		if !allBool && !allInt && !allFloat && !allDate && !allDatetime {
			return String
		}
	}

	switch {
	case !seen:
		return String
	case allBool:
		return Boolean
	case allInt:
		return Integer
	case allFloat:
		return Float
	case allDate:
		return Date
	case allDatetime:
		return Datetime
	default:
		return String
	}
}

// ParseToken converts tok to the Go value of a t column: int64, float64,
// bool, time.Time or string. Empty tokens are nulls (nil) except in string
// columns, where they stay empty strings.
func (ti *TokenInferrer) ParseToken(tok string, t DataType) (interface{}, error) {
	if tok == "" && t != String {
		return nil, nil
	}

	switch t {
	case Integer:
		return strconv.ParseInt(tok, 10, 64)
	case Float:
		return parseFloatToken(tok)
	case Boolean:
		if !isBoolToken(tok) {
			return nil, fmt.Errorf("invalid boolean %q", tok)
		}
		return tok == "true", nil
	case Date:
		return time.Parse(DateLayout, tok)
	case Datetime:
		return ti.parseDatetime(tok)
	case String:
		return tok, nil
	default:
		return nil, fmt.Errorf("unknown data type %q", t)
	}
}

func (ti *TokenInferrer) parseDatetime(tok string) (time.Time, error) {
	for _, layout := range ti.datetimeLayouts {
		if ts, err := time.Parse(layout, tok); err == nil {
			return ts.UTC(), nil
		}
	}
	// a bare date is midnight UTC, so date and datetime tokens can share a column
	if ts, err := time.Parse(DateLayout, tok); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("invalid datetime %q", tok)
}

func isBoolToken(tok string) bool {
	return tok == "true" || tok == "false"
}

// parseFloatToken rejects the NaN/Inf spellings strconv accepts so words
// such as "nan" or "inf" stay strings.
func parseFloatToken(tok string) (float64, error) {
	if strings.IndexAny(tok, "0123456789") < 0 {
		return 0, fmt.Errorf("invalid float %q", tok)
	}
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(f, 0) {
		return 0, fmt.Errorf("float %q out of range", tok)
	}
	return f, nil
}

// Opaque stands in for a value of a Go type no column can hold when only
// the name of that type is known, as after transport.
type Opaque struct {
	Type string
}

// TypeName returns the Go type name of v as %T prints it. For an Opaque
// value it is the name of the type it stands in for.
func TypeName(v interface{}) string {
	if o, ok := v.(Opaque); ok {
		return o.Type
	}
	return fmt.Sprintf("%T", v)
}

// UnsupportedValue reports a value of a type no column can hold.
func UnsupportedValue(column string, row int, v interface{}) *errors.Error {
	return errors.Newf(errors.ErrorTypeTypeMismatch,
		"column %q row %d: unsupported value type %s", column, row, TypeName(v)).
		WithDetail("column", column).
		WithDetail("row", row)
}

// ValueKind classifies a Go value into the type it would be stored as.
// ok is false for nil and for values no column can hold.
func ValueKind(v interface{}) (t DataType, ok bool) {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return Integer, true
	case float32, float64:
		return Float, true
	case string:
		return String, true
	case bool:
		return Boolean, true
	case time.Time:
		return Datetime, true
	}
	return "", false
}

// InferValues infers the type of a column of Go values as supplied by a
// labeled frame or decoded JSON. nil values are nulls. Integers and floats
// widen to float; any other mix is a type_mismatch error.
func InferValues(column string, values []interface{}) (DataType, error) {
	var kinds [6]bool
	order := []DataType{Integer, Float, String, Boolean, Datetime, Date}
	var first DataType

	for row, v := range values {
		if v == nil {
			continue
		}
		t, ok := ValueKind(v)
		if !ok {
			return "", UnsupportedValue(column, row, v)
		}
		if first == "" {
			first = t
		}
		for i, o := range order {
			if o == t {
				kinds[i] = true
			}
		}
	}

	var present []DataType
	for i, o := range order {
		if kinds[i] {
			present = append(present, o)
		}
	}

	switch {
	case len(present) == 0:
		return String, nil
	case len(present) == 1:
		return present[0], nil
	case len(present) == 2 && kinds[0] && kinds[1]:
		return Float, nil
	default:
		return "", errors.Newf(errors.ErrorTypeTypeMismatch,
			"column %q mixes %s and %s values", column, present[0], present[1]).
			WithDetail("column", column).
			WithDetail("first_type", string(first))
	}
}
