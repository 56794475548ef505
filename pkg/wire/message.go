// Package wire carries client requests to a server across a process or
// sandbox boundary.
//
// A request or response is a JSON message framed by pkg/compression: one
// algorithm tag byte followed by the (possibly compressed) message. The
// framing is the same in both directions and a handler always answers with
// the algorithm of the request.
//
// Errors cross the boundary as errors.Payload values and are rebuilt on
// the client side, so a failed construction renders the same Error() text
// whether the server is local or remote.
//
// Names and text travel as JSON byte strings, so invalid UTF-8 reaches the
// server unchanged and is judged there exactly as a local call would be.
//
// Frame sources are carried as tagged values. Integers, floats, strings,
// bools, time.Time and nil keep their Go type; time values keep their
// instant and offset but lose the location name and monotonic reading.
// Any other value is sent as an opaque stand-in naming its Go type, which
// every adapter rejects with the same error as the original value.
package wire

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/lumen/pkg/errors"
	formats "github.com/ajitpratap0/lumen/pkg/formats/columnar"
	"github.com/ajitpratap0/lumen/pkg/schema"
	"github.com/ajitpratap0/lumen/pkg/source"
	"github.com/ajitpratap0/lumen/pkg/table"
)

// Op names a request operation.
type Op string

const (
	OpCreateTable Op = "create_table"
	OpTableInfo   Op = "table_info"
	OpTableNames  Op = "table_names"
	OpDeleteTable Op = "delete_table"
)

// Request is one client call.
type Request struct {
	Op     Op             `json:"op"`
	Name   []byte         `json:"name,omitempty"`
	Source *SourceMessage `json:"source,omitempty"`
}

// Response answers a Request. Error is set when the call failed.
type Response struct {
	Table *table.Info     `json:"table,omitempty"`
	Names []string        `json:"names,omitempty"`
	Error *errors.Payload `json:"error,omitempty"`
}

// SourceMessage is the transport form of a source.Source. Only the fields
// of its Kind are set.
type SourceMessage struct {
	Kind      source.Kind `json:"kind"`
	Text      []byte      `json:"text,omitempty"`
	Delimiter int32       `json:"delimiter,omitempty"`
	Names     [][]byte    `json:"names,omitempty"`
	// Arrays holds one single-column IPC stream per array; nil for a nil array
	Arrays [][]byte      `json:"arrays,omitempty"`
	Data   []byte        `json:"data,omitempty"`
	Frame  *FrameMessage `json:"frame,omitempty"`
}

// FrameMessage carries a source.Frame. Nil and empty collections mean
// different things to the frame adapter, so none of them are omitted.
// Data and Types are sorted by column name.
type FrameMessage struct {
	Columns [][]byte        `json:"columns"`
	Data    []ColumnMessage `json:"data"`
	Rows    [][]Value       `json:"rows"`
	Index   []Value         `json:"index"`
	Types   []TypeMessage   `json:"types,omitempty"`
}

// ColumnMessage is one entry of a frame's column map.
type ColumnMessage struct {
	Name   []byte  `json:"name"`
	Values []Value `json:"values"`
}

// TypeMessage is one declared column type.
type TypeMessage struct {
	Column []byte          `json:"column"`
	Type   schema.DataType `json:"type"`
}

// Value is a tagged frame value: T is the Go type name and V its text
// form. String values use B instead of V.
type Value struct {
	T string `json:"t"`
	V string `json:"v,omitempty"`
	B []byte `json:"b,omitempty"`
}

const (
	tagNull   = "null"
	tagTime   = "time"
	tagOpaque = "opaque"
)

// EncodeSource converts src to its transport form.
func EncodeSource(src source.Source) (*SourceMessage, error) {
	if src == nil {
		return nil, nil
	}

	msg := &SourceMessage{Kind: src.Kind()}
	switch s := src.(type) {
	case source.CSV:
		msg.Text = []byte(s.Text)
		msg.Delimiter = s.Delimiter
	case source.Arrow:
		msg.Names = bytesOf(s.Names)
		msg.Arrays = make([][]byte, len(s.Arrays))
		for i, arr := range s.Arrays {
			if arr == nil {
				continue
			}
			name := ""
			if i < len(s.Names) {
				name = s.Names[i]
			}
			data, err := formats.EncodeColumn(name, arr)
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrorTypeTransport, "failed to encode column %q", name)
			}
			msg.Arrays[i] = data
		}
	case source.ArrowIPC:
		msg.Data = s.Data
	case source.Parquet:
		msg.Data = s.Data
	case source.Avro:
		msg.Data = s.Data
	case source.Records:
		msg.Data = s.Data
	case source.Frame:
		msg.Frame = encodeFrame(s)
	default:
		return nil, errors.Newf(errors.ErrorTypeValidation, "unsupported source kind %q", src.Kind())
	}
	return msg, nil
}

// DecodeSource rebuilds a source. Arrow arrays are allocated from mem and
// returned in release so the caller can free them after ingestion.
func DecodeSource(msg *SourceMessage, mem memory.Allocator) (src source.Source, release func(), err error) {
	release = func() {}
	if msg == nil {
		return nil, release, nil
	}

	switch msg.Kind {
	case source.KindCSV:
		return source.CSV{Text: string(msg.Text), Delimiter: msg.Delimiter}, release, nil
	case source.KindArrow:
		arrays := make([]arrow.Array, len(msg.Arrays))
		release = func() {
			for _, arr := range arrays {
				if arr != nil {
					arr.Release()
				}
			}
		}
		for i, data := range msg.Arrays {
			if data == nil {
				continue
			}
			_, arr, err := formats.DecodeColumn(data, mem)
			if err != nil {
				release()
				return nil, func() {}, errors.Wrapf(err, errors.ErrorTypeTransport, "malformed arrow column %d", i)
			}
			arrays[i] = arr
		}
		return source.Arrow{Names: stringsOf(msg.Names), Arrays: arrays}, release, nil
	case source.KindArrowIPC:
		return source.ArrowIPC{Data: msg.Data}, release, nil
	case source.KindParquet:
		return source.Parquet{Data: msg.Data}, release, nil
	case source.KindAvro:
		return source.Avro{Data: msg.Data}, release, nil
	case source.KindRecords:
		return source.Records{Data: msg.Data}, release, nil
	case source.KindFrame:
		if msg.Frame == nil {
			return nil, release, errors.New(errors.ErrorTypeTransport, "frame source without frame")
		}
		f, err := decodeFrame(msg.Frame)
		if err != nil {
			return nil, release, err
		}
		return f, release, nil
	}
	return nil, release, errors.Newf(errors.ErrorTypeTransport, "unknown source kind %q", msg.Kind)
}

func encodeFrame(f source.Frame) *FrameMessage {
	fm := &FrameMessage{Columns: bytesOf(f.Columns)}

	if f.Data != nil {
		fm.Data = make([]ColumnMessage, 0, len(f.Data))
		for _, name := range sortedKeys(f.Data) {
			fm.Data = append(fm.Data, ColumnMessage{Name: []byte(name), Values: encodeValues(f.Data[name])})
		}
	}
	if f.Rows != nil {
		fm.Rows = make([][]Value, len(f.Rows))
		for i, row := range f.Rows {
			fm.Rows[i] = encodeValues(row)
		}
	}
	fm.Index = encodeValues(f.Index)
	if len(f.Types) > 0 {
		fm.Types = make([]TypeMessage, 0, len(f.Types))
		for _, name := range sortedKeys(f.Types) {
			fm.Types = append(fm.Types, TypeMessage{Column: []byte(name), Type: f.Types[name]})
		}
	}
	return fm
}

func encodeValues(values []interface{}) []Value {
	if values == nil {
		return nil
	}
	out := make([]Value, len(values))
	for i, v := range values {
		out[i] = EncodeValue(v)
	}
	return out
}

func decodeFrame(fm *FrameMessage) (source.Frame, error) {
	f := source.Frame{Columns: stringsOf(fm.Columns)}

	var err error
	if fm.Data != nil {
		f.Data = make(map[string][]interface{}, len(fm.Data))
		for _, col := range fm.Data {
			if f.Data[string(col.Name)], err = decodeValues(col.Values); err != nil {
				return source.Frame{}, err
			}
		}
	}
	if fm.Rows != nil {
		f.Rows = make([][]interface{}, len(fm.Rows))
		for i, row := range fm.Rows {
			if f.Rows[i], err = decodeValues(row); err != nil {
				return source.Frame{}, err
			}
		}
	}
	if f.Index, err = decodeValues(fm.Index); err != nil {
		return source.Frame{}, err
	}
	if fm.Types != nil {
		f.Types = make(map[string]schema.DataType, len(fm.Types))
		for _, tm := range fm.Types {
			f.Types[string(tm.Column)] = tm.Type
		}
	}
	return f, nil
}

func decodeValues(values []Value) ([]interface{}, error) {
	if values == nil {
		return nil, nil
	}
	out := make([]interface{}, len(values))
	for i, v := range values {
		dec, err := DecodeValue(v)
		if err != nil {
			return nil, err
		}
		out[i] = dec
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// bytesOf and stringsOf keep a nil slice nil.
func bytesOf(ss []string) [][]byte {
	if ss == nil {
		return nil
	}
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = []byte(s)
	}
	return out
}

func stringsOf(bs [][]byte) []string {
	if bs == nil {
		return nil
	}
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = string(b)
	}
	return out
}

// EncodeValue tags a frame value. A value of any other type becomes an
// opaque tag holding only its type name.
func EncodeValue(v interface{}) Value {
	switch x := v.(type) {
	case nil:
		return Value{T: tagNull}
	case int:
		return Value{T: "int", V: strconv.FormatInt(int64(x), 10)}
	case int8:
		return Value{T: "int8", V: strconv.FormatInt(int64(x), 10)}
	case int16:
		return Value{T: "int16", V: strconv.FormatInt(int64(x), 10)}
	case int32:
		return Value{T: "int32", V: strconv.FormatInt(int64(x), 10)}
	case int64:
		return Value{T: "int64", V: strconv.FormatInt(x, 10)}
	case uint:
		return Value{T: "uint", V: strconv.FormatUint(uint64(x), 10)}
	case uint8:
		return Value{T: "uint8", V: strconv.FormatUint(uint64(x), 10)}
	case uint16:
		return Value{T: "uint16", V: strconv.FormatUint(uint64(x), 10)}
	case uint32:
		return Value{T: "uint32", V: strconv.FormatUint(uint64(x), 10)}
	case uint64:
		return Value{T: "uint64", V: strconv.FormatUint(x, 10)}
	case float32:
		return Value{T: "float32", V: strconv.FormatFloat(float64(x), 'g', -1, 32)}
	case float64:
		return Value{T: "float64", V: strconv.FormatFloat(x, 'g', -1, 64)}
	case string:
		return Value{T: "string", B: []byte(x)}
	case bool:
		return Value{T: "bool", V: strconv.FormatBool(x)}
	case time.Time:
		_, offset := x.Zone()
		return Value{T: tagTime, V: fmt.Sprintf("%d %d %d", x.Unix(), x.Nanosecond(), offset)}
	}
	return Value{T: tagOpaque, V: schema.TypeName(v)}
}

// DecodeValue reverses EncodeValue.
func DecodeValue(v Value) (interface{}, error) {
	var (
		out interface{}
		err error
	)
	switch v.T {
	case tagNull:
		return nil, nil
	case "int":
		var n int64
		n, err = strconv.ParseInt(v.V, 10, strconv.IntSize)
		out = int(n)
	case "int8":
		var n int64
		n, err = strconv.ParseInt(v.V, 10, 8)
		out = int8(n)
	case "int16":
		var n int64
		n, err = strconv.ParseInt(v.V, 10, 16)
		out = int16(n)
	case "int32":
		var n int64
		n, err = strconv.ParseInt(v.V, 10, 32)
		out = int32(n)
	case "int64":
		out, err = strconv.ParseInt(v.V, 10, 64)
	case "uint":
		var n uint64
		n, err = strconv.ParseUint(v.V, 10, strconv.IntSize)
		out = uint(n)
	case "uint8":
		var n uint64
		n, err = strconv.ParseUint(v.V, 10, 8)
		out = uint8(n)
	case "uint16":
		var n uint64
		n, err = strconv.ParseUint(v.V, 10, 16)
		out = uint16(n)
	case "uint32":
		var n uint64
		n, err = strconv.ParseUint(v.V, 10, 32)
		out = uint32(n)
	case "uint64":
		out, err = strconv.ParseUint(v.V, 10, 64)
	case "float32":
		var f float64
		f, err = strconv.ParseFloat(v.V, 32)
		out = float32(f)
	case "float64":
		out, err = strconv.ParseFloat(v.V, 64)
	case "string":
		out = string(v.B)
	case "bool":
		out, err = strconv.ParseBool(v.V)
	case tagTime:
		out, err = decodeTime(v.V)
	case tagOpaque:
		out = schema.Opaque{Type: v.V}
	default:
		return nil, errors.Newf(errors.ErrorTypeTransport, "unknown value tag %q", v.T)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeTransport, fmt.Sprintf("malformed %s value", v.T))
	}
	return out, nil
}

// decodeTime parses "unix-seconds nanoseconds offset". A zero offset
// decodes to UTC.
func decodeTime(text string) (time.Time, error) {
	var sec, nsec int64
	var offset int
	if _, err := fmt.Sscanf(text, "%d %d %d", &sec, &nsec, &offset); err != nil {
		return time.Time{}, err
	}
	if nsec < 0 || nsec >= int64(time.Second) {
		return time.Time{}, fmt.Errorf("nanoseconds %d out of range", nsec)
	}
	ts := time.Unix(sec, nsec)
	if offset == 0 {
		return ts.UTC(), nil
	}
	return ts.In(time.FixedZone("", offset)), nil
}
