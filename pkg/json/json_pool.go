// Package json wraps goccy/go-json with pooled buffers for the wire codec and
// a number-preserving decoder for JSON record ingestion.
package json

import (
	"bytes"
	"io"
	"strings"
	"sync"

	gojson "github.com/goccy/go-json"
)

// Re-exported token types so callers need a single json import.
type (
	// Delim is an array or object delimiter token
	Delim = gojson.Delim
	// Number is a JSON number kept as its literal text
	Number = gojson.Number
	// Token is one element of a decoder's token stream
	Token = gojson.Token
	// RawMessage is a raw encoded JSON value
	RawMessage = gojson.RawMessage
)

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// GetBuffer gets a pooled bytes.Buffer
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 1024*1024 { // Don't pool very large buffers
		return
	}
	bufferPool.Put(buf)
}

// Marshal is a drop-in replacement for encoding/json.Marshal
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is a drop-in replacement for encoding/json.Unmarshal
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// MarshalIndent is a drop-in replacement for encoding/json.MarshalIndent
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// Valid reports whether data is a single valid JSON value.
func Valid(data []byte) bool {
	return gojson.Valid(data)
}

// MarshalToWriter marshals v directly to a writer without HTML escaping.
func MarshalToWriter(w io.Writer, v interface{}) error {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// AppendMarshal marshals v and appends the encoding to dst. The trailing
// newline an Encoder writes is dropped.
func AppendMarshal(dst []byte, v interface{}) ([]byte, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)

	if err := MarshalToWriter(buf, v); err != nil {
		return dst, err
	}
	return append(dst, bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})...), nil
}

// TokenReader walks a JSON document token by token with numbers preserved
// as Number literals.
type TokenReader struct {
	dec *gojson.Decoder
}

// NewTokenReader creates a token reader over r.
func NewTokenReader(r io.Reader) *TokenReader {
	dec := gojson.NewDecoder(r)
	dec.UseNumber()
	return &TokenReader{dec: dec}
}

// Token returns the next token. Number tokens are copied out of the
// decoder's buffer, so they stay valid after further reads.
func (tr *TokenReader) Token() (Token, error) {
	tok, err := tr.dec.Token()
	if err != nil {
		return nil, err
	}
	if n, ok := tok.(Number); ok {
		return Number(strings.Clone(string(n))), nil
	}
	return tok, nil
}

// More reports whether the current array or object has another element.
func (tr *TokenReader) More() bool {
	return tr.dec.More()
}
