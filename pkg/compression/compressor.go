// Package compression compresses wire envelopes with one of several
// algorithms and frames them with a one-byte algorithm tag, so a receiver
// can decode any envelope regardless of the sender's configuration.
//
// # Algorithm Selection
//
//   - Snappy/S2: Best for speed, moderate compression
//   - LZ4: Extremely fast, decent compression
//   - Zstd: Best compression ratio, good speed
//   - Gzip/Deflate: Wide compatibility
//
// # Basic Usage
//
//	comp, err := compression.NewCompressor(&compression.Config{
//	    Algorithm: compression.Zstd,
//	    Level:     compression.Default,
//	})
//
//	framed, err := compression.Frame(comp, payload)
//	payload, algo, err := compression.Unframe(framed, 64<<20)
package compression

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents snappy compression
	Snappy Algorithm = "snappy"
	// LZ4 represents lz4 compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
	// Deflate represents deflate compression
	Deflate Algorithm = "deflate"
)

// algorithm tags are part of the wire format and must never be renumbered
var algorithmIDs = map[Algorithm]byte{
	None:    0,
	Gzip:    1,
	Snappy:  2,
	S2:      3,
	Zstd:    4,
	LZ4:     5,
	Deflate: 6,
}

// Algorithms returns every supported algorithm in tag order.
func Algorithms() []Algorithm {
	return []Algorithm{None, Gzip, Snappy, S2, Zstd, LZ4, Deflate}
}

// ParseAlgorithm returns the algorithm named s. The empty string is None.
func ParseAlgorithm(s string) (Algorithm, error) {
	if s == "" {
		return None, nil
	}
	a := Algorithm(s)
	if _, ok := algorithmIDs[a]; !ok {
		return "", fmt.Errorf("unsupported compression algorithm: %s", s)
	}
	return a, nil
}

// ID returns the one-byte wire tag of the algorithm.
func (a Algorithm) ID() (byte, bool) {
	id, ok := algorithmIDs[a]
	return id, ok
}

// AlgorithmByID resolves a wire tag.
func AlgorithmByID(id byte) (Algorithm, bool) {
	for a, aid := range algorithmIDs {
		if aid == id {
			return a, true
		}
	}
	return "", false
}

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Better improves compression at cost of speed.
	Better Level = 7
	// Best maximizes compression ratio.
	Best Level = 9
)

// Compressor compresses and decompresses whole buffers.
// All implementations are safe for concurrent use.
type Compressor interface {
	// Compress compresses data and returns the compressed bytes.
	// The input data is not modified.
	Compress(data []byte) ([]byte, error)

	// Decompress decompresses data and returns the original bytes. Output
	// beyond the configured size limit fails with ErrTooLarge.
	Decompress(data []byte) ([]byte, error)

	// Algorithm returns the compression algorithm used.
	Algorithm() Algorithm
}

// ErrTooLarge is returned when decompressed output exceeds the size limit.
var ErrTooLarge = errors.New("decompressed data exceeds size limit")

// Config represents compressor configuration.
type Config struct {
	Algorithm Algorithm // Compression algorithm to use
	Level     Level     // Compression level
	// MaxDecompressedSize bounds Decompress output; 0 means unlimited
	MaxDecompressedSize int64
}

// DefaultConfig returns the default configuration: no compression.
func DefaultConfig() *Config {
	return &Config{
		Algorithm: None,
		Level:     Default,
	}
}

// NewCompressor creates a new compressor based on the provided configuration.
// If config is nil, default configuration is used.
func NewCompressor(config *Config) (Compressor, error) {
	if config == nil {
		config = DefaultConfig()
	}

	base := baseCompressor{algorithm: config.Algorithm, limit: config.MaxDecompressedSize}
	switch config.Algorithm {
	case None, "":
		base.algorithm = None
		return &noneCompressor{baseCompressor: base}, nil
	case Gzip:
		return newGzipCompressor(base, config.Level), nil
	case Snappy:
		return &snappyCompressor{baseCompressor: base}, nil
	case LZ4:
		return &lz4Compressor{baseCompressor: base, level: mapLZ4Level(config.Level)}, nil
	case Zstd:
		return newZstdCompressor(base, config.Level)
	case S2:
		return &s2Compressor{baseCompressor: base}, nil
	case Deflate:
		return &deflateCompressor{baseCompressor: base, level: mapDeflateLevel(config.Level)}, nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", config.Algorithm)
	}
}

type baseCompressor struct {
	algorithm Algorithm
	limit     int64
}

// Algorithm returns the compression algorithm
func (bc *baseCompressor) Algorithm() Algorithm {
	return bc.algorithm
}

func (bc *baseCompressor) checkSize(n int) error {
	if bc.limit > 0 && int64(n) > bc.limit {
		return ErrTooLarge
	}
	return nil
}

// readLimited drains r, failing once more than the limit has been produced.
func (bc *baseCompressor) readLimited(r io.Reader) ([]byte, error) {
	if bc.limit > 0 {
		r = io.LimitReader(r, bc.limit+1)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}
	if err := bc.checkSize(buf.Len()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// None compressor (no compression)
type noneCompressor struct {
	baseCompressor
}

func (nc *noneCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

func (nc *noneCompressor) Decompress(data []byte) ([]byte, error) {
	if err := nc.checkSize(len(data)); err != nil {
		return nil, err
	}
	return data, nil
}

// Gzip compressor
type gzipCompressor struct {
	baseCompressor
	writerPool sync.Pool
}

func newGzipCompressor(base baseCompressor, level Level) *gzipCompressor {
	gc := &gzipCompressor{baseCompressor: base}
	gzLevel := mapGzipLevel(level)
	gc.writerPool.New = func() interface{} {
		w, _ := gzip.NewWriterLevel(nil, gzLevel)
		return w
	}
	return gc
}

func (gc *gzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gc.writerPool.Get().(*gzip.Writer)
	defer gc.writerPool.Put(w)

	w.Reset(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gc *gzipCompressor) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return gc.readLimited(r)
}

// Snappy compressor
type snappyCompressor struct {
	baseCompressor
}

func (sc *snappyCompressor) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (sc *snappyCompressor) Decompress(data []byte) ([]byte, error) {
	n, err := snappy.DecodedLen(data)
	if err != nil {
		return nil, err
	}
	if err := sc.checkSize(n); err != nil {
		return nil, err
	}
	return snappy.Decode(nil, data)
}

// LZ4 compressor
type lz4Compressor struct {
	baseCompressor
	level lz4.CompressionLevel
}

func (lc *lz4Compressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if err := w.Apply(lz4.CompressionLevelOption(lc.level)); err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (lc *lz4Compressor) Decompress(data []byte) ([]byte, error) {
	return lc.readLimited(lz4.NewReader(bytes.NewReader(data)))
}

// Zstd compressor
type zstdCompressor struct {
	baseCompressor
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newZstdCompressor(base baseCompressor, level Level) (*zstdCompressor, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(mapZstdLevel(level)))
	if err != nil {
		return nil, err
	}
	opts := []zstd.DOption{zstd.WithDecoderConcurrency(0)}
	if base.limit > 0 {
		opts = append(opts, zstd.WithDecoderMaxMemory(uint64(base.limit)))
	}
	dec, err := zstd.NewReader(nil, opts...)
	if err != nil {
		return nil, err
	}
	return &zstdCompressor{baseCompressor: base, encoder: enc, decoder: dec}, nil
}

// EncodeAll and DecodeAll are safe for concurrent use on a shared coder.
func (zc *zstdCompressor) Compress(data []byte) ([]byte, error) {
	return zc.encoder.EncodeAll(data, nil), nil
}

func (zc *zstdCompressor) Decompress(data []byte) ([]byte, error) {
	out, err := zc.decoder.DecodeAll(data, nil)
	if err != nil {
		if errors.Is(err, zstd.ErrDecoderSizeExceeded) || errors.Is(err, zstd.ErrWindowSizeExceeded) {
			return nil, ErrTooLarge
		}
		return nil, err
	}
	if err := zc.checkSize(len(out)); err != nil {
		return nil, err
	}
	return out, nil
}

// S2 compressor (Snappy-compatible but better compression)
type s2Compressor struct {
	baseCompressor
}

func (sc *s2Compressor) Compress(data []byte) ([]byte, error) {
	return s2.Encode(nil, data), nil
}

func (sc *s2Compressor) Decompress(data []byte) ([]byte, error) {
	n, err := s2.DecodedLen(data)
	if err != nil {
		return nil, err
	}
	if err := sc.checkSize(n); err != nil {
		return nil, err
	}
	return s2.Decode(nil, data)
}

// Deflate compressor
type deflateCompressor struct {
	baseCompressor
	level int
}

func (dc *deflateCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, dc.level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (dc *deflateCompressor) Decompress(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	return dc.readLimited(r)
}

// Helper functions to map compression levels

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func mapDeflateLevel(level Level) int {
	switch level {
	case Fastest:
		return flate.BestSpeed
	case Best:
		return flate.BestCompression
	default:
		return flate.DefaultCompression
	}
}
