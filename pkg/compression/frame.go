package compression

import (
	"fmt"
	"sync"
)

// Frame compresses data with c and prefixes the algorithm tag.
func Frame(c Compressor, data []byte) ([]byte, error) {
	id, ok := c.Algorithm().ID()
	if !ok {
		return nil, fmt.Errorf("unsupported compression algorithm: %s", c.Algorithm())
	}
	body, err := c.Compress(data)
	if err != nil {
		return nil, fmt.Errorf("failed to compress with %s: %w", c.Algorithm(), err)
	}
	out := make([]byte, 0, len(body)+1)
	out = append(out, id)
	return append(out, body...), nil
}

// Unframe reads the algorithm tag of a framed buffer and decompresses the
// rest, producing at most limit bytes (0 is unlimited).
func Unframe(framed []byte, limit int64) ([]byte, Algorithm, error) {
	if len(framed) == 0 {
		return nil, "", fmt.Errorf("empty frame")
	}
	algo, ok := AlgorithmByID(framed[0])
	if !ok {
		return nil, "", fmt.Errorf("unknown compression tag %d", framed[0])
	}
	c, err := decompressorFor(algo, limit)
	if err != nil {
		return nil, algo, err
	}
	data, err := c.Decompress(framed[1:])
	if err != nil {
		return nil, algo, fmt.Errorf("failed to decompress %s frame: %w", algo, err)
	}
	return data, algo, nil
}

var compressors sync.Map // Algorithm -> Compressor

// CompressorFor returns a shared compressor for algo at the default level.
func CompressorFor(algo Algorithm) (Compressor, error) {
	if algo == "" {
		algo = None
	}
	if c, ok := compressors.Load(algo); ok {
		return c.(Compressor), nil
	}
	c, err := NewCompressor(&Config{Algorithm: algo, Level: Default})
	if err != nil {
		return nil, err
	}
	actual, _ := compressors.LoadOrStore(algo, c)
	return actual.(Compressor), nil
}

type decompressorKey struct {
	algo  Algorithm
	limit int64
}

var decompressors sync.Map // decompressorKey -> Compressor

func decompressorFor(algo Algorithm, limit int64) (Compressor, error) {
	key := decompressorKey{algo: algo, limit: limit}
	if c, ok := decompressors.Load(key); ok {
		return c.(Compressor), nil
	}
	c, err := NewCompressor(&Config{Algorithm: algo, Level: Default, MaxDecompressedSize: limit})
	if err != nil {
		return nil, err
	}
	actual, _ := decompressors.LoadOrStore(key, c)
	return actual.(Compressor), nil
}
