/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package compression provides configurable compression for raftkit.

Compression Overview:
=====================

This module implements configurable compression for:
- WAL entries to reduce disk I/O
- Replication traffic to reduce network bandwidth
- Batch operations for better compression ratios

Supported Algorithms:
=====================

1. LZ4: Fast compression/decompression, moderate ratio
2. Snappy: Very fast, lower ratio, good for real-time
3. Zstd: Best ratio, configurable speed/ratio tradeoff
4. Gzip: Standard library deflate; the DefaultConfig algorithm

Batch Compression:
==================

Batching multiple entries before compression improves ratios:
1. Collect entries into a batch
2. Compress the entire batch
3. Store/transmit compressed batch
4. Decompress and split on read
*/
package compression

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm represents a compression algorithm
type Algorithm int

const (
	AlgorithmNone Algorithm = iota
	AlgorithmGzip
	AlgorithmLZ4
	AlgorithmSnappy
	AlgorithmZstd
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmNone:
		return "none"
	case AlgorithmGzip:
		return "gzip"
	case AlgorithmLZ4:
		return "lz4"
	case AlgorithmSnappy:
		return "snappy"
	case AlgorithmZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// ParseAlgorithm parses a compression algorithm from string
func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "none", "":
		return AlgorithmNone, nil
	case "gzip":
		return AlgorithmGzip, nil
	case "lz4":
		return AlgorithmLZ4, nil
	case "snappy":
		return AlgorithmSnappy, nil
	case "zstd":
		return AlgorithmZstd, nil
	default:
		return AlgorithmNone, fmt.Errorf("unknown compression algorithm: %s", s)
	}
}

// Level represents compression level
type Level int

const (
	LevelFastest Level = 1
	LevelDefault Level = 5
	LevelBest    Level = 9
)

// Config holds compression configuration
type Config struct {
	Algorithm        Algorithm `json:"algorithm"`
	Level            Level     `json:"level"`
	MinSize          int       `json:"min_size"`           // Minimum size to compress
	BatchSize        int       `json:"batch_size"`         // Number of entries per batch
	BatchTimeout     int       `json:"batch_timeout_ms"`   // Max wait time for batch (ms)
	DictionaryEnable bool      `json:"dictionary_enable"`  // Use dictionary compression
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Algorithm:        AlgorithmGzip,
		Level:            LevelDefault,
		MinSize:          256,
		BatchSize:        100,
		BatchTimeout:     10,
		DictionaryEnable: false,
	}
}

// Errors
var (
	ErrDataTooSmall     = errors.New("data too small to compress")
	ErrInvalidHeader    = errors.New("invalid compression header")
	ErrUnsupportedAlgo  = errors.New("unsupported compression algorithm")
	ErrDecompressFailed = errors.New("decompression failed")
)

// Compressor provides compression/decompression operations
type Compressor struct {
	config     Config
	gzipPool   sync.Pool
	bufferPool sync.Pool
}

// NewCompressor creates a new compressor
func NewCompressor(config Config) *Compressor {
	return &Compressor{
		config: config,
		gzipPool: sync.Pool{
			New: func() interface{} {
				return gzip.NewWriter(nil)
			},
		},
		bufferPool: sync.Pool{
			New: func() interface{} {
				return new(bytes.Buffer)
			},
		},
	}
}

// MinSize returns the configured size threshold below which a caller
// should skip compression entirely (see MinSize on Compress). Exported
// so callers outside this package, e.g. internal/protocol's RPC codec,
// can apply the same threshold before calling Compress.
func (c *Compressor) MinSize() int {
	return c.config.MinSize
}

// Compress compresses data using the algorithm configured on c. Compress
// itself always compresses regardless of size — it does not consult
// config.MinSize. Callers that want to skip compressing small payloads
// (not worth the CPU for the few bytes saved) must check len(data)
// against c.MinSize() themselves before calling Compress.
// EncodeCompressedRPC in internal/protocol does this for outgoing RPCs.
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	switch c.config.Algorithm {
	case AlgorithmNone:
		return append([]byte(nil), data...), nil

	case AlgorithmGzip:
		buf := c.bufferPool.Get().(*bytes.Buffer)
		buf.Reset()
		defer c.bufferPool.Put(buf)

		gw := c.gzipPool.Get().(*gzip.Writer)
		defer c.gzipPool.Put(gw)
		gw.Reset(buf)

		if _, err := gw.Write(data); err != nil {
			return nil, fmt.Errorf("gzip compress: %w", err)
		}
		if err := gw.Close(); err != nil {
			return nil, fmt.Errorf("gzip compress: %w", err)
		}
		return append([]byte(nil), buf.Bytes()...), nil

	case AlgorithmSnappy:
		return snappy.Encode(nil, data), nil

	case AlgorithmLZ4:
		buf := new(bytes.Buffer)
		zw := lz4.NewWriter(buf)
		if _, err := zw.Write(data); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		return buf.Bytes(), nil

	case AlgorithmZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstdEncoderLevel(c.config.Level)))
		if err != nil {
			return nil, fmt.Errorf("zstd compress: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil

	default:
		return nil, ErrUnsupportedAlgo
	}
}

// Decompress reverses Compress for the given algorithm. The algorithm is
// passed explicitly (rather than read from c.config) so a single
// Compressor can decode frames written under a different configuration,
// e.g. after a peer changed its compression setting mid-cluster.
func (c *Compressor) Decompress(data []byte, algo Algorithm) ([]byte, error) {
	switch algo {
	case AlgorithmNone:
		return append([]byte(nil), data...), nil

	case AlgorithmGzip:
		gr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
		}
		defer gr.Close()
		out, err := io.ReadAll(gr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
		}
		return out, nil

	case AlgorithmSnappy:
		out, err := snappy.Decode(nil, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
		}
		return out, nil

	case AlgorithmLZ4:
		zr := lz4.NewReader(bytes.NewReader(data))
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
		}
		return out, nil

	case AlgorithmZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
		}
		return out, nil

	default:
		return nil, ErrUnsupportedAlgo
	}
}

// zstdEncoderLevel maps the coarse Level knob onto zstd's own level enum.
func zstdEncoderLevel(l Level) zstd.EncoderLevel {
	switch {
	case l <= LevelFastest:
		return zstd.SpeedFastest
	case l >= LevelBest:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

// BatchCompressor accumulates several entries and compresses them as one
// unit, improving the compression ratio over compressing each entry in
// isolation (useful for a burst of small AppendEntries commands).
type BatchCompressor struct {
	compressor *Compressor
	buf        bytes.Buffer
}

// NewBatchCompressor creates a batch compressor using config's algorithm.
func NewBatchCompressor(config Config) *BatchCompressor {
	return &BatchCompressor{compressor: NewCompressor(config)}
}

// Add appends entry to the pending batch, length-prefixed so DecompressBatch
// can split the decompressed blob back into the original entries.
func (b *BatchCompressor) Add(entry []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(entry)))
	b.buf.Write(lenBuf[:])
	b.buf.Write(entry)
}

// Flush compresses the accumulated batch and resets it for reuse.
func (b *BatchCompressor) Flush() ([]byte, error) {
	out, err := b.compressor.Compress(b.buf.Bytes())
	b.buf.Reset()
	return out, err
}

// DecompressBatch reverses Flush, splitting the decompressed blob back
// into its original entries in order.
func (b *BatchCompressor) DecompressBatch(compressed []byte, algo Algorithm) ([][]byte, error) {
	raw, err := b.compressor.Decompress(compressed, algo)
	if err != nil {
		return nil, err
	}

	var out [][]byte
	for len(raw) > 0 {
		if len(raw) < 4 {
			return nil, ErrInvalidHeader
		}
		n := binary.BigEndian.Uint32(raw[:4])
		raw = raw[4:]
		if uint64(len(raw)) < uint64(n) {
			return nil, ErrInvalidHeader
		}
		out = append(out, append([]byte(nil), raw[:n]...))
		raw = raw[n:]
	}
	return out, nil
}

