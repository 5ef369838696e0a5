// Package transfer implements segmented uploads and downloads: payloads are
// split into fixed-size chunks moved by a worker pool, with integrity checked
// over the whole object and progress reported as bytes complete.
package transfer

import (
	"errors"

	"github.com/altostore/altostore/internal/constants"
)

// ErrMisaligned is returned when a page transfer's size or chunking does not
// fall on the 512-byte page boundary.
var ErrMisaligned = errors.New("transfer: size and chunk size must be page-aligned")

// Chunk is one contiguous piece of a segmented transfer. N is the position in
// original byte order, which also fixes commit order on upload.
type Chunk struct {
	N      int
	Offset int64
	Length int64
}

// Plan partitions total bytes into chunkSize pieces. Only the final chunk may
// be short. A zero total yields no chunks; chunkSize defaults to BlockSize
// when non-positive.
func Plan(total, chunkSize int64) []Chunk {
	if total <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = constants.BlockSize
	}

	n := int((total + chunkSize - 1) / chunkSize)
	chunks := make([]Chunk, 0, n)
	for i, off := 0, int64(0); off < total; i, off = i+1, off+chunkSize {
		length := chunkSize
		if remaining := total - off; remaining < length {
			length = remaining
		}
		chunks = append(chunks, Chunk{N: i, Offset: off, Length: length})
	}
	return chunks
}

// PlanAligned is Plan for page transfers: total and chunkSize must both be
// multiples of alignment so every chunk starts and ends on a page boundary.
func PlanAligned(total, chunkSize, alignment int64) ([]Chunk, error) {
	if alignment <= 0 {
		alignment = constants.PageSize
	}
	if chunkSize <= 0 {
		chunkSize = constants.BlockSize
	}
	if total%alignment != 0 || chunkSize%alignment != 0 {
		return nil, ErrMisaligned
	}
	return Plan(total, chunkSize), nil
}
