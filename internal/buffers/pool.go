package buffers

import (
	"sync"

	"github.com/altostore/altostore/internal/constants"
)

// Pool provides reusable byte buffers to reduce heap allocations during
// segmented uploads and downloads. Staging a 4 MB block per chunk per worker
// generates serious GC pressure without reuse.

var blockPool = &sync.Pool{
	New: func() interface{} {
		buf := make([]byte, constants.BlockSize)
		return &buf
	},
}

// GetBlockBuffer retrieves a BlockSize buffer from the pool.
// The buffer must be returned with PutBlockBuffer when done.
//
// Usage:
//
//	buf := buffers.GetBlockBuffer()
//	defer buffers.PutBlockBuffer(buf)
//	n, err := io.ReadFull(src, *buf)
//	// use (*buf)[:n]
func GetBlockBuffer() *[]byte {
	return blockPool.Get().(*[]byte)
}

// PutBlockBuffer returns a buffer to the pool for reuse.
// Only buffers of the canonical size are pooled; resliced buffers are dropped
// so the pool never hands out a short buffer.
func PutBlockBuffer(buf *[]byte) {
	if buf != nil && len(*buf) == constants.BlockSize {
		blockPool.Put(buf)
	}
}
