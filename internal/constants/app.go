package constants

import (
	"time"
)

// Transfer sizing
const (
	// SingleShotThreshold - payloads at or below this size are sent as one
	// request; anything larger goes through the segmented transfer engine.
	SingleShotThreshold = 64 * 1024 * 1024

	// BlockSize - default size of each staged block / download range (4 MB).
	//
	// Trade-offs:
	// - Smaller blocks = more HTTP requests but finer progress granularity
	// - Larger blocks = better throughput but coarser progress updates
	BlockSize = 4 * 1024 * 1024

	// MaxBlockSize - service limit for a single staged block (100 MB).
	MaxBlockSize = 100 * 1024 * 1024

	// PageSize - page blob writes must be aligned to this boundary (512 bytes).
	// A payload that is not a multiple of PageSize is rejected, never padded.
	PageSize = 512

	// MaxBlockCount - service limit on blocks per blob.
	MaxBlockCount = 50000

	// DefaultConcurrency - default worker count for segmented transfers.
	DefaultConcurrency = 4
)

// HTTP transport tuning. Values carried over from transfer benchmarking
// against both the public endpoints and the local emulator.
const (
	HTTPDialTimeout           = 30 * time.Second
	HTTPDialKeepAlive         = 30 * time.Second
	HTTPIdleConnTimeout       = 90 * time.Second
	HTTPTLSHandshakeTimeout   = 30 * time.Second
	HTTPExpectContinueTimeout = 1 * time.Second
)

// Retry defaults. The linear policy retries 3 times at a fixed 30s interval;
// the exponential policy doubles from RetryMinInterval up to RetryMaxInterval.
const (
	DefaultRetryCount = 3
	RetryInterval     = 30 * time.Second
	RetryMinInterval  = 3 * time.Second
	RetryMaxInterval  = 90 * time.Second
)
