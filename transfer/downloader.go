package transfer

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/altostore/altostore/internal/buffers"
	"github.com/altostore/altostore/internal/constants"
	"github.com/altostore/altostore/storage/blob"
)

// ErrChecksumMismatch is returned when the assembled download's MD5 does not
// match the digest the service reported for the blob. The destination file is
// left in place for inspection.
var ErrChecksumMismatch = errors.New("transfer: downloaded content failed MD5 verification")

// Downloader moves blobs to local storage with parallel ranged reads.
type Downloader struct {
	Blob *blob.Client

	// Concurrency is the ranged-read worker count. Defaults to
	// constants.DefaultConcurrency.
	Concurrency int

	// ChunkSize is the ranged-read size. Defaults to constants.BlockSize.
	ChunkSize int64

	// SkipVerify disables whole-object MD5 verification. Verification also
	// quietly skips when the service reports no digest for the blob.
	SkipVerify bool

	// Tracker, when set, receives byte increments as chunks complete.
	Tracker *SpeedTracker

	// Progress, when set, is called with the byte count of each completed
	// chunk. Called from worker goroutines.
	Progress func(n int64)

	Log zerolog.Logger
}

func (d *Downloader) concurrency() int {
	if d.Concurrency > 0 {
		return d.Concurrency
	}
	return constants.DefaultConcurrency
}

func (d *Downloader) advance(n int64) {
	if d.Tracker != nil {
		d.Tracker.Increment(n)
	}
	if d.Progress != nil {
		d.Progress(n)
	}
}

// DownloadFile downloads a blob into path, creating or truncating it.
func (d *Downloader) DownloadFile(ctx context.Context, container, name, path string) (*Result, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("transfer: create %s: %w", path, err)
	}
	res, err := d.Download(ctx, container, name, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("transfer: close %s: %w", path, cerr)
	}
	return res, err
}

// Download fetches a blob into w with parallel ranged reads. Chunks land via
// WriteAt as they arrive, in whatever order the workers finish; the integrity
// digest is still computed over original byte order.
func (d *Downloader) Download(ctx context.Context, container, name string, w io.WriterAt) (*Result, error) {
	props, err := d.Blob.GetProperties(ctx, container, name)
	if err != nil {
		return nil, err
	}
	if props.ContentLength == 0 {
		return &Result{MD5: emptyMD5()}, nil
	}

	chunkSize := d.ChunkSize
	if chunkSize <= 0 {
		chunkSize = constants.BlockSize
	}
	plan := Plan(props.ContentLength, chunkSize)
	d.Log.Debug().Str("blob", name).Int64("bytes", props.ContentLength).Int("chunks", len(plan)).Msg("segmented download")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := d.concurrency()
	jobChan := make(chan Chunk, workers)
	errChan := make(chan error, workers+1)
	asm := newAssembler(len(plan))

	// Tickets bound how far completed chunks may run ahead of the hashing
	// frontier, so a slow early range cannot pile unbounded buffers into
	// the assembler.
	tickets := make(chan struct{}, workers*2)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range jobChan {
				if err := d.fetchOne(ctx, container, name, chunk, w, asm, tickets); err != nil {
					errChan <- err
					cancel()
					return
				}
			}
		}()
	}

dispatch:
	for _, chunk := range plan {
		select {
		case tickets <- struct{}{}:
		case <-ctx.Done():
			break dispatch
		}
		select {
		case jobChan <- chunk:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobChan)
	wg.Wait()

	select {
	case err := <-errChan:
		return nil, err
	default:
	}

	digest := asm.digest()
	if !d.SkipVerify && props.ContentMD5 != "" && digest != props.ContentMD5 {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrChecksumMismatch, digest, props.ContentMD5)
	}
	return &Result{Bytes: props.ContentLength, Chunks: len(plan), MD5: digest}, nil
}

func (d *Downloader) fetchOne(ctx context.Context, container, name string, chunk Chunk, w io.WriterAt, asm *assembler, tickets <-chan struct{}) error {
	body, err := d.Blob.GetRange(ctx, container, name, chunk.Offset, chunk.Length)
	if err != nil {
		return fmt.Errorf("transfer: fetch range %d: %w", chunk.N, err)
	}
	var buf *[]byte
	if chunk.Length <= constants.BlockSize {
		buf = buffers.GetBlockBuffer()
	} else {
		b := make([]byte, chunk.Length)
		buf = &b
	}
	data := (*buf)[:chunk.Length]
	_, err = io.ReadFull(body, data)
	body.Close()
	if err != nil {
		buffers.PutBlockBuffer(buf)
		return fmt.Errorf("transfer: read range %d: %w", chunk.N, err)
	}
	if _, err := w.WriteAt(data, chunk.Offset); err != nil {
		buffers.PutBlockBuffer(buf)
		return fmt.Errorf("transfer: write range %d: %w", chunk.N, err)
	}
	d.advance(chunk.Length)

	for released := asm.deliver(chunk.N, buf, data); released > 0; released-- {
		<-tickets
	}
	return nil
}

func emptyMD5() string {
	sum := md5.Sum(nil)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// assembler feeds completed chunks to an MD5 in original order. Workers
// deliver out of order; the assembler buffers chunks past the frontier and
// hashes runs as they become contiguous.
type assembler struct {
	mu      sync.Mutex
	hash    hash.Hash
	next    int
	pending map[int]pendingChunk
	total   int
}

type pendingChunk struct {
	buf  *[]byte
	data []byte
}

func newAssembler(total int) *assembler {
	return &assembler{
		hash:    md5.New(),
		pending: make(map[int]pendingChunk),
		total:   total,
	}
}

// deliver hands chunk n to the assembler and returns how many chunks were
// hashed as a result, each freeing one admission ticket. Ownership of buf
// passes to the assembler.
func (a *assembler) deliver(n int, buf *[]byte, data []byte) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pending[n] = pendingChunk{buf: buf, data: data}
	released := 0
	for {
		pc, ok := a.pending[a.next]
		if !ok {
			return released
		}
		delete(a.pending, a.next)
		a.hash.Write(pc.data)
		buffers.PutBlockBuffer(pc.buf)
		a.next++
		released++
	}
}

func (a *assembler) digest() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return base64.StdEncoding.EncodeToString(a.hash.Sum(nil))
}
