package transfer

import (
	"bytes"
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

// ErrTooLarge is returned when a payload cannot fit within the service's
// block count and block size limits.
var ErrTooLarge = errors.New("transfer: payload exceeds maximum blob size")

// Result summarizes a completed transfer.
type Result struct {
	// Bytes moved, excluding protocol overhead.
	Bytes int64

	// Chunks is the number of staged blocks or ranged requests; zero for a
	// single-shot transfer.
	Chunks int

	// MD5 is the Base64 digest over the whole object in original byte
	// order, regardless of the order chunks completed in.
	MD5 string
}

// Uploader moves payloads into block or page blobs. Zero-value fields fall
// back to the package defaults; one Uploader may run many uploads, each call
// is independent.
type Uploader struct {
	Blob *blob.Client

	// Concurrency is the staging worker count. Defaults to
	// constants.DefaultConcurrency.
	Concurrency int

	// ChunkSize is the staged block size. Defaults to constants.BlockSize
	// and grows automatically when the payload would exceed the block
	// count limit.
	ChunkSize int64

	// SingleShotThreshold is the largest payload sent as one request.
	// Defaults to constants.SingleShotThreshold.
	SingleShotThreshold int64

	// Tracker, when set, receives byte increments as chunks complete.
	Tracker *SpeedTracker

	// Progress, when set, is called with the byte count of each completed
	// chunk. Called from worker goroutines.
	Progress func(n int64)

	Log zerolog.Logger
}

type stageJob struct {
	chunk Chunk
	buf   *[]byte
	data  []byte
}

func (u *Uploader) concurrency() int {
	if u.Concurrency > 0 {
		return u.Concurrency
	}
	return constants.DefaultConcurrency
}

func (u *Uploader) advance(n int64) {
	if u.Tracker != nil {
		u.Tracker.Increment(n)
	}
	if u.Progress != nil {
		u.Progress(n)
	}
}

// chunkSizeFor picks the block size for a payload: the configured size when
// it fits the 50000-block limit, otherwise the smallest size that does.
func (u *Uploader) chunkSizeFor(size int64) (int64, error) {
	cs := u.ChunkSize
	if cs <= 0 {
		cs = constants.BlockSize
	}
	if (size+cs-1)/cs > constants.MaxBlockCount {
		cs = (size + constants.MaxBlockCount - 1) / constants.MaxBlockCount
		// Round up to a whole MiB so block boundaries stay tidy.
		const mib = 1 << 20
		cs = (cs + mib - 1) / mib * mib
	}
	if cs > constants.MaxBlockSize {
		return 0, ErrTooLarge
	}
	return cs, nil
}

// UploadFile uploads a local file as a block blob.
func (u *Uploader) UploadFile(ctx context.Context, container, name, path, contentType string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("transfer: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("transfer: stat %s: %w", path, err)
	}
	return u.Upload(ctx, container, name, f, info.Size(), contentType)
}

// Upload uploads size bytes from r as a block blob. Payloads at or below the
// single-shot threshold go up in one request; larger ones are staged as
// blocks by a worker pool and committed in original order. The reader is
// consumed sequentially exactly once either way.
func (u *Uploader) Upload(ctx context.Context, container, name string, r io.Reader, size int64, contentType string) (*Result, error) {
	if size < 0 {
		return nil, errors.New("transfer: upload size must be known")
	}

	threshold := u.SingleShotThreshold
	if threshold <= 0 {
		threshold = constants.SingleShotThreshold
	}
	if size <= threshold {
		return u.uploadSingleShot(ctx, container, name, r, size, contentType)
	}
	return u.uploadChunked(ctx, container, name, r, size, contentType)
}

// uploadSingleShot buffers the payload so the request body is replayable and
// the MD5 can ride along as Content-MD5.
func (u *Uploader) uploadSingleShot(ctx context.Context, container, name string, r io.Reader, size int64, contentType string) (*Result, error) {
	data := make([]byte, size)
	if size > 0 {
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("transfer: read payload: %w", err)
		}
	}
	sum := md5.Sum(data)
	digest := base64.StdEncoding.EncodeToString(sum[:])

	u.Log.Debug().Str("blob", name).Int64("bytes", size).Msg("single-shot upload")
	if err := u.Blob.PutBlockBlob(ctx, container, name, bytes.NewReader(data), size, contentType, digest); err != nil {
		return nil, err
	}
	u.advance(size)
	return &Result{Bytes: size, MD5: digest}, nil
}

func (u *Uploader) uploadChunked(ctx context.Context, container, name string, r io.Reader, size int64, contentType string) (*Result, error) {
	chunkSize, err := u.chunkSizeFor(size)
	if err != nil {
		return nil, err
	}
	plan := Plan(size, chunkSize)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := u.concurrency()
	jobChan := make(chan stageJob, workers)
	errChan := make(chan error, workers+1)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobChan {
				if err := u.stageOne(ctx, container, name, job); err != nil {
					errChan <- err
					cancel()
					buffers.PutBlockBuffer(job.buf)
					return
				}
				buffers.PutBlockBuffer(job.buf)
			}
		}()
	}

	// The reader is consumed sequentially here, so hashing in this loop
	// yields the whole-object digest in original order no matter how the
	// staging workers interleave.
	whole := md5.New()
	if err := u.feedJobs(ctx, r, plan, chunkSize, whole, jobChan); err != nil {
		errChan <- err
	}
	close(jobChan)
	wg.Wait()

	select {
	case err := <-errChan:
		return nil, err
	default:
	}

	digest := base64.StdEncoding.EncodeToString(whole.Sum(nil))
	ids := make([]string, len(plan))
	for i := range plan {
		ids[i] = blob.FormatBlockID(int64(i))
	}
	if err := u.Blob.CommitBlockList(ctx, container, name, ids, contentType, digest); err != nil {
		return nil, err
	}

	u.Log.Debug().Str("blob", name).Int64("bytes", size).Int("blocks", len(plan)).Msg("chunked upload committed")
	return &Result{Bytes: size, Chunks: len(plan), MD5: digest}, nil
}

func (u *Uploader) feedJobs(ctx context.Context, r io.Reader, plan []Chunk, chunkSize int64, whole hash.Hash, jobChan chan<- stageJob) error {
	for _, chunk := range plan {
		var buf *[]byte
		if chunkSize == constants.BlockSize {
			buf = buffers.GetBlockBuffer()
		} else {
			b := make([]byte, chunkSize)
			buf = &b
		}
		data := (*buf)[:chunk.Length]
		if _, err := io.ReadFull(r, data); err != nil {
			buffers.PutBlockBuffer(buf)
			return fmt.Errorf("transfer: read chunk %d: %w", chunk.N, err)
		}
		whole.Write(data)

		select {
		case jobChan <- stageJob{chunk: chunk, buf: buf, data: data}:
		case <-ctx.Done():
			buffers.PutBlockBuffer(buf)
			return ctx.Err()
		}
	}
	return nil
}

func (u *Uploader) stageOne(ctx context.Context, container, name string, job stageJob) error {
	sum := md5.Sum(job.data)
	digest := base64.StdEncoding.EncodeToString(sum[:])

	id := blob.FormatBlockID(int64(job.chunk.N))
	if err := u.Blob.StageBlock(ctx, container, name, id, job.data, digest); err != nil {
		return fmt.Errorf("transfer: stage block %d: %w", job.chunk.N, err)
	}
	u.advance(job.chunk.Length)
	return nil
}

// UploadPages uploads size bytes from r into a new page blob. size must be
// 512-byte aligned; unaligned payloads are rejected, never padded.
func (u *Uploader) UploadPages(ctx context.Context, container, name string, r io.Reader, size int64, contentType string) (*Result, error) {
	plan, err := PlanAligned(size, u.ChunkSize, constants.PageSize)
	if err != nil {
		return nil, err
	}
	if err := u.Blob.CreatePageBlob(ctx, container, name, size, contentType); err != nil {
		return nil, err
	}
	if len(plan) == 0 {
		return &Result{}, nil
	}

	chunkSize := u.ChunkSize
	if chunkSize <= 0 {
		chunkSize = constants.BlockSize
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := u.concurrency()
	jobChan := make(chan stageJob, workers)
	errChan := make(chan error, workers+1)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobChan {
				err := u.Blob.PutPages(ctx, container, name, job.chunk.Offset, job.data)
				if err != nil {
					errChan <- fmt.Errorf("transfer: write pages at %d: %w", job.chunk.Offset, err)
					cancel()
					buffers.PutBlockBuffer(job.buf)
					return
				}
				u.advance(job.chunk.Length)
				buffers.PutBlockBuffer(job.buf)
			}
		}()
	}

	whole := md5.New()
	if err := u.feedJobs(ctx, r, plan, chunkSize, whole, jobChan); err != nil {
		errChan <- err
	}
	close(jobChan)
	wg.Wait()

	select {
	case err := <-errChan:
		return nil, err
	default:
	}

	return &Result{
		Bytes:  size,
		Chunks: len(plan),
		MD5:    base64.StdEncoding.EncodeToString(whole.Sum(nil)),
	}, nil
}
