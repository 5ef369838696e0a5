// Package blob implements the block and page blob operations of the storage
// service on top of the signed request pipeline in the storage package.
package blob

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/altostore/altostore/internal/constants"
	"github.com/altostore/altostore/storage"
)

// PageSize is the write granularity for page blobs; every page range offset
// and length must be a multiple of it.
const PageSize = constants.PageSize

// ErrPageAlignment is returned when a page write is not 512-byte aligned.
var ErrPageAlignment = errors.New("blob: page range offset and length must be 512-byte aligned")

// Blob types as reported by x-ms-blob-type.
const (
	TypeBlock = "BlockBlob"
	TypePage  = "PageBlob"
)

// Client issues blob operations against one storage account.
type Client struct {
	svc *storage.Client
}

// NewClient wraps a storage client.
func NewClient(svc *storage.Client) *Client {
	return &Client{svc: svc}
}

// FormatBlockID returns the Base64 block id for block n. All blocks of a blob
// must use equal-length ids, so the sequence number is zero-padded to a fixed
// width before encoding.
func FormatBlockID(n int64) string {
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("block-%010d", n)))
}

func blobPath(container, name string) string {
	return "/" + container + "/" + name
}

// CreateContainer creates a container; an existing container of the same name
// is not an error.
func (c *Client) CreateContainer(ctx context.Context, container string) error {
	params := url.Values{}
	params.Set("restype", "container")

	resp, err := c.svc.Exec(ctx, http.MethodPut, storage.ServiceBlob, "/"+container, params, nil, nil)
	if err != nil {
		var se *storage.ServiceError
		if errors.As(err, &se) && se.Code == "ContainerAlreadyExists" {
			return nil
		}
		return err
	}
	return discard(resp)
}

// PutBlockBlob uploads a blob in one request from a streaming body. size must
// be exact. If body cannot be reopened and a retryable failure strikes after
// bytes were sent, the call fails with pipeline.ErrStreamExhausted rather
// than replaying a half-consumed stream.
func (c *Client) PutBlockBlob(ctx context.Context, container, name string, body io.Reader, size int64, contentType, contentMD5 string) error {
	h := http.Header{}
	h.Set("x-ms-blob-type", TypeBlock)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	if contentMD5 != "" {
		h.Set("Content-MD5", contentMD5)
	}

	resp, err := c.svc.ExecStream(ctx, http.MethodPut, storage.ServiceBlob, blobPath(container, name), nil, h, body, size)
	if err != nil {
		return err
	}
	return discard(resp)
}

// StageBlock uploads one block of a block blob. The block is not part of the
// blob until committed; ids may be staged in any order and re-staged to
// overwrite.
func (c *Client) StageBlock(ctx context.Context, container, name, blockID string, data []byte, contentMD5 string) error {
	params := url.Values{}
	params.Set("comp", "block")
	params.Set("blockid", blockID)

	h := http.Header{}
	if contentMD5 != "" {
		h.Set("Content-MD5", contentMD5)
	}

	resp, err := c.svc.Exec(ctx, http.MethodPut, storage.ServiceBlob, blobPath(container, name), params, h, data)
	if err != nil {
		return err
	}
	return discard(resp)
}

type blockList struct {
	XMLName xml.Name `xml:"BlockList"`
	Latest  []string `xml:"Latest"`
}

// CommitBlockList assembles the blob from staged blocks. The committed blob's
// byte order is exactly the order of blockIDs, so the caller must pass them
// in original data order regardless of staging order.
func (c *Client) CommitBlockList(ctx context.Context, container, name string, blockIDs []string, contentType, blobMD5 string) error {
	body, err := xml.Marshal(blockList{Latest: blockIDs})
	if err != nil {
		return fmt.Errorf("blob: marshal block list: %w", err)
	}
	body = append([]byte(xml.Header), body...)

	params := url.Values{}
	params.Set("comp", "blocklist")

	h := http.Header{}
	if contentType != "" {
		h.Set("x-ms-blob-content-type", contentType)
	}
	if blobMD5 != "" {
		h.Set("x-ms-blob-content-md5", blobMD5)
	}

	resp, err := c.svc.Exec(ctx, http.MethodPut, storage.ServiceBlob, blobPath(container, name), params, h, body)
	if err != nil {
		return err
	}
	return discard(resp)
}

// CreatePageBlob allocates an empty page blob of the given size. size must be
// 512-byte aligned.
func (c *Client) CreatePageBlob(ctx context.Context, container, name string, size int64, contentType string) error {
	if size%PageSize != 0 {
		return ErrPageAlignment
	}
	h := http.Header{}
	h.Set("x-ms-blob-type", TypePage)
	h.Set("x-ms-blob-content-length", strconv.FormatInt(size, 10))
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}

	resp, err := c.svc.Exec(ctx, http.MethodPut, storage.ServiceBlob, blobPath(container, name), nil, h, nil)
	if err != nil {
		return err
	}
	return discard(resp)
}

// PutPages writes data at offset into an existing page blob. Both offset and
// len(data) must be 512-byte aligned; the service rejects partial pages, so
// this is checked before any bytes go on the wire.
func (c *Client) PutPages(ctx context.Context, container, name string, offset int64, data []byte) error {
	if offset%PageSize != 0 || int64(len(data))%PageSize != 0 || len(data) == 0 {
		return ErrPageAlignment
	}
	params := url.Values{}
	params.Set("comp", "page")

	h := http.Header{}
	h.Set("x-ms-range", fmt.Sprintf("bytes=%d-%d", offset, offset+int64(len(data))-1))
	h.Set("x-ms-page-write", "update")

	resp, err := c.svc.Exec(ctx, http.MethodPut, storage.ServiceBlob, blobPath(container, name), params, h, data)
	if err != nil {
		return err
	}
	return discard(resp)
}

// GetRange reads [offset, offset+length) of a blob. length <= 0 reads from
// offset to the end. The caller owns the returned body.
func (c *Client) GetRange(ctx context.Context, container, name string, offset, length int64) (io.ReadCloser, error) {
	h := http.Header{}
	if length > 0 {
		h.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))
	} else if offset > 0 {
		h.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := c.svc.Exec(ctx, http.MethodGet, storage.ServiceBlob, blobPath(container, name), nil, h, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Get reads a whole blob.
func (c *Client) Get(ctx context.Context, container, name string) (io.ReadCloser, error) {
	return c.GetRange(ctx, container, name, 0, 0)
}

// Properties is the metadata subset the transfer engine needs.
type Properties struct {
	ContentLength int64
	ContentType   string
	ContentMD5    string
	ETag          string
	BlobType      string
	LastModified  time.Time
}

// GetProperties fetches blob metadata via HEAD.
func (c *Client) GetProperties(ctx context.Context, container, name string) (*Properties, error) {
	resp, err := c.svc.Exec(ctx, http.MethodHead, storage.ServiceBlob, blobPath(container, name), nil, nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	p := &Properties{
		ContentType: resp.Header.Get("Content-Type"),
		ContentMD5:  resp.Header.Get("Content-MD5"),
		ETag:        resp.Header.Get("ETag"),
		BlobType:    resp.Header.Get("x-ms-blob-type"),
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if p.ContentLength, err = strconv.ParseInt(cl, 10, 64); err != nil {
			return nil, fmt.Errorf("blob: bad Content-Length %q: %w", cl, err)
		}
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := time.Parse(http.TimeFormat, lm); err == nil {
			p.LastModified = t
		}
	}
	return p, nil
}

// Delete removes a blob.
func (c *Client) Delete(ctx context.Context, container, name string) error {
	resp, err := c.svc.Exec(ctx, http.MethodDelete, storage.ServiceBlob, blobPath(container, name), nil, nil, nil)
	if err != nil {
		return err
	}
	return discard(resp)
}

func discard(resp *http.Response) error {
	_, err := io.Copy(io.Discard, resp.Body)
	if cerr := resp.Body.Close(); err == nil {
		err = cerr
	}
	return err
}
