// Package tus implements a client for the TUS resumable upload protocol
// (https://tus.io): it creates upload resources, transfers local files in
// offset-addressed chunks, resynchronizes with server-reported progress and
// terminates uploads. Transfer is strictly sequential per upload; independent
// uploads may run concurrently since UploadMeta values are immutable
// snapshots.
package tus

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
)

// statusChecksumMismatch is the non-standard code the checksum extension uses
// to signal a corrupted chunk.
const statusChecksumMismatch = 460

// ClientOptions configures a Client.
type ClientOptions struct {
	// ChunkSize is the number of bytes sent per PATCH request when an upload
	// does not carry its own. Defaults to DefaultChunkSize.
	ChunkSize int64
}

// DefaultClientOptions returns options with the 6 MiB default chunk size.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{ChunkSize: DefaultChunkSize}
}

// ParseChunkSize converts a human-readable size such as "6MiB" or "512kb"
// into a byte count usable as ClientOptions.ChunkSize.
func ParseChunkSize(s string) (int64, error) {
	return units.RAMInBytes(s)
}

// Client drives uploads against a TUS server. It sequences the protocol
// operations, owns file I/O during Resume and maps response status codes to
// the package error taxonomy. All methods block until the response arrives;
// deadlines and cancellation come from the caller's context or the transport.
type Client struct {
	// ProtocolVersion sent in the Tus-Resumable header of new uploads.
	ProtocolVersion string

	// Logger receives chunk-loop debug output and the warning emitted when
	// Terminate swallows a cleanup failure.
	Logger log.Logger

	transport HTTPClient
	options   ClientOptions
}

// NewClient creates a Client using the given transport. A nil transport
// falls back to http.DefaultClient.
func NewClient(transport HTTPClient, options ClientOptions) *Client {
	c := &Client{transport: transport, options: options}
	if c.transport == nil {
		c.transport = http.DefaultClient
	}
	if c.options.ChunkSize <= 0 {
		c.options.ChunkSize = DefaultChunkSize
	}
	c.ProtocolVersion = ProtocolVersion
	c.Logger = log.NewLogger()
	return c
}

// Create registers an upload resource for a local file on the server and
// returns the metadata with the remote URL populated. No file bytes are
// transferred yet.
func (c *Client) Create(ctx context.Context, filePath, uploadHost string, extraMeta, customHeaders map[string]string) (UploadMeta, error) {
	meta, err := NewUploadMeta(filePath, uploadHost, extraMeta, customHeaders, c.options.ChunkSize)
	if err != nil {
		return meta, err
	}
	meta.Version = c.ProtocolVersion
	return c.run(ctx, TusOpCreate, meta, nil)
}

// GetOffset resynchronizes the upload progress with the server-reported
// offset, e.g. before resuming from a persisted snapshot.
func (c *Client) GetOffset(ctx context.Context, meta UploadMeta) (UploadMeta, error) {
	return c.run(ctx, TusOpGetOffset, meta, nil)
}

// Resume transfers the remaining bytes of an upload, one chunk per request,
// adopting the server-reported offset after each response. It returns when
// all bytes are confirmed or on the first error; there is no retry. On
// failure the returned metadata is the last valid snapshot (with the failed
// attempt recorded), so the caller can persist it and Resume again later.
func (c *Client) Resume(ctx context.Context, meta UploadMeta) (UploadMeta, error) {
	file, err := os.Open(meta.FilePath)
	if err != nil {
		return meta, fmt.Errorf("%w: %v", ErrFileRead, err)
	}
	defer file.Close()

	chunkSize := meta.ChunkSize
	if chunkSize <= 0 {
		chunkSize = c.options.ChunkSize
	}
	buf := make([]byte, chunkSize)
	for !meta.Complete() {
		chunk := buf
		if remaining := meta.Status.Size - meta.Status.BytesUploaded; remaining < chunkSize {
			chunk = buf[:remaining]
		}
		n, err := file.ReadAt(chunk, meta.Status.BytesUploaded)
		if err != nil && err != io.EOF {
			return meta.WithErrorRecorded(), fmt.Errorf("%w: %v", ErrFileRead, err)
		}
		if n == 0 {
			return meta.WithErrorRecorded(), fmt.Errorf("%w: zero bytes read at offset %d, file is shorter than the declared %d bytes",
				ErrFileRead, meta.Status.BytesUploaded, meta.Status.Size)
		}

		next, err := c.run(ctx, TusOpUpload, meta, chunk[:n])
		if err != nil {
			return meta.WithErrorRecorded(), err
		}
		meta = next
		c.Logger.Debugf("uploaded %s of %s to %s",
			units.BytesSize(float64(meta.Status.BytesUploaded)), units.BytesSize(float64(meta.Status.Size)), meta.RemoteURL)
	}
	return meta, nil
}

// Upload creates the upload resource and transfers the whole file, as a
// single convenience call.
func (c *Client) Upload(ctx context.Context, filePath, uploadHost string, extraMeta, customHeaders map[string]string) (UploadMeta, error) {
	meta, err := c.Create(ctx, filePath, uploadHost, extraMeta, customHeaders)
	if err != nil {
		return meta, err
	}
	return c.Resume(ctx, meta)
}

// Terminate deletes the upload resource on the server. Cleanup is
// best-effort: a failure must not block the caller's control flow, so it is
// logged at warning level instead of being returned. This is the only place
// the package drops an error.
func (c *Client) Terminate(ctx context.Context, meta UploadMeta) {
	if _, err := c.run(ctx, TusOpTerminate, meta, nil); err != nil {
		c.Logger.Warnf("terminate upload %s: %s", meta.RemoteURL, err)
	}
}

// GetServerInfo probes a server's capabilities: protocol versions,
// extensions, size limit and checksum algorithms. It mutates no upload state.
func (c *Client) GetServerInfo(ctx context.Context, serverURL string) (TusServerInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodOptions, serverURL, nil)
	if err != nil {
		return TusServerInfo{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.transport.Do(req)
	if err != nil {
		return TusServerInfo{}, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return serverInfoFromHeaders(DecodeHeaders(resp.Header)), nil
	default:
		return TusServerInfo{}, &UnexpectedStatusCodeError{Code: resp.StatusCode, Body: readBody(resp)}
	}
}

// run executes one protocol operation: the operation supplies verb, headers
// and URL, the transport executes the request, and the status code is
// classified exactly once. On 2xx the operation's decode rule produces the
// updated metadata; any other code maps to the error taxonomy and leaves the
// metadata as it was.
func (c *Client) run(ctx context.Context, op TusOp, meta UploadMeta, body []byte) (UploadMeta, error) {
	headers, err := op.RequestHeaders(meta)
	if err != nil {
		return meta, err
	}
	target, err := op.URL(meta)
	if err != nil {
		return meta, err
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, op.Method(), target, reqBody)
	if err != nil {
		return meta, fmt.Errorf("build %s request: %w", op, err)
	}
	for name, values := range headers {
		req.Header[name] = values
	}

	resp, err := c.transport.Do(req)
	if err != nil {
		return meta, fmt.Errorf("execute %s request: %w", op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return op.ApplyResponse(DecodeHeaders(resp.Header), meta)
	case resp.StatusCode == http.StatusBadRequest:
		return meta, fmt.Errorf("%w: %s", ErrBadRequest, readBody(resp))
	case resp.StatusCode == http.StatusNotFound:
		return meta, ErrUploadNotFound
	case resp.StatusCode == http.StatusConflict:
		return meta, ErrOffsetsNotSynced
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		return meta, ErrUploadTooLarge
	case resp.StatusCode == statusChecksumMismatch:
		return meta, ErrChecksumMismatch
	default:
		return meta, &UnexpectedStatusCodeError{Code: resp.StatusCode, Body: readBody(resp)}
	}
}

func readBody(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
