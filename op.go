package tus

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// TusOp is one protocol operation. The set is closed: each operation fully
// defines its HTTP verb, required request headers, target URL and response
// decode rule. Operations carry no state, they are constructed and consumed
// per call by Client.
type TusOp int

const (
	TusOpCreate TusOp = iota
	TusOpGetOffset
	TusOpUpload
	TusOpTerminate
)

func (op TusOp) String() string {
	switch op {
	case TusOpCreate:
		return "create"
	case TusOpGetOffset:
		return "get_offset"
	case TusOpUpload:
		return "upload"
	case TusOpTerminate:
		return "terminate"
	}
	return fmt.Sprintf("TusOp(%d)", int(op))
}

// Method returns the HTTP verb of the operation.
func (op TusOp) Method() string {
	switch op {
	case TusOpCreate:
		return http.MethodPost
	case TusOpGetOffset:
		return http.MethodHead
	case TusOpUpload:
		return http.MethodPatch
	case TusOpTerminate:
		return http.MethodDelete
	}
	panic("unknown operation")
}

// RequestHeaders builds the request headers for the operation. Every request
// carries Tus-Resumable and the encoded Upload-Metadata; the operation adds
// its own required headers, and the caller-supplied custom headers are merged
// in last, winning on name collision.
func (op TusOp) RequestHeaders(meta UploadMeta) (http.Header, error) {
	version := meta.Version
	if version == "" {
		version = ProtocolVersion
	}
	encoded, err := meta.EncodedMetadata()
	if err != nil {
		return nil, err
	}

	headers := make(http.Header)
	headers.Set(HeaderTusResumable, version)
	headers.Set(HeaderUploadMetadata, encoded)
	switch op {
	case TusOpCreate:
		headers.Set(HeaderUploadLength, strconv.FormatInt(meta.Status.Size, 10))
	case TusOpUpload:
		headers.Set(HeaderContentType, offsetStreamContentType)
		headers.Set(HeaderUploadOffset, strconv.FormatInt(meta.Status.BytesUploaded, 10))
	}
	for name, value := range meta.CustomHeaders {
		if !validHeaderName(name) {
			return nil, fmt.Errorf("invalid custom header name %q", name)
		}
		headers.Set(name, value)
	}
	return headers, nil
}

// URL returns the target URL of the operation. Create posts to the upload
// host, every other operation addresses the remote upload resource.
func (op TusOp) URL(meta UploadMeta) (string, error) {
	if op == TusOpCreate {
		if meta.UploadHost == "" {
			return "", fmt.Errorf("upload host is empty")
		}
		return meta.UploadHost, nil
	}
	if meta.RemoteURL == "" {
		return "", ErrMissingUploadURL
	}
	return meta.RemoteURL, nil
}

// ApplyResponse decodes a successful response into an updated metadata copy.
// Create strictly requires Location, GetOffset and Upload strictly require
// Upload-Offset; Upload additionally rejects an offset lower than the current
// one, since the server may never un-receive bytes. Terminate leaves the
// metadata unchanged.
func (op TusOp) ApplyResponse(headers TusHeaders, meta UploadMeta) (UploadMeta, error) {
	switch op {
	case TusOpCreate:
		location, err := headers.RequireLocation()
		if err != nil {
			return meta, err
		}
		remote, err := resolveLocation(meta.UploadHost, location)
		if err != nil {
			return meta, err
		}
		return meta.WithRemoteURL(remote), nil
	case TusOpGetOffset:
		offset, err := headers.RequireOffset()
		if err != nil {
			return meta, err
		}
		return meta.WithBytesUploaded(offset), nil
	case TusOpUpload:
		offset, err := headers.RequireOffset()
		if err != nil {
			return meta, err
		}
		if offset < meta.Status.BytesUploaded {
			return meta, fmt.Errorf("server returned offset %d lower than the current %d: %w",
				offset, meta.Status.BytesUploaded, ErrProtocol)
		}
		return meta.WithBytesUploaded(offset), nil
	}
	return meta, nil
}

// resolveLocation resolves a possibly relative Location header against the
// upload host, the way servers like tusd report created resources.
func resolveLocation(host, location string) (string, error) {
	base, err := url.Parse(host)
	if err != nil {
		return "", fmt.Errorf("malformed upload host %q: %w", host, err)
	}
	loc, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("malformed location %q: %w", location, err)
	}
	return base.ResolveReference(loc).String(), nil
}

func validHeaderName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r <= ' ' || r >= 0x7f || r == ':' {
			return false
		}
	}
	return true
}
