package tus

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/revivelabs/tus-go/checksum"
)

// Wire header names used by the protocol. Kept in one table so the encode and
// decode sites cannot drift apart.
const (
	HeaderTusResumable         = "Tus-Resumable"
	HeaderTusVersion           = "Tus-Version"
	HeaderTusExtension         = "Tus-Extension"
	HeaderTusMaxSize           = "Tus-Max-Size"
	HeaderTusChecksumAlgorithm = "Tus-Checksum-Algorithm"
	HeaderUploadOffset         = "Upload-Offset"
	HeaderUploadLength         = "Upload-Length"
	HeaderUploadMetadata       = "Upload-Metadata"
	HeaderLocation             = "Location"
	HeaderContentType          = "Content-Type"

	// HeaderXHTTPMethodOverride may be supplied as a custom header by callers
	// whose environment cannot send PATCH or DELETE requests.
	HeaderXHTTPMethodOverride = "X-HTTP-Method-Override"
)

// ProtocolVersion is the protocol version this client speaks.
const ProtocolVersion = "1.0.0"

const offsetStreamContentType = "application/offset+octet-stream"

// metadataDelimiter separates entries in the Upload-Metadata header value.
// EncodeMetadata and DecodeMetadata must use the same one.
const metadataDelimiter = ","

// TusHeaders is the typed view of the protocol headers of one response.
// Decoding is lenient: a missing or unparsable header leaves its field nil or
// empty. Fields the upload state machine depends on are read through the
// strict Require* accessors instead.
type TusHeaders struct {
	Offset             *int64
	UploadLength       *int64
	MaxSize            *int64
	Version            string
	SupportedVersions  []string
	Extensions         []string
	ChecksumAlgorithms []checksum.Algorithm
	Metadata           map[string]string
	Location           string
}

// DecodeHeaders translates raw response headers into typed protocol fields.
func DecodeHeaders(h http.Header) TusHeaders {
	t := TusHeaders{
		Version:  h.Get(HeaderTusResumable),
		Location: h.Get(HeaderLocation),
	}
	t.Offset = parseIntHeader(h, HeaderUploadOffset)
	t.UploadLength = parseIntHeader(h, HeaderUploadLength)
	t.MaxSize = parseIntHeader(h, HeaderTusMaxSize)
	if v := h.Get(HeaderTusVersion); v != "" {
		t.SupportedVersions = strings.Split(v, ",")
	}
	if v := h.Get(HeaderTusExtension); v != "" {
		t.Extensions = strings.Split(v, ",")
	}
	if v := h.Get(HeaderTusChecksumAlgorithm); v != "" {
		for _, name := range strings.Split(v, ",") {
			if algo, ok := checksum.GetAlgorithm(name); ok {
				t.ChecksumAlgorithms = append(t.ChecksumAlgorithms, algo)
			}
		}
	}
	if v := h.Get(HeaderUploadMetadata); v != "" {
		if md, err := DecodeMetadata(v); err == nil {
			t.Metadata = md
		}
	}
	return t
}

func parseIntHeader(h http.Header, name string) *int64 {
	v := h.Get(name)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

// RequireOffset returns the Upload-Offset value or fails if the header is
// absent or malformed.
func (t TusHeaders) RequireOffset() (int64, error) {
	if t.Offset == nil {
		return 0, fmt.Errorf("%s: %w", HeaderUploadOffset, ErrMissingHeader)
	}
	return *t.Offset, nil
}

// RequireLocation returns the Location value or fails if the header is absent.
func (t TusHeaders) RequireLocation() (string, error) {
	if t.Location == "" {
		return "", fmt.Errorf("%s: %w", HeaderLocation, ErrMissingHeader)
	}
	return t.Location, nil
}

// EncodeMetadata builds an Upload-Metadata header value from a mapping.
// Every entry is "key base64(value)", entries are joined with
// metadataDelimiter and ordered by key. Keys must not contain a space or the
// delimiter, values may be arbitrary byte strings.
func EncodeMetadata(metadata map[string]string) (string, error) {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]string, 0, len(keys))
	for _, k := range keys {
		entry, err := encodeMetadataEntry(k, metadata[k])
		if err != nil {
			return "", err
		}
		entries = append(entries, entry)
	}
	return strings.Join(entries, metadataDelimiter), nil
}

func encodeMetadataEntry(key, value string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("metadata key is empty")
	}
	if strings.ContainsAny(key, " "+metadataDelimiter) {
		return "", fmt.Errorf("metadata key %q contains a space or %q", key, metadataDelimiter)
	}
	return key + " " + base64.StdEncoding.EncodeToString([]byte(value)), nil
}

// DecodeMetadata is the exact inverse of EncodeMetadata:
// DecodeMetadata(EncodeMetadata(m)) == m for any m with well-formed keys.
func DecodeMetadata(value string) (map[string]string, error) {
	metadata := map[string]string{}
	for _, entry := range strings.Split(value, metadataDelimiter) {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, encoded, _ := strings.Cut(entry, " ")
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("cannot decode metadata value of key %q: %w", key, err)
		}
		metadata[key] = string(decoded)
	}
	return metadata, nil
}
