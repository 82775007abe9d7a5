package tus

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultChunkSize is the number of bytes sent per PATCH request unless
// configured otherwise.
const DefaultChunkSize = 6 * 1024 * 1024

// Metadata keys the client always fills in from the local file.
const (
	metaKeyFilename = "filename"
	metaKeyFiletype = "filetype"
)

// UploadStatus describes the progress of one upload. BytesUploaded advances
// only by adopting server-reported offsets and never exceeds Size.
type UploadStatus struct {
	Size          int64 `json:"size"`
	BytesUploaded int64 `json:"bytes_uploaded"`
}

// UploadMeta describes one upload attempt: its identity, progress and
// configuration. Values are immutable snapshots, every mutation goes through
// a With* method that returns an updated copy. A snapshot can therefore be
// handed between goroutines, or serialized with MarshalMeta and resumed after
// a process restart, without synchronization.
type UploadMeta struct {
	// UploadHost is the base URL uploads are created against.
	UploadHost string `json:"upload_host"`

	// FilePath is the local file being uploaded.
	FilePath string `json:"file_path"`

	// RemoteURL addresses the upload resource on the server. Empty until the
	// upload has been created, immutable afterwards.
	RemoteURL string `json:"remote_url,omitempty"`

	Status UploadStatus `json:"status"`

	// Version is the protocol version sent in the Tus-Resumable header.
	Version string `json:"version"`

	// ExtraMeta entries are appended to the Upload-Metadata header after
	// filename and filetype.
	ExtraMeta map[string]string `json:"extra_meta,omitempty"`

	// MimeType, when set, is sent as the "filetype" metadata entry.
	MimeType string `json:"mime_type,omitempty"`

	// CustomHeaders are merged into every request after the defaults and win
	// on name collision.
	CustomHeaders map[string]string `json:"custom_headers,omitempty"`

	// ErrorCount is the number of failed attempts recorded on this upload.
	ErrorCount int `json:"error_count"`

	// ChunkSize used when transferring this upload.
	ChunkSize int64 `json:"chunksize"`
}

// NewUploadMeta builds the initial metadata for a local file. The path must
// point to an existing regular file with a usable basename. BytesUploaded
// starts at zero and RemoteURL is left empty until the upload is created.
func NewUploadMeta(filePath, uploadHost string, extraMeta, customHeaders map[string]string, chunkSize int64) (UploadMeta, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return UploadMeta{}, fmt.Errorf("%w: %v", ErrFileRead, err)
	}
	if info.IsDir() {
		return UploadMeta{}, fmt.Errorf("%w: %s is a directory", ErrFileRead, filePath)
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	m := UploadMeta{
		UploadHost:    uploadHost,
		FilePath:      filePath,
		Status:        UploadStatus{Size: info.Size()},
		Version:       ProtocolVersion,
		ExtraMeta:     extraMeta,
		CustomHeaders: customHeaders,
		ChunkSize:     chunkSize,
	}
	if _, err = m.Filename(); err != nil {
		return UploadMeta{}, err
	}
	return m, nil
}

// Filename returns the basename sent as the "filename" metadata entry.
func (m UploadMeta) Filename() (string, error) {
	name := filepath.Base(m.FilePath)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("filename cannot be %q: %w", name, ErrInvalidFilename)
	}
	return name, nil
}

// MetadataPairs returns all Upload-Metadata entries of this upload: filename,
// filetype if a mime type is set, and the extra metadata.
func (m UploadMeta) MetadataPairs() (map[string]string, error) {
	filename, err := m.Filename()
	if err != nil {
		return nil, err
	}
	pairs := map[string]string{metaKeyFilename: filename}
	if m.MimeType != "" {
		pairs[metaKeyFiletype] = m.MimeType
	}
	for k, v := range m.ExtraMeta {
		pairs[k] = v
	}
	return pairs, nil
}

// EncodedMetadata returns the Upload-Metadata header value with entries
// ordered filename, filetype, then extra keys sorted.
func (m UploadMeta) EncodedMetadata() (string, error) {
	filename, err := m.Filename()
	if err != nil {
		return "", err
	}
	entry, err := encodeMetadataEntry(metaKeyFilename, filename)
	if err != nil {
		return "", err
	}
	entries := []string{entry}
	if m.MimeType != "" {
		if entry, err = encodeMetadataEntry(metaKeyFiletype, m.MimeType); err != nil {
			return "", err
		}
		entries = append(entries, entry)
	}
	extraKeys := make([]string, 0, len(m.ExtraMeta))
	for k := range m.ExtraMeta {
		extraKeys = append(extraKeys, k)
	}
	sort.Strings(extraKeys)
	for _, k := range extraKeys {
		if entry, err = encodeMetadataEntry(k, m.ExtraMeta[k]); err != nil {
			return "", err
		}
		entries = append(entries, entry)
	}
	return strings.Join(entries, metadataDelimiter), nil
}

// WithBytesUploaded returns a copy with the progress set to offset.
func (m UploadMeta) WithBytesUploaded(offset int64) UploadMeta {
	m.Status.BytesUploaded = offset
	return m
}

// WithRemoteURL returns a copy pointing at the created upload resource.
func (m UploadMeta) WithRemoteURL(remoteURL string) UploadMeta {
	m.RemoteURL = remoteURL
	return m
}

// WithErrorRecorded returns a copy with the failed attempt counter advanced.
func (m UploadMeta) WithErrorRecorded() UploadMeta {
	m.ErrorCount++
	return m
}

// Complete reports whether all bytes have been confirmed by the server.
func (m UploadMeta) Complete() bool {
	return m.Status.BytesUploaded >= m.Status.Size
}

// MarshalMeta serializes a metadata snapshot, e.g. to persist it across a
// process restart and Resume later.
func MarshalMeta(m UploadMeta) ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalMeta restores a snapshot produced by MarshalMeta.
func UnmarshalMeta(data []byte) (UploadMeta, error) {
	var m UploadMeta
	if err := json.Unmarshal(data, &m); err != nil {
		return UploadMeta{}, err
	}
	return m, nil
}
