package tus

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocol means the server response violates the protocol, e.g. a
	// reported offset went backwards.
	ErrProtocol = errors.New("tus protocol error")

	// ErrMissingHeader means a response lacks a header the state machine
	// depends on. It is always wrapped with the header name.
	ErrMissingHeader = errors.New("missing required response header")

	// ErrMissingUploadURL means the operation needs a remote upload URL, but
	// the upload has not been created on the server yet.
	ErrMissingUploadURL = errors.New("upload URL is not set, create the upload first")

	ErrBadRequest       = errors.New("bad request")
	ErrUploadNotFound   = errors.New("upload does not exist")
	ErrOffsetsNotSynced = errors.New("client and server offsets are not synced")
	ErrUploadTooLarge   = errors.New("upload is too large")
	ErrChecksumMismatch = errors.New("checksum mismatch")

	ErrInvalidFilename = errors.New("invalid filename")
	ErrFileRead        = errors.New("cannot read file")
)

// UnexpectedStatusCodeError is returned when the server replies with a status
// code outside the well-known protocol set.
type UnexpectedStatusCodeError struct {
	Code int
	Body string
}

func (e *UnexpectedStatusCodeError) Error() string {
	return fmt.Sprintf("server returned unexpected HTTP code %d: %s", e.Code, e.Body)
}
