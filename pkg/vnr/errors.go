// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package vnr

import (
	"errors"
	"fmt"
)

// Common errors returned by the library.
var (
	// ErrEmptyFileName is returned when no output file name can be
	// derived from the URL path.
	ErrEmptyFileName = errors.New("could not derive a file name from the URL path")

	// ErrNotDirectory is returned when the destination is missing or is
	// not a directory.
	ErrNotDirectory = errors.New("destination is not an existing directory")

	// ErrRangeNotSupported is returned by the ISIZE probe when the server
	// ignores the Range header and replies with the whole body.
	ErrRangeNotSupported = errors.New("server does not honor range requests")

	// ErrTooManyRedirects is returned when the redirect chain exceeds ten
	// hops. The text matches the net/http default so logs read the same
	// either way.
	ErrTooManyRedirects = errors.New("stopped after 10 redirects")
)

// HTTPStatusError is returned when the server replies with a non-2xx
// status to a request that needed to succeed.
type HTTPStatusError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP error fetching %s: %s", e.URL, e.Status)
}

// IsRetryable returns true if the request might succeed on retry.
func (e *HTTPStatusError) IsRetryable() bool {
	switch e.StatusCode {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// MissingHeaderError is returned when a response lacks a header the
// fetch depends on.
type MissingHeaderError struct {
	Name string
}

func (e *MissingHeaderError) Error() string {
	return fmt.Sprintf("missing header: %s", e.Name)
}

// UnexpectedContentLengthError is returned by the ISIZE probe when the
// partial response does not contain exactly the four trailer bytes.
type UnexpectedContentLengthError struct {
	Got int64
}

func (e *UnexpectedContentLengthError) Error() string {
	return fmt.Sprintf("unexpected content length: %d (want 4)", e.Got)
}

// VerificationError is returned when the downloaded file size does not
// match the advertised Content-Length.
type VerificationError struct {
	Path     string
	Expected int64
	Actual   int64
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification failed for %s: size mismatch (expected %d, got %d)",
		e.Path, e.Expected, e.Actual)
}

// retryable reports whether err is worth retrying at all.
func retryable(err error) bool {
	if errors.Is(err, ErrTooManyRedirects) {
		return false
	}
	var se *HTTPStatusError
	if errors.As(err, &se) {
		return se.IsRetryable()
	}
	var ve *VerificationError
	if errors.As(err, &ve) {
		return false
	}
	var mh *MissingHeaderError
	return !errors.As(err, &mh)
}
