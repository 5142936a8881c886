// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

package flussonic

import (
	"errors"
	"fmt"
)

// ErrorKind classifies vendor API failures so callers can map them to
// user-facing responses without string matching.
type ErrorKind string

const (
	// KindAuth marks rejected credentials (HTTP 401/403).
	KindAuth ErrorKind = "auth"
	// KindNotFound marks a missing endpoint or resource (HTTP 404),
	// typically a wrong URL or a server that is not a streaming server.
	KindNotFound ErrorKind = "not_found"
	// KindUnavailable marks server-side failures (HTTP 5xx) and
	// transport errors such as timeouts and refused connections.
	KindUnavailable ErrorKind = "unavailable"
	// KindProtocol marks responses the client could not parse.
	KindProtocol ErrorKind = "protocol"
)

// VendorError is the error type returned by all Client operations.
type VendorError struct {
	Op         string
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *VendorError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("flussonic %s: %s (status %d)", e.Op, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("flussonic %s: %s", e.Op, e.Message)
}

func (e *VendorError) Unwrap() error {
	return e.Err
}

// KindOf extracts the ErrorKind from err, returning KindUnavailable for
// anything that is not a VendorError (transport failures, breaker
// rejections).
func KindOf(err error) ErrorKind {
	var ve *VendorError
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return KindUnavailable
}
