// Package apperr defines the closed set of error kinds the core raises.
// Failures a client should see are wrapped in an *Error carrying a Kind,
// an HTTP status, and the client-facing code from the HTTP surface table.
// Other failures are returned as ordinary (often fmt-wrapped) errors; As
// does not unwrap them, and the HTTP layer reports them as INTERNAL_ERROR.
package apperr

import "fmt"

// Kind is the closed sum type of error kinds raised by the core.
type Kind string

const (
	KindValidation          Kind = "validation_error"
	KindNotFound            Kind = "not_found"
	KindAccessDenied        Kind = "access_denied"
	KindPassphraseRequired  Kind = "passphrase_required"
	KindInvalidPassphrase   Kind = "invalid_passphrase"
	KindBadSignature        Kind = "bad_signature"
	KindExpired             Kind = "expired"
	KindResourceMismatch    Kind = "resource_mismatch"
	KindMalformedToken      Kind = "malformed_token"
	KindProbeError          Kind = "probe_error"
	KindAllRenditionsFailed Kind = "all_renditions_failed"
	KindPerRenditionFailure Kind = "per_rendition_failure"
	KindThumbnailError      Kind = "thumbnail_error"
	KindStorageRead         Kind = "storage_read_error"
	KindStorageWrite        Kind = "storage_write_error"
	KindEncoderTimeout      Kind = "encoder_timeout"
	KindNotReady            Kind = "not_ready"
	KindInvalidPlaylist     Kind = "invalid_playlist"
	KindInvalidSegment      Kind = "invalid_segment"
)

// Code is the client-facing error code from the HTTP surface table (spec §6).
type Code string

const (
	CodeVideoNotFound      Code = "VIDEO_NOT_FOUND"
	CodeVideoNotReady      Code = "VIDEO_NOT_READY"
	CodeAccessDenied       Code = "ACCESS_DENIED"
	CodePassphraseRequired Code = "PASSPHRASE_REQUIRED"
	CodeInvalidPassphrase  Code = "INVALID_PASSPHRASE"
	CodeInvalidSignature   Code = "INVALID_SIGNATURE"
	CodeTokenExpired       Code = "TOKEN_EXPIRED"
	CodeResourceMismatch   Code = "RESOURCE_MISMATCH"
	CodeInvalidPlaylist    Code = "INVALID_PLAYLIST"
	CodeInvalidSegment     Code = "INVALID_SEGMENT"
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeInternal           Code = "INTERNAL_ERROR"
)

// Error is the concrete error type every core component returns.
type Error struct {
	Kind    Kind
	Code    Code
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func new(kind Kind, code Code, status int, msg string, err error) *Error {
	return &Error{Kind: kind, Code: code, Status: status, Message: msg, Err: err}
}

func NotFound(msg string) *Error {
	return new(KindNotFound, CodeVideoNotFound, 404, msg, nil)
}

func NotReady(status string) *Error {
	return new(KindNotReady, CodeVideoNotReady, 409, "video is not ready: "+status, nil)
}

// StreamNotReady reports a 404 for the streaming surface. Unlike the
// Access Gate's NotReady (409, a JSON API response), the HLS surface must
// make a not-yet-ready video indistinguishable from a missing one.
func StreamNotReady(status string) *Error {
	return new(KindNotReady, CodeVideoNotFound, 404, "video not found or not ready: "+status, nil)
}

func AccessDenied(msg string) *Error {
	return new(KindAccessDenied, CodeAccessDenied, 403, msg, nil)
}

func PassphraseRequired() *Error {
	return new(KindPassphraseRequired, CodePassphraseRequired, 401, "passphrase required", nil)
}

func InvalidPassphrase() *Error {
	return new(KindInvalidPassphrase, CodeInvalidPassphrase, 401, "invalid passphrase", nil)
}

func BadSignature(err error) *Error {
	return new(KindBadSignature, CodeInvalidSignature, 403, "invalid token signature", err)
}

func Expired() *Error {
	return new(KindExpired, CodeTokenExpired, 403, "token expired", nil)
}

func ResourceMismatch(msg string) *Error {
	return new(KindResourceMismatch, CodeResourceMismatch, 403, msg, nil)
}

func MalformedToken(err error) *Error {
	return new(KindMalformedToken, CodeInvalidSignature, 403, "malformed token", err)
}

func Validation(msg string) *Error {
	return new(KindValidation, CodeValidation, 400, msg, nil)
}

func InvalidPlaylist(msg string) *Error {
	return new(KindInvalidPlaylist, CodeInvalidPlaylist, 500, msg, nil)
}

func InvalidSegment(msg string) *Error {
	return new(KindInvalidSegment, CodeInvalidSegment, 400, msg, nil)
}

func StorageRead(err error) *Error {
	return new(KindStorageRead, CodeInternal, 502, "storage read failed", err)
}

func StorageWrite(err error) *Error {
	return new(KindStorageWrite, CodeInternal, 502, "storage write failed", err)
}

func ProbeError(err error) *Error {
	return new(KindProbeError, CodeInternal, 500, "probe failed", err)
}

func AllRenditionsFailed() *Error {
	return new(KindAllRenditionsFailed, CodeInternal, 500, "all renditions failed", nil)
}

// As reports whether err is an *Error and returns it.
func As(err error) (*Error, bool) {
	ae, ok := err.(*Error)
	return ae, ok
}
