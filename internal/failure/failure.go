// Package failure defines the typed failures surfaced by the editor core.
//
// Normalizations (out-of-range time frames) are never reported as failures;
// they are clamped where they happen. Everything else carries a Code so
// callers can branch with errors.Is against the exported sentinels.
package failure

import (
	"errors"
	"fmt"
)

// Code categorizes a failure.
type Code string

const (
	// CodeMissingRenderTarget: an element references a media source that is
	// not registered. The element is skipped for one rebuild pass.
	CodeMissingRenderTarget Code = "MISSING_RENDER_TARGET"

	// CodeUnsupportedElementVariant: an element kind outside
	// text/image/video/audio reached the synchronizer. Fatal for the rebuild.
	CodeUnsupportedElementVariant Code = "UNSUPPORTED_ELEMENT_VARIANT"

	// CodeCaptureFailure: stream, recorder or audio mixing setup failed.
	CodeCaptureFailure Code = "CAPTURE_FAILURE"

	// CodeTranscodeFailure: the transcoder could not load or convert.
	CodeTranscodeFailure Code = "TRANSCODE_FAILURE"

	// CodeExportInProgress: a user clock operation arrived while an export
	// owns the clock.
	CodeExportInProgress Code = "EXPORT_IN_PROGRESS"
)

// Sentinels for errors.Is. Matching is by Code only.
var (
	ErrMissingRenderTarget       = &Error{Code: CodeMissingRenderTarget}
	ErrUnsupportedElementVariant = &Error{Code: CodeUnsupportedElementVariant}
	ErrCaptureFailure            = &Error{Code: CodeCaptureFailure}
	ErrTranscodeFailure          = &Error{Code: CodeTranscodeFailure}
	ErrExportInProgress          = &Error{Code: CodeExportInProgress}
)

// Error is a categorized failure with optional context.
type Error struct {
	Code Code

	// Op names the operation or pipeline stage that failed.
	Op string

	// ElementID identifies the affected element, if any.
	ElementID string

	// Err is the underlying cause.
	Err error
}

// New builds a failure for op wrapping err.
func New(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// ForElement builds a failure tied to a single element.
func ForElement(code Code, op, elementID string, err error) *Error {
	return &Error{Code: code, Op: op, ElementID: elementID, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.ElementID != "" {
		msg = fmt.Sprintf("%s (element=%s)", msg, e.ElementID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a failure with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// CodeOf extracts the failure code from err, or "" when err is not a failure.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
