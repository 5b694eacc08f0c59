package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for matching with errors.Is. Each typed error below
// unwraps to exactly one of these.
var (
	ErrTransport        = errors.New("transport error")
	ErrDecode           = errors.New("decode error")
	ErrInvalidValue     = errors.New("invalid value")
	ErrNotFound         = errors.New("resource not found")
	ErrMissingReference = errors.New("missing reference")
	ErrInvalidYear      = errors.New("invalid year")
)

// TransportError reports a network or HTTP failure while fetching URL.
// StatusCode is zero when no response was received.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Err} }

// Retryable reports whether a repeated attempt could succeed. Client errors
// (4xx) are permanent.
func (e *TransportError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}

// DecodeError reports a response body that does not match the expected shape.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrDecode, e.Err} }

// InvalidValueError reports a metric field holding a string other than the
// "NaN" missing-value marker, or a number that does not fit a float64.
type InvalidValueError struct {
	Raw string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid metric value %s: want a number, %q or null", e.Raw, MissingMarker)
}

func (e *InvalidValueError) Unwrap() error { return ErrInvalidValue }

// NotFoundError reports a logical resource name absent from a resource index.
type NotFoundError struct {
	Name  string
	Index string
}

func (e *NotFoundError) Error() string {
	if e.Index == "" {
		return fmt.Sprintf("resource %q not found in index", e.Name)
	}
	return fmt.Sprintf("resource %q not found in index %s", e.Name, e.Index)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// MissingReferenceError reports a fact row code with no entry in its lookup table.
type MissingReferenceError struct {
	Table string
	Code  string
	RowID int64
}

func (e *MissingReferenceError) Error() string {
	return fmt.Sprintf("row %d: code %q not found in lookup table %s", e.RowID, e.Code, e.Table)
}

func (e *MissingReferenceError) Unwrap() error { return ErrMissingReference }

// InvalidYearError reports a period title that is not an unsigned integer year.
type InvalidYearError struct {
	Period string
	RowID  int64
	Err    error
}

func (e *InvalidYearError) Error() string {
	return fmt.Sprintf("row %d: period title %q is not a year: %v", e.RowID, e.Period, e.Err)
}

func (e *InvalidYearError) Unwrap() []error { return []error{ErrInvalidYear, e.Err} }

// IsDataIntegrity reports whether err means the datasets disagree with the
// assumptions of the join and aggregation. These are never retried.
func IsDataIntegrity(err error) bool {
	return errors.Is(err, ErrMissingReference) ||
		errors.Is(err, ErrInvalidValue) ||
		errors.Is(err, ErrInvalidYear)
}
