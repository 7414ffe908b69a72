package errs

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the service layer.
var (
	ErrCacheMiss       = errors.New("cache miss")
	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")
	ErrSyncInProgress  = errors.New("sync already running")
)

// TransportReason classifies feed transport failures.
type TransportReason string

const (
	TransportConnectFailed TransportReason = "connect-failed"
	TransportAuthFailed    TransportReason = "auth-failed"
	TransportNoFeedFile    TransportReason = "no-feed-file"
	TransportReadFailed    TransportReason = "read-failed"
)

// TransportError reports a failure while fetching the supplier feed.
type TransportError struct {
	Reason TransportReason
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("feed transport: %s", e.Reason)
	}
	return fmt.Sprintf("feed transport: %s: %v", e.Reason, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError wraps err with a transport reason.
func NewTransportError(reason TransportReason, err error) *TransportError {
	return &TransportError{Reason: reason, Err: err}
}

// ParseError reports malformed feed structure or a malformed payload.
// Row-level data quality issues are absorbed as defaults and never
// produce a ParseError.
type ParseError struct {
	Msg string
	Err error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("parse: %s", e.Msg)
	}
	return fmt.Sprintf("parse: %s: %v", e.Msg, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NewParseError wraps err with a parse context message.
func NewParseError(msg string, err error) *ParseError {
	return &ParseError{Msg: msg, Err: err}
}

// PersistenceError reports a store failure. Transient failures
// (connection loss, timeouts) are retryable; constraint violations
// and the like are not.
type PersistenceError struct {
	Transient bool
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NewPersistenceError wraps err, marking whether it is transient.
func NewPersistenceError(err error, transient bool) *PersistenceError {
	return &PersistenceError{Transient: transient, Err: err}
}

// DeliveryError reports an email send failure. Always retryable.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// NewDeliveryError wraps an email send failure.
func NewDeliveryError(err error) *DeliveryError {
	return &DeliveryError{Err: err}
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsParse reports whether err is (or wraps) a ParseError.
func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsDelivery reports whether err is (or wraps) a DeliveryError.
func IsDelivery(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de)
}

// IsTransientPersistence reports whether err wraps a transient
// PersistenceError.
func IsTransientPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe) && pe.Transient
}
