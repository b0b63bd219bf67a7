package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeConfig         ErrorType = "config"
	ErrorTypeCatalog        ErrorType = "catalog"
	ErrorTypeDownload       ErrorType = "download"
	ErrorTypeConsumer       ErrorType = "consumer"
	ErrorTypeQuotaExhausted ErrorType = "quota_exhausted"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeNetwork        ErrorType = "network"
	ErrorTypeParsing        ErrorType = "parsing"
	ErrorTypeStorage        ErrorType = "storage"
	ErrorTypeUnknown        ErrorType = "unknown"
)

var (
	// ErrQuotaExhausted is the process-fatal signal raised when the catalog
	// reports that the daily download quota is used up.
	ErrQuotaExhausted = errors.New("daily download quota exhausted")

	// ErrMaxRetriesExceeded is returned when a rate-limited download keeps
	// being rejected after the configured number of attempts.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// Error represents a pipeline error with type information
type Error struct {
	Type    ErrorType
	Op      string
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s error in %s (code %d): %s", e.Type, e.Op, e.Code, msg)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error with a message
func New(t ErrorType, op, message string) *Error {
	return &Error{Type: t, Op: op, Message: message}
}

// Wrap creates a typed error around an underlying cause
func Wrap(t ErrorType, op string, err error) *Error {
	return &Error{Type: t, Op: op, Err: err}
}

// Catalog wraps err as a catalog (listing or token) error
func Catalog(op string, err error) *Error {
	return Wrap(ErrorTypeCatalog, op, err)
}

// Download wraps err as an item-level download error
func Download(op string, err error) *Error {
	return Wrap(ErrorTypeDownload, op, err)
}

// Consumer wraps err as a download-consumer error
func Consumer(op string, err error) *Error {
	return Wrap(ErrorTypeConsumer, op, err)
}

// Config wraps err as a configuration error
func Config(op string, err error) *Error {
	return Wrap(ErrorTypeConfig, op, err)
}

// IsType reports whether any error in err's chain is an *Error of type t
func IsType(err error, t ErrorType) bool {
	var e *Error
	for err != nil {
		if errors.As(err, &e) {
			if e.Type == t {
				return true
			}
			err = e.Err
			continue
		}
		return false
	}
	return false
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeCatalog:
		return true
	case ErrorTypeConfig, ErrorTypeQuotaExhausted, ErrorTypeParsing, ErrorTypeDownload, ErrorTypeConsumer:
		return false
	default:
		return false
	}
}
