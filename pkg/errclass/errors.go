// Package errclass defines the stable, machine-readable error classes of ackscan.
package errclass

import (
	"errors"
	"fmt"
)

// ScanError is a stable, machine-readable error class.
type ScanError struct {
	Code    string
	Message string
	Cause   error
}

func (e *ScanError) Error() string {
	switch {
	case e.Message == "" && e.Cause == nil:
		return e.Code
	case e.Cause == nil:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	case e.Message == "":
		return fmt.Sprintf("%s: %v", e.Code, e.Cause)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
}

// Is matches any ScanError carrying the same Code.
func (e *ScanError) Is(target error) bool {
	t, ok := target.(*ScanError)
	return ok && e.Code == t.Code
}

func (e *ScanError) Unwrap() error {
	return e.Cause
}

// WithMessage returns a new ScanError with the same Code but a specific message.
func (e *ScanError) WithMessage(msg string) *ScanError {
	return &ScanError{Code: e.Code, Message: msg}
}

// WithMessagef returns a new ScanError with a formatted message.
func (e *ScanError) WithMessagef(format string, args ...any) *ScanError {
	return &ScanError{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns a new ScanError with the same Code that wraps cause.
func (e *ScanError) Wrap(cause error, msg string) *ScanError {
	return &ScanError{Code: e.Code, Message: msg, Cause: cause}
}

// Error classes. Per-record classes are recovered at the record boundary;
// E_LEDGER_* classes end the run before the backup ledger is released.
var (
	ErrExtractionFailed    = &ScanError{Code: "E_EXTRACTION_FAILED"}
	ErrXMLMalformed        = &ScanError{Code: "E_XML_MALFORMED"}
	ErrEncodingUnsupported = &ScanError{Code: "E_ENCODING_UNSUPPORTED"}
	ErrLedgerMissing       = &ScanError{Code: "E_LEDGER_MISSING"}
	ErrLedgerCorrupt       = &ScanError{Code: "E_LEDGER_CORRUPT"}
	ErrLedgerWrite         = &ScanError{Code: "E_LEDGER_WRITE"}
	ErrLedgerIncomplete    = &ScanError{Code: "E_LEDGER_INCOMPLETE"}
	ErrPublishFailed       = &ScanError{Code: "E_PUBLISH_FAILED"}
	ErrRecordSealed        = &ScanError{Code: "E_RECORD_SEALED"}
	ErrNameInvalid         = &ScanError{Code: "E_NAME_INVALID"}
	ErrPathEscape          = &ScanError{Code: "E_PATH_ESCAPE"}
	ErrFormatUnsupported   = &ScanError{Code: "E_FORMAT_UNSUPPORTED"}
	ErrLockConflict        = &ScanError{Code: "E_LOCK_CONFLICT"}
	ErrLockNotHeld         = &ScanError{Code: "E_LOCK_NOT_HELD"}
	ErrConfigInvalid       = &ScanError{Code: "E_CONFIG_INVALID"}
	ErrJournalBroken       = &ScanError{Code: "E_JOURNAL_BROKEN"}
)

// IsLedgerFatal reports whether err belongs to a class that must stop the run.
func IsLedgerFatal(err error) bool {
	for _, class := range []*ScanError{ErrLedgerMissing, ErrLedgerCorrupt, ErrLedgerWrite, ErrLedgerIncomplete} {
		if errors.Is(err, class) {
			return true
		}
	}
	return false
}
