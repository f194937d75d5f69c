package errors

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeValidationError ErrorCode = "VALIDATION_ERROR"
	CodeInternal        ErrorCode = "INTERNAL_ERROR"

	CodeUnsupportedLanguage  ErrorCode = "UNSUPPORTED_LANGUAGE"
	CodeResolutionAmbiguous  ErrorCode = "RESOLUTION_AMBIGUOUS"
	CodeFileTooLarge         ErrorCode = "FILE_TOO_LARGE"
	CodeFileUnreadable       ErrorCode = "FILE_UNREADABLE"
	CodeParseFailure         ErrorCode = "PARSE_FAILURE"
	CodeGraphNotFound        ErrorCode = "GRAPH_NOT_FOUND"
	CodeSerializationFailure ErrorCode = "SERIALIZATION_FAILURE"
)

type DomainError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]interface{}
}

const (
	CtxPath      = "path"
	CtxOperation = "operation"
	CtxLanguage  = "language"
	CtxStage     = "stage"
	CtxSymbol    = "symbol"
)

// Stages reported under CtxStage.
const (
	StageRead     = "read"
	StageParse    = "parse"
	StageResolve  = "resolve"
	StageMerge    = "merge"
	StageEnrich   = "enrich"
	StageDiff     = "diff"
	StagePersist  = "persist"
	StageValidate = "validate"
)

func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) > 0 {
		msg += fmt.Sprintf(" %v", e.Context)
	}
	return msg
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func New(code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg}
}

func Wrap(err error, code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg, Err: err}
}

// AddContext attaches a context value to the nearest DomainError in the chain,
// wrapping plain errors as internal ones.
func AddContext(err error, key string, value interface{}) error {
	var de *DomainError
	if errors.As(err, &de) {
		de.WithContext(key, value)
		return err
	}
	return &DomainError{
		Code:    CodeInternal,
		Message: "wrapped error",
		Err:     err,
		Context: map[string]interface{}{key: value},
	}
}

func IsCode(err error, code ErrorCode) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code of the nearest DomainError, or CodeInternal.
func CodeOf(err error) ErrorCode {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ContextValue returns a string context value from the nearest DomainError.
func ContextValue(err error, key string) string {
	var de *DomainError
	if !errors.As(err, &de) || de.Context == nil {
		return ""
	}
	if v, ok := de.Context[key]; ok {
		return fmt.Sprint(v)
	}
	return ""
}

// IsFatal reports whether the error should abort a whole operation rather than
// degrade a single file or import.
func IsFatal(err error) bool {
	switch CodeOf(err) {
	case CodeGraphNotFound, CodeSerializationFailure, CodeValidationError:
		return true
	default:
		return false
	}
}
