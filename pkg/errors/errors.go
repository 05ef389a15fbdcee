package errors

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable discriminant attached to every orchestrator error.
type ErrorCode string

const (
	CodeInvalidInput  ErrorCode = "INVALID_INPUT"
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	CodeInternal      ErrorCode = "INTERNAL_ERROR"

	// Agent-fatal: terminate the owning agent, siblings keep running.
	CodePromptFile        ErrorCode = "PROMPT_FILE_ERROR"
	CodeClaudeCode        ErrorCode = "CLAUDE_CODE_ERROR"
	CodeScriptTimeout     ErrorCode = "SCRIPT_TIMEOUT"
	CodeScriptUnsupported ErrorCode = "SCRIPT_UNSUPPORTED"
	CodeScriptNotFound    ErrorCode = "SCRIPT_NOT_FOUND"
	CodeNoTransition      ErrorCode = "NO_TRANSITION"

	// Workflow-fatal: unwind the scheduler entirely.
	CodeStateFileMalformed ErrorCode = "STATE_FILE_MALFORMED"
	CodeStateFileNotFound  ErrorCode = "STATE_FILE_NOT_FOUND"
	CodeZipLayout          ErrorCode = "ZIP_LAYOUT_ERROR"
	CodeZipFileNotFound    ErrorCode = "ZIP_FILE_NOT_FOUND"
	CodeZipHashMismatch    ErrorCode = "ZIP_HASH_MISMATCH"
	CodeZipAmbiguous       ErrorCode = "ZIP_FILENAME_AMBIGUOUS"

	// Not errors in the usual sense, but share the taxonomy so callers
	// can switch on Code uniformly.
	CodeBudgetExceeded ErrorCode = "BUDGET_EXCEEDED"
	CodeTimeoutReached ErrorCode = "TIMEOUT_REACHED"
)

// AppError is the orchestrator's error type: a stable code, a message,
// and an optional wrapped cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewInvalidInputError(message string) *AppError {
	return &AppError{Code: CodeInvalidInput, Message: message}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{Code: CodeNotFound, Message: message}
}

func NewAlreadyExistsError(message string) *AppError {
	return &AppError{Code: CodeAlreadyExists, Message: message}
}

func NewInternalError(message string) *AppError {
	return &AppError{Code: CodeInternal, Message: message}
}

func NewInternalErrorWithCause(message string, cause error) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Err: cause}
}

func NewPromptFileError(state string, cause error) *AppError {
	return &AppError{Code: CodePromptFile, Message: "state file not found in scope: " + state, Err: cause}
}

func NewClaudeCodeError(exitCode int, stderr string) *AppError {
	return &AppError{Code: CodeClaudeCode, Message: fmt.Sprintf("claude exited %d: %s", exitCode, stderr)}
}

func NewScriptTimeoutError(script string) *AppError {
	return &AppError{Code: CodeScriptTimeout, Message: "script timed out: " + script}
}

func NewScriptUnsupportedError(script string) *AppError {
	return &AppError{Code: CodeScriptUnsupported, Message: "unsupported script extension: " + script}
}

func NewScriptNotFoundError(script string) *AppError {
	return &AppError{Code: CodeScriptNotFound, Message: "script not found: " + script}
}

func NewNoTransitionError(state string, attempts int) *AppError {
	return &AppError{
		Code:    CodeNoTransition,
		Message: fmt.Sprintf("no transition tag found in %s after %d attempts", state, attempts),
	}
}

func NewStateFileMalformedError(workflowID string, cause error) *AppError {
	return &AppError{Code: CodeStateFileMalformed, Message: "workflow journal malformed: " + workflowID, Err: cause}
}

func NewStateFileNotFoundError(workflowID string) *AppError {
	return &AppError{Code: CodeStateFileNotFound, Message: "workflow journal not found: " + workflowID}
}

func NewZipLayoutError(reason string) *AppError {
	return &AppError{Code: CodeZipLayout, Message: "zip layout error: " + reason}
}

func NewZipFileNotFoundError(path string) *AppError {
	return &AppError{Code: CodeZipFileNotFound, Message: "zip archive not found: " + path}
}

func NewZipHashMismatchError(expected, actual string) *AppError {
	return &AppError{Code: CodeZipHashMismatch, Message: fmt.Sprintf("zip hash mismatch: expected %s, got %s", expected, actual)}
}

func NewZipAmbiguousError(filename string) *AppError {
	return &AppError{Code: CodeZipAmbiguous, Message: "ambiguous hash anchor in filename: " + filename}
}

func NewBudgetExceededError(reason string) *AppError {
	return &AppError{Code: CodeBudgetExceeded, Message: reason}
}

func NewTimeoutReachedError(reason string) *AppError {
	return &AppError{Code: CodeTimeoutReached, Message: reason}
}

// Is reports whether err is an *AppError carrying the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func IsNotFound(err error) bool          { return Is(err, CodeNotFound) }
func IsInvalidInput(err error) bool      { return Is(err, CodeInvalidInput) }
func IsPromptFile(err error) bool        { return Is(err, CodePromptFile) }
func IsClaudeCode(err error) bool        { return Is(err, CodeClaudeCode) }
func IsScriptTimeout(err error) bool     { return Is(err, CodeScriptTimeout) }
func IsNoTransition(err error) bool      { return Is(err, CodeNoTransition) }
func IsStateFileNotFound(err error) bool { return Is(err, CodeStateFileNotFound) }
func IsZipLayout(err error) bool         { return Is(err, CodeZipLayout) }
func IsBudgetExceeded(err error) bool    { return Is(err, CodeBudgetExceeded) }
func IsTimeoutReached(err error) bool    { return Is(err, CodeTimeoutReached) }

// AgentFatal reports whether err terminates only the owning agent,
// leaving its siblings running.
func AgentFatal(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return err != nil
	}
	switch appErr.Code {
	case CodePromptFile, CodeClaudeCode, CodeScriptTimeout, CodeScriptUnsupported,
		CodeScriptNotFound, CodeNoTransition:
		return true
	default:
		return false
	}
}

// WorkflowFatal reports whether err unwinds the entire scheduler.
func WorkflowFatal(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	switch appErr.Code {
	case CodeStateFileMalformed, CodeStateFileNotFound, CodeZipLayout,
		CodeZipFileNotFound, CodeZipHashMismatch, CodeZipAmbiguous:
		return true
	default:
		return false
	}
}
