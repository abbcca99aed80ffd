package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/Mussapinga011/PartQuip-sub000/internal/backup"
	"github.com/Mussapinga011/PartQuip-sub000/internal/service"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // runtime failure (remote down, store error)
	ExitCommandError = 2 // bad flags or input the user can fix
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Domain rejections the
// operator can correct map to ExitCommandError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, service.ErrDuplicateCancellation),
		errors.Is(err, service.ErrSaleNotEditable),
		errors.Is(err, service.ErrDuplicateCode),
		errors.Is(err, service.ErrNotFound),
		errors.Is(err, backup.ErrRestoreParse):
		return ExitCommandError
	}
	return ExitFailure
}

// printer writes a command result as indented JSON or through a text
// renderer.
type printer struct {
	format string
	w      io.Writer
}

func (p printer) print(v any, text func(w io.Writer)) error {
	if p.format == "json" || text == nil {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(p.w)
	return nil
}
