package mediagrab

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateProvider = errors.New("duplicate provider name")
	ErrInvalidProvider   = errors.New("invalid provider")
	ErrNoMatch           = errors.New("no provider matched the input")
	ErrUnknownProvider   = errors.New("unknown provider")

	ErrNoFormats      = errors.New("no downloadable formats")
	ErrNoAudioFormat  = errors.New("no audio format available")
	ErrTooLarge       = errors.New("file exceeds size limit")
	ErrBadContentType = errors.New("unexpected content type")
	ErrEmptyFile      = errors.New("downloaded file is empty")
)

// Resolution error categories, one per user-facing failure message.
const (
	ResolutionNetwork   = "network"
	ResolutionNotFound  = "not-found"
	ResolutionNoFormats = "no-formats"
	ResolutionParse     = "parse-error"
)

// A ResolutionError is any failure of a platform resolver to turn a URL into a
// format list. It is fatal to the single request, never to the process.
type ResolutionError struct {
	Category string
	Err      error
}

func (e *ResolutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("resolution failed (%s)", e.Category)
	}
	return fmt.Sprintf("resolution failed (%s): %v", e.Category, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

func NewResolutionError(category string, err error) *ResolutionError {
	return &ResolutionError{Category: category, Err: err}
}

// ResolutionCategory returns the category of err if it is (or wraps) a
// ResolutionError, or "" otherwise.
func ResolutionCategory(err error) string {
	var re *ResolutionError
	if errors.As(err, &re) {
		return re.Category
	}
	return ""
}
