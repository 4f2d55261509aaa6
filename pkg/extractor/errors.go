package extractor

import "fmt"

// ExtractionError represents a failure to extract content from a fetched body.
type ExtractionError struct {
	Kind    string // Content kind that was being extracted
	URL     string // Source URL
	Message string // Error message
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("[%s] extraction failed for %s: %s", e.Kind, e.URL, e.Message)
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// NewExtractionError creates a new ExtractionError.
func NewExtractionError(kind, url, message string, err error) *ExtractionError {
	return &ExtractionError{
		Kind:    kind,
		URL:     url,
		Message: message,
		Err:     err,
	}
}
