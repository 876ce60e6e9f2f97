// Package errors defines the categorized error kinds used by the pipeline.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind identifies the category of a pipeline error
type Kind string

const (
	// KindConfigNotFound means the remote configuration object is missing
	KindConfigNotFound Kind = "CONFIG_NOT_FOUND"
	// KindConfigParse means the configuration object is not valid structured data
	KindConfigParse Kind = "CONFIG_PARSE_ERROR"
	// KindTransport means the market-data API could not be reached
	KindTransport Kind = "TRANSPORT_ERROR"
	// KindAPI means the market-data API returned a non-200 response
	KindAPI Kind = "API_ERROR"
	// KindNormalization means an asset record could not be flattened
	KindNormalization Kind = "NORMALIZATION_ERROR"
	// KindUploadVerification means an uploaded object is absent post-upload
	KindUploadVerification Kind = "UPLOAD_VERIFICATION_FAILED"
	// KindLoad means the warehouse bulk load failed
	KindLoad Kind = "LOAD_ERROR"
	// KindDatabase means a metadata-store operation failed
	KindDatabase Kind = "DATABASE_ERROR"
)

// PipelineError represents an error with a kind and optional details
type PipelineError struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
	Cause   error
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// NewConfigNotFoundError creates a missing-configuration error
func NewConfigNotFoundError(location string) *PipelineError {
	return &PipelineError{
		Kind:    KindConfigNotFound,
		Message: fmt.Sprintf("configuration object not found: %s", location),
		Details: map[string]interface{}{
			"location": location,
		},
	}
}

// NewConfigParseError creates an invalid-configuration error
func NewConfigParseError(location string, cause error) *PipelineError {
	return &PipelineError{
		Kind:    KindConfigParse,
		Message: fmt.Sprintf("configuration object is not valid JSON: %s", location),
		Cause:   cause,
		Details: map[string]interface{}{
			"location": location,
		},
	}
}

// NewConfigFetchError creates an error for a configuration object that could
// not be retrieved from storage. It carries the parse kind; the missing-object
// case has its own kind and the rest of the retrieval failures group here.
func NewConfigFetchError(location string, cause error) *PipelineError {
	return &PipelineError{
		Kind:    KindConfigParse,
		Message: fmt.Sprintf("configuration object could not be retrieved: %s", location),
		Cause:   cause,
		Details: map[string]interface{}{
			"location": location,
		},
	}
}

// NewTransportError creates a network-failure error for the market-data API
func NewTransportError(url string, cause error) *PipelineError {
	return &PipelineError{
		Kind:    KindTransport,
		Message: "market-data API unreachable",
		Cause:   cause,
		Details: map[string]interface{}{
			"url": url,
		},
	}
}

// NewAPIError creates an error from a non-200 market-data API response.
// The message is taken from the response's status.error_message field.
func NewAPIError(statusCode int, message string) *PipelineError {
	if message == "" {
		message = "unknown API error"
	}
	return &PipelineError{
		Kind:    KindAPI,
		Message: message,
		Details: map[string]interface{}{
			"statusCode": statusCode,
		},
	}
}

// NewNormalizationError creates a flattening error for a malformed record
func NewNormalizationError(message string, details map[string]interface{}) *PipelineError {
	return &PipelineError{
		Kind:    KindNormalization,
		Message: message,
		Details: details,
	}
}

// NewUploadVerificationError creates an error for an object that is absent
// after upload
func NewUploadVerificationError(bucket, key string) *PipelineError {
	return &PipelineError{
		Kind:    KindUploadVerification,
		Message: fmt.Sprintf("uploaded object not found: %s/%s", bucket, key),
		Details: map[string]interface{}{
			"bucket": bucket,
			"key":    key,
		},
	}
}

// NewLoadError creates a warehouse load error
func NewLoadError(table string, cause error) *PipelineError {
	return &PipelineError{
		Kind:    KindLoad,
		Message: fmt.Sprintf("failed to load table %s", table),
		Cause:   cause,
		Details: map[string]interface{}{
			"table": table,
		},
	}
}

// NewDatabaseError creates a metadata-store error
func NewDatabaseError(operation string, cause error) *PipelineError {
	return &PipelineError{
		Kind:    KindDatabase,
		Message: fmt.Sprintf("database error during %s", operation),
		Cause:   cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// KindOf returns the kind of err, or the empty Kind for uncategorized errors
func KindOf(err error) Kind {
	var perr *PipelineError
	if stderrors.As(err, &perr) {
		return perr.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
