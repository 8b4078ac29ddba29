// Package errors provides standardized error handling for the report
// generation pipeline.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeTemplateNotFound   ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeSectionNotFound    ErrorCode = "SECTION_NOT_FOUND"
	ErrCodeSubsectionNotFound ErrorCode = "SUBSECTION_NOT_FOUND"
	ErrCodeJobNotFound        ErrorCode = "JOB_NOT_FOUND"

	ErrCodeDataSourceNotFound      ErrorCode = "DATA_SOURCE_NOT_FOUND"
	ErrCodeRetrievalMethodNotFound ErrorCode = "RETRIEVAL_METHOD_NOT_FOUND"
	ErrCodeConfigInvalid           ErrorCode = "CONFIG_INVALID"
	ErrCodeCircularDependency      ErrorCode = "CIRCULAR_DEPENDENCY"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"

	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeSearchQueryFailed             ErrorCode = "SEARCH_QUERY_FAILED"

	ErrCodeLLMTimeout          ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMSynthesisFailed  ErrorCode = "LLM_SYNTHESIS_FAILED"
	ErrCodeNotificationFailure ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Validation Issues
// ==========================

// ValidationIssue describes a single problem found while validating a
// subsection's data source configuration, carrying enough identity for a
// caller to point the user at the offending widget.
type ValidationIssue struct {
	SubsectionID    string `json:"subsection_id"`
	SubsectionTitle string `json:"subsection_title"`
	SectionTitle    string `json:"section_title"`
	Reason          string `json:"reason"`
}

func (i ValidationIssue) String() string {
	if i.SubsectionTitle == "" {
		return i.Reason
	}
	return fmt.Sprintf("%s: %s", i.SubsectionTitle, i.Reason)
}

// ValidationError aggregates every issue found during an all-or-nothing
// validation pass over a section or template.
type ValidationError struct {
	Issues []ValidationIssue `json:"issues"`
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.String()
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(parts, "; "))
}

// NewValidationError wraps the collected issues.
func NewValidationError(issues []ValidationIssue) *ValidationError {
	return &ValidationError{Issues: issues}
}

// ==========================
// 3. Error Constructors
// ==========================

// NewTemplateNotFoundError indicates the report template does not exist.
func NewTemplateNotFoundError(templateID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateNotFound,
		Message:   "Report template not found",
		Details:   fmt.Sprintf("template_id: %s", templateID),
		Retryable: false,
		Timestamp: time.Now(),
	}
}

// NewSectionNotFoundError indicates the section does not exist.
func NewSectionNotFoundError(sectionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSectionNotFound,
		Message:   "Section not found",
		Details:   fmt.Sprintf("section_id: %s", sectionID),
		Retryable: false,
		Timestamp: time.Now(),
	}
}

// NewSubsectionNotFoundError indicates the subsection does not exist.
func NewSubsectionNotFoundError(subsectionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubsectionNotFound,
		Message:   "Subsection not found",
		Details:   fmt.Sprintf("subsection_id: %s", subsectionID),
		Retryable: false,
		Timestamp: time.Now(),
	}
}

// NewJobNotFoundError indicates an unknown generation job ID.
func NewJobNotFoundError(jobID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeJobNotFound,
		Message:   "Generation job not found",
		Details:   fmt.Sprintf("job_id: %s", jobID),
		Retryable: false,
		Timestamp: time.Now(),
	}
}

// NewDataSourceNotFoundError indicates an unregistered data source ID.
func NewDataSourceNotFoundError(sourceID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDataSourceNotFound,
		Message:   fmt.Sprintf("Unknown data source '%s'", sourceID),
		Retryable: false,
		Timestamp: time.Now(),
	}
}

// NewRetrievalMethodNotFoundError indicates a method ID that is not valid
// for the given data source.
func NewRetrievalMethodNotFoundError(sourceID, methodID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRetrievalMethodNotFound,
		Message:   fmt.Sprintf("Method '%s' is not valid for data source '%s'", methodID, sourceID),
		Retryable: false,
		Timestamp: time.Now(),
	}
}

// NewCircularDependencyError indicates an unresolvable dependency cycle.
func NewCircularDependencyError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCircularDependency,
		Message:   details,
		Retryable: false,
		Timestamp: time.Now(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable infrastructure error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now(),
	}
}

// NewQueryExecutionFailedError creates a retryable query error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   fmt.Sprintf("Query execution failed for %s", queryType),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now(),
	}
}

// NewDatabaseInsertFailedError creates a retryable persistence error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database insert failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now(),
	}
}

// NewSearchQueryFailedError creates a retryable search error.
func NewSearchQueryFailedError(index string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   fmt.Sprintf("Search query failed on index %s", index),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now(),
	}
}

// NewLLMSynthesisFailedError creates a retryable model error.
func NewLLMSynthesisFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMSynthesisFailed,
		Message:   "LLM synthesis failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now(),
	}
}

// NewNotificationSendFailedError creates a non-retryable notification error.
// Notification is best-effort: callers log and move on.
func NewNotificationSendFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationFailure,
		Message:   "Notification send failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now(),
	}
}

// IsRetryable reports whether err is a StandardError marked retryable.
func IsRetryable(err error) bool {
	if se, ok := err.(*StandardError); ok {
		return se.Retryable
	}
	return false
}

// CodeOf extracts the error code, or empty for foreign errors.
func CodeOf(err error) ErrorCode {
	if se, ok := err.(*StandardError); ok {
		return se.Code
	}
	return ""
}
