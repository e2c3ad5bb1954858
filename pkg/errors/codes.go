package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
// The prefix before the first underscore names the owning module.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeFeatureDisabled    ErrorCode = "COMMON_015"
	ErrCodeNotImplemented     ErrorCode = "COMMON_016"
	ErrCodeStorageError       ErrorCode = "COMMON_017"
	ErrCodeMessageQueueError  ErrorCode = "COMMON_018"
	ErrCodeRateLimited        ErrorCode = "COMMON_019"
)

// Aliases used by call sites that only care about the category.
const (
	CodeOK           = ErrorCode("OK")
	CodeUnknown      = ErrorCode("UNKNOWN")
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
)

// Issue classification
const (
	ErrCodeClassificationFailed ErrorCode = "CLS_001"
	ErrCodeEmptyNarrative       ErrorCode = "CLS_002"
)

// Section mapping
const (
	ErrCodeSectionTableInvalid ErrorCode = "SEC_001"
	ErrCodeSectionNotFound     ErrorCode = "SEC_002"
	ErrCodeActUnknown          ErrorCode = "SEC_003"
)

// Evidence extraction
const (
	ErrCodeEvidenceExtractionFailed ErrorCode = "EVD_001"
	ErrCodeRecognizerFailed         ErrorCode = "EVD_002"
)

// Advisory classification
const (
	ErrCodeAdvisoryClassificationFailed ErrorCode = "ADV_001"
	ErrCodeEncoderFailed                ErrorCode = "ADV_002"
)

// Knowledge retrieval
const (
	ErrCodeUnknownDomain   ErrorCode = "RAG_001"
	ErrCodeIngestFailed    ErrorCode = "RAG_002"
	ErrCodeRetrievalFailed ErrorCode = "RAG_003"
	ErrCodeVectorStore     ErrorCode = "RAG_004"
)

// Pipelines
const (
	ErrCodePipelineStageFailed ErrorCode = "PIPE_001"
	ErrCodeNoInput             ErrorCode = "PIPE_002"
	ErrCodeReportFailed        ErrorCode = "PIPE_003"
)

// Document intake
const (
	ErrCodeUnsupportedDocument ErrorCode = "DOC_001"
	ErrCodeDocumentDecode      ErrorCode = "DOC_002"
	ErrCodeDocumentEmpty       ErrorCode = "DOC_003"
)

// Reasoning providers
const (
	ErrCodeLLMUnavailable ErrorCode = "LLM_001"
	ErrCodeLLMFailed      ErrorCode = "LLM_002"
	ErrCodeLLMEmpty       ErrorCode = "LLM_003"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeFeatureDisabled:    http.StatusForbidden,
	ErrCodeNotImplemented:     http.StatusNotImplemented,
	ErrCodeStorageError:       http.StatusInternalServerError,
	ErrCodeMessageQueueError:  http.StatusInternalServerError,
	ErrCodeRateLimited:        http.StatusTooManyRequests,

	ErrCodeClassificationFailed: http.StatusInternalServerError,
	ErrCodeEmptyNarrative:       http.StatusBadRequest,

	ErrCodeSectionTableInvalid: http.StatusInternalServerError,
	ErrCodeSectionNotFound:     http.StatusNotFound,
	ErrCodeActUnknown:          http.StatusNotFound,

	ErrCodeEvidenceExtractionFailed: http.StatusInternalServerError,
	ErrCodeRecognizerFailed:         http.StatusInternalServerError,

	ErrCodeAdvisoryClassificationFailed: http.StatusInternalServerError,
	ErrCodeEncoderFailed:                http.StatusInternalServerError,

	ErrCodeUnknownDomain:   http.StatusBadRequest,
	ErrCodeIngestFailed:    http.StatusInternalServerError,
	ErrCodeRetrievalFailed: http.StatusInternalServerError,
	ErrCodeVectorStore:     http.StatusInternalServerError,

	ErrCodePipelineStageFailed: http.StatusInternalServerError,
	ErrCodeNoInput:             http.StatusBadRequest,
	ErrCodeReportFailed:        http.StatusInternalServerError,

	ErrCodeUnsupportedDocument: http.StatusUnsupportedMediaType,
	ErrCodeDocumentDecode:      http.StatusUnprocessableEntity,
	ErrCodeDocumentEmpty:       http.StatusBadRequest,

	ErrCodeLLMUnavailable: http.StatusServiceUnavailable,
	ErrCodeLLMFailed:      http.StatusBadGateway,
	ErrCodeLLMEmpty:       http.StatusBadGateway,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "operation timed out",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeFeatureDisabled:    "feature disabled",
	ErrCodeNotImplemented:     "not implemented",
	ErrCodeStorageError:       "object storage error",
	ErrCodeMessageQueueError:  "message queue error",
	ErrCodeRateLimited:        "rate limit exceeded",

	ErrCodeClassificationFailed: "issue classification failed",
	ErrCodeEmptyNarrative:       "narrative text is empty",

	ErrCodeSectionTableInvalid: "section table is invalid",
	ErrCodeSectionNotFound:     "section not found",
	ErrCodeActUnknown:          "act not found",

	ErrCodeEvidenceExtractionFailed: "evidence extraction failed",
	ErrCodeRecognizerFailed:         "entity recognizer failed",

	ErrCodeAdvisoryClassificationFailed: "advisory classification failed",
	ErrCodeEncoderFailed:                "text encoder failed",

	ErrCodeUnknownDomain:   "unknown knowledge domain",
	ErrCodeIngestFailed:    "knowledge ingestion failed",
	ErrCodeRetrievalFailed: "knowledge retrieval failed",
	ErrCodeVectorStore:     "vector store error",

	ErrCodePipelineStageFailed: "pipeline stage failed",
	ErrCodeNoInput:             "no input provided",
	ErrCodeReportFailed:        "report generation failed",

	ErrCodeUnsupportedDocument: "unsupported document type",
	ErrCodeDocumentDecode:      "document could not be decoded",
	ErrCodeDocumentEmpty:       "document is empty",

	ErrCodeLLMUnavailable: "reasoning provider unavailable",
	ErrCodeLLMFailed:      "reasoning provider failed",
	ErrCodeLLMEmpty:       "reasoning provider returned no content",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 1 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
