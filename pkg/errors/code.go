package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: Request & driver synthesis errors
// 12000-12999: Execution backend errors
// 13000-13999: Submission errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200
	CacheMiss  ErrorCode = 10201

	// Message queue errors (10250-10299)
	MQPublishFailed ErrorCode = 10250

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	InvalidValue       ErrorCode = 10302
	RequiredFieldEmpty ErrorCode = 10303

	// ========== Request & Synthesis Errors (11000-11999) ==========

	LanguageNotSupported ErrorCode = 11000
	CodeTooLarge         ErrorCode = 11001
	InputTooLarge        ErrorCode = 11002
	SynthesisFailed      ErrorCode = 11100

	// ========== Execution Backend Errors (12000-12999) ==========

	BackendUnavailable  ErrorCode = 12000
	BackendRejected     ErrorCode = 12001
	BackendBadResponse  ErrorCode = 12002
	FallbackUnavailable ErrorCode = 12100
	FallbackFailed      ErrorCode = 12101

	// ========== Submission Errors (13000-13999) ==========

	SubmissionNotFound ErrorCode = 13000
	TooManyTestCases   ErrorCode = 13001
	JudgeQueueFull     ErrorCode = 13100
	JudgeSystemError   ErrorCode = 13101
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	CacheError:      "Cache operation failed",
	CacheMiss:       "Cache miss",
	MQPublishFailed: "Failed to publish message",

	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	InvalidValue:       "Invalid value",
	RequiredFieldEmpty: "Required field is empty",

	LanguageNotSupported: "Programming language not supported",
	CodeTooLarge:         "Code is too large",
	InputTooLarge:        "Input is too large",
	SynthesisFailed:      "Failed to build driver program",

	BackendUnavailable:  "Code execution service unavailable",
	BackendRejected:     "Code execution service rejected the request",
	BackendBadResponse:  "Code execution service returned an invalid response",
	FallbackUnavailable: "Local execution is not available for this language",
	FallbackFailed:      "Local execution failed",

	SubmissionNotFound: "Submission not found",
	TooManyTestCases:   "Too many test cases",
	JudgeQueueFull:     "Judge queue is full, please try again later",
	JudgeSystemError:   "Judge system error",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == NotFound, c == SubmissionNotFound:
		return 404
	case c == TooManyRequests, c == JudgeQueueFull:
		return 429
	case c == ServiceUnavailable, c == BackendUnavailable:
		return 503
	case c == Timeout:
		return 504
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c >= 11000 && c < 11100: // Request errors
		return 400
	case c == InvalidParams, c == TooManyTestCases:
		return 400
	case c == BackendRejected, c == BackendBadResponse:
		return 502
	default:
		return 500
	}
}
