package types

// Error codes of the control API.
const (
	CodeDeviceNotFound = "DEVICE_NOT_FOUND"
	CodeInvalidKind    = "INVALID_KIND"
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeUnsupported    = "UNSUPPORTED"
	CodeVendorError    = "VENDOR_ERROR"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeForbidden      = "FORBIDDEN"
)

// ErrorResponse is the body of every non-2xx control API response:
// {"error":{"code":...,"message":...,"details":...}}.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResponse builds an API error payload. A nil details is omitted.
func NewErrorResponse(code, message string, details any) ErrorResponse {
	return ErrorResponse{Error: ErrorBody{Code: code, Message: message, Details: details}}
}
