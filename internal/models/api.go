package models

// API response status values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// APIResponse is the uniform JSON envelope for HTTP endpoints.
type APIResponse struct {
	Status string      `json:"status"`
	Error  string      `json:"error,omitempty"`
	Result interface{} `json:"result,omitempty"`
}

// Success builds an ok envelope with an optional result payload.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: StatusOK, Result: result}
}

// Error builds an error envelope with the given message.
func Error(message string) APIResponse {
	return APIResponse{Status: StatusError, Error: message}
}
