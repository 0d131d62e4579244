package model

// ListResponse is the standard envelope for list endpoints.
type ListResponse struct {
	Data       interface{} `json:"data"`
	NextCursor *int        `json:"next_cursor,omitempty"`
}

// ErrorResponse is the standard envelope for error responses.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned by the API.
type ErrorDetail struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}
