package model

// ListResponse defines a plain list response.
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Count int `json:"count"`
}

// NewListResponse wraps items in a ListResponse.
func NewListResponse[T any](data []T) *ListResponse[T] {
	if data == nil {
		data = []T{}
	}
	return &ListResponse[T]{Data: data, Count: len(data)}
}

// ErrorResponse defines error response structure.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// StatusResponse acknowledges a processed request.
type StatusResponse struct {
	Status string `json:"status"`
}
